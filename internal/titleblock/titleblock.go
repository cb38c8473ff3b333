// Package titleblock extracts sheet metadata from the title block strip at
// the right edge of a drawing sheet using Tesseract OCR.
package titleblock

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// The title block occupies the right edge of almost every architectural
// sheet; this fraction of the page width is cropped and scanned.
const stripFraction = 0.15

// Discipline prefix, optional separator, then a sheet sequence like
// "A-101", "S2.1", "M401", "A-101.2".
var sheetNumberRe = regexp.MustCompile(`\b([A-Z]{1,2})[-. ]?(\d{1,3}(?:\.\d{1,2})?)\b`)

// Info is the metadata read from a title block.
type Info struct {
	SheetNumber string `json:"sheet_number,omitempty"`
	SheetName   string `json:"sheet_name,omitempty"`
}

// Engine wraps a Tesseract client configured for title block text.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates the OCR engine.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Sheet numbers are not dictionary words; keep Tesseract from
	// "correcting" A-101 into something else.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Extract reads the sheet number and name from a page image.
func (e *Engine) Extract(img image.Image) (Info, error) {
	strip := cropRightStrip(img, stripFraction)

	var buf bytes.Buffer
	if err := png.Encode(&buf, strip); err != nil {
		return Info{}, fmt.Errorf("failed to encode title block strip: %w", err)
	}

	if err := e.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return Info{}, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Info{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return Info{}, fmt.Errorf("OCR failed: %w", err)
	}
	return Parse(text), nil
}

// Parse pulls the sheet number and name out of raw OCR text. The sheet
// number is the last match in the strip (title blocks put it at the bottom
// corner); the sheet name is the longest all-caps line that is not the
// number itself.
func Parse(text string) Info {
	var info Info

	upper := strings.ToUpper(text)
	if matches := sheetNumberRe.FindAllStringSubmatch(upper, -1); len(matches) > 0 {
		last := matches[len(matches)-1]
		info.SheetNumber = last[1] + "-" + last[2]
	}

	for _, line := range strings.Split(upper, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 6 || len(line) > 60 {
			continue
		}
		if sheetNumberRe.MatchString(line) && len(line) < 10 {
			continue
		}
		letters := 0
		for _, r := range line {
			if r >= 'A' && r <= 'Z' || r == ' ' {
				letters++
			}
		}
		// Mostly letters and spaces, longer than what we have so far.
		if letters*10 >= len(line)*8 && len(line) > len(info.SheetName) {
			info.SheetName = line
		}
	}
	return info
}

// cropRightStrip copies the right fraction of the image.
func cropRightStrip(img image.Image, fraction float64) image.Image {
	b := img.Bounds()
	w := int(float64(b.Dx()) * fraction)
	if w < 1 {
		w = b.Dx()
	}
	strip := image.NewRGBA(image.Rect(0, 0, w, b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < w; x++ {
			strip.Set(x, y, img.At(b.Max.X-w+x, b.Min.Y+y))
		}
	}
	return strip
}
