package page

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"plan-takeoff/pkg/geometry"

	_ "golang.org/x/image/tiff"
)

// Renderer supplies rendered page images and their base geometry. The
// document itself (PDF decoding, pagination) lives behind this interface;
// the engine only ever sees finished raster pages.
type Renderer interface {
	// PageCount returns the number of pages in the document.
	PageCount() int

	// BaseSize returns the unrotated, unit-scale pixel dimensions of a page.
	BaseSize(pageNum int) (geometry.Size, error)

	// Render returns the page image rotated by the given right-angle
	// rotation, at unit scale. Zoom scaling is applied by the display layer.
	Render(pageNum int, rotation int) (image.Image, error)
}

// DirRenderer serves pre-rendered page images from a directory. Pages are
// the image files in the directory sorted by name; page numbers are 1-based.
type DirRenderer struct {
	dir   string
	files []string
	cache map[int]image.Image
}

// NewDirRenderer scans dir for page images (png, jpg, tif).
func NewDirRenderer(dir string) (*DirRenderer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading page directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page images in %s", dir)
	}
	sort.Strings(files)

	return &DirRenderer{
		dir:   dir,
		files: files,
		cache: make(map[int]image.Image),
	}, nil
}

// PageCount returns the number of page images found.
func (r *DirRenderer) PageCount() int {
	return len(r.files)
}

// Path returns the image file backing a page, or "" if out of range.
func (r *DirRenderer) Path(pageNum int) string {
	if pageNum < 1 || pageNum > len(r.files) {
		return ""
	}
	return r.files[pageNum-1]
}

// BaseSize returns the pixel dimensions of the unrotated page image.
func (r *DirRenderer) BaseSize(pageNum int) (geometry.Size, error) {
	img, err := r.load(pageNum)
	if err != nil {
		return geometry.Size{}, err
	}
	b := img.Bounds()
	return geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}, nil
}

// Render returns the page image under the requested rotation.
func (r *DirRenderer) Render(pageNum int, rotation int) (image.Image, error) {
	img, err := r.load(pageNum)
	if err != nil {
		return nil, err
	}
	return Rotate(img, rotation), nil
}

func (r *DirRenderer) load(pageNum int) (image.Image, error) {
	if img, ok := r.cache[pageNum]; ok {
		return img, nil
	}
	if pageNum < 1 || pageNum > len(r.files) {
		return nil, fmt.Errorf("page %d out of range (1-%d)", pageNum, len(r.files))
	}

	path := r.files[pageNum-1]
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	r.cache[pageNum] = img
	return img, nil
}

// Rotate returns img rotated clockwise by a right-angle rotation.
// Unsupported angles return the image unchanged.
func Rotate(img image.Image, rotation int) image.Image {
	switch rotation {
	case 90, 180, 270:
	default:
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var out *image.RGBA
	if rotation == 180 {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch rotation {
			case 90:
				out.Set(h-1-y, x, c)
			case 180:
				out.Set(w-1-x, h-1-y, c)
			case 270:
				out.Set(y, w-1-x, c)
			}
		}
	}
	return out
}
