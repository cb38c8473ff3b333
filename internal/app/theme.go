package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// TakeoffTheme provides a custom theme for the application.
type TakeoffTheme struct{}

var _ fyne.Theme = (*TakeoffTheme)(nil)

func (t *TakeoffTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0x1A, G: 0x5C, B: 0xB0, A: 0xFF} // Blueprint blue
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0xFF, G: 0xDC, B: 0x00, A: 0x80} // Matches markup highlight
	case theme.ColorNameScrollBar:
		return color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *TakeoffTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *TakeoffTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *TakeoffTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameScrollBar:
		// Wide scrollbars: takeoff work is all mouse, on large sheets.
		return 16
	case theme.SizeNameScrollBarSmall:
		return 12
	default:
		return theme.DefaultTheme().Size(name)
	}
}
