// Package canvas provides the drawing sheet canvas with pan, zoom, rotation,
// and markup overlay rendering.
package canvas

import (
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"plan-takeoff/internal/overlay"
	"plan-takeoff/internal/page"
	"plan-takeoff/pkg/geometry"
)

const (
	minZoom  = 0.1
	maxZoom  = 10.0
	zoomStep = 1.25
)

// PageCanvas displays one drawing sheet with the markup overlay on top.
// All pointer events are reported in page-pixel coordinates of the current
// frame, so callers can normalize them with the same frame they configured.
type PageCanvas struct {
	widget.BaseWidget

	// Page raster at 0 degrees, as decoded.
	base     image.Image
	baseSize geometry.Size

	// View state.
	zoom     float64
	rotation int
	rotated  image.Image // base at the current rotation, cached

	overlayList *overlay.PageOverlay

	raster  *fynecanvas.Raster
	scroll  *zoomScroll
	content *pageContent
	imgSize fyne.Size

	fitToWindow    bool
	lastScrollSize fyne.Size

	// Callbacks, in page-pixel coordinates.
	onClick       func(p geometry.Point2D)
	onDoubleClick func(p geometry.Point2D)
	onRightClick  func(p geometry.Point2D)
	onMove        func(p geometry.Point2D)
	onFrameChange func(f page.Frame)
}

// NewPageCanvas creates an empty page canvas.
func NewPageCanvas() *PageCanvas {
	pc := &PageCanvas{
		zoom:    1.0,
		imgSize: fyne.NewSize(400, 300),
	}

	pc.raster = fynecanvas.NewRaster(pc.draw)
	pc.raster.ScaleMode = fynecanvas.ImageScalePixels
	pc.raster.SetMinSize(pc.imgSize)

	pc.content = newPageContent(pc)
	pc.scroll = newZoomScroll(pc.content, pc)

	pc.ExtendBaseWidget(pc)
	return pc
}

// Container returns the canvas container for embedding in layouts.
func (pc *PageCanvas) Container() fyne.CanvasObject {
	return pc.scroll
}

// SetPage replaces the displayed sheet, resetting rotation.
func (pc *PageCanvas) SetPage(img image.Image) {
	pc.base = img
	pc.rotation = 0
	pc.rotated = img
	if img != nil {
		b := img.Bounds()
		pc.baseSize = geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	} else {
		pc.baseSize = geometry.Size{}
	}
	pc.frameChanged()
}

// Frame returns the current view frame.
func (pc *PageCanvas) Frame() page.Frame {
	return page.FrameFor(pc.baseSize, pc.zoom, pc.rotation)
}

// SetOverlay replaces the markup overlay wholesale.
func (pc *PageCanvas) SetOverlay(ov *overlay.PageOverlay) {
	pc.overlayList = ov
	pc.Refresh()
}

// Rotation returns the current rotation in degrees.
func (pc *PageCanvas) Rotation() int {
	return pc.rotation
}

// RotateClockwise advances the view rotation by 90 degrees.
func (pc *PageCanvas) RotateClockwise() {
	pc.SetRotation((pc.rotation + 90) % 360)
}

// SetRotation sets the view rotation; only multiples of 90 change the
// raster, anything else falls back to the unrotated view.
func (pc *PageCanvas) SetRotation(deg int) {
	pc.rotation = deg
	if pc.base != nil {
		pc.rotated = page.Rotate(pc.base, deg)
	}
	pc.frameChanged()
}

// SetZoom sets the zoom level, clamped to the usable range.
func (pc *PageCanvas) SetZoom(zoom float64) {
	if zoom < minZoom {
		zoom = minZoom
	}
	if zoom > maxZoom {
		zoom = maxZoom
	}
	pc.zoom = zoom
	pc.frameChanged()
}

// Zoom returns the current zoom level.
func (pc *PageCanvas) Zoom() float64 {
	return pc.zoom
}

// ZoomIn increases the zoom level one step.
func (pc *PageCanvas) ZoomIn() {
	pc.SetZoom(pc.zoom * zoomStep)
}

// ZoomOut decreases the zoom level one step.
func (pc *PageCanvas) ZoomOut() {
	pc.SetZoom(pc.zoom / zoomStep)
}

// FitToWindow adjusts zoom so the sheet fills the visible area.
func (pc *PageCanvas) FitToWindow() {
	f := pc.Frame()
	if f.Width == 0 || f.Height == 0 {
		return
	}
	viewSize := pc.scroll.Size()
	if viewSize.Width <= 0 || viewSize.Height <= 0 {
		return
	}
	zoomX := float64(viewSize.Width) / (f.Width / pc.zoom)
	zoomY := float64(viewSize.Height) / (f.Height / pc.zoom)
	zoom := zoomX
	if zoomY < zoomX {
		zoom = zoomY
	}
	pc.SetZoom(zoom * 0.95)
}

// SetFitToWindow enables or disables auto-fit on resize.
func (pc *PageCanvas) SetFitToWindow(fit bool) {
	pc.fitToWindow = fit
	if fit {
		pc.FitToWindow()
	}
}

// OnClick sets the single-click callback.
func (pc *PageCanvas) OnClick(cb func(p geometry.Point2D)) {
	pc.onClick = cb
}

// OnDoubleClick sets the double-click callback.
func (pc *PageCanvas) OnDoubleClick(cb func(p geometry.Point2D)) {
	pc.onDoubleClick = cb
}

// OnRightClick sets the right-click callback.
func (pc *PageCanvas) OnRightClick(cb func(p geometry.Point2D)) {
	pc.onRightClick = cb
}

// OnMove sets the pointer-motion callback used for rubber-band previews.
func (pc *PageCanvas) OnMove(cb func(p geometry.Point2D)) {
	pc.onMove = cb
}

// OnFrameChange notifies when zoom or rotation changes the view frame.
func (pc *PageCanvas) OnFrameChange(cb func(f page.Frame)) {
	pc.onFrameChange = cb
}

// Refresh redraws the canvas.
func (pc *PageCanvas) Refresh() {
	pc.raster.Refresh()
}

func (pc *PageCanvas) frameChanged() {
	f := pc.Frame()
	if f.Width <= 0 || f.Height <= 0 {
		pc.imgSize = fyne.NewSize(400, 300)
	} else {
		pc.imgSize = fyne.NewSize(float32(f.Width), float32(f.Height))
	}

	pc.raster.SetMinSize(pc.imgSize)
	pc.raster.Resize(pc.imgSize)
	if pc.content != nil {
		pc.content.Resize(pc.imgSize)
		pc.content.Refresh()
	}
	pc.raster.Refresh()
	if pc.scroll != nil {
		pc.scroll.Refresh()
	}
	if pc.onFrameChange != nil {
		pc.onFrameChange(f)
	}
}

// draw renders the rotated, zoomed sheet and rasterizes the overlay on top.
func (pc *PageCanvas) draw(w, h int) image.Image {
	currentSize := fyne.NewSize(float32(w), float32(h))
	if pc.fitToWindow && currentSize != pc.lastScrollSize && w > 0 && h > 0 {
		pc.lastScrollSize = currentSize
		go pc.FitToWindow()
	}

	output := image.NewRGBA(image.Rect(0, 0, w, h))
	// White background, like paper.
	for i := 0; i < len(output.Pix); i += 4 {
		output.Pix[i] = 255
		output.Pix[i+1] = 255
		output.Pix[i+2] = 255
		output.Pix[i+3] = 255
	}

	if pc.rotated != nil {
		f := pc.Frame()
		dst := image.Rect(0, 0, int(f.Width), int(f.Height))
		if dst.Dx() > w {
			dst.Max.X = w
		}
		if dst.Dy() > h {
			dst.Max.Y = h
		}
		xdraw.ApproxBiLinear.Scale(output, dst, pc.rotated, pc.rotated.Bounds(), xdraw.Over, nil)
	}

	if pc.overlayList != nil {
		drawOverlay(output, pc.overlayList)
	}
	return output
}

// pagePoint converts a viewport event position to page-pixel coordinates.
func (pc *PageCanvas) pagePoint(pos fyne.Position) geometry.Point2D {
	off := pc.scroll.Offset()
	return geometry.Point2D{
		X: float64(pos.X + off.X),
		Y: float64(pos.Y + off.Y),
	}
}

// zoomScroll wraps a scroll container but intercepts the wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *PageCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *PageCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		zs.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		zs.canvas.ZoomOut()
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

func (zs *zoomScroll) Offset() fyne.Position {
	return zs.scroll.Offset
}

func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

// pageContent wraps the raster to handle mouse events.
type pageContent struct {
	widget.BaseWidget
	canvas *PageCanvas
}

var _ desktop.Hoverable = (*pageContent)(nil)
var _ fyne.DoubleTappable = (*pageContent)(nil)

func newPageContent(pc *PageCanvas) *pageContent {
	c := &pageContent{canvas: pc}
	c.ExtendBaseWidget(c)
	return c
}

func (c *pageContent) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.canvas.raster)
}

func (c *pageContent) MinSize() fyne.Size {
	return c.canvas.raster.MinSize()
}

func (c *pageContent) inBounds(pos fyne.Position) bool {
	size := c.Size()
	return pos.X >= 0 && pos.Y >= 0 && pos.X <= size.Width && pos.Y <= size.Height
}

func (c *pageContent) Tapped(ev *fyne.PointEvent) {
	if c.canvas.onClick == nil || !c.inBounds(ev.Position) {
		return
	}
	c.canvas.onClick(c.canvas.pagePoint(ev.Position))
}

func (c *pageContent) DoubleTapped(ev *fyne.PointEvent) {
	if c.canvas.onDoubleClick == nil || !c.inBounds(ev.Position) {
		return
	}
	c.canvas.onDoubleClick(c.canvas.pagePoint(ev.Position))
}

func (c *pageContent) TappedSecondary(ev *fyne.PointEvent) {
	if c.canvas.onRightClick == nil || !c.inBounds(ev.Position) {
		return
	}
	c.canvas.onRightClick(c.canvas.pagePoint(ev.Position))
}

func (c *pageContent) MouseIn(*desktop.MouseEvent) {}

func (c *pageContent) MouseMoved(ev *desktop.MouseEvent) {
	if c.canvas.onMove == nil {
		return
	}
	c.canvas.onMove(c.canvas.pagePoint(ev.Position))
}

func (c *pageContent) MouseOut() {}

func (c *pageContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		c.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		c.canvas.ZoomOut()
	}
}

// CreateRenderer implements fyne.Widget.
func (pc *PageCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(pc.scroll)
}
