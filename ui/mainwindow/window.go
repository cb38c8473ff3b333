// Package mainwindow builds the application shell: canvas, toolbar,
// condition panel, menus, and status bar.
package mainwindow

import (
	"fmt"
	"log"
	"path/filepath"

	"plan-takeoff/internal/app"
	"plan-takeoff/internal/markup"
	"plan-takeoff/internal/page"
	"plan-takeoff/internal/titleblock"
	"plan-takeoff/internal/version"
	"plan-takeoff/pkg/geometry"
	"plan-takeoff/ui/canvas"
	"plan-takeoff/ui/dialogs"
	"plan-takeoff/ui/panels"
	"plan-takeoff/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	prefLastProjectDir = "last_project_dir"
	prefLastPagesDir   = "last_pages_dir"
)

// MainWindow is the application shell.
type MainWindow struct {
	fyneApp fyne.App
	window  fyne.Window
	state   *app.State
	prefs   *prefs.Prefs

	canvas    *canvas.PageCanvas
	sidePanel *panels.ConditionsPanel
	renderer  *page.DirRenderer

	statusBar *widget.Label
	pageLabel *widget.Label

	selectBtn    *widget.Button
	measureBtn   *widget.Button
	calibrateBtn *widget.Button
	annotateBtn  *widget.Button
	orthoCheck   *widget.Check

	// Two-click annotation gesture.
	annAnchor *page.NormPoint

	// Cutout capture replaces normal click routing while active.
	cutoutMode   bool
	cutoutPoints []page.NormPoint
}

// New creates the main window and wires it to the application state.
func New(fyneApp fyne.App, state *app.State) *MainWindow {
	mw := &MainWindow{
		fyneApp: fyneApp,
		state:   state,
		prefs:   prefs.Load(),
	}

	mw.window = fyneApp.NewWindow("Plan Takeoff")
	mw.window.Resize(fyne.NewSize(1400, 900))

	mw.canvas = canvas.NewPageCanvas()
	mw.sidePanel = panels.NewConditionsPanel(state)
	mw.sidePanel.SetWindow(mw.window)

	mw.statusBar = widget.NewLabel("Ready")
	mw.pageLabel = widget.NewLabel("Page -/-")

	mw.wireCanvas()
	mw.wireEvents()
	mw.window.SetMainMenu(mw.buildMenus())

	toolbar := mw.buildToolbar()
	statusRow := container.NewBorder(nil, nil, nil, mw.pageLabel, mw.statusBar)

	split := container.NewHSplit(mw.canvas.Container(), mw.sidePanel.Container())
	split.SetOffset(0.78)

	mw.window.SetContent(container.NewBorder(toolbar, statusRow, nil, nil, split))

	mw.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		mw.onKey(ev)
	})
	mw.window.SetCloseIntercept(func() {
		mw.confirmDiscard(func() {
			mw.prefs.Save()
			mw.state.Saver.Close()
			mw.window.Close()
		})
	})

	return mw
}

// Window returns the underlying fyne window.
func (mw *MainWindow) Window() fyne.Window {
	return mw.window
}

// ShowAndRun displays the window and enters the event loop.
func (mw *MainWindow) ShowAndRun() {
	mw.window.ShowAndRun()
}

// OpenProject loads a project file, e.g. from the command line.
func (mw *MainWindow) OpenProject(path string) {
	if err := mw.state.LoadProject(path); err != nil {
		dialog.ShowError(err, mw.window)
		return
	}
	mw.restoreRenderer()
	mw.updateTitle()
	mw.showPage(1)
}

func (mw *MainWindow) buildToolbar() fyne.CanvasObject {
	mw.selectBtn = widget.NewButton("Select", func() { mw.state.SetTool(app.ToolSelect) })
	mw.measureBtn = widget.NewButton("Measure", func() { mw.state.SetTool(app.ToolMeasure) })
	mw.calibrateBtn = widget.NewButton("Calibrate", func() { mw.state.SetTool(app.ToolCalibrate) })
	mw.annotateBtn = widget.NewButton("Annotate", func() { mw.state.SetTool(app.ToolAnnotate) })

	mw.orthoCheck = widget.NewCheck("Ortho", func(on bool) {
		mw.state.Capture.SetOrtho(on)
		mw.updateStatus()
	})

	zoomOut := widget.NewButton("-", func() { mw.canvas.ZoomOut() })
	zoomIn := widget.NewButton("+", func() { mw.canvas.ZoomIn() })
	fit := widget.NewButton("Fit", func() { mw.canvas.SetFitToWindow(true) })
	actual := widget.NewButton("1:1", func() { mw.canvas.SetZoom(1) })
	rotate := widget.NewButton("Rotate", func() { mw.canvas.RotateClockwise() })

	prev := widget.NewButton("<", func() { mw.gotoPage(mw.state.CurrentPage() - 1) })
	next := widget.NewButton(">", func() { mw.gotoPage(mw.state.CurrentPage() + 1) })

	mw.highlightTool(mw.state.Tool())

	return container.NewHBox(
		mw.selectBtn, mw.measureBtn, mw.calibrateBtn, mw.annotateBtn,
		widget.NewSeparator(),
		mw.orthoCheck,
		widget.NewSeparator(),
		zoomOut, zoomIn, fit, actual, rotate,
		widget.NewSeparator(),
		prev, next,
	)
}

func (mw *MainWindow) buildMenus() *fyne.MainMenu {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New Project", func() { mw.newProject() }),
		fyne.NewMenuItem("Open Project...", func() { mw.openProjectDialog() }),
		fyne.NewMenuItem("Open Pages Folder...", func() { mw.openPagesDialog() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save", func() { mw.saveProject(false) }),
		fyne.NewMenuItem("Save As...", func() { mw.saveProject(true) }),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { mw.canvas.ZoomIn() }),
		fyne.NewMenuItem("Zoom Out", func() { mw.canvas.ZoomOut() }),
		fyne.NewMenuItem("Fit to Window", func() { mw.canvas.SetFitToWindow(true) }),
		fyne.NewMenuItem("Actual Size", func() { mw.canvas.SetZoom(1) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Rotate Clockwise", func() { mw.canvas.RotateClockwise() }),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Cut Out Hole", func() { mw.startCutout() }),
		fyne.NewMenuItem("Delete Selected", func() { mw.deleteSelected() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Read Sheet Titles (OCR)", func() { mw.extractSheetInfo() }),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", func() {
			dialog.ShowInformation("Plan Takeoff",
				fmt.Sprintf("Version %s\nBuilt %s (%s)", version.Version, version.BuildTime, version.GitCommit),
				mw.window)
		}),
	)

	return fyne.NewMainMenu(fileMenu, viewMenu, toolsMenu, helpMenu)
}

func (mw *MainWindow) wireCanvas() {
	mw.canvas.OnClick(func(p geometry.Point2D) {
		mw.handleClick(p)
	})
	mw.canvas.OnDoubleClick(func(p geometry.Point2D) {
		mw.handleDoubleClick()
	})
	mw.canvas.OnRightClick(func(p geometry.Point2D) {
		// Right click backs the gesture out, same as Escape.
		mw.handleEscape()
	})
	mw.canvas.OnMove(func(p geometry.Point2D) {
		mw.state.HandleMove(p)
		if mw.state.Capture.Active() || mw.state.Cal.Active() {
			mw.refreshOverlay()
		}
	})
	mw.canvas.OnFrameChange(func(f page.Frame) {
		mw.state.SetFrame(mw.state.CurrentPage(), f)
		mw.refreshOverlay()
	})
}

func (mw *MainWindow) wireEvents() {
	s := mw.state
	refresh := func(interface{}) {
		mw.refreshOverlay()
		mw.updateStatus()
	}
	s.On(app.EventMarkupsChanged, refresh)
	s.On(app.EventSelectionChanged, refresh)
	s.On(app.EventCalibrationChanged, refresh)
	s.On(app.EventConditionsChanged, refresh)
	s.On(app.EventStatusChanged, func(interface{}) { mw.updateStatus() })
	s.On(app.EventToolChanged, func(data interface{}) {
		if t, ok := data.(app.Tool); ok {
			mw.highlightTool(t)
		}
		mw.annAnchor = nil
		mw.refreshOverlay()
	})
	s.On(app.EventPageChanged, func(interface{}) { mw.refreshOverlay() })
	s.On(app.EventProjectLoaded, func(interface{}) { mw.updateTitle() })
	s.On(app.EventProjectSaved, func(interface{}) { mw.updateTitle() })
	s.On(app.EventModified, func(interface{}) { mw.updateTitle() })

	// Failed background saves undo the optimistic markup.
	s.Saver.OnMeasurementError = func(m *markup.Measurement, err error) {
		log.Printf("persist measurement %s: %v", m.ID, err)
		s.RollbackMarkup(m.ID)
		mw.statusBar.SetText(fmt.Sprintf("Save failed, measurement removed: %v", err))
	}
	s.Saver.OnAnnotationError = func(a *markup.Annotation, err error) {
		log.Printf("persist annotation %s: %v", a.ID, err)
		s.RollbackMarkup(a.ID)
		mw.statusBar.SetText(fmt.Sprintf("Save failed, annotation removed: %v", err))
	}
}

func (mw *MainWindow) handleClick(p geometry.Point2D) {
	frame := mw.state.Frame(mw.state.CurrentPage())

	if mw.cutoutMode {
		mw.cutoutPoints = append(mw.cutoutPoints, frame.ToNormalized(p))
		mw.statusBar.SetText(fmt.Sprintf("Cutout: %d vertices — double-click to finish", len(mw.cutoutPoints)))
		return
	}

	if mw.state.Tool() == app.ToolAnnotate {
		mw.handleAnnotateClick(frame.ToNormalized(p))
		return
	}

	// Detect the second calibration click so the distance dialog can open
	// right after it lands.
	_, awaitingSecond := mw.state.Cal.FirstPoint()

	if err := mw.state.HandleClick(p); err != nil {
		mw.statusBar.SetText(err.Error())
		return
	}
	mw.refreshOverlay()

	if mw.state.Tool() == app.ToolCalibrate && awaitingSecond {
		dialogs.ShowCalibrationDialog(mw.window, mw.state.FinishCalibration, mw.state.ConfirmCalibration)
	}
}

func (mw *MainWindow) handleDoubleClick() {
	if mw.cutoutMode {
		mw.finishCutout()
		return
	}
	if err := mw.state.HandleDoubleClick(); err != nil {
		mw.statusBar.SetText(err.Error())
	}
	mw.refreshOverlay()
}

func (mw *MainWindow) handleEscape() {
	if mw.cutoutMode {
		mw.cutoutMode = false
		mw.cutoutPoints = nil
		mw.statusBar.SetText("Cutout cancelled")
		return
	}
	if mw.annAnchor != nil {
		mw.annAnchor = nil
		mw.statusBar.SetText("Annotation cancelled")
		return
	}
	mw.state.HandleEscape()
	mw.refreshOverlay()
}

func (mw *MainWindow) handleAnnotateClick(n page.NormPoint) {
	annType := mw.sidePanel.AnnotationType()
	color := mw.sidePanel.AnnotationColor()

	if annType == markup.AnnotationText {
		entry := widget.NewEntry()
		entry.SetPlaceHolder("Note text")
		items := []*widget.FormItem{widget.NewFormItem("Text", entry)}
		dialog.ShowForm("Add Note", "Add", "Cancel", items, func(ok bool) {
			if !ok || entry.Text == "" {
				return
			}
			mw.state.AddAnnotation(&markup.Annotation{
				Type:   markup.AnnotationText,
				Points: []page.NormPoint{n},
				Color:  color,
				Text:   entry.Text,
			})
		}, mw.window)
		return
	}

	if mw.annAnchor == nil {
		anchor := n
		mw.annAnchor = &anchor
		mw.statusBar.SetText("Click the second point")
		return
	}

	mw.state.AddAnnotation(&markup.Annotation{
		Type:   annType,
		Points: []page.NormPoint{*mw.annAnchor, n},
		Color:  color,
	})
	mw.annAnchor = nil
}

func (mw *MainWindow) startCutout() {
	id := mw.state.Markups.Selected()
	m := mw.state.Markups.Measurement(id)
	if m == nil {
		mw.statusBar.SetText("Select an area or volume measurement first")
		return
	}
	mw.cutoutMode = true
	mw.cutoutPoints = nil
	mw.statusBar.SetText("Cutout: click the hole outline, double-click to finish")
}

func (mw *MainWindow) finishCutout() {
	pts := mw.cutoutPoints
	mw.cutoutMode = false
	mw.cutoutPoints = nil

	if err := mw.state.AddCutout(pts); err != nil {
		mw.statusBar.SetText(fmt.Sprintf("Cutout rejected: %v", err))
		return
	}
	mw.statusBar.SetText("Cutout applied")
	mw.refreshOverlay()
}

func (mw *MainWindow) deleteSelected() {
	if mw.state.DeleteSelected() {
		mw.statusBar.SetText("Deleted")
	}
}

func (mw *MainWindow) onKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyEscape:
		mw.handleEscape()
	case fyne.KeyDelete, fyne.KeyBackspace:
		mw.deleteSelected()
	case fyne.KeyReturn, fyne.KeyEnter:
		mw.handleDoubleClick()
	}
}

func (mw *MainWindow) gotoPage(n int) {
	if mw.renderer == nil || n < 1 || n > mw.renderer.PageCount() {
		return
	}
	mw.showPage(n)
}

func (mw *MainWindow) showPage(n int) {
	if mw.renderer == nil {
		return
	}
	img, err := mw.renderer.Render(n, 0)
	if err != nil {
		dialog.ShowError(err, mw.window)
		return
	}
	mw.state.SetPage(n)
	mw.canvas.SetPage(img)
	mw.state.SetFrame(n, mw.canvas.Frame())

	info := mw.state.Project.Page(n)
	if info.SheetNumber != "" {
		mw.pageLabel.SetText(fmt.Sprintf("Page %d/%d — %s", n, mw.renderer.PageCount(), info.SheetNumber))
	} else {
		mw.pageLabel.SetText(fmt.Sprintf("Page %d/%d", n, mw.renderer.PageCount()))
	}
	mw.refreshOverlay()
}

func (mw *MainWindow) refreshOverlay() {
	mw.canvas.SetOverlay(mw.state.BuildOverlay())
}

func (mw *MainWindow) highlightTool(t app.Tool) {
	buttons := map[app.Tool]*widget.Button{
		app.ToolSelect:    mw.selectBtn,
		app.ToolMeasure:   mw.measureBtn,
		app.ToolCalibrate: mw.calibrateBtn,
		app.ToolAnnotate:  mw.annotateBtn,
	}
	for tool, btn := range buttons {
		if btn == nil {
			continue
		}
		if tool == t {
			btn.Importance = widget.HighImportance
		} else {
			btn.Importance = widget.MediumImportance
		}
		btn.Refresh()
	}
}

func (mw *MainWindow) updateStatus() {
	st := mw.state.Status()
	switch {
	case st.IsCalibrating:
		if _, ok := mw.state.Cal.FirstPoint(); ok {
			mw.statusBar.SetText("Calibrating: click the second reference point")
		} else {
			mw.statusBar.SetText("Calibrating: click the first reference point")
		}
	case st.IsMeasuring:
		mw.statusBar.SetText(fmt.Sprintf("Measuring %s — double-click to finish, Esc to back up", st.MeasurementType))
	case st.SelectedID != "":
		mw.statusBar.SetText(fmt.Sprintf("Selected %s — Delete to remove", st.SelectedID))
	default:
		mw.statusBar.SetText("Ready")
	}
}

func (mw *MainWindow) updateTitle() {
	title := "Plan Takeoff"
	if mw.state.Project != nil && mw.state.Project.Name != "" {
		title += " — " + mw.state.Project.Name
	}
	if mw.state.Modified {
		title += " *"
	}
	mw.window.SetTitle(title)
}

func (mw *MainWindow) newProject() {
	mw.confirmDiscard(func() {
		mw.state.Reset()
		mw.renderer = nil
		mw.canvas.SetPage(nil)
		mw.pageLabel.SetText("Page -/-")
		mw.updateTitle()
		mw.refreshOverlay()
	})
}

func (mw *MainWindow) openProjectDialog() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		mw.prefs.SetString(prefLastProjectDir, filepath.Dir(path))
		mw.OpenProject(path)
	}, mw.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".takeoff"}))
	mw.setStartDir(fd, prefLastProjectDir)
	fd.Show()
}

func (mw *MainWindow) openPagesDialog() {
	fd := dialog.NewFolderOpen(func(list fyne.ListableURI, err error) {
		if err != nil || list == nil {
			return
		}
		dir := list.Path()
		mw.prefs.SetString(prefLastPagesDir, dir)
		mw.loadPages(dir)
	}, mw.window)
	fd.Show()
}

func (mw *MainWindow) loadPages(dir string) {
	r, err := page.NewDirRenderer(dir)
	if err != nil {
		dialog.ShowError(err, mw.window)
		return
	}
	mw.renderer = r

	for i := 1; i <= r.PageCount(); i++ {
		mw.state.Project.SetPageImage(mw.state.ProjectPath, i, r.Path(i))
		if size, err := r.BaseSize(i); err == nil {
			info := mw.state.Project.Page(i)
			info.BaseWidth = size.Width
			info.BaseHeight = size.Height
		}
	}
	mw.state.SetModified(true)
	mw.showPage(1)
	mw.statusBar.SetText(fmt.Sprintf("Loaded %d pages from %s", r.PageCount(), filepath.Base(dir)))
}

// restoreRenderer rebuilds the page renderer from the loaded project's
// first page image path.
func (mw *MainWindow) restoreRenderer() {
	path := mw.state.Project.PageImagePath(mw.state.ProjectPath, 1)
	if path == "" {
		return
	}
	r, err := page.NewDirRenderer(filepath.Dir(path))
	if err != nil {
		log.Printf("restoring page renderer: %v", err)
		return
	}
	mw.renderer = r
}

func (mw *MainWindow) saveProject(forceDialog bool) {
	if mw.state.ProjectPath != "" && !forceDialog {
		if err := mw.state.SaveProject(mw.state.ProjectPath); err != nil {
			dialog.ShowError(err, mw.window)
		}
		return
	}

	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		path := writer.URI().Path()
		writer.Close()
		if filepath.Ext(path) == "" {
			path += ".takeoff"
		}
		mw.prefs.SetString(prefLastProjectDir, filepath.Dir(path))
		if err := mw.state.SaveProject(path); err != nil {
			dialog.ShowError(err, mw.window)
		}
	}, mw.window)
	fd.SetFileName("untitled.takeoff")
	mw.setStartDir(fd, prefLastProjectDir)
	fd.Show()
}

func (mw *MainWindow) setStartDir(fd *dialog.FileDialog, prefKey string) {
	dir := mw.prefs.String(prefKey)
	if dir == "" {
		return
	}
	if uri, err := storage.ListerForURI(storage.NewFileURI(dir)); err == nil {
		fd.SetLocation(uri)
	}
}

// extractSheetInfo runs title block OCR over all pages and fills in sheet
// numbers and names.
func (mw *MainWindow) extractSheetInfo() {
	if mw.renderer == nil {
		mw.statusBar.SetText("Load pages first")
		return
	}
	mw.statusBar.SetText("Reading title blocks...")

	go func() {
		engine, err := titleblock.NewEngine()
		if err != nil {
			log.Printf("titleblock engine: %v", err)
			return
		}
		defer engine.Close()

		found := 0
		for i := 1; i <= mw.renderer.PageCount(); i++ {
			img, err := mw.renderer.Render(i, 0)
			if err != nil {
				continue
			}
			info, err := engine.Extract(img)
			if err != nil || (info.SheetNumber == "" && info.SheetName == "") {
				continue
			}
			p := mw.state.Project.Page(i)
			p.SheetNumber = info.SheetNumber
			p.SheetName = info.SheetName
			found++
		}

		mw.state.SetModified(true)
		mw.statusBar.SetText(fmt.Sprintf("Title blocks read on %d pages", found))
	}()
}

func (mw *MainWindow) confirmDiscard(proceed func()) {
	if !mw.state.Modified {
		proceed()
		return
	}
	dialog.ShowConfirm("Unsaved Changes", "Discard unsaved changes?", func(ok bool) {
		if ok {
			proceed()
		}
	}, mw.window)
}
