package dialogs

import (
	"errors"
	"fmt"
	"strconv"

	"plan-takeoff/internal/calibration"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// CalibrateFunc completes the two-point protocol with the entered distance.
// It mirrors app.State.FinishCalibration.
type CalibrateFunc func(knownDistance float64, unit string, scope calibration.Scope) (*calibration.Record, error)

// ConfirmFunc commits a warned record after the user accepts it.
type ConfirmFunc func(rec *calibration.Record)

// ShowCalibrationDialog asks for the known distance once both reference
// points are placed. A suspicious scale factor gets a second confirmation
// dialog before committing; cancelling either leaves calibration unchanged.
func ShowCalibrationDialog(window fyne.Window, finish CalibrateFunc, confirm ConfirmFunc) {
	distEntry := widget.NewEntry()
	distEntry.SetPlaceHolder("e.g. 20")

	unitEntry := widget.NewEntry()
	unitEntry.SetText("ft")

	scopeSelect := widget.NewSelect([]string{"This page", "Whole document"}, nil)
	scopeSelect.SetSelected("This page")

	items := []*widget.FormItem{
		widget.NewFormItem("Known distance", distEntry),
		widget.NewFormItem("Unit", unitEntry),
		widget.NewFormItem("Apply to", scopeSelect),
	}

	dlg := dialog.NewForm("Calibrate Scale", "Apply", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		dist, err := strconv.ParseFloat(distEntry.Text, 64)
		if err != nil || dist <= 0 {
			dialog.ShowError(fmt.Errorf("distance must be a positive number"), window)
			return
		}
		scope := calibration.ScopePage
		if scopeSelect.Selected == "Whole document" {
			scope = calibration.ScopeDocument
		}

		_, err = finish(dist, unitEntry.Text, scope)
		if err == nil {
			return
		}

		var warn *calibration.ScaleWarning
		if errors.As(err, &warn) {
			msg := fmt.Sprintf("%s.\n\nDerived scale: %g %s per pixel.\nUse it anyway?",
				warn.Reason, warn.Record.ScaleFactor, warn.Record.Unit)
			dialog.ShowConfirm("Suspicious Scale", msg, func(accept bool) {
				if accept {
					confirm(warn.Record)
				}
			}, window)
			return
		}

		if errors.Is(err, calibration.ErrDegenerateDistance) {
			dialog.ShowError(fmt.Errorf("the two points coincide; click a different second point"), window)
			return
		}
		dialog.ShowError(err, window)
	}, window)

	dlg.Resize(fyne.NewSize(360, 220))
	dlg.Show()
}
