// Package dialogs provides application dialogs.
package dialogs

import (
	"fmt"
	"strconv"

	"plan-takeoff/internal/condition"
	"plan-takeoff/pkg/colorutil"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ConditionDialog edits a single takeoff condition.
type ConditionDialog struct {
	cond   *condition.Condition
	window fyne.Window

	nameEntry  *widget.Entry
	typeSelect *widget.Select
	unitEntry  *widget.Entry
	colorEntry *widget.Entry
	swatch     *fynecanvas.Rectangle

	depthEntry     *widget.Entry
	heightEntry    *widget.Entry
	perimeterCheck *widget.Check
	heightCheck    *widget.Check

	onSave func(*condition.Condition)
}

// NewConditionDialog creates a dialog editing a copy of cond. The callback
// receives the edited condition when the user saves.
func NewConditionDialog(cond *condition.Condition, window fyne.Window, onSave func(*condition.Condition)) *ConditionDialog {
	cp := *cond
	return &ConditionDialog{
		cond:   &cp,
		window: window,
		onSave: onSave,
	}
}

// Show displays the dialog.
func (d *ConditionDialog) Show() {
	content := d.createContent()

	dlg := dialog.NewCustomConfirm(
		"Condition",
		"Save",
		"Cancel",
		content,
		func(save bool) {
			if save {
				d.applyChanges()
				if d.onSave != nil {
					d.onSave(d.cond)
				}
			}
		},
		d.window,
	)
	dlg.Resize(fyne.NewSize(420, 480))
	dlg.Show()
}

func (d *ConditionDialog) createContent() fyne.CanvasObject {
	d.nameEntry = widget.NewEntry()
	d.nameEntry.SetText(d.cond.Name)

	types := []string{
		string(condition.Linear),
		string(condition.Area),
		string(condition.Volume),
		string(condition.Count),
	}
	d.typeSelect = widget.NewSelect(types, nil)
	if d.cond.Type != "" {
		d.typeSelect.SetSelected(string(d.cond.Type))
	} else {
		d.typeSelect.SetSelected(string(condition.Linear))
	}

	d.unitEntry = widget.NewEntry()
	d.unitEntry.SetText(d.cond.Unit)
	d.unitEntry.SetPlaceHolder("ft, sf, cy, ea")

	d.swatch = fynecanvas.NewRectangle(colorutil.ParseHex(d.cond.Color))
	d.swatch.SetMinSize(fyne.NewSize(40, 20))

	d.colorEntry = widget.NewEntry()
	d.colorEntry.SetText(d.cond.Color)
	d.colorEntry.SetPlaceHolder("#rrggbb")
	d.colorEntry.OnChanged = func(text string) {
		d.swatch.FillColor = colorutil.ParseHex(text)
		d.swatch.Refresh()
	}

	d.depthEntry = widget.NewEntry()
	if d.cond.Depth > 0 {
		d.depthEntry.SetText(fmt.Sprintf("%g", d.cond.Depth))
	}
	d.depthEntry.SetPlaceHolder("depth for volume, default 1")

	d.perimeterCheck = widget.NewCheck("Include perimeter on areas", nil)
	d.perimeterCheck.SetChecked(d.cond.IncludePerimeter)

	d.heightCheck = widget.NewCheck("Derive area from length", nil)
	d.heightCheck.SetChecked(d.cond.IncludeHeight)

	d.heightEntry = widget.NewEntry()
	if d.cond.Height > 0 {
		d.heightEntry.SetText(fmt.Sprintf("%g", d.cond.Height))
	}
	d.heightEntry.SetPlaceHolder("wall height")

	form := widget.NewForm(
		widget.NewFormItem("Name", d.nameEntry),
		widget.NewFormItem("Type", d.typeSelect),
		widget.NewFormItem("Unit", d.unitEntry),
		widget.NewFormItem("Color", container.NewBorder(nil, nil, nil, d.swatch, d.colorEntry)),
		widget.NewFormItem("Depth", d.depthEntry),
		widget.NewFormItem("Height", d.heightEntry),
	)

	return container.NewVBox(
		form,
		d.perimeterCheck,
		d.heightCheck,
	)
}

func (d *ConditionDialog) applyChanges() {
	d.cond.Name = d.nameEntry.Text
	d.cond.Type = condition.Type(d.typeSelect.Selected)
	d.cond.Unit = d.unitEntry.Text
	d.cond.Color = d.colorEntry.Text
	d.cond.IncludePerimeter = d.perimeterCheck.Checked
	d.cond.IncludeHeight = d.heightCheck.Checked
	if v, err := strconv.ParseFloat(d.depthEntry.Text, 64); err == nil && v > 0 {
		d.cond.Depth = v
	} else {
		d.cond.Depth = 0
	}
	if v, err := strconv.ParseFloat(d.heightEntry.Text, 64); err == nil && v > 0 {
		d.cond.Height = v
	} else {
		d.cond.Height = 0
	}
}
