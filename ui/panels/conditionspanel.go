// Package panels provides UI panels for the application.
package panels

import (
	"fmt"

	"plan-takeoff/internal/app"
	"plan-takeoff/internal/condition"
	"plan-takeoff/internal/markup"
	"plan-takeoff/pkg/colorutil"
	"plan-takeoff/ui/dialogs"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ConditionsPanel lists the takeoff conditions with their running totals.
// Selecting a row arms measurement capture for that condition.
type ConditionsPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	list        *widget.List
	statusLabel *widget.Label

	annType  *widget.Select
	annColor *widget.Entry

	// Snapshot refreshed from the store before each list rebuild.
	conds    []*condition.Condition
	totals   map[string]float64
	selected int
}

// NewConditionsPanel creates the panel and registers its event listeners.
func NewConditionsPanel(state *app.State) *ConditionsPanel {
	cp := &ConditionsPanel{
		state:    state,
		totals:   make(map[string]float64),
		selected: -1,
	}

	cp.statusLabel = widget.NewLabel("")
	cp.statusLabel.Wrapping = fyne.TextWrapWord

	cp.list = widget.NewList(
		func() int {
			return len(cp.conds)
		},
		func() fyne.CanvasObject {
			swatch := fynecanvas.NewRectangle(colorutil.Gray)
			swatch.SetMinSize(fyne.NewSize(16, 16))
			return container.NewBorder(nil, nil, swatch, nil, widget.NewLabel("condition"))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(cp.conds) {
				return
			}
			c := cp.conds[id]
			row := obj.(*fyne.Container)
			swatch := row.Objects[1].(*fynecanvas.Rectangle)
			label := row.Objects[0].(*widget.Label)

			swatch.FillColor = colorutil.ParseHex(c.Color)
			swatch.Refresh()
			label.SetText(fmt.Sprintf("%s — %.1f %s", c.Name, cp.totals[c.ID], c.Unit))
		},
	)

	cp.list.OnSelected = func(id widget.ListItemID) {
		if id >= len(cp.conds) {
			return
		}
		cp.selected = id
		c := cp.conds[id]
		if err := state.ActivateCondition(c.ID); err != nil {
			cp.statusLabel.SetText(fmt.Sprintf("Cannot measure: %v", err))
			cp.list.UnselectAll()
			return
		}
		cp.statusLabel.SetText(fmt.Sprintf("Measuring %s (%s)", c.Name, c.Type))
	}

	newBtn := widget.NewButton("New", func() { cp.editCondition(nil) })
	editBtn := widget.NewButton("Edit", func() {
		if c := cp.selectedCondition(); c != nil {
			cp.editCondition(c)
		}
	})
	deleteBtn := widget.NewButton("Delete", func() { cp.deleteSelected() })

	cp.annType = widget.NewSelect([]string{
		string(markup.AnnotationText),
		string(markup.AnnotationArrow),
		string(markup.AnnotationRectangle),
		string(markup.AnnotationCircle),
		string(markup.AnnotationHighlight),
	}, nil)
	cp.annType.SetSelected(string(markup.AnnotationArrow))

	cp.annColor = widget.NewEntry()
	cp.annColor.SetText("#cc2222")

	annCard := widget.NewCard("Annotate", "", container.NewVBox(
		cp.annType,
		cp.annColor,
	))

	cp.container = container.NewBorder(
		container.NewHBox(newBtn, editBtn, deleteBtn),
		container.NewVBox(annCard, cp.statusLabel),
		nil, nil,
		cp.list,
	)

	state.On(app.EventConditionsChanged, func(interface{}) { cp.Reload() })
	state.On(app.EventMarkupsChanged, func(interface{}) { cp.Reload() })
	state.On(app.EventProjectLoaded, func(interface{}) { cp.Reload() })

	cp.Reload()
	return cp
}

// Container returns the panel container.
func (cp *ConditionsPanel) Container() fyne.CanvasObject {
	return cp.container
}

// SetWindow sets the parent window for dialogs.
func (cp *ConditionsPanel) SetWindow(w fyne.Window) {
	cp.window = w
}

// AnnotationType returns the annotation shape picked in the panel.
func (cp *ConditionsPanel) AnnotationType() markup.AnnotationType {
	return markup.AnnotationType(cp.annType.Selected)
}

// AnnotationColor returns the annotation color picked in the panel.
func (cp *ConditionsPanel) AnnotationColor() string {
	return cp.annColor.Text
}

// Reload refreshes the condition rows and totals from state.
func (cp *ConditionsPanel) Reload() {
	cp.conds = cp.state.Conditions.All()
	cp.totals = cp.state.Markups.TotalsByCondition()
	cp.list.Refresh()
}

func (cp *ConditionsPanel) selectedCondition() *condition.Condition {
	if cp.selected < 0 || cp.selected >= len(cp.conds) {
		return nil
	}
	return cp.conds[cp.selected]
}

func (cp *ConditionsPanel) editCondition(c *condition.Condition) {
	if cp.window == nil {
		return
	}
	isNew := c == nil
	if isNew {
		c = &condition.Condition{
			ID:    fmt.Sprintf("c-%d", len(cp.conds)+1),
			Type:  condition.Linear,
			Unit:  "ft",
			Color: "#1a5cb0",
		}
	}
	dialogs.NewConditionDialog(c, cp.window, func(edited *condition.Condition) {
		cp.state.Conditions.Put(edited)
		cp.state.SetModified(true)
		cp.state.Emit(app.EventConditionsChanged, nil)
	}).Show()
}

func (cp *ConditionsPanel) deleteSelected() {
	c := cp.selectedCondition()
	if c == nil {
		cp.statusLabel.SetText("Select a condition first")
		return
	}
	msg := fmt.Sprintf("Delete condition %q? Existing measurements keep their values but render gray.", c.Name)
	dialog.ShowConfirm("Delete Condition", msg, func(ok bool) {
		if !ok {
			return
		}
		cp.state.Conditions.Remove(c.ID)
		cp.state.SetModified(true)
		cp.state.Emit(app.EventConditionsChanged, nil)
	}, cp.window)
}
