package controller

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const titleMax = 80

// switchToForm shows a single-field form. save receives the trimmed text; an empty text
// cancels.
func (c *Controller) switchToForm(title, label, initial string, save func(text string)) {
	c.form.SetTitle(fmt.Sprintf(" %s ", title))
	c.formField.SetLabel(label + " ")
	c.formField.SetText(initial)
	c.onSave = save

	c.form.SetFocus(0)
	c.pages.SwitchToPage(pageForm)
	c.app.SetFocus(c.form)
}

func (c *Controller) closeForm() {
	c.onSave = nil
	c.formField.SetText("")
	c.pages.SwitchToPage(pageBoard)
	c.app.SetFocus(c.tables[c.focus])
}

func (c *Controller) getFormGrid() *tview.Grid {
	grid := tview.NewGrid().SetRows(0, 7, 0).SetColumns(0, 70, 0)

	c.initForm()

	grid.AddItem(c.form, 1, 1, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) initForm() {
	c.form = tview.NewForm().AddInputField("Title", "", titleMax, nil, nil)
	c.form.SetBorder(true)

	c.formField, _ = c.form.GetFormItemByLabel("Title").(*tview.InputField)

	submit := func() {
		text := strings.TrimSpace(c.formField.GetText())
		save := c.onSave

		c.closeForm()

		if save == nil || text == "" {
			log.Debug().Msg("form closed without saving")

			return
		}

		save(text)
	}

	c.formField.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			submit()
		case tcell.KeyEscape:
			c.closeForm()
		}
	})

	c.form.AddButton("Save", submit)
	c.form.AddButton("Cancel", c.closeForm)
	c.form.SetCancelFunc(c.closeForm)
}
