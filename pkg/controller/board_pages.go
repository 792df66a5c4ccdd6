package controller

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const shortcutColumns = 3

func (c *Controller) initPages() {
	c.header = tview.NewTable().SetBorders(false).SetSelectable(false, false)
	c.message = tview.NewTextView().SetDynamicColors(true)
	c.message.SetScrollable(false)

	for _, name := range []string{tableIncomplete, tableCompleted} {
		c.contents[name] = &ItemContent{completed: name == tableCompleted}

		table := tview.NewTable().SetBorders(false).SetContent(c.contents[name])
		table.SetSelectable(true, false).SetFixed(1, 0)
		table.SetTitle(" " + name + " ").SetBorder(true)
		table.SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEscape {
				c.app.Stop()
			}
		})

		c.tables[name] = table
	}

	// the header height adapts to the number of shortcut rows
	grid := tview.NewGrid().SetRows(len(c.events)/shortcutColumns+3, 0, 0, 1).SetBorders(false)
	grid.AddItem(c.header, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.tables[tableIncomplete], 1, 0, 1, 1, 0, 0, true)
	grid.AddItem(c.tables[tableCompleted], 2, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.message, 3, 0, 1, 1, 0, 0, false)

	c.pages = tview.NewPages()
	c.pages.AddPage(pageBoard, grid, true, true)
	c.pages.AddPage(pageForm, c.getFormGrid(), true, false)
}

// render redraws everything from the store's current snapshots. It must run on the UI
// goroutine.
func (c *Controller) render() {
	c.renderHeader()

	for _, name := range []string{tableIncomplete, tableCompleted} {
		count := c.reloadContent(name)
		table := c.tables[name]
		row, _ := table.GetSelection()

		// keep the cursor on a data row
		switch {
		case count == 0:
			table.Select(0, 0)
		case row < 1:
			table.Select(1, 0)
		case row > count:
			table.Select(count, 0)
		}
	}
}

func (c *Controller) reloadContent(name string) int {
	content := c.contents[name]
	if name == tableCompleted {
		content.items = c.store.CompletedItems()
	} else {
		content.items = c.store.IncompleteItems()
	}

	return len(content.items)
}

// renderHeader shows the board title and code at the top, followed by the keyboard shortcuts
// sorted alphabetically in columns.
func (c *Controller) renderHeader() {
	c.header.Clear()

	title := "[gray]no board loaded"
	if b := c.store.Board(); b != nil {
		title = fmt.Sprintf("[yellow]%s [white](%s)", tview.Escape(b.Title), b.BoardCode)
		if b.Editable {
			title += " [green]editable"
		}
	}

	c.header.SetCell(0, 0, tview.NewTableCell(title))

	shortcuts := c.shortcuts()

	for i, text := range shortcuts {
		c.header.SetCell(i/shortcutColumns+1, i%shortcutColumns, tview.NewTableCell(text).SetExpansion(1))
	}

	log.Debug().Int("shortcuts", len(shortcuts)).Msg("rendered header")
}

func (c *Controller) shortcuts() []string {
	out := make([]string, 0, len(c.events)+1)

	for key, event := range c.events {
		name := string(key)
		if key == ' ' {
			name = "space"
		}

		out = append(out, fmt.Sprintf("[orange]<%s>[white] %s", name, event.Description))
	}

	out = append(out, "[orange]<Tab>[white] Switch list")
	sort.Strings(out)

	return out
}
