package controller

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/chore-board/pkg/board"
	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	tableIncomplete = "incomplete"
	tableCompleted  = "completed"

	pageBoard = "board"
	pageForm  = "form"
)

// Controller renders the store's board in the terminal and turns key presses into store
// mutations. It re-renders whenever the store notifies.
type Controller struct {
	ctx   context.Context
	store *board.Store
	app   *tview.Application
	pages *tview.Pages

	header   *tview.Table
	message  *tview.TextView
	tables   map[string]*tview.Table
	contents map[string]*ItemContent
	focus    string

	form      *tview.Form
	formField *tview.InputField
	onSave    func(text string)

	events      map[rune]KeyEvent
	unsubscribe func()

	// queue runs a function on the UI goroutine and redraws. It blocks until the function ran.
	queue func(func())
}

// KeyEvent defines an event associated with a keypress.
type KeyEvent struct {
	Description string
	Action      func(*tcell.EventKey) *tcell.EventKey
}

// NewController creates a new Controller for store. The store may still be empty; the
// controller renders whatever board the store holds.
func NewController(ctx context.Context, store *board.Store) (*Controller, error) {
	c := Controller{
		ctx:      ctx,
		store:    store,
		app:      tview.NewApplication(),
		tables:   map[string]*tview.Table{},
		contents: map[string]*ItemContent{},
		focus:    tableIncomplete,
	}

	c.queue = func(f func()) { c.app.QueueUpdateDraw(f) }

	c.initEvents()
	c.initPages()

	c.unsubscribe = store.Subscribe(func() {
		c.queue(c.render)
	})

	c.render()

	return &c, nil
}

// Go runs the app until the user quits.
func (c *Controller) Go() error {
	defer c.unsubscribe()

	c.app.SetInputCapture(c.keyboard)

	if err := c.app.SetRoot(c.pages, true).SetFocus(c.tables[c.focus]).Run(); err != nil {
		return fmt.Errorf("error running terminal ui: %w", err)
	}

	return nil
}

func (c *Controller) keyboard(evt *tcell.EventKey) *tcell.EventKey {
	if name, _ := c.pages.GetFrontPage(); name != pageBoard {
		return evt
	}

	if evt.Key() == tcell.KeyTab {
		c.toggleFocus()

		return nil
	}

	if evt.Key() != tcell.KeyRune {
		return evt
	}

	if k, ok := c.events[evt.Rune()]; ok {
		return k.Action(evt)
	}

	return evt
}

func (c *Controller) toggleFocus() {
	if c.focus == tableIncomplete {
		c.focus = tableCompleted
	} else {
		c.focus = tableIncomplete
	}

	c.app.SetFocus(c.tables[c.focus])
}

// selectedItem returns the item under the cursor of the focused table, or nil.
func (c *Controller) selectedItem() (*model.ChoreItem, int) {
	row, _ := c.tables[c.focus].GetSelection()

	// adjust for the header row
	idx := row - 1

	return c.contents[c.focus].Item(idx), idx
}

// run executes a store mutation off the UI goroutine. The store notifies on success, which
// re-renders; failures are shown in the message line.
func (c *Controller) run(what string, fn func(ctx context.Context) error) {
	go func() {
		if err := fn(c.ctx); err != nil {
			log.Warn().Err(err).Msgf("error while trying to %s", what)

			c.queue(func() {
				c.setMessage(fmt.Sprintf("[red]could not %s:[white] %s", what, tview.Escape(err.Error())))
			})

			return
		}

		log.Debug().Msgf("%s done", what)
	}()
}

func (c *Controller) setMessage(text string) {
	c.message.SetText(text)
}
