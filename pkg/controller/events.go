package controller

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/rs/zerolog/log"
)

func (c *Controller) initEvents() {
	c.events = map[rune]KeyEvent{}

	c.initItemEvents(c.events)
	c.initBoardEvents(c.events)
	c.initExitEvent(c.events)
}

func (c *Controller) getExitAction() func(key *tcell.EventKey) *tcell.EventKey {
	return func(key *tcell.EventKey) *tcell.EventKey {
		log.Info().Msg("terminating application")

		c.app.Stop()

		return nil
	}
}

func (c *Controller) initExitEvent(events map[rune]KeyEvent) {
	events['q'] = KeyEvent{
		Description: "Quit",
		Action:      c.getExitAction(),
	}
}

// withSelected wraps an action that needs the item under the cursor.
func (c *Controller) withSelected(action func(item *model.ChoreItem, idx int)) func(*tcell.EventKey) *tcell.EventKey {
	return func(key *tcell.EventKey) *tcell.EventKey {
		item, idx := c.selectedItem()
		if item == nil {
			c.setMessage("[gray]no chore selected")

			return nil
		}

		action(item, idx)

		return nil
	}
}

func (c *Controller) initItemEvents(events map[rune]KeyEvent) {
	events['a'] = KeyEvent{
		Description: "Add chore",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.switchToForm("New chore", "Title", "", func(title string) {
				c.run("add a chore", func(ctx context.Context) error {
					_, err := c.store.AddItem(ctx, title, "")

					return err
				})
			})

			return nil
		},
	}

	events['e'] = KeyEvent{
		Description: "Rename chore",
		Action: c.withSelected(func(item *model.ChoreItem, _ int) {
			c.switchToForm("Rename chore", "Title", item.Title, func(title string) {
				c.run("rename the chore", func(ctx context.Context) error {
					return c.store.UpdateItemTitle(ctx, item.ID, title)
				})
			})
		}),
	}

	events[' '] = KeyEvent{
		Description: "Toggle done",
		Action: c.withSelected(func(item *model.ChoreItem, _ int) {
			c.run("toggle the chore", func(ctx context.Context) error {
				return c.store.ToggleItemComplete(ctx, item.ID)
			})
		}),
	}

	events['d'] = KeyEvent{
		Description: "Delete chore",
		Action: c.withSelected(func(item *model.ChoreItem, _ int) {
			c.run("delete the chore", func(ctx context.Context) error {
				return c.store.DeleteItem(ctx, item.ID)
			})
		}),
	}

	events['u'] = KeyEvent{
		Description: "Cycle assignee",
		Action: c.withSelected(func(item *model.ChoreItem, _ int) {
			next := nextAssignee(c.store.Members(), item.Assignee)

			c.run("change the assignee", func(ctx context.Context) error {
				return c.store.UpdateItemAssignee(ctx, item.ID, next)
			})
		}),
	}

	events['J'] = KeyEvent{
		Description: "Move down",
		Action:      c.getMoveAction(1),
	}

	events['K'] = KeyEvent{
		Description: "Move up",
		Action:      c.getMoveAction(-1),
	}
}

func (c *Controller) getMoveAction(delta int) func(key *tcell.EventKey) *tcell.EventKey {
	return c.withSelected(func(item *model.ChoreItem, idx int) {
		if c.focus != tableIncomplete {
			c.setMessage("[gray]only open chores can be reordered")

			return
		}

		to := idx + delta
		if to < 0 || to >= len(c.contents[tableIncomplete].items) {
			return
		}

		// follow the item with the cursor; the store applies the move locally before persisting
		c.tables[tableIncomplete].Select(to+1, 0)

		c.run(fmt.Sprintf("move the chore to position %d", to+1), func(ctx context.Context) error {
			return c.store.ReorderIncomplete(ctx, item.ID, to)
		})
	})
}

func (c *Controller) initBoardEvents(events map[rune]KeyEvent) {
	events['r'] = KeyEvent{
		Description: "Random assign",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.run("assign chores", func(ctx context.Context) error {
				decisions, err := c.store.RandomAssign(ctx)
				if err == nil && len(decisions) == 0 {
					c.queue(func() { c.setMessage("[gray]nothing to assign") })
				}

				return err
			})

			return nil
		},
	}

	events['t'] = KeyEvent{
		Description: "Rename board",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			b := c.store.Board()
			if b == nil {
				return nil
			}

			c.switchToForm("Rename board (this device only)", "Title", b.Title, func(title string) {
				c.run("rename the board", func(ctx context.Context) error {
					return c.store.UpdateBoardTitle(ctx, title)
				})
			})

			return nil
		},
	}

	events['g'] = KeyEvent{
		Description: "Reload",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.run("reload the board", c.store.Reload)

			return nil
		},
	}
}

// nextAssignee returns the id of the member after current, wrapping to "unassigned" after
// the last member. An unassigned or unknown current starts at the first member.
func nextAssignee(members []*model.User, current *model.User) string {
	if len(members) == 0 {
		return ""
	}

	if current == nil {
		return members[0].ID
	}

	for i, m := range members {
		if m.ID == current.ID {
			if i+1 < len(members) {
				return members[i+1].ID
			}

			return ""
		}
	}

	return members[0].ID
}
