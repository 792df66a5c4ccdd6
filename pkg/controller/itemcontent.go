package controller

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/rivo/tview"
)

const (
	titleRatio    = 3
	completedTime = "15:04"
)

// ItemContent implements tview.TableContent over one snapshot of items.
type ItemContent struct {
	tview.TableContentReadOnly
	items     []*model.ChoreItem
	completed bool
}

// Item returns the item at idx or nil when out of range.
func (s *ItemContent) Item(idx int) *model.ChoreItem {
	if s == nil || idx < 0 || idx >= len(s.items) {
		return nil
	}

	return s.items[idx]
}

func headerCell(text string, expansion int) *tview.TableCell {
	return tview.NewTableCell(text).SetExpansion(expansion).SetTextColor(tcell.ColorYellow).SetSelectable(false)
}

// GetCell returns the cell at the given position or nil if no cell.
func (s *ItemContent) GetCell(row, col int) *tview.TableCell {
	if row == 0 {
		switch col {
		case 0:
			return headerCell("chore", titleRatio)
		case 1:
			return headerCell("assignee", 1)
		case 2:
			if s.completed {
				return headerCell("done at", 1)
			}

			return headerCell("order", 1)
		}

		return nil
	}

	item := s.Item(row - 1)
	if item == nil {
		return nil
	}

	switch col {
	case 0:
		return tview.NewTableCell(tview.Escape(item.Title)).SetExpansion(titleRatio).SetReference(item)
	case 1:
		return tview.NewTableCell(assigneeText(item.Assignee)).SetExpansion(1)
	case 2:
		return tview.NewTableCell(s.detail(item)).SetExpansion(1)
	}

	return nil
}

func (s *ItemContent) detail(item *model.ChoreItem) string {
	if s.completed {
		if item.CompletedAt == nil {
			return "-"
		}

		return item.CompletedAt.Local().Format(completedTime)
	}

	if rank, ok := item.Rank(); ok {
		return fmt.Sprint(rank)
	}

	return "-"
}

func assigneeText(u *model.User) string {
	if u == nil {
		return "[gray]unassigned"
	}

	if u.Color == "" {
		return tview.Escape(u.Nickname)
	}

	return fmt.Sprintf("[%s]%s", u.Color, tview.Escape(u.Nickname))
}

// GetRowCount returns the number of rows in the table.
func (s *ItemContent) GetRowCount() int {
	return len(s.items) + 1
}

// GetColumnCount returns the number of columns in the table.
func (s *ItemContent) GetColumnCount() int {
	return 3
}
