package board_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matt-steen/chore-board/pkg/model"
)

var errBackend = errors.New("backend unavailable")

type call struct {
	method  string
	itemID  string
	order   int
	changes []model.AssigneeChange
}

// fakeRepository serves a single board from memory and records every call.
type fakeRepository struct {
	mu    sync.Mutex
	board *model.Board
	calls []call
	fail  map[string]error
	// block, when set, is received from before CreateItem returns.
	block chan struct{}
	// dropAssignee makes CreateItem omit the assignee from its response.
	dropAssignee bool
	// dropSortOrder makes UpdateItem omit the sort order from its response.
	dropSortOrder bool
	nextID        int
	now           time.Time
}

func newFakeRepository(board *model.Board) *fakeRepository {
	return &fakeRepository{
		board:  board,
		fail:   map[string]error{},
		nextID: 100,
		now:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepository) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, c)

	return f.fail[c.method]
}

func (f *fakeRepository) callsTo(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []call{}
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}

	return out
}

func (f *fakeRepository) setFailure(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fail[method] = err
}

func (f *fakeRepository) find(itemID string) (*model.ChoreItem, error) {
	for _, item := range f.board.Items {
		if item.ID == itemID {
			return item, nil
		}
	}

	return nil, fmt.Errorf("item %s: not found", itemID)
}

// serverCopy returns what a server would send back: fresh objects, assignee as a copy.
func serverCopy(item *model.ChoreItem) *model.ChoreItem {
	c := item.Clone()
	if item.Assignee != nil {
		a := *item.Assignee
		c.Assignee = &a
	}

	return c
}

func (f *fakeRepository) FetchBoard(_ context.Context, boardCode, editToken string) (*model.Board, error) {
	if err := f.record(call{method: "FetchBoard"}); err != nil {
		return nil, err
	}

	if boardCode != f.board.BoardCode {
		return nil, fmt.Errorf("board %s: not found", boardCode)
	}

	b := *f.board
	b.Editable = editToken != ""
	b.Items = make([]*model.ChoreItem, 0, len(f.board.Items))

	for _, item := range f.board.Items {
		b.Items = append(b.Items, serverCopy(item))
	}

	return &b, nil
}

func (f *fakeRepository) CreateItem(_ context.Context, _, title, assigneeID string) (*model.ChoreItem, error) {
	if err := f.record(call{method: "CreateItem"}); err != nil {
		return nil, err
	}

	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	item := &model.ChoreItem{ID: fmt.Sprint(f.nextID), Title: title, CreatedAt: f.now}

	if m := f.board.Member(assigneeID); m != nil && !f.dropAssignee {
		a := *m
		item.Assignee = &a
	}

	f.board.Items = append(f.board.Items, item)

	return serverCopy(item), nil
}

func (f *fakeRepository) UpdateItem(_ context.Context, _, itemID string, update model.ItemUpdate) (*model.ChoreItem, error) {
	if err := f.record(call{method: "UpdateItem", itemID: itemID}); err != nil {
		return nil, err
	}

	item, err := f.find(itemID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		item.Title = *update.Title
	}

	out := serverCopy(item)
	if f.dropSortOrder {
		out.SortOrder = nil
	}

	return out, nil
}

func (f *fakeRepository) ToggleCompletion(_ context.Context, _, itemID string) (*model.ChoreItem, error) {
	if err := f.record(call{method: "ToggleCompletion", itemID: itemID}); err != nil {
		return nil, err
	}

	item, err := f.find(itemID)
	if err != nil {
		return nil, err
	}

	item.Completed = !item.Completed
	if item.Completed {
		f.now = f.now.Add(time.Minute)
		done := f.now
		item.CompletedAt = &done
	} else {
		item.CompletedAt = nil
	}

	return serverCopy(item), nil
}

func (f *fakeRepository) DeleteItem(_ context.Context, _, itemID string) error {
	return f.record(call{method: "DeleteItem", itemID: itemID})
}

func (f *fakeRepository) UpdateItemOrder(_ context.Context, _, itemID string, sortOrder int) error {
	return f.record(call{method: "UpdateItemOrder", itemID: itemID, order: sortOrder})
}

func (f *fakeRepository) BulkUpdateAssignees(_ context.Context, _ string, changes []model.AssigneeChange) error {
	return f.record(call{method: "BulkUpdateAssignees", changes: changes})
}
