package board

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matt-steen/chore-board/pkg/assign"
	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store holds the currently open board, derives the incomplete and completed views and
// applies mutations through a Repository.
//
// Mutations run one at a time: a call waits for the previous one, including its server
// round-trip, to finish. Accessors never wait on mutations. The board returned by Board and
// the slices returned by the item accessors are snapshots; the Store replaces them on change
// and never modifies them, and callers must not modify them either.
type Store struct {
	repo     Repository
	balancer *assign.Balancer
	metrics  Metrics
	logger   zerolog.Logger

	// queue admits a single mutation at a time.
	queue chan struct{}

	mu              sync.Mutex
	board           *model.Board
	editToken       string
	incomplete      []*model.ChoreItem
	completed       []*model.ChoreItem
	incompleteFresh bool
	completedFresh  bool

	observersMu    sync.Mutex
	observers      map[uint64]func()
	nextObserverID uint64
}

// NewStore creates an empty Store backed by repo.
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:      repo,
		balancer:  assign.NewBalancer(nil),
		metrics:   NopMetrics{},
		logger:    log.Logger,
		queue:     make(chan struct{}, 1),
		observers: map[uint64]func(){},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Subscribe registers fn to be called after every state change. The returned function
// removes the subscription.
//
// Observers run synchronously on the goroutine that changed the state, outside the state lock.
// They may call the accessors but must not call mutations synchronously.
func (s *Store) Subscribe(fn func()) func() {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()

	id := s.nextObserverID
	s.nextObserverID++
	s.observers[id] = fn

	s.logger.Debug().Int("observers", len(s.observers)).Msg("observer subscribed")

	return func() {
		s.observersMu.Lock()
		defer s.observersMu.Unlock()

		delete(s.observers, id)
	}
}

func (s *Store) notify() {
	s.observersMu.Lock()
	fns := make([]func(), 0, len(s.observers))

	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.observersMu.Unlock()

	s.logger.Debug().Int("observers", len(fns)).Msg("notifying observers")

	for _, fn := range fns {
		fn()
	}
}

// Board returns the current board, or nil if none is loaded.
func (s *Store) Board() *model.Board {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.board
}

// BoardCode returns the code of the current board, or "".
func (s *Store) BoardCode() string {
	if b := s.Board(); b != nil {
		return b.BoardCode
	}

	return ""
}

// Members returns the members of the current board.
func (s *Store) Members() []*model.User {
	if b := s.Board(); b != nil {
		return b.Members
	}

	return nil
}

// IncompleteItems returns the incomplete items ordered by sort order, then creation time.
// The result is cached until the next mutation.
func (s *Store) IncompleteItems() []*model.ChoreItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil {
		return nil
	}

	if !s.incompleteFresh {
		s.incomplete = model.Incomplete(s.board.Items)
		s.incompleteFresh = true
	}

	return s.incomplete
}

// CompletedItems returns the completed items, most recently completed first. The result is
// cached until the next mutation.
func (s *Store) CompletedItems() []*model.ChoreItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.board == nil {
		return nil
	}

	if !s.completedFresh {
		s.completed = model.Completed(s.board.Items)
		s.completedFresh = true
	}

	return s.completed
}

// Loads returns the number of incomplete items assigned to each member.
func (s *Store) Loads() map[string]int {
	return assign.Loads(s.Members(), s.IncompleteItems())
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.queue <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("error waiting for pending board changes: %w", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.queue
}

// begin admits a mutation on the current board. The caller must release when err is nil.
func (s *Store) begin(ctx context.Context, op Operation) (*model.Board, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("op", string(op)).Msg("mutation")

	s.mu.Lock()
	s.invalidateLocked()
	b := s.board
	s.mu.Unlock()

	if b == nil {
		s.release()
		s.metrics.RecordMutation(op, OutcomeFailed)

		return nil, ErrNoBoard
	}

	return b, nil
}

func (s *Store) invalidateLocked() {
	s.incomplete, s.completed = nil, nil
	s.incompleteFresh, s.completedFresh = false, false
}

// install replaces the current board. Caller holds mu.
func (s *Store) installLocked(next *model.Board) {
	s.board = next
	s.invalidateLocked()
}

func withItems(b *model.Board, items []*model.ChoreItem) *model.Board {
	next := *b
	next.Items = items

	return &next
}

// replaceItem swaps the item with the given id for fn(item). It reports false when the item is gone.
func (s *Store) replaceItem(itemID string, fn func(prev *model.ChoreItem) *model.ChoreItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.board.ItemIndex(itemID)
	if idx < 0 {
		return false
	}

	items := slices.Clone(s.board.Items)
	items[idx] = fn(items[idx])
	s.installLocked(withItems(s.board, items))

	return true
}

// timed runs a server call and records its duration.
func (s *Store) timed(op Operation, call func() error) error {
	start := time.Now()
	err := call()
	s.metrics.ObservePersist(op, time.Since(start).Seconds())

	return err
}

// fail applies the failure policy of op to a server error. Confirmed operations return the
// error; optimistic operations log it and keep the local state.
func (s *Store) fail(op Operation, boardCode, itemID string, err error) error {
	if PolicyFor(op) == PolicyOptimistic {
		s.metrics.RecordMutation(op, OutcomeKept)
		s.logger.Warn().Err(err).
			Str("op", string(op)).
			Str("board", boardCode).
			Str("item", itemID).
			Msg("failed to persist change, keeping local state")

		return nil
	}

	s.metrics.RecordMutation(op, OutcomeFailed)

	if itemID == "" {
		return fmt.Errorf("error during %s on board %s: %w", op, boardCode, err)
	}

	return fmt.Errorf("error during %s of item %s on board %s: %w", op, itemID, boardCode, err)
}

func (s *Store) succeed(op Operation) {
	s.metrics.RecordMutation(op, OutcomeOK)
	s.notify()
}

// LoadBoard fetches the board and today's items and replaces the current board with them.
// On failure the previous board, if any, is left in place and the error is returned.
func (s *Store) LoadBoard(ctx context.Context, boardCode, editToken string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	return s.load(ctx, boardCode, editToken)
}

// Reload fetches the current board again with the same edit token.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	b, token := s.board, s.editToken
	s.mu.Unlock()

	if b == nil {
		return ErrNoBoard
	}

	return s.load(ctx, b.BoardCode, token)
}

func (s *Store) load(ctx context.Context, boardCode, editToken string) error {
	s.mu.Lock()
	s.invalidateLocked()
	s.mu.Unlock()

	var b *model.Board

	err := s.timed(OpLoad, func() (err error) {
		b, err = s.repo.FetchBoard(ctx, boardCode, editToken)

		return err
	})
	if err != nil {
		return s.fail(OpLoad, boardCode, "", err)
	}

	for _, item := range b.Items {
		b.LinkAssignee(item)
	}

	s.mu.Lock()
	s.installLocked(b)
	s.editToken = editToken
	s.mu.Unlock()

	s.logger.Info().Str("board", b.BoardCode).Int("items", len(b.Items)).Msg("board loaded")
	s.succeed(OpLoad)

	return nil
}

// ToggleItemComplete flips the completion state of an item on the server and adopts the
// item the server returns. Nothing changes locally before the server answers.
func (s *Store) ToggleItemComplete(ctx context.Context, itemID string) error {
	b, err := s.begin(ctx, OpToggleComplete)
	if err != nil {
		return err
	}
	defer s.release()

	if b.ItemIndex(itemID) < 0 {
		return s.fail(OpToggleComplete, b.BoardCode, itemID, ErrItemNotFound)
	}

	var updated *model.ChoreItem

	err = s.timed(OpToggleComplete, func() (err error) {
		updated, err = s.repo.ToggleCompletion(ctx, b.BoardCode, itemID)

		return err
	})
	if err != nil {
		return s.fail(OpToggleComplete, b.BoardCode, itemID, err)
	}

	b.LinkAssignee(updated)
	s.replaceItem(itemID, func(*model.ChoreItem) *model.ChoreItem { return updated })
	s.succeed(OpToggleComplete)

	return nil
}

// AddItem creates an item on the server and appends it to the board. When the server
// response has no assignee but assigneeID names a member, that member is attached locally.
func (s *Store) AddItem(ctx context.Context, title, assigneeID string) (*model.ChoreItem, error) {
	b, err := s.begin(ctx, OpAddItem)
	if err != nil {
		return nil, err
	}
	defer s.release()

	var item *model.ChoreItem

	err = s.timed(OpAddItem, func() (err error) {
		item, err = s.repo.CreateItem(ctx, b.BoardCode, title, assigneeID)

		return err
	})
	if err != nil {
		return nil, s.fail(OpAddItem, b.BoardCode, "", err)
	}

	if item.Assignee == nil && assigneeID != "" {
		if m := b.Member(assigneeID); m != nil {
			s.logger.Debug().Str("item", item.ID).Str("assignee", assigneeID).Msg("attaching assignee missing from response")
			item.Assignee = m
		}
	} else {
		b.LinkAssignee(item)
	}

	s.mu.Lock()
	items := append(slices.Clone(s.board.Items), item)
	s.installLocked(withItems(s.board, items))
	s.mu.Unlock()

	s.succeed(OpAddItem)

	return item, nil
}

// DeleteItem deletes an item on the server, then removes it locally.
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	b, err := s.begin(ctx, OpDeleteItem)
	if err != nil {
		return err
	}
	defer s.release()

	if b.ItemIndex(itemID) < 0 {
		return s.fail(OpDeleteItem, b.BoardCode, itemID, ErrItemNotFound)
	}

	err = s.timed(OpDeleteItem, func() error {
		return s.repo.DeleteItem(ctx, b.BoardCode, itemID)
	})
	if err != nil {
		return s.fail(OpDeleteItem, b.BoardCode, itemID, err)
	}

	s.mu.Lock()
	items := slices.DeleteFunc(slices.Clone(s.board.Items), func(item *model.ChoreItem) bool {
		return item.ID == itemID
	})
	s.installLocked(withItems(s.board, items))
	s.mu.Unlock()

	s.succeed(OpDeleteItem)

	return nil
}

// UpdateItemTitle renames an item on the server and adopts the returned item, keeping the
// local sort order when the response carries none.
func (s *Store) UpdateItemTitle(ctx context.Context, itemID, title string) error {
	b, err := s.begin(ctx, OpUpdateTitle)
	if err != nil {
		return err
	}
	defer s.release()

	if b.ItemIndex(itemID) < 0 {
		return s.fail(OpUpdateTitle, b.BoardCode, itemID, ErrItemNotFound)
	}

	var updated *model.ChoreItem

	err = s.timed(OpUpdateTitle, func() (err error) {
		updated, err = s.repo.UpdateItem(ctx, b.BoardCode, itemID, model.ItemUpdate{Title: &title})

		return err
	})
	if err != nil {
		return s.fail(OpUpdateTitle, b.BoardCode, itemID, err)
	}

	b.LinkAssignee(updated)
	s.replaceItem(itemID, func(prev *model.ChoreItem) *model.ChoreItem {
		if rank, ok := prev.Rank(); ok && updated.SortOrder == nil {
			updated.SortOrder = model.IntPtr(rank)
		}

		return updated
	})
	s.succeed(OpUpdateTitle)

	return nil
}

// UpdateItemAssignee assigns an item to the member with the given id, or unassigns it when
// assigneeID is empty or unknown. The change is applied and observers notified before the
// server call; a failed server call is logged and the local change kept.
func (s *Store) UpdateItemAssignee(ctx context.Context, itemID, assigneeID string) error {
	b, err := s.begin(ctx, OpUpdateAssignee)
	if err != nil {
		return err
	}
	defer s.release()

	next := b.Member(assigneeID)

	found := s.replaceItem(itemID, func(prev *model.ChoreItem) *model.ChoreItem {
		c := prev.Clone()
		c.Assignee = next

		return c
	})
	if !found {
		s.metrics.RecordMutation(OpUpdateAssignee, OutcomeFailed)

		return fmt.Errorf("error assigning item %s on board %s: %w", itemID, b.BoardCode, ErrItemNotFound)
	}

	s.notify()

	err = s.timed(OpUpdateAssignee, func() error {
		return s.repo.BulkUpdateAssignees(ctx, b.BoardCode, []model.AssigneeChange{{ItemID: itemID, AssigneeID: assigneeID}})
	})
	if err != nil {
		return s.fail(OpUpdateAssignee, b.BoardCode, itemID, err)
	}

	s.metrics.RecordMutation(OpUpdateAssignee, OutcomeOK)

	return nil
}

// ReorderIncomplete moves an incomplete item to newIndex (clamped to the list) and renumbers
// every incomplete item 1..n. Only the moved item's new rank is sent to the server, after the
// local change is applied. Moving an item onto its own index does nothing.
func (s *Store) ReorderIncomplete(ctx context.Context, itemID string, newIndex int) error {
	b, err := s.begin(ctx, OpReorder)
	if err != nil {
		return err
	}
	defer s.release()

	incomplete := s.IncompleteItems()

	from := slices.IndexFunc(incomplete, func(item *model.ChoreItem) bool { return item.ID == itemID })
	if from < 0 {
		s.metrics.RecordMutation(OpReorder, OutcomeFailed)

		return fmt.Errorf("error reordering item %s on board %s: %w", itemID, b.BoardCode, ErrItemNotFound)
	}

	to := max(0, min(newIndex, len(incomplete)-1))
	if from == to {
		s.metrics.RecordMutation(OpReorder, OutcomeNoop)

		return nil
	}

	order := slices.Clone(incomplete)
	moved := order[from]
	order = slices.Delete(order, from, from+1)
	order = slices.Insert(order, to, moved)

	ranks := make(map[string]int, len(order))
	for i, item := range order {
		ranks[item.ID] = i + 1
	}

	s.mu.Lock()
	items := make([]*model.ChoreItem, 0, len(s.board.Items))

	for _, item := range s.board.Items {
		if rank, ok := ranks[item.ID]; ok && !item.Completed {
			c := item.Clone()
			c.SortOrder = model.IntPtr(rank)
			item = c
		}

		items = append(items, item)
	}
	s.installLocked(withItems(s.board, items))
	s.mu.Unlock()

	s.notify()

	err = s.timed(OpReorder, func() error {
		return s.repo.UpdateItemOrder(ctx, b.BoardCode, itemID, ranks[itemID])
	})
	if err != nil {
		return s.fail(OpReorder, b.BoardCode, itemID, err)
	}

	s.metrics.RecordMutation(OpReorder, OutcomeOK)

	return nil
}

// UpdateBoardTitle changes the board title locally. The backend has no endpoint for board
// titles, so the change is lost on the next load.
func (s *Store) UpdateBoardTitle(ctx context.Context, title string) error {
	_, err := s.begin(ctx, OpBoardTitle)
	if err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	next := *s.board
	next.Title = title
	s.installLocked(&next)
	s.mu.Unlock()

	s.succeed(OpBoardTitle)

	return nil
}

// RandomAssign distributes the unassigned incomplete items across the members with the
// balancer, applies the result locally, notifies, and then persists every decision in one
// bulk call. A failed bulk call is logged and the local assignment kept. The returned
// decisions reference the items as they were before assignment; nil means nothing to do.
func (s *Store) RandomAssign(ctx context.Context) ([]assign.Decision, error) {
	b, err := s.begin(ctx, OpRandomAssign)
	if err != nil {
		return nil, err
	}
	defer s.release()

	decisions := s.balancer.Plan(b.Members, s.IncompleteItems())
	if len(decisions) == 0 {
		s.metrics.RecordMutation(OpRandomAssign, OutcomeNoop)

		return nil, nil
	}

	chosen := make(map[string]*model.User, len(decisions))
	changes := make([]model.AssigneeChange, 0, len(decisions))

	for _, d := range decisions {
		chosen[d.Item.ID] = d.Member
		changes = append(changes, model.AssigneeChange{ItemID: d.Item.ID, AssigneeID: d.Member.ID})
	}

	s.mu.Lock()
	items := make([]*model.ChoreItem, 0, len(s.board.Items))

	for _, item := range s.board.Items {
		if m, ok := chosen[item.ID]; ok {
			c := item.Clone()
			c.Assignee = m
			item = c
		}

		items = append(items, item)
	}
	s.installLocked(withItems(s.board, items))
	s.mu.Unlock()

	s.notify()

	err = s.timed(OpRandomAssign, func() error {
		return s.repo.BulkUpdateAssignees(ctx, b.BoardCode, changes)
	})
	if err != nil {
		return decisions, s.fail(OpRandomAssign, b.BoardCode, "", err)
	}

	s.metrics.RecordMutation(OpRandomAssign, OutcomeOK)

	return decisions, nil
}
