package model_test

import (
	"testing"
	"time"

	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/stretchr/testify/assert"
)

func ids(items []*model.ChoreItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}

	return out
}

func TestIncompleteOrdering(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	items := []*model.ChoreItem{
		{ID: "late-unranked", CreatedAt: base.Add(time.Hour)},
		{ID: "rank2", CreatedAt: base, SortOrder: model.IntPtr(2)},
		{ID: "early-unranked", CreatedAt: base},
		{ID: "done", Completed: true, SortOrder: model.IntPtr(0)},
		{ID: "rank1-late", CreatedAt: base.Add(time.Minute), SortOrder: model.IntPtr(1)},
		{ID: "rank1-early", CreatedAt: base, SortOrder: model.IntPtr(1)},
	}

	assert.Equal(
		[]string{"rank1-early", "rank1-late", "rank2", "early-unranked", "late-unranked"},
		ids(model.Incomplete(items)),
	)
}

func TestUnrankedKeepInsertionOrderOnTies(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	items := []*model.ChoreItem{
		{ID: "b", CreatedAt: created},
		{ID: "a", CreatedAt: created},
		{ID: "c", CreatedAt: created},
	}

	assert.Equal([]string{"b", "a", "c"}, ids(model.Incomplete(items)))
}

func TestCompletedOrdering(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	items := []*model.ChoreItem{
		{ID: "no-time", Completed: true},
		{ID: "first", Completed: true, CompletedAt: &first},
		{ID: "open", Completed: false, CompletedAt: &second},
		{ID: "second", Completed: true, CompletedAt: &second},
	}

	assert.Equal([]string{"second", "first", "no-time"}, ids(model.Completed(items)))
}

func TestLinkAssigneeUsesMemberObject(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	member := &model.User{ID: "2", Nickname: "dana", Color: "#ff0000"}
	board := &model.Board{Members: []*model.User{{ID: "1"}, member}}

	item := &model.ChoreItem{ID: "x", Assignee: &model.User{ID: "2", Nickname: "stale"}}
	board.LinkAssignee(item)
	assert.Same(member, item.Assignee)

	stranger := &model.User{ID: "9"}
	other := &model.ChoreItem{ID: "y", Assignee: stranger}
	board.LinkAssignee(other)
	assert.Same(stranger, other.Assignee)

	assert.Nil(board.Member(""))
	assert.Equal(-1, board.ItemIndex("missing"))
}

func TestCloneCopiesPointerFields(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	done := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	member := &model.User{ID: "1"}
	item := &model.ChoreItem{ID: "a", Assignee: member, CompletedAt: &done, SortOrder: model.IntPtr(3)}

	clone := item.Clone()
	*clone.SortOrder = 7

	assert.Equal(3, *item.SortOrder)
	assert.Same(member, clone.Assignee)
	assert.Equal(done, *clone.CompletedAt)
}
