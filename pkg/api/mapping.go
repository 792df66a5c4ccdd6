package api

import (
	"time"

	"github.com/matt-steen/chore-board/pkg/model"
	"github.com/rs/zerolog/log"
)

// timeLayouts are tried in order; layouts without a zone are read as local time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}

	log.Debug().Str("value", value).Msg("unparsable timestamp from board service")

	return time.Time{}, false
}

func toUser(p *wireParticipant) *model.User {
	return &model.User{
		ID:       string(p.ID),
		Nickname: p.Nickname,
		Color:    p.Color,
		UserID:   string(p.UserID),
	}
}

func toItem(w *wireItem) *model.ChoreItem {
	item := &model.ChoreItem{
		ID:        string(w.ID),
		Title:     w.Title,
		Completed: w.IsCompleted,
		SortOrder: w.SortOrder.value,
	}

	item.CreatedAt, _ = parseTime(w.CreatedAt)

	if w.CompletedAt != nil {
		if t, ok := parseTime(*w.CompletedAt); ok {
			item.CompletedAt = &t
		}
	}

	if w.Assignee != nil {
		item.Assignee = toUser(w.Assignee)
	}

	return item
}

// unknownCreator stands in when the board has no participants.
func unknownCreator() *model.User {
	return &model.User{ID: "0", Nickname: "unknown", Color: "#6b7280"}
}

// composeBoard builds the domain board from the board and item responses. Items are
// ordered by rank and their assignees point at the board members.
func composeBoard(wb *wireBoard, wi wireItems, editable bool) *model.Board {
	b := &model.Board{
		BoardCode: string(wb.BoardCode),
		Title:     wb.Title,
		Editable:  editable,
		Members:   make([]*model.User, 0, len(wb.Participants)),
		Items:     make([]*model.ChoreItem, 0, len(wi)),
	}

	b.CreatedAt, _ = parseTime(wb.CreatedAt)

	if wb.IsRemove != nil {
		b.IsRemove = *wb.IsRemove
	}

	for i := range wb.Participants {
		b.Members = append(b.Members, toUser(&wb.Participants[i]))
	}

	if len(b.Members) > 0 {
		b.Creator = b.Members[0]
	} else {
		b.Creator = unknownCreator()
	}

	for i := range wi {
		item := toItem(&wi[i])
		b.LinkAssignee(item)
		b.Items = append(b.Items, item)
	}

	model.SortByRank(b.Items)

	return b
}
