package devserver

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/matt-steen/chore-board/pkg/db"
)

var errBadReference = errors.New("participant id must be an integer or null")

type participantResponse struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Color    string `json:"color"`
}

type choreResponse struct {
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	Assignee    *participantResponse `json:"assignee"`
	IsCompleted bool                 `json:"isCompleted"`
	CreatedAt   string               `json:"createdAt"`
	CompletedAt *string              `json:"completedAt"`
	SortOrder   *int                 `json:"sortOrder"`
}

type splitChoresResponse struct {
	Incomplete []choreResponse `json:"incomplete"`
	Completed  []choreResponse `json:"completed"`
}

type boardResponse struct {
	BoardCode    string                `json:"boardCode"`
	Title        string                `json:"title"`
	CreatedAt    string                `json:"createdAt"`
	Participants []participantResponse `json:"participants"`
	IsRemove     bool                  `json:"isRemove"`
}

type createdBoardResponse struct {
	BoardCode string `json:"boardCode"`
	EditToken string `json:"editToken"`
	Title     string `json:"title"`
}

type createBoardRequest struct {
	Title    string `json:"title"`
	Nickname string `json:"nickname"`
	Color    string `json:"color"`
}

type participantRequest struct {
	Nickname string `json:"nickname"`
	Color    string `json:"color"`
}

// Raw messages distinguish an absent field (empty) from an explicit null.
type createChoreRequest struct {
	Date       string                 `json:"date"`
	Title      string                 `json:"title"`
	AssigneeID sonic.NoCopyRawMessage `json:"assigneeId"`
}

type updateChoreRequest struct {
	Title      *string                `json:"title"`
	AssigneeID sonic.NoCopyRawMessage `json:"assigneeId"`
}

type orderRequest struct {
	SortOrder *int `json:"sortOrder"`
}

type assigneeEntry struct {
	ID         sonic.NoCopyRawMessage `json:"id"`
	AssigneeID sonic.NoCopyRawMessage `json:"assigneeId"`
}

type assignRequest struct {
	Items []assigneeEntry `json:"items"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toParticipantResponse(p *db.Participant) participantResponse {
	return participantResponse{ID: p.ID, Nickname: p.Nickname, Color: p.Color}
}

func toChoreResponse(c *db.Chore) choreResponse {
	out := choreResponse{
		ID:          c.ID,
		Title:       c.Title,
		IsCompleted: c.Completed,
		CreatedAt:   formatTime(c.CreatedDatetime),
		SortOrder:   c.SortOrder,
	}

	if c.Assignee != nil {
		p := toParticipantResponse(c.Assignee)
		out.Assignee = &p
	}

	if c.CompletedDatetime != nil {
		s := formatTime(*c.CompletedDatetime)
		out.CompletedAt = &s
	}

	return out
}

// parseRef reads a participant or chore reference sent as a number, a numeric string or null.
func parseRef(raw []byte) (*int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	text := string(raw)

	if raw[0] == '"' {
		if err := sonic.Unmarshal(raw, &text); err != nil {
			return nil, errBadReference
		}
	}

	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		return &id, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return nil, errBadReference
	}

	id := int64(f)

	return &id, nil
}
