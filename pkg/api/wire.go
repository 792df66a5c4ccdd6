package api

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/bytedance/sonic"
)

// flexID accepts a JSON number or string and keeps it as a string.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
	case data[0] == '"':
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("error decoding id %s: %w", data, err)
		}

		*id = flexID(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("error decoding id %s: %w", data, err)
		}

		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			*id = flexID(strconv.FormatInt(int64(f), 10))
		} else {
			*id = flexID(data)
		}
	}

	return nil
}

// optionalRank holds a sort order. Anything other than a finite JSON number decodes to no rank.
type optionalRank struct {
	value *int
}

func (r *optionalRank) UnmarshalJSON(data []byte) error {
	r.value = nil

	data = bytes.TrimSpace(data)
	if len(data) == 0 || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return nil
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}

	v := int(f)
	r.value = &v

	return nil
}

type wireParticipant struct {
	ID       flexID `json:"id"`
	Nickname string `json:"nickname"`
	Color    string `json:"color"`
	UserID   flexID `json:"userId"`
}

type wireItem struct {
	ID          flexID           `json:"id"`
	Title       string           `json:"title"`
	Assignee    *wireParticipant `json:"assignee"`
	IsCompleted bool             `json:"isCompleted"`
	CreatedAt   string           `json:"createdAt"`
	CompletedAt *string          `json:"completedAt"`
	SortOrder   optionalRank     `json:"sortOrder"`
}

// wireItems decodes either a flat item list or an {incomplete, completed} split object
// into one list, incomplete items first.
type wireItems []wireItem

func (w *wireItems) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*w = nil

	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var flat []wireItem
		if err := sonic.Unmarshal(data, &flat); err != nil {
			return fmt.Errorf("error decoding item list: %w", err)
		}

		*w = flat
	case '{':
		var split struct {
			Incomplete sonic.NoCopyRawMessage `json:"incomplete"`
			Completed  sonic.NoCopyRawMessage `json:"completed"`
		}
		if err := sonic.Unmarshal(data, &split); err != nil {
			return fmt.Errorf("error decoding split item lists: %w", err)
		}

		for _, part := range []sonic.NoCopyRawMessage{split.Incomplete, split.Completed} {
			part = bytes.TrimSpace(part)
			if len(part) == 0 || part[0] != '[' {
				continue
			}

			var items []wireItem
			if err := sonic.Unmarshal(part, &items); err != nil {
				return fmt.Errorf("error decoding item list: %w", err)
			}

			*w = append(*w, items...)
		}
	}

	return nil
}

type wireBoard struct {
	BoardCode    flexID            `json:"boardCode"`
	Title        string            `json:"title"`
	CreatedAt    string            `json:"createdAt"`
	Participants []wireParticipant `json:"participants"`
	IsRemove     *bool             `json:"isRemove"`
}

type wireCreatedBoard struct {
	BoardCode flexID `json:"boardCode"`
	EditToken string `json:"editToken"`
	Title     string `json:"title"`
}

type wireErrorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type createItemRequest struct {
	Date       string `json:"date"`
	Title      string `json:"title"`
	AssigneeID any    `json:"assigneeId"`
	Options    any    `json:"options"`
}

type orderRequest struct {
	SortOrder int `json:"sortOrder"`
}

type assigneeEntry struct {
	ID         any `json:"id"`
	AssigneeID any `json:"assigneeId"`
}

type bulkAssigneesRequest struct {
	Items []assigneeEntry `json:"items"`
}

type joinRequest struct {
	Nickname string `json:"nickname"`
	Color    string `json:"color"`
}

// wireRef renders an id the way the service expects it: numeric when it is an integer,
// otherwise as the original string. An empty id is null.
func wireRef(id string) any {
	if id == "" {
		return nil
	}

	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}

	return id
}
