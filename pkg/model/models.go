package model

import "time"

// User is a participant of a board.
type User struct {
	ID       string
	Nickname string
	// Color is a hex string used to tag the participant visually.
	Color string
	// UserID is the backend account identity, if the participant is tied to an account.
	UserID string
}

// ChoreItem is a single chore on a board.
type ChoreItem struct {
	ID    string
	Title string
	// Assignee points into Board.Members; nil when unassigned.
	Assignee  *User
	Completed bool
	CreatedAt time.Time
	// CompletedAt is set by the server when the item is completed and cleared when it is reopened.
	CompletedAt *time.Time
	// SortOrder ranks incomplete items, lowest first. Nil sorts after every ranked item.
	SortOrder *int
}

// Board is the aggregate root for a shared chore list.
type Board struct {
	BoardCode string
	Title     string
	// Editable is true when the session holds an edit token for the board.
	Editable bool
	Creator  *User
	// Members is ordered; the first member is the creator.
	Members []*User
	// Items is unordered; presentation order is derived.
	Items     []*ChoreItem
	CreatedAt time.Time
	// IsRemove reports whether the session may delete the board. Set by the server only.
	IsRemove bool
}

// ItemUpdate carries the fields of a partial item update. Nil fields are left untouched.
type ItemUpdate struct {
	Title      *string
	AssigneeID *string
}

// AssigneeChange is one entry of a bulk assignee update. An empty AssigneeID unassigns the item.
type AssigneeChange struct {
	ItemID     string
	AssigneeID string
}

// Member returns the member with the given id, or nil.
func (b *Board) Member(id string) *User {
	if id == "" {
		return nil
	}

	for _, m := range b.Members {
		if m.ID == id {
			return m
		}
	}

	return nil
}

// ItemIndex returns the position of the item with the given id in Items, or -1.
func (b *Board) ItemIndex(id string) int {
	for i, item := range b.Items {
		if item.ID == id {
			return i
		}
	}

	return -1
}

// LinkAssignee points item.Assignee at the matching member when one exists, so that items
// share member objects instead of holding copies.
func (b *Board) LinkAssignee(item *ChoreItem) {
	if item.Assignee == nil {
		return
	}

	if m := b.Member(item.Assignee.ID); m != nil {
		item.Assignee = m
	}
}

// Clone returns a shallow copy of the item. The assignee is shared, pointer fields are copied.
func (i *ChoreItem) Clone() *ChoreItem {
	c := *i

	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}

	if i.SortOrder != nil {
		o := *i.SortOrder
		c.SortOrder = &o
	}

	return &c
}

// Rank returns the sort order, or ok=false when the item has none.
func (i *ChoreItem) Rank() (rank int, ok bool) {
	if i.SortOrder == nil {
		return 0, false
	}

	return *i.SortOrder, true
}

// IsAssignedTo reports whether the item is assigned to the member with the given id.
func (i *ChoreItem) IsAssignedTo(memberID string) bool {
	return i.Assignee != nil && i.Assignee.ID == memberID
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}
