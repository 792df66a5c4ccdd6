package db

import "time"

// Board is a row of the board table. EditToken is a secret and is never served back except on
// creation.
type Board struct {
	Code            string
	Title           string
	EditToken       string
	CreatedDatetime time.Time
}

// Participant is a board member. The participant who created the board has the lowest id.
type Participant struct {
	ID        int64
	BoardCode string
	Nickname  string
	Color     string
}

// Chore is a dated item on a board.
type Chore struct {
	ID        int64
	BoardCode string
	// Date is the day the chore belongs to, formatted as 2006-01-02.
	Date     string
	Title    string
	Assignee *Participant
	// SortOrder is maintained among the incomplete chores of a day. It starts at 1; a new chore
	// goes after the current maximum. Nil means unranked.
	SortOrder         *int
	Completed         bool
	CompletedDatetime *time.Time
	CreatedDatetime   time.Time
}

// ChoreUpdate holds the fields to change on a chore. When SetAssignee is true, AssigneeID
// replaces the assignee and nil unassigns.
type ChoreUpdate struct {
	Title       *string
	SetAssignee bool
	AssigneeID  *int64
}

// AssigneeChange sets the assignee of one chore; a nil AssigneeID unassigns.
type AssigneeChange struct {
	ChoreID    int64
	AssigneeID *int64
}
