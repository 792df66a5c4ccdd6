package board

// Operation names a Store entry point.
type Operation string

// Store operations.
const (
	OpLoad           Operation = "load"
	OpToggleComplete Operation = "toggle_complete"
	OpAddItem        Operation = "add_item"
	OpDeleteItem     Operation = "delete_item"
	OpUpdateTitle    Operation = "update_item_title"
	OpUpdateAssignee Operation = "update_item_assignee"
	OpReorder        Operation = "reorder_incomplete"
	OpRandomAssign   Operation = "random_assign"
	OpBoardTitle     Operation = "update_board_title"
)

// Policy describes how an operation relates local state to the server round-trip.
type Policy int

const (
	// PolicyConfirmed operations change local state only after the server succeeds, and
	// return the server error otherwise.
	PolicyConfirmed Policy = iota
	// PolicyOptimistic operations change local state before the server call. Failures are
	// logged and the local state is kept.
	PolicyOptimistic
	// PolicyLocalOnly operations never reach the server.
	PolicyLocalOnly
)

func (p Policy) String() string {
	switch p {
	case PolicyConfirmed:
		return "confirmed"
	case PolicyOptimistic:
		return "optimistic-no-rollback"
	case PolicyLocalOnly:
		return "local-only"
	}

	return "unknown"
}

var policies = map[Operation]Policy{
	OpLoad:           PolicyConfirmed,
	OpToggleComplete: PolicyConfirmed,
	OpAddItem:        PolicyConfirmed,
	OpDeleteItem:     PolicyConfirmed,
	OpUpdateTitle:    PolicyConfirmed,
	OpUpdateAssignee: PolicyOptimistic,
	OpReorder:        PolicyOptimistic,
	OpRandomAssign:   PolicyOptimistic,
	OpBoardTitle:     PolicyLocalOnly,
}

// PolicyFor returns the policy of op. Unknown operations are treated as confirmed.
func PolicyFor(op Operation) Policy {
	if p, ok := policies[op]; ok {
		return p
	}

	return PolicyConfirmed
}

// Operations lists every Store operation with a policy.
func Operations() []Operation {
	return []Operation{
		OpLoad, OpToggleComplete, OpAddItem, OpDeleteItem, OpUpdateTitle,
		OpUpdateAssignee, OpReorder, OpRandomAssign, OpBoardTitle,
	}
}
