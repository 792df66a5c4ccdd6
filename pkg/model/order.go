package model

import (
	"math"
	"sort"
)

// unranked is the rank used for items without a sort order, placing them after every ranked item.
const unranked = math.MaxInt

func effectiveRank(item *ChoreItem) int {
	if rank, ok := item.Rank(); ok {
		return rank
	}

	return unranked
}

// SortByRank orders items ascending by sort order, then ascending by creation time.
// Items without a sort order keep their relative order after all ranked items.
func SortByRank(items []*ChoreItem) {
	sort.SliceStable(items, func(a, b int) bool {
		ra, rb := effectiveRank(items[a]), effectiveRank(items[b])
		if ra != rb {
			return ra < rb
		}

		return items[a].CreatedAt.Before(items[b].CreatedAt)
	})
}

// SortByCompletion orders items by completion time, most recent first. Items without a
// completion time sort last.
func SortByCompletion(items []*ChoreItem) {
	completedUnix := func(item *ChoreItem) int64 {
		if item.CompletedAt == nil {
			return 0
		}

		return item.CompletedAt.UnixMilli()
	}

	sort.SliceStable(items, func(a, b int) bool {
		return completedUnix(items[a]) > completedUnix(items[b])
	})
}

// Incomplete returns the incomplete items in rank order.
func Incomplete(items []*ChoreItem) []*ChoreItem {
	out := make([]*ChoreItem, 0, len(items))

	for _, item := range items {
		if !item.Completed {
			out = append(out, item)
		}
	}

	SortByRank(out)

	return out
}

// Completed returns the completed items, most recently completed first.
func Completed(items []*ChoreItem) []*ChoreItem {
	out := make([]*ChoreItem, 0, len(items))

	for _, item := range items {
		if item.Completed {
			out = append(out, item)
		}
	}

	SortByCompletion(out)

	return out
}
