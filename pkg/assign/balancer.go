package assign

import (
	"math/rand/v2"
	"sync"

	"github.com/matt-steen/chore-board/pkg/model"
)

// Decision pairs an unassigned item with the member chosen for it.
type Decision struct {
	Item   *model.ChoreItem
	Member *model.User
}

// Balancer distributes unassigned incomplete items across board members so that
// per-member loads differ by at most one, using randomness to break ties.
//
// A Balancer is safe for concurrent use.
type Balancer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewBalancer creates a Balancer drawing randomness from src. A nil src gives a
// randomly seeded generator.
//
// Example:
//
//	b := assign.NewBalancer(rand.NewPCG(1, 2)) // deterministic, for tests
//	decisions := b.Plan(board.Members, incomplete)
func NewBalancer(src rand.Source) *Balancer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	return &Balancer{rng: rand.New(src)}
}

// Plan computes assignments for the unassigned items among incomplete.
//
// The algorithm:
//  1. Seed a load counter per member with the incomplete items already assigned to them
//  2. Shuffle the members (tie-break order) and the unassigned items (processing order)
//  3. Give each item, in shuffled order, to the first member with the strictly smallest load
//
// Items that already have an assignee are never touched. Plan returns nil when there are
// no members or nothing to assign. Completed items in incomplete are ignored.
func (b *Balancer) Plan(members []*model.User, incomplete []*model.ChoreItem) []Decision {
	if len(members) == 0 || len(incomplete) == 0 {
		return nil
	}

	assigned := make([]*model.ChoreItem, 0, len(incomplete))
	unassigned := make([]*model.ChoreItem, 0, len(incomplete))

	for _, item := range incomplete {
		if item.Completed {
			continue
		}

		if item.Assignee != nil {
			assigned = append(assigned, item)
		} else {
			unassigned = append(unassigned, item)
		}
	}

	if len(unassigned) == 0 {
		return nil
	}

	load := Loads(members, assigned)

	b.mu.Lock()
	shuffledMembers := Shuffle(b.rng, members)
	shuffledItems := Shuffle(b.rng, unassigned)
	b.mu.Unlock()

	decisions := make([]Decision, 0, len(shuffledItems))

	for _, item := range shuffledItems {
		best := shuffledMembers[0]
		bestLoad := load[best.ID]

		for _, m := range shuffledMembers[1:] {
			if l := load[m.ID]; l < bestLoad {
				best, bestLoad = m, l
			}
		}

		decisions = append(decisions, Decision{Item: item, Member: best})
		load[best.ID]++
	}

	return decisions
}

// Loads counts, for every member, the items in items assigned to that member.
// Every member is present in the result, possibly with zero. Completed items and
// items assigned to someone outside members are not counted.
func Loads(members []*model.User, items []*model.ChoreItem) map[string]int {
	load := make(map[string]int, len(members))

	for _, m := range members {
		load[m.ID] = 0
	}

	for _, item := range items {
		if item.Completed || item.Assignee == nil {
			continue
		}

		if _, ok := load[item.Assignee.ID]; ok {
			load[item.Assignee.ID]++
		}
	}

	return load
}

// Shuffle returns a uniformly random permutation of in (Fisher-Yates). The input is not modified.
func Shuffle[T any](rng *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)

	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}
