// Package schedule enumerates the round-robin match list for a set of entry ids.
package schedule

import (
	"errors"
	"fmt"
	"sort"
)

// Seats is the number of players in every match.
const Seats = 4

var (
	ErrInvalidPadding    = errors.New("padding must be >= 1")
	ErrInvalidIterations = errors.New("iterations must be >= 1")
	ErrUnknownSeating    = errors.New("unknown seating")
)

// Seating selects how working ids are turned into matches.
type Seating string

const (
	// SeatingOrdered plays every ordered arrangement, so seat order matters.
	SeatingOrdered Seating = "ordered"
	// SeatingUnordered plays each multiset of four ids once, in sorted seat order.
	SeatingUnordered Seating = "unordered"
)

// ParseSeating accepts "ordered" (also "", "permutations") and
// "unordered" (also "combinations").
func ParseSeating(s string) (Seating, error) {
	switch s {
	case "", "ordered", "permutations":
		return SeatingOrdered, nil
	case "unordered", "combinations":
		return SeatingUnordered, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSeating, s)
	}
}

// Match is one seating of four entry ids plus the seed it is played with.
type Match struct {
	Seats [Seats]string
	Seed  uint64
}

// Expand repeats every id padding times and sorts the result.
func Expand(ids []string, padding int) ([]string, error) {
	if padding < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPadding, padding)
	}
	working := make([]string, 0, len(ids)*padding)
	for _, id := range ids {
		for i := 0; i < padding; i++ {
			working = append(working, id)
		}
	}
	sort.Strings(working)
	return working, nil
}

// Tuples returns every ordered selection of four distinct positions of
// working, as id tuples, with duplicates removed and in lexicographic order.
//
// Positions holding the same id are interchangeable, so the distinct tuples
// are exactly the id sequences that use each id no more often than it occurs
// in working. Those are generated directly, in order.
func Tuples(working []string) [][Seats]string {
	return enumerate(working, false)
}

// Combinations is Tuples restricted to non-decreasing seatings: one match per
// multiset of ids.
func Combinations(working []string) [][Seats]string {
	return enumerate(working, true)
}

func enumerate(working []string, nondecreasing bool) [][Seats]string {
	if len(working) < Seats {
		return nil
	}

	var distinct []string
	counts := make(map[string]int, len(working))
	for _, id := range working {
		if counts[id] == 0 {
			distinct = append(distinct, id)
		}
		counts[id]++
	}
	sort.Strings(distinct)

	var out [][Seats]string
	var cur [Seats]string
	var walk func(seat, from int)
	walk = func(seat, from int) {
		if seat == Seats {
			out = append(out, cur)
			return
		}
		start := 0
		if nondecreasing {
			start = from
		}
		for i := start; i < len(distinct); i++ {
			id := distinct[i]
			if counts[id] == 0 {
				continue
			}
			counts[id]--
			cur[seat] = id
			walk(seat+1, i)
			counts[id]++
		}
	}
	walk(0, 0)

	return out
}

// Plan is the full schedule of a run: the same tuple list played Iterations times.
type Plan struct {
	Tuples     [][Seats]string
	Iterations int
}

// NewPlan expands ids with padding and builds the per-iteration tuple list.
// Fewer than four working ids yields an empty, valid plan.
func NewPlan(ids []string, padding, iterations int, seating Seating) (*Plan, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIterations, iterations)
	}
	working, err := Expand(ids, padding)
	if err != nil {
		return nil, err
	}

	var tuples [][Seats]string
	switch seating {
	case SeatingOrdered, "":
		tuples = Tuples(working)
	case SeatingUnordered:
		tuples = Combinations(working)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeating, seating)
	}
	return &Plan{Tuples: tuples, Iterations: iterations}, nil
}

// PerIteration is the number of matches in one pass.
func (p *Plan) PerIteration() int { return len(p.Tuples) }

// Len is the total number of matches across all iterations.
func (p *Plan) Len() int { return len(p.Tuples) * p.Iterations }

// Each walks the plan in order, stamping every match with the next seed.
// iter and index are zero based. A non-nil error from fn stops the walk.
func (p *Plan) Each(seeds *SeedCounter, fn func(iter, index int, m Match) error) error {
	for iter := 0; iter < p.Iterations; iter++ {
		for index, seats := range p.Tuples {
			m := Match{Seats: seats, Seed: seeds.Next()}
			if err := fn(iter, index, m); err != nil {
				return err
			}
		}
	}
	return nil
}
