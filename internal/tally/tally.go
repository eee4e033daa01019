// Package tally accumulates match outcomes into per-entry and global totals.
package tally

import (
	"sort"

	"github.com/MJE43/daihinmin-arena/internal/result"
	"github.com/MJE43/daihinmin-arena/internal/schedule"
)

// EntryStats are the running totals of one entry across all its seats.
type EntryStats struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Score       int    `json:"score"`
	Remain      int    `json:"remain"`
	Err         bool   `json:"err"`
	Appearances int    `json:"appearances"`
}

// Stats is the aggregate of a run. The zero value is not usable; call New.
type Stats struct {
	entries map[string]*EntryStats
	names   map[string]string

	Stock   int `json:"stock"`
	MaxCuts int `json:"max_cuts"`
	Matches int `json:"matches"`
	Failed  int `json:"failed"`
}

// New returns empty stats.
func New() *Stats {
	return &Stats{entries: make(map[string]*EntryStats), names: make(map[string]string)}
}

// Label attaches a display name to id. Names do not affect the totals.
func (s *Stats) Label(id, name string) {
	s.names[id] = name
	if e, ok := s.entries[id]; ok {
		e.Name = name
	}
}

// Add folds one parsed match into the totals. A failed parse only bumps
// Failed; everything else is sum or logical OR, so the order of calls does
// not matter.
func (s *Stats) Add(m schedule.Match, p result.Parsed) {
	if !p.Ok() {
		s.Failed++
		return
	}
	s.AddOutcome(m.Seats, p.Outcome)
}

// AddOutcome folds a successful outcome seated as seats.
func (s *Stats) AddOutcome(seats [schedule.Seats]string, o result.MatchOutcome) {
	for seat, id := range seats {
		pr := o.Players[seat]
		e := s.entry(id)
		e.Score += pr.Score
		e.Remain += pr.Remain
		e.Err = e.Err || pr.Err
		e.Appearances++
	}
	s.Stock += o.Stock
	s.MaxCuts += o.MaxCuts
	s.Matches++
}

// Merge folds other into s.
func (s *Stats) Merge(other *Stats) {
	for id, o := range other.entries {
		e := s.entry(id)
		e.Score += o.Score
		e.Remain += o.Remain
		e.Err = e.Err || o.Err
		e.Appearances += o.Appearances
	}
	for id, name := range other.names {
		if _, ok := s.names[id]; !ok {
			s.Label(id, name)
		}
	}
	s.Stock += other.Stock
	s.MaxCuts += other.MaxCuts
	s.Matches += other.Matches
	s.Failed += other.Failed
}

func (s *Stats) entry(id string) *EntryStats {
	e, ok := s.entries[id]
	if !ok {
		e = &EntryStats{ID: id, Name: s.names[id]}
		s.entries[id] = e
	}
	return e
}

// Entry returns a copy of id's record.
func (s *Stats) Entry(id string) (EntryStats, bool) {
	e, ok := s.entries[id]
	if !ok {
		return EntryStats{}, false
	}
	return *e, true
}

// Entries returns copies of all records ordered by id.
func (s *Stats) Entries() []EntryStats {
	out := make([]EntryStats, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of entries with at least one contribution.
func (s *Stats) Len() int { return len(s.entries) }
