package store

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/MJE43/daihinmin-arena/internal/result"
	"github.com/MJE43/daihinmin-arena/internal/schedule"
)

// MatchRecorder buffers a trial's match records and writes them in batches.
// It satisfies the tournament's per-match observer.
type MatchRecorder struct {
	store     *Store
	ctx       context.Context
	trialID   string
	mu        sync.Mutex
	buffer    []MatchRecord
	flushSize int
	err       error
}

// NewMatchRecorder creates a recorder for the given trial.
// flushSize controls how many matches are buffered before a batch insert.
func NewMatchRecorder(ctx context.Context, store *Store, trialID string, flushSize int) *MatchRecorder {
	if flushSize <= 0 {
		flushSize = 256
	}
	return &MatchRecorder{
		store:     store,
		ctx:       ctx,
		trialID:   trialID,
		buffer:    make([]MatchRecord, 0, flushSize),
		flushSize: flushSize,
	}
}

// MatchPlayed records one match and flushes if the buffer is full.
func (r *MatchRecorder) MatchPlayed(iter, index int, m schedule.Match, p result.Parsed) {
	rec := MatchRecord{
		Iter:  iter,
		Index: index,
		Seed:  m.Seed,
		Seats: m.Seats,
		OK:    p.Ok(),
	}
	if rec.OK {
		rec.Players = p.Outcome.Players
		rec.Stock = p.Outcome.Stock
		rec.MaxCuts = p.Outcome.MaxCuts
	} else {
		rec.Error = p.Err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, rec)
	if len(r.buffer) >= r.flushSize {
		r.flushLocked()
	}
}

// Flush persists buffered matches and returns every write error seen so far.
func (r *MatchRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushLocked()
	return r.err
}

func (r *MatchRecorder) flushLocked() {
	if len(r.buffer) == 0 {
		return
	}
	err := r.store.InsertMatches(r.ctx, r.trialID, r.buffer)
	r.err = multierr.Append(r.err, err)
	r.buffer = r.buffer[:0]
}
