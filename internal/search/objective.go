// Package search tunes a player's param.json by running one full round
// robin per trial and maximizing the resulting fitness.
package search

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/MJE43/daihinmin-arena/internal/entry"
	"github.com/MJE43/daihinmin-arena/internal/logx"
	"github.com/MJE43/daihinmin-arena/internal/match"
	"github.com/MJE43/daihinmin-arena/internal/objective"
	"github.com/MJE43/daihinmin-arena/internal/params"
	"github.com/MJE43/daihinmin-arena/internal/result"
	"github.com/MJE43/daihinmin-arena/internal/sampler"
	"github.com/MJE43/daihinmin-arena/internal/schedule"
	"github.com/MJE43/daihinmin-arena/internal/tally"
	"github.com/MJE43/daihinmin-arena/internal/tournament"
)

// Trial is one evaluation of the objective. Suggestions are reproducible
// for a given study seed and trial number.
type Trial struct {
	Number int
	s      *sampler.TrialSampler
}

// NewTrial binds trial number to a study sampler.
func NewTrial(smp *sampler.Sampler, number int) *Trial {
	return &Trial{Number: number, s: smp.Trial(number)}
}

// SuggestInt draws an integer in [low, high] for name.
func (t *Trial) SuggestInt(name string, low, high int) (int, error) {
	return t.s.SuggestInt(name, low, high)
}

// Params returns every value suggested so far.
func (t *Trial) Params() map[string]int { return t.s.Params() }

// Evaluation is the outcome of one trial.
type Evaluation struct {
	Params  params.Config
	Stats   *tally.Stats
	Target  *tally.EntryStats
	Fitness decimal.Decimal
}

// Objective runs the tournament for a sampled configuration.
type Objective struct {
	EntriesDir string
	Target     entry.Entry
	Tournament tournament.Config
	Reducer    objective.Reducer
	Logger     *logx.Logger
	// Executor replaces the process runner when set.
	Executor match.Executor
}

// NewTarget identifies the tuned player by content.
func NewTarget(path string) (entry.Entry, error) {
	id, err := entry.HashFile(path)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("hash target: %w", err)
	}
	return entry.Entry{ID: id, Path: path}, nil
}

// Evaluate samples a configuration, runs the round robin in a fresh
// workspace, and reduces the totals to a fitness. The workspace is always
// removed.
func (o *Objective) Evaluate(ctx context.Context, trial *Trial, observers ...tournament.Observer) (ev *Evaluation, err error) {
	cfg, err := params.Sample(trial)
	if err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(o.EntriesDir, o.Target)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			err = multierr.Append(err, rmErr)
			ev = nil
		}
	}()

	if _, err := cfg.WriteFile(ws.Root); err != nil {
		return nil, err
	}

	logger := o.logger().With(fmt.Sprintf("T%d", trial.Number))
	tcfg := o.Tournament
	tcfg.WorkDir = ws.Root
	opts := []tournament.Option{tournament.WithLogger(logger)}
	if o.Executor != nil {
		opts = append(opts, tournament.WithExecutor(o.Executor))
	}
	if len(observers) > 0 {
		opts = append(opts, tournament.WithObserver(fanOut(observers)))
	}

	stats, err := tournament.New(tcfg, opts...).Run(ctx, ws.EntriesDir())
	if err != nil {
		return nil, err
	}

	ev = &Evaluation{Params: cfg, Stats: stats}
	if rec, ok := stats.Entry(o.Target.ID); ok {
		ev.Target = &rec
	}
	reducer := o.Reducer
	if reducer == nil {
		reducer = objective.Default{}
	}
	ev.Fitness, err = reducer.Reduce(objective.Input{Stats: stats, Target: ev.Target})
	if err != nil {
		return nil, fmt.Errorf("reduce fitness: %w", err)
	}
	return ev, nil
}

func (o *Objective) logger() *logx.Logger {
	if o.Logger == nil {
		return logx.Discard()
	}
	return o.Logger
}

type fanOut []tournament.Observer

func (f fanOut) MatchPlayed(iter, index int, m schedule.Match, p result.Parsed) {
	for _, o := range f {
		o.MatchPlayed(iter, index, m, p)
	}
}
