// Package tournament plays a full round robin over a directory of entries.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MJE43/daihinmin-arena/internal/entry"
	"github.com/MJE43/daihinmin-arena/internal/logx"
	"github.com/MJE43/daihinmin-arena/internal/match"
	"github.com/MJE43/daihinmin-arena/internal/result"
	"github.com/MJE43/daihinmin-arena/internal/schedule"
	"github.com/MJE43/daihinmin-arena/internal/tally"
)

var (
	ErrControllerNotFound = errors.New("controller not found")
	ErrNotEnoughEntries   = errors.New("fewer than 4 entries after padding")
)

// Config is how a run is scheduled and executed.
type Config struct {
	Controller   string
	Interpreter  []string
	Padding      int
	Iterations   int
	Seating      schedule.Seating
	MatchTimeout time.Duration
	// WorkDir is the controller's working directory; "" inherits ours.
	WorkDir string
	// FirstSeed is the seed of the first match of the run.
	FirstSeed uint64
}

// Observer is told about every match after it has been aggregated.
type Observer interface {
	MatchPlayed(iter, index int, m schedule.Match, p result.Parsed)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(iter, index int, m schedule.Match, p result.Parsed)

func (f ObserverFunc) MatchPlayed(iter, index int, m schedule.Match, p result.Parsed) {
	f(iter, index, m, p)
}

// Engine wires catalog, scheduler, runner, parser and tally together.
type Engine struct {
	cfg      Config
	exec     match.Executor
	logger   *logx.Logger
	observer Observer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithExecutor replaces the process runner, mainly for tests.
func WithExecutor(x match.Executor) Option { return func(e *Engine) { e.exec = x } }

// WithLogger sets the progress logger.
func WithLogger(l *logx.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithObserver registers a per-match observer.
func WithObserver(o Observer) Option { return func(e *Engine) { e.observer = o } }

// New creates an engine. Without WithExecutor it runs the controller as a
// child process in cfg.WorkDir with cfg.MatchTimeout per match.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, logger: logx.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	if e.exec == nil {
		e.exec = match.NewRunner(cfg.WorkDir, cfg.MatchTimeout)
	}
	return e
}

// Run plays every scheduled match of every iteration over the entries in dir
// and returns the totals. Only directory, controller and entry-count problems
// are errors; broken matches are logged and counted as failed.
func (e *Engine) Run(ctx context.Context, dir string) (*tally.Stats, error) {
	controller, err := e.resolveController()
	if err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve entries dir: %w", err)
	}
	catalog, err := entry.Scan(absDir)
	if err != nil {
		return nil, err
	}
	stats := tally.New()
	for _, en := range catalog.Entries() {
		e.logger.Debugf("entry id=%s name=%s", en.ID, en.Name())
		stats.Label(en.ID, en.Name())
	}

	plan, err := schedule.NewPlan(catalog.IDs(), e.cfg.Padding, e.cfg.Iterations, e.cfg.Seating)
	if err != nil {
		return nil, err
	}
	if plan.PerIteration() == 0 {
		return nil, fmt.Errorf("%w: %d distinct entries, padding %d", ErrNotEnoughEntries, catalog.Len(), e.cfg.Padding)
	}
	e.logger.Infof("scheduled entries=%d padding=%d matches_per_iter=%s iterations=%d total=%s",
		catalog.Len(), e.cfg.Padding, humanize.Comma(int64(plan.PerIteration())),
		plan.Iterations, humanize.Comma(int64(plan.Len())))

	seeds := schedule.NewSeedCounter(e.cfg.FirstSeed)
	err = plan.Each(seeds, func(iter, index int, m schedule.Match) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if index == 0 {
			e.logger.Infof("[%d / %d]", iter, plan.Iterations)
		}

		var paths [schedule.Seats]string
		var names [schedule.Seats]string
		for seat, id := range m.Seats {
			en, _ := catalog.Get(id)
			paths[seat] = en.Path
			names[seat] = en.Name()
		}
		e.logger.Debugf("\t[%d / %d] seed=%d %v", index, plan.PerIteration(), m.Seed, names)

		inv := match.NewInvocation(controller, e.cfg.Interpreter, paths, m.Seed)
		out, err := e.exec.Run(ctx, inv)
		if err != nil {
			// the controller could not even be started
			return fmt.Errorf("%w: %v", ErrControllerNotFound, err)
		}

		parsed := result.Parse(out, result.Diagnostics{Command: inv.String(), Seed: m.Seed})
		if !parsed.Ok() {
			e.logger.Warnf("match_failed seed=%d err=%q exit=%d cmd=%s stderr=%q",
				m.Seed, parsed.Err, parsed.Diagnostics.ExitCode, parsed.Diagnostics.Command, parsed.Diagnostics.Stderr)
		}
		stats.Add(m, parsed)
		if e.observer != nil {
			e.observer.MatchPlayed(iter, index, m, parsed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Infof("finished matches=%s failed=%s stock=%d max_cuts=%d",
		humanize.Comma(int64(stats.Matches)), humanize.Comma(int64(stats.Failed)), stats.Stock, stats.MaxCuts)
	return stats, nil
}

func (e *Engine) resolveController() (string, error) {
	if e.cfg.Controller == "" {
		return "", fmt.Errorf("%w: no controller configured", ErrControllerNotFound)
	}
	abs, err := filepath.Abs(e.cfg.Controller)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrControllerNotFound, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrControllerNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrControllerNotFound, abs)
	}
	return abs, nil
}
