package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/daihinmin-arena/internal/entry"
	"github.com/MJE43/daihinmin-arena/internal/logx"
	"github.com/MJE43/daihinmin-arena/internal/params"
	"github.com/MJE43/daihinmin-arena/internal/sampler"
	"github.com/MJE43/daihinmin-arena/internal/store"
)

var (
	ErrInvalidTrials = errors.New("trials must be >= 1")
	ErrTargetChanged = errors.New("stored target no longer matches its content id")
)

// StudyConfig selects the study and how many trials to add to it.
type StudyConfig struct {
	// Name of the study; empty creates a fresh uniquely named one.
	Name     string
	Seed     uint64
	Trials   int
	Parallel int
}

// Report summarizes a study after a run.
type Report struct {
	Study     *store.Study
	Resumed   bool
	Completed int
	Failed    int
	Best      *store.Trial
	Summary   *store.FitnessSummary
}

// Study runs trials of an objective and records them.
type Study struct {
	store  *store.Store
	obj    *Objective
	logger *logx.Logger
}

// NewStudy binds an objective to a store.
func NewStudy(st *store.Store, obj *Objective, logger *logx.Logger) *Study {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Study{store: st, obj: obj, logger: logger}
}

// Run adds cfg.Trials trials to the study, at most cfg.Parallel at a time.
// Trials that fail are recorded as failed and do not stop the study; only
// storage errors and cancellation do.
func (s *Study) Run(ctx context.Context, cfg StudyConfig) (*Report, error) {
	if cfg.Trials < 1 {
		return nil, ErrInvalidTrials
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Name == "" {
		cfg.Name = "study-" + uuid.NewString()[:8]
	}

	study, created, err := s.store.OpenStudy(ctx, cfg.Name, cfg.Seed, s.obj.Target.ID, s.obj.Target.Path)
	if err != nil {
		return nil, err
	}
	obj := *s.obj
	if !created {
		if obj.Target, err = s.resumeTarget(study); err != nil {
			return nil, err
		}
	}

	start, err := s.store.NextTrialNumber(ctx, study.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("study=%s resumed=%t seed=%d target=%s first_trial=%d trials=%s parallel=%d",
		study.Name, !created, study.Seed, study.TargetID, start, humanize.Comma(int64(cfg.Trials)), cfg.Parallel)

	smp := sampler.New(study.Seed)
	report := &Report{Study: study, Resumed: !created}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i := 0; i < cfg.Trials; i++ {
		if gctx.Err() != nil {
			break
		}
		number := start + i
		g.Go(func() error {
			ok, err := s.runTrial(gctx, &obj, study, NewTrial(smp, number))
			if err != nil {
				return err
			}
			mu.Lock()
			if ok {
				report.Completed++
			} else {
				report.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	if report.Best, err = s.store.BestTrial(ctx, study.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return report, err
	}
	if report.Summary, err = s.store.Summary(ctx, study.ID); err != nil {
		return report, err
	}
	if report.Best != nil {
		s.logger.Infof("best trial=%d fitness=%s", report.Best.Number, report.Best.Fitness)
	}
	return report, nil
}

// resumeTarget reuses the stored target, checking its file still hashes to
// the stored id.
func (s *Study) resumeTarget(study *store.Study) (entry.Entry, error) {
	if study.TargetID == s.obj.Target.ID {
		return s.obj.Target, nil
	}
	s.logger.Warnf("study=%s keeps its stored target %s, ignoring %s", study.Name, study.TargetID, s.obj.Target.ID)
	id, err := entry.HashFile(study.TargetPath)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("resume target: %w", err)
	}
	if id != study.TargetID {
		return entry.Entry{}, fmt.Errorf("%w: %s", ErrTargetChanged, study.TargetPath)
	}
	return entry.Entry{ID: id, Path: study.TargetPath}, nil
}

// runTrial evaluates one trial and stores its outcome. It reports whether
// the trial completed; the error is reserved for storage failures.
func (s *Study) runTrial(ctx context.Context, obj *Objective, study *store.Study, trial *Trial) (bool, error) {
	cfg, err := params.Sample(trial)
	if err != nil {
		return false, err
	}
	rec, err := s.store.CreateTrial(ctx, study.ID, trial.Number, cfg.Map())
	if err != nil {
		return false, err
	}

	// a cancelled study still records how its running trials ended
	wctx := context.WithoutCancel(ctx)

	recorder := store.NewMatchRecorder(wctx, s.store, rec.ID, 0)
	ev, evalErr := obj.Evaluate(ctx, trial, recorder)
	evalErr = multierr.Append(evalErr, recorder.Flush())

	if evalErr != nil {
		s.logger.Warnf("trial=%d failed: %v", trial.Number, evalErr)
		return false, s.store.FailTrial(wctx, rec.ID, evalErr)
	}

	s.logger.Infof("trial=%d fitness=%s stock=%d max_cuts=%d matches=%s failed=%d",
		trial.Number, ev.Fitness, ev.Stats.Stock, ev.Stats.MaxCuts,
		humanize.Comma(int64(ev.Stats.Matches)), ev.Stats.Failed)
	err = s.store.CompleteTrial(wctx, rec.ID, store.TrialResult{
		Fitness:  ev.Fitness,
		Stats:    ev.Stats,
		TargetID: obj.Target.ID,
	})
	return err == nil, err
}
