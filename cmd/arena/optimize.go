package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MJE43/daihinmin-arena/internal/objective"
	"github.com/MJE43/daihinmin-arena/internal/params"
	"github.com/MJE43/daihinmin-arena/internal/search"
	"github.com/MJE43/daihinmin-arena/internal/store"
)

func newOptimizeCmd(a *app) *cobra.Command {
	var tf tournamentFlags
	s := a.cfg.Search
	var (
		study      = s.Study
		storage    = s.Storage
		trials     = s.Trials
		parallel   = s.Parallel
		seed       = uint64(s.Seed)
		scriptPath = s.ObjectiveScript
	)

	cmd := &cobra.Command{
		Use:   "optimize <target>",
		Short: "Tune the target player's param.json against the entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.logger("OPT")

			tcfg, err := tf.config()
			if err != nil {
				return err
			}
			targetPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			target, err := search.NewTarget(targetPath)
			if err != nil {
				return err
			}

			var reducer objective.Reducer = objective.Default{}
			if scriptPath != "" {
				script, err := objective.LoadScript(scriptPath, logger.With("JS"))
				if err != nil {
					return err
				}
				reducer = script
			}

			if seed == 0 && !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}

			st, err := store.Open(ctx, storage)
			if err != nil {
				return err
			}
			defer st.Close()

			obj := &search.Objective{
				EntriesDir: tf.dir,
				Target:     target,
				Tournament: tcfg,
				Reducer:    reducer,
				Logger:     logger,
			}
			report, err := search.NewStudy(st, obj, logger).Run(ctx, search.StudyConfig{
				Name:     study,
				Seed:     seed,
				Trials:   trials,
				Parallel: parallel,
			})
			if report != nil {
				writeReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
	tf.register(cmd, a)
	fl := cmd.Flags()
	fl.StringVar(&study, "study", study, "study name; an existing study is resumed")
	fl.StringVar(&storage, "storage", storage, "SQLite database holding the studies")
	fl.IntVar(&trials, "trials", trials, "trials to add to the study")
	fl.IntVar(&parallel, "parallel", parallel, "trials run at the same time")
	fl.Uint64Var(&seed, "seed", seed, "sampler seed of a new study (default: time based)")
	fl.StringVar(&scriptPath, "objective-script", scriptPath, "JavaScript file defining fitness(stats)")
	return cmd
}

func writeReport(w io.Writer, r *search.Report) {
	fmt.Fprintf(w, "study %s (seed %d, resumed=%t): %d complete, %d failed\n",
		r.Study.Name, r.Study.Seed, r.Resumed, r.Completed, r.Failed)
	if r.Summary != nil && r.Summary.Complete > 0 {
		fmt.Fprintf(w, "fitness over %d complete trials: mean=%.3f median=%.3f stddev=%.3f min=%.3f max=%.3f\n",
			r.Summary.Complete, r.Summary.Mean, r.Summary.Median, r.Summary.StdDev, r.Summary.Min, r.Summary.Max)
	}
	if r.Best == nil {
		return
	}
	fmt.Fprintf(w, "best trial #%d fitness=%s\n", r.Best.Number, r.Best.Fitness)
	for _, name := range params.Names() {
		fmt.Fprintf(w, "  %-9s %d\n", name, r.Best.Params[name])
	}
}
