package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MJE43/daihinmin-arena/internal/schedule"
	"github.com/MJE43/daihinmin-arena/internal/tournament"
)

// tournamentFlags are shared by roundrobin and optimize.
type tournamentFlags struct {
	dir          string
	controller   string
	interpreter  string
	padding      int
	iterations   int
	seating      string
	matchTimeout time.Duration
}

func (f *tournamentFlags) register(cmd *cobra.Command, a *app) {
	t := a.cfg.Tournament
	fl := cmd.Flags()
	fl.StringVar(&f.dir, "dir", t.EntriesDir, "directory of entries (one file per player)")
	fl.StringVar(&f.controller, "controller", t.Controller, "match controller script")
	fl.StringVar(&f.interpreter, "interpreter", t.Interpreter, `command that runs the controller, e.g. "python3"`)
	fl.IntVarP(&f.padding, "padding", "p", t.Padding, "copies of each entry in the seating pool")
	fl.IntVarP(&f.iterations, "iter", "n", t.Iterations, "times the whole schedule is replayed")
	fl.StringVar(&f.seating, "seating", t.Seating, "ordered (every seat permutation) or unordered")
	fl.DurationVar(&f.matchTimeout, "match-timeout", t.MatchTimeout, "kill a match after this long (0 disables)")
}

func (f *tournamentFlags) config() (tournament.Config, error) {
	seating, err := schedule.ParseSeating(f.seating)
	if err != nil {
		return tournament.Config{}, err
	}
	return tournament.Config{
		Controller:   f.controller,
		Interpreter:  strings.Fields(f.interpreter),
		Padding:      f.padding,
		Iterations:   f.iterations,
		Seating:      seating,
		MatchTimeout: f.matchTimeout,
	}, nil
}
