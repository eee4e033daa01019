package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MJE43/daihinmin-arena/internal/tally"
	"github.com/MJE43/daihinmin-arena/internal/tournament"
)

func newRoundRobinCmd(a *app) *cobra.Command {
	var tf tournamentFlags
	var asJSON bool
	var firstSeed uint64

	cmd := &cobra.Command{
		Use:   "roundrobin",
		Short: "Play every entry against every other and print the totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := tf.config()
			if err != nil {
				return err
			}
			cfg.FirstSeed = firstSeed

			logger := a.logger("RR")
			stats, err := tournament.New(cfg, tournament.WithLogger(logger)).Run(cmd.Context(), tf.dir)
			if err != nil {
				return err
			}

			report := newStandings(stats)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return report.write(cmd.OutOrStdout())
		},
	}
	tf.register(cmd, a)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the totals as JSON")
	cmd.Flags().Uint64Var(&firstSeed, "first-seed", 0, "seed of the first match")
	return cmd
}

// standings are a run's totals ranked by score.
type standings struct {
	Entries []tally.EntryStats `json:"entries"`
	Stock   int                `json:"stock"`
	MaxCuts int                `json:"max_cuts"`
	Matches int                `json:"matches"`
	Failed  int                `json:"failed"`
}

func newStandings(stats *tally.Stats) standings {
	s := standings{
		Entries: stats.Entries(),
		Stock:   stats.Stock,
		MaxCuts: stats.MaxCuts,
		Matches: stats.Matches,
		Failed:  stats.Failed,
	}
	sort.SliceStable(s.Entries, func(i, j int) bool { return s.Entries[i].Score > s.Entries[j].Score })
	return s
}

func (s standings) write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tNAME\tSCORE\tREMAIN\tERR\tSEATS")
	for i, e := range s.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n", i+1, shortID(e.ID), e.Name,
			humanize.Comma(int64(e.Score)), humanize.Comma(int64(e.Remain)), e.Err, humanize.Comma(int64(e.Appearances)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nstock=%s max_cuts=%s matches=%s failed=%s\n",
		humanize.Comma(int64(s.Stock)), humanize.Comma(int64(s.MaxCuts)),
		humanize.Comma(int64(s.Matches)), humanize.Comma(int64(s.Failed)))
	return err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
