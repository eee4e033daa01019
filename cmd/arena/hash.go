package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MJE43/daihinmin-arena/internal/entry"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file|dir>...",
		Short: "Print the content id of files, or of every entry in a directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, arg := range args {
				info, err := os.Stat(arg)
				if err != nil {
					return err
				}
				if !info.IsDir() {
					id, err := entry.HashFile(arg)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s  %s\n", id, arg)
					continue
				}
				catalog, err := entry.Scan(arg)
				if err != nil {
					return err
				}
				for _, en := range catalog.Entries() {
					fmt.Fprintf(out, "%s  %s\n", en.ID, en.Path)
				}
			}
			return nil
		},
	}
}
