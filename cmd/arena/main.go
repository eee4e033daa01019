// Command arena runs Daihinmin round-robin tournaments between player
// programs and tunes a player's parameters against the field.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MJE43/daihinmin-arena/internal/config"
	"github.com/MJE43/daihinmin-arena/internal/logx"
)

// app is what every subcommand shares.
type app struct {
	cfg      *config.Config
	logLevel string
}

func (a *app) logger(channel string) *logx.Logger {
	return logx.New(os.Stderr, channel, logx.ParseLevel(a.logLevel))
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg, logLevel: cfg.LogLevel}

	rootCmd := &cobra.Command{
		Use:           "arena",
		Short:         "Daihinmin tournament runner and parameter tuner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", a.logLevel, "ERROR, WARN, INFO or DEBUG")

	rootCmd.AddCommand(
		newRoundRobinCmd(a),
		newHashCmd(),
		newOptimizeCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}
