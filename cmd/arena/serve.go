package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/MJE43/daihinmin-arena/internal/api"
	"github.com/MJE43/daihinmin-arena/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	addr := a.cfg.Server.Addr
	storage := a.cfg.Search.Storage

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stored studies over a read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.logger("API")

			st, err := store.Open(ctx, storage)
			if err != nil {
				return err
			}
			defer st.Close()

			hs := api.NewHTTPServer(addr, api.NewServer(st, logger).Routes(), logger)
			if err := hs.Start(); err != nil {
				return err
			}
			logger.Infof("listening addr=%s storage=%s version=%s", hs.Addr(), storage, api.Version)

			select {
			case err := <-hs.Done():
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			logger.Infof("shutting down")
			return hs.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", addr, "listen address")
	cmd.Flags().StringVar(&storage, "storage", storage, "SQLite database holding the studies")
	return cmd
}
