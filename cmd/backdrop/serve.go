package main

import (
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/Protocol-Lattice/backdrop/src/httpapi"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			st, err := buildStudio(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer closeStudio(ctx, st)

			logger.Info("backdrop serving", "provider", cfg.Provider, "max_in_flight", cfg.Limits.MaxInFlight, "ready", st.Ready(ctx))
			return httpapi.ListenAndServe(ctx, cfg.HTTP.Addr, httpapi.NewServer(st).Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
