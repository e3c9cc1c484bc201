package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	srv "github.com/N9work/CrewAi-Project/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadWithLogger(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
				cfg.Server = cfg.Server.Normalize()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, cfg, logger)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}
