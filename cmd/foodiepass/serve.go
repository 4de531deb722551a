package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/foodiepass/internal/config"
	"github.com/vbonduro/foodiepass/internal/messages"
	"github.com/vbonduro/foodiepass/internal/web"
	"github.com/vbonduro/foodiepass/internal/web/templates"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := web.NewServer(a.service, templates.FS, a.metrics.Handler(), messages.Tag(cfg.Locale), a.logger)
			return server.ListenAndServe(ctx, cfg.ListenAddr, cfg.ScanTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from LISTEN_ADDR)")
	return cmd
}
