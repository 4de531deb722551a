package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/vbonduro/foodiepass/internal/config"
	"github.com/vbonduro/foodiepass/internal/messages"
	"github.com/vbonduro/foodiepass/internal/termui"
)

var errNoLedger = errors.New("no survey ledger configured (set DB_PATH or db_path)")

// surveysCmd prints the answers this client has recorded, newest first.
func surveysCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "surveys",
		Short: "List the confidence answers recorded on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.surveys == nil {
				return errNoLedger
			}
			records, err := a.surveys.List(cmd.Context())
			if err != nil {
				return err
			}
			termui.New(cmd.InOrStdin(), cmd.OutOrStdout(), messages.Tag(cfg.Locale)).Answers(records)
			return nil
		},
	}
}
