package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vbonduro/foodiepass/internal/config"
	"github.com/vbonduro/foodiepass/internal/messages"
	"github.com/vbonduro/foodiepass/internal/termui"
)

// catalogCmd lists one of the service's catalogs: "languages" or
// "currencies".
func catalogCmd(load func() (*config.Config, error), name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: "List the supported " + name,
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

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CatalogTimeout)
			defer cancel()

			ui := termui.New(cmd.InOrStdin(), cmd.OutOrStdout(), messages.Tag(cfg.Locale))
			names, err := fetchCatalog(ctx, a, name)
			if err != nil {
				a.logger.Warn("failed to load catalog", "catalog", name, "error", err)
				ui.Error(err)
				return errReported
			}
			ui.List(names)
			return nil
		},
	}
}

func fetchCatalog(ctx context.Context, a *app, name string) ([]string, error) {
	var names []string
	if name == "languages" {
		langs, err := a.client.Languages(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range langs {
			names = append(names, l.Name)
		}
		return names, nil
	}

	curs, err := a.client.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range curs {
		if c.Code != "" {
			names = append(names, c.Name+" ("+c.Code+")")
			continue
		}
		names = append(names, c.Name)
	}
	return names, nil
}
