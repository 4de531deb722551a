package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/foodiepass/internal/config"
	"github.com/vbonduro/foodiepass/internal/messages"
	"github.com/vbonduro/foodiepass/internal/service"
	"github.com/vbonduro/foodiepass/internal/termui"
	"github.com/vbonduro/foodiepass/internal/upload"
)

type scanFlags struct {
	language       string
	currency       string
	originLanguage string
	originCurrency string
	strategy       string
	noSurvey       bool
}

func scanCmd(load func() (*config.Config, error)) *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan FILE",
		Short: "Scan a menu photo and print the translated menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if flags.strategy != "" {
				cfg.ImageStrategy = flags.strategy
			}
			return runScan(cmd, cfg, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.language, "language", "l", "", "language to translate into (default from DEFAULT_LANGUAGE)")
	cmd.Flags().StringVar(&flags.currency, "currency", "", "currency to convert prices into (default from DEFAULT_CURRENCY)")
	cmd.Flags().StringVar(&flags.originLanguage, "origin-language", "", "language the menu is written in, if known")
	cmd.Flags().StringVar(&flags.originCurrency, "origin-currency", "", "currency the menu is priced in, if known")
	cmd.Flags().StringVar(&flags.strategy, "strategy", "", "image strategy: resize or passthrough")
	cmd.Flags().BoolVar(&flags.noSurvey, "no-survey", false, "skip the confidence question")
	return cmd
}

func runScan(cmd *cobra.Command, cfg *config.Config, flags scanFlags, path string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tag := messages.Tag(cfg.Locale)
	ui := termui.New(cmd.InOrStdin(), cmd.OutOrStdout(), tag)

	sel := a.service.Selection()
	if flags.language != "" {
		sel.Language = flags.language
	}
	if flags.currency != "" {
		sel.Currency = flags.currency
	}
	sel.OriginLanguage = flags.originLanguage
	sel.OriginCurrency = flags.originCurrency
	a.service.SetSelection(sel)

	f, err := upload.Open(path)
	if err != nil {
		return err
	}
	if err := a.service.SelectFile(f); err != nil {
		ui.Error(err)
		return errReported
	}

	fmt.Fprintln(cmd.OutOrStdout(), messages.Text(tag, messages.KeyAnalyzing))
	view, err := a.service.Scan(ctx)
	for err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		msg := ui.Error(err)
		if !msg.Retryable {
			return errReported
		}
		again, cerr := ui.Confirm(ctx, messages.Text(tag, messages.KeyRetry)+"?")
		if cerr != nil || !again {
			return errReported
		}
		view, err = a.service.Retry(ctx)
		if errors.Is(err, service.ErrNotRetryable) {
			return errReported
		}
	}

	ui.Result(view)

	session := a.service.Survey()
	if flags.noSurvey || session == nil {
		return nil
	}
	err = ui.RunSurvey(ctx, session)
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
