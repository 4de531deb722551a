package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/foodiepass/internal/apiclient"
	"github.com/vbonduro/foodiepass/internal/config"
	"github.com/vbonduro/foodiepass/internal/db"
	"github.com/vbonduro/foodiepass/internal/imaging"
	"github.com/vbonduro/foodiepass/internal/logging"
	"github.com/vbonduro/foodiepass/internal/metrics"
	"github.com/vbonduro/foodiepass/internal/service"
	"github.com/vbonduro/foodiepass/internal/store"
	"github.com/vbonduro/foodiepass/internal/survey"
)

// app holds everything a command needs, wired from one Config.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *apiclient.Client
	metrics *metrics.Metrics
	service *service.ScanService
	// surveys is nil when no ledger is configured.
	surveys *store.SurveyStore

	closers []func()
}

func newApp(cfg *config.Config) (_ *app, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, closers: []func(){cleanup}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var ledger survey.Ledger
	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open survey ledger: %w", err)
		}
		a.closers = append(a.closers, func() { closeDB(database, logger) })
		a.surveys = store.NewSurveyStore(database)
		ledger = a.surveys
	}

	a.client, err = apiclient.NewClient(cfg.APIURL, logger)
	if err != nil {
		return nil, err
	}

	normalizer, err := imaging.New(cfg.ImageStrategy)
	if err != nil {
		return nil, err
	}

	a.metrics = metrics.New()
	a.service = service.NewScanService(a.client, normalizer, ledger, a.metrics, logger, service.Options{
		ScanTimeout:    cfg.ScanTimeout,
		CatalogTimeout: cfg.CatalogTimeout,
		SurveyDelay:    cfg.SurveyDelay,
		SurveyAck:      cfg.SurveyAck,
		Defaults: service.Selection{
			Language: cfg.DefaultLanguage,
			Currency: cfg.DefaultCurrency,
		},
	})
	a.closers = append(a.closers, a.service.Close)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeDB(database *sql.DB, logger *slog.Logger) {
	if err := database.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}
