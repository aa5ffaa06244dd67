package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vnexim/mavach/internal/adapters/customs/soap"
	"vnexim/mavach/internal/adapters/customs/web"
	"vnexim/mavach/internal/adapters/render"
	"vnexim/mavach/internal/adapters/sourcedb"
	"vnexim/mavach/internal/adapters/tracking"
	"vnexim/mavach/internal/application/processor"
	"vnexim/mavach/internal/application/retrieval"
	"vnexim/mavach/internal/application/scheduler"
	"vnexim/mavach/internal/infrastructure/asyncdb"
	"vnexim/mavach/internal/infrastructure/config"
	"vnexim/mavach/internal/infrastructure/files"
	"vnexim/mavach/internal/infrastructure/http/server"
	"vnexim/mavach/internal/infrastructure/logger"
	"vnexim/mavach/internal/infrastructure/telemetry"
)

// firstCycleLookback bounds how far back the first cycle scans for
// declarations when there is no previous watermark.
const firstCycleLookback = 24 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel := telemetry.New()
	stateDir := filepath.Dir(cfg.Service.TrackingDBPath)
	defer func() {
		if err := tel.Persist(filepath.Join(stateDir, "telemetry.json")); err != nil {
			log.Warn("telemetry snapshot not persisted", "error", err)
		}
	}()

	store, err := tracking.Open(cfg.Service.TrackingDBPath, log)
	if err != nil {
		return fmt.Errorf("open tracking store: %w", err)
	}
	defer store.Close()

	if cfg.Source.Server == "" {
		return fmt.Errorf("source database is not configured (ECUS_SERVER)")
	}
	source, err := sourcedb.Open(ctx, cfg.Source, log)
	if err != nil {
		return fmt.Errorf("connect source database: %w", err)
	}
	defer source.Close()

	for _, taxCode := range cfg.App.TaxCodes {
		name, err := source.GetCompanyName(ctx, taxCode)
		if err != nil || name == "" {
			log.Warn("company name lookup failed", "tax_code", taxCode, "error", err)
			continue
		}
		log.Info("monitoring declarations", "tax_code", taxCode, "company", name)
	}

	api := soap.NewClient(soap.Options{
		Endpoint:     cfg.Service.APIURL,
		Timeout:      cfg.Service.APITimeout,
		SessionReuse: cfg.Service.SessionReuse,
	}, log)
	defer api.Close()

	cache := web.NewSelectorCache(filepath.Join(stateDir, "selectors.json"))
	defer func() {
		if err := cache.Persist(); err != nil {
			log.Warn("selector cache not persisted", "error", err)
		}
	}()

	var primary retrieval.WebFetcher
	if cfg.Service.PrimaryWebURL != "" {
		primaryClient := web.NewClient(cfg.Service.PrimaryWebURL, cfg.Service.WebTimeout, cache, log)
		defer primaryClient.Close()
		primary = primaryClient
	}
	var backup retrieval.WebFetcher
	if cfg.Service.BackupWebURL != "" {
		backupClient := web.NewClient(cfg.Service.BackupWebURL, cfg.Service.WebTimeout, cache, log)
		defer backupClient.Close()
		backup = backupClient
	}

	orchestrator := retrieval.New(cfg.Service.RetrievalMethod, api, render.New(log),
		primary, backup, cfg.Service.MaxRetries, cfg.Service.RetryDelay, tel, log)

	manager := files.NewManager(cfg.App.OutputDirectory,
		files.NamerFor(cfg.Service.NamingFormat), nil, log)

	sched := scheduler.New(source, store, orchestrator, manager, processor.New(log),
		cfg.App.TaxCodes, cfg.App.PollingInterval, firstCycleLookback, cfg.App.OperationMode, tel, log)
	sched.Start()
	defer sched.Stop()

	pool := asyncdb.NewPool(2, log)
	defer pool.Shutdown(true)

	srv, err := server.New(server.Options{
		Addr:      cfg.HTTP.Address(),
		Version:   cfg.App.Version,
		Logger:    log,
		Workflow:  sched,
		Retriever: orchestrator,
		Tracking:  store,
		Source:    source,
		Output:    manager,
		Pool:      pool,
		Telemetry: tel,
	})
	if err != nil {
		return fmt.Errorf("create control server: %w", err)
	}

	log.Info("service ready",
		"mode", cfg.App.OperationMode,
		"method", cfg.Service.RetrievalMethod,
		"output", cfg.App.OutputDirectory,
		"control_port", cfg.HTTP.Port)
	return srv.Run(ctx)
}
