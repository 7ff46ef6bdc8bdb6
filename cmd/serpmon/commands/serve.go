package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/serpmon/serpmon/async"
	"github.com/serpmon/serpmon/errors"
	"github.com/serpmon/serpmon/lists"
	"github.com/serpmon/serpmon/logger"
	"github.com/serpmon/serpmon/quota"
	"github.com/serpmon/serpmon/refresh"
	"github.com/serpmon/serpmon/schedule"
	"github.com/serpmon/serpmon/scheduler"
	"github.com/serpmon/serpmon/server"
)

// ServeCmd starts the serpmon service
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the API server, scheduler and refresh workers",
	RunE:    runServe,
}

var serveFetchURL string

func init() {
	ServeCmd.Flags().StringVar(&serveFetchURL, "fetch-url", "", "Metrics endpoint queried on refresh (overrides fetch.endpoint)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Logger

	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores and the quota ledger
	listStore := lists.NewStore(database)
	scheduleStore := schedule.NewStore(database)
	ledger := quota.NewLedger(database)

	fetchURL := serveFetchURL
	if fetchURL == "" {
		fetchURL = cfg.Fetch.Endpoint
	}
	if fetchURL == "" {
		return errors.New("no metrics endpoint configured: set fetch.endpoint or pass --fetch-url")
	}

	// Refresh pipeline: worker pool executing list.refresh jobs
	fetcher := refresh.NewHTTPFetcher(
		fetchURL,
		cfg.Fetch.RequestsPerMinute,
		time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second,
		log,
	)
	registry := async.NewHandlerRegistry()
	registry.Register(refresh.NewHandler(listStore, ledger, fetcher, log))

	pool := async.NewWorkerPool(ctx, database, async.WorkerPoolConfig{
		Workers:      cfg.Scheduler.Workers,
		PollInterval: time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second,
	}, registry, log)

	// Live scheduler reloading durable registrations on start
	sched, err := scheduler.New(database, pool.Queue(), cfg.Scheduler.Timezone, log)
	if err != nil {
		return err
	}

	orchestrator := schedule.NewOrchestrator(scheduleStore, listStore, sched, log)
	apiServer := server.New(cfg, orchestrator, listStore, ledger, sched, log)

	pool.Start()
	if err := sched.Start(); err != nil {
		pool.Stop()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		sched.Stop()
		pool.Stop()
		return errors.Wrap(err, "server failed")
	case sig := <-stop:
		log.Infow("Shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP shutdown incomplete", "error", err)
	}

	sched.Stop()
	pool.Stop()
	return nil
}
