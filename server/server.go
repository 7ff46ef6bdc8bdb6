// Package server exposes the serpmon HTTP API: schedule management for
// lists, the operator quota reset, and scheduler introspection.
// Authentication is handled upstream; the acting account is taken from
// the X-Account-ID header.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/serpmon/serpmon/config"
	"github.com/serpmon/serpmon/lists"
	"github.com/serpmon/serpmon/quota"
	"github.com/serpmon/serpmon/schedule"
	"github.com/serpmon/serpmon/scheduler"
)

// Server is the serpmon HTTP API server
type Server struct {
	cfg          *config.Config
	orchestrator *schedule.Orchestrator
	lists        *lists.Store
	ledger       *quota.Ledger
	scheduler    *scheduler.Scheduler
	logger       *zap.SugaredLogger
	httpServer   *http.Server
}

// New creates the API server over its collaborators
func New(cfg *config.Config, orchestrator *schedule.Orchestrator, listStore *lists.Store, ledger *quota.Ledger, sched *scheduler.Scheduler, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		lists:        listStore,
		ledger:       ledger,
		scheduler:    sched,
		logger:       logger.Named("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/lists", s.HandleLists)
	mux.HandleFunc("/api/lists/", s.HandleList)
	mux.HandleFunc("/api/quota/reset", s.HandleQuotaReset)
	mux.HandleFunc("/api/scheduler/jobs", s.HandleSchedulerJobs)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe starts serving; blocks until Shutdown or failure
func (s *Server) ListenAndServe() error {
	s.logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// actingAccount returns the account the request acts as.
// Auth is out of scope here; an upstream proxy sets the header.
func actingAccount(r *http.Request) string {
	if account := r.Header.Get("X-Account-ID"); account != "" {
		return account
	}
	return "system"
}
