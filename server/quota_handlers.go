package server

import (
	"fmt"
	"net/http"
)

// HandleQuotaReset handles PUT /api/quota/reset: rewrites every eligible
// account's remaining-query counter to the configured monthly limit.
func (s *Server) HandleQuotaReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := s.cfg.Quota.MonthlyQueryLimit
	reset, err := s.ledger.ResetAll(limit)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	s.logger.Infow("Quota counters reset", "limit", limit, "accounts", reset)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  http.StatusOK,
		"message": fmt.Sprintf("Reset %d quota counters to %d", reset, limit),
	})
}

// HandleSchedulerJobs handles GET /api/scheduler/jobs: lists all durable
// scheduler registrations for operator inspection.
func (s *Server) HandleSchedulerJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	regs, err := s.scheduler.List()
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  regs,
		"count": len(regs),
	})
}
