package server

import (
	"net/http"

	"github.com/serpmon/serpmon/errors"
	"github.com/serpmon/serpmon/schedule"
)

// handleListSchedule handles /api/lists/{id}/schedule
// POST: create or replace the list's refresh schedule
// GET: read the list's refresh schedule (null if none exists)
func (s *Server) handleListSchedule(w http.ResponseWriter, r *http.Request, listID int64) {
	switch r.Method {
	case http.MethodPost:
		s.handleSetSchedule(w, r, listID)
	case http.MethodGet:
		s.handleGetSchedule(w, r, listID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request, listID int64) {
	var spec schedule.Spec
	if err := readJSON(w, r, &spec); err != nil {
		return
	}

	account := actingAccount(r)
	s.logger.Infow("Set schedule request",
		"list_id", listID,
		"mode", spec.Mode,
		"account_id", account,
		"remote", r.RemoteAddr)

	if _, err := s.orchestrator.SetSchedule(listID, account, spec); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request, listID int64) {
	sched, err := s.orchestrator.GetSchedule(listID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			// Absent schedule is a normal state, not a client error
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}
