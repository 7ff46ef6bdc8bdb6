package server

import (
	"net/http"
	"strconv"
)

// CreateListRequest is the POST /api/lists body
type CreateListRequest struct {
	Name    string   `json:"name"`
	Queries []string `json:"queries"`
}

// HandleLists handles requests to /api/lists
// POST: create a new monitored list
func (s *Server) HandleLists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CreateListRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	list, err := s.lists.Create(req.Name, req.Queries)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	s.logger.Infow("List created", "list_id", list.ID, "name", list.Name, "queries", len(list.Queries))
	writeJSON(w, http.StatusCreated, list)
}

// HandleList handles requests to /api/lists/{id} and /api/lists/{id}/schedule
func (s *Server) HandleList(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/lists/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing list ID")
		return
	}

	listID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid list ID")
		return
	}

	if len(parts) > 1 && parts[1] == "schedule" {
		s.handleListSchedule(w, r, listID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetList(w, r, listID)
	case http.MethodDelete:
		s.handleDeleteList(w, r, listID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request, listID int64) {
	list, err := s.lists.Get(listID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDeleteList removes a list; its schedule record and any live
// refresh job go with it.
func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request, listID int64) {
	if err := s.orchestrator.RemoveList(listID); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  http.StatusOK,
		"message": "List deleted",
	})
}
