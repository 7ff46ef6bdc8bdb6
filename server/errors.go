package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/serpmon/serpmon/errors"
)

// writeDomainError maps domain errors onto HTTP status codes:
// validation failures are 422, missing resources 404, quota exhaustion
// 429, write races 409, everything else a logged 500.
func writeDomainError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	switch {
	case errors.IsInvalidRequestError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.IsNotFoundError(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.IsQuotaExceededError(err):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.IsConflictError(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Errorw("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
