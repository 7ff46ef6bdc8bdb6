package refresh

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/serpmon/serpmon/async"
	"github.com/serpmon/serpmon/errors"
	"github.com/serpmon/serpmon/lists"
	"github.com/serpmon/serpmon/quota"
)

// Fetcher retrieves fresh metrics for a list's queries.
// Implementations own their own timeout and retry policy.
type Fetcher interface {
	Fetch(ctx context.Context, listID int64, queries []string) error
}

// Handler executes "list.refresh" jobs. One refresh consumes one quota
// unit per query on the list, checked and decremented atomically before
// any fetch work starts: an account without enough remaining quota does
// no work at all.
type Handler struct {
	lists   *lists.Store
	ledger  *quota.Ledger
	fetcher Fetcher
	logger  *zap.SugaredLogger
}

// NewHandler creates a refresh job handler
func NewHandler(listStore *lists.Store, ledger *quota.Ledger, fetcher Fetcher, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		lists:   listStore,
		ledger:  ledger,
		fetcher: fetcher,
		logger:  logger.Named("refresh"),
	}
}

// Name implements async.JobHandler
func (h *Handler) Name() string {
	return HandlerName
}

// Execute implements async.JobHandler
func (h *Handler) Execute(ctx context.Context, job *async.Job) error {
	var p Payload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return errors.Wrapf(err, "malformed refresh payload for job %s", job.ID)
	}

	queries, err := h.lists.Queries(p.ListID)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		h.logger.Infow("List has no queries, nothing to refresh",
			"list_id", p.ListID,
			"job_id", job.ID)
		return nil
	}

	remaining, err := h.ledger.Decrement(p.AccountID, len(queries))
	if err != nil {
		return errors.Wrapf(err, "refresh of list %d blocked", p.ListID)
	}

	h.logger.Infow("Refreshing list",
		"list_id", p.ListID,
		"account_id", p.AccountID,
		"queries", len(queries),
		"quota_remaining", remaining)

	if err := h.fetcher.Fetch(ctx, p.ListID, queries); err != nil {
		return errors.Wrapf(err, "failed to refresh list %d", p.ListID)
	}

	return nil
}
