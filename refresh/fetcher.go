package refresh

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/serpmon/serpmon/errors"
)

// HTTPFetcher fetches metrics from a search endpoint, one request per
// query, paced by a rate limiter so scheduled refreshes cannot hammer
// the upstream service.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewHTTPFetcher creates an HTTP metrics fetcher.
// requestsPerMinute caps the sustained outbound request rate.
func NewHTTPFetcher(baseURL string, requestsPerMinute int, timeout time.Duration, logger *zap.SugaredLogger) *HTTPFetcher {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
		logger:  logger.Named("fetcher"),
	}
}

// Fetch implements Fetcher. Per-query failures are logged and the
// remaining queries still run; an error is returned if any query failed.
func (f *HTTPFetcher) Fetch(ctx context.Context, listID int64, queries []string) error {
	failed := 0
	for _, q := range queries {
		if err := f.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter interrupted")
		}

		if err := f.fetchOne(ctx, q); err != nil {
			failed++
			f.logger.Warnw("Query fetch failed",
				"list_id", listID,
				"query", q,
				"error", err)
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d queries failed for list %d", failed, len(queries), listID)
	}
	return nil
}

func (f *HTTPFetcher) fetchOne(ctx context.Context, query string) error {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return errors.Wrapf(err, "invalid fetch base URL %q", f.baseURL)
	}
	values := u.Query()
	values.Set("query", query)
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	// Metric storage is handled upstream; drain so the connection is reused.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
