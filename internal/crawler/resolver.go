package crawler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Resolver decides whether a domain publishes an ads.txt file. It tries the
// plain-HTTP root first, follows at most one validated redirect hop, and
// otherwise falls back to HTTPS, for a bound of two round trips per domain.
type Resolver struct {
	fetcher Fetcher
	logger  *zap.Logger
	metrics *Metrics
}

// NewResolver builds a Resolver. The fetcher is expected to already carry the
// per-fetch deadline (see TimeoutGuard).
func NewResolver(fetcher Fetcher, metrics *Metrics, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher: fetcher,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve runs the try-http, follow-or-fallback, try-https protocol for one
// domain and returns its terminal state.
func (r *Resolver) Resolve(ctx context.Context, domain string) Result {
	attempts := 0

	url := fmt.Sprintf("http://%s/ads.txt", domain)
	attempts++
	out, err := r.fetcher.Fetch(ctx, url)
	r.metrics.ObserveFetch("http", out, err)
	if err != nil {
		return Result{Domain: domain, Status: StatusFailed, Err: err, Attempts: attempts}
	}

	switch out.Kind {
	case OutcomeSuccess:
		return Result{Domain: domain, Status: StatusFound, Body: out.Body, Attempts: attempts}
	case OutcomeRedirect:
		if !validRedirect(domain, out.Location) {
			r.logger.Debug("redirect rejected",
				zap.String("domain", domain),
				zap.String("location", out.Location),
			)
			return Result{Domain: domain, Status: StatusNotFound, Attempts: attempts}
		}
		url = out.Location
	case OutcomeNotFound:
		url = fmt.Sprintf("https://%s/ads.txt", domain)
	}

	// Second and final round trip: either the validated redirect target or
	// the https fallback. Redirects are not chased any further.
	attempts++
	out, err = r.fetcher.Fetch(ctx, url)
	r.metrics.ObserveFetch("fallback", out, err)
	if err != nil {
		return Result{Domain: domain, Status: StatusFailed, Err: err, Attempts: attempts}
	}
	if out.Kind == OutcomeSuccess {
		return Result{Domain: domain, Status: StatusFound, Body: out.Body, Attempts: attempts}
	}
	return Result{Domain: domain, Status: StatusNotFound, Attempts: attempts}
}

// validRedirect is the narrow heuristic that keeps the crawler from storing
// unrelated content: the target must still reference the original domain and
// the ads.txt filename. It is string containment, not host matching.
func validRedirect(domain, location string) bool {
	return strings.Contains(location, domain) && strings.Contains(location, "ads.txt")
}
