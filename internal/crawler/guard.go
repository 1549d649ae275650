package crawler

import (
	"context"
	"errors"
	"net"
	"time"
)

// TimeoutGuard decorates a Fetcher with a per-fetch deadline. A fetch that
// loses the race against the deadline is canceled through its context and the
// domain is treated as absent, not as an error.
type TimeoutGuard struct {
	fetcher Fetcher
	timeout time.Duration
}

// NewTimeoutGuard wraps fetcher. A non-positive timeout disables the guard's
// deadline and only the transport's own limits apply.
func NewTimeoutGuard(fetcher Fetcher, timeout time.Duration) *TimeoutGuard {
	return &TimeoutGuard{fetcher: fetcher, timeout: timeout}
}

// Fetch runs the wrapped fetch under the deadline.
func (g *TimeoutGuard) Fetch(ctx context.Context, url string) (Outcome, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	out, err := g.fetcher.Fetch(ctx, url)
	if err != nil && isTimeout(err) {
		return Outcome{Kind: OutcomeNotFound}, nil
	}
	return out, err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
