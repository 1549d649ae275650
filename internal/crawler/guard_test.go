package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutGuardDeadlineWins(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("too late"))
	}))
	defer srv.Close()

	guard := NewTimeoutGuard(NewHTTPFetcher(FetcherConfig{}, nil), 10*time.Millisecond)
	out, err := guard.Fetch(context.Background(), srv.URL)
	require.NoError(t, err, "a timed-out domain is absent, not an error")
	assert.Equal(t, OutcomeNotFound, out.Kind)
}

func TestTimeoutGuardFetchWins(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("a=1"))
	}))
	defer srv.Close()

	guard := NewTimeoutGuard(NewHTTPFetcher(FetcherConfig{}, nil), time.Second)
	out, err := guard.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, "a=1", out.Body)
}

func TestTimeoutGuardPassesThroughErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	guard := NewTimeoutGuard(fetcherFunc(func(context.Context, string) (Outcome, error) {
		return Outcome{}, boom
	}), time.Second)

	_, err := guard.Fetch(context.Background(), "http://example.com/ads.txt")
	assert.ErrorIs(t, err, boom)
}

func TestTimeoutGuardDisabledWithoutTimeout(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	guard := NewTimeoutGuard(fetcherFunc(func(ctx context.Context, _ string) (Outcome, error) {
		_, hasDeadline = ctx.Deadline()
		return Outcome{Kind: OutcomeSuccess, Body: "a=1"}, nil
	}), 0)

	out, err := guard.Fetch(context.Background(), "http://a.com/ads.txt")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.False(t, hasDeadline, "a zero timeout leaves the fetch without a deadline")
}

// fetcherFunc adapts a function to the Fetcher interface for tests.
type fetcherFunc func(ctx context.Context, url string) (Outcome, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (Outcome, error) {
	return f(ctx, url)
}
