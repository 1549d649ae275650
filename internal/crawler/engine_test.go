package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adsight/adstxt-crawler/internal/clock/system"
	"github.com/adsight/adstxt-crawler/internal/publisher/memory"
	fssink "github.com/adsight/adstxt-crawler/internal/sink/fs"
)

// resolverFunc adapts a function to the DomainResolver interface.
type resolverFunc func(ctx context.Context, domain string) Result

func (f resolverFunc) Resolve(ctx context.Context, domain string) Result {
	return f(ctx, domain)
}

// memorySink collects stored files, optionally failing every write.
type memorySink struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  error
}

func newMemorySink() *memorySink {
	return &memorySink{files: map[string][]byte{}}
}

func (s *memorySink) Store(_ context.Context, domain string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.files[domain] = append([]byte(nil), content...)
	return "mem://" + domain, nil
}

// memoryLedger collects recorded rows.
type memoryLedger struct {
	mu   sync.Mutex
	rows []LedgerRow
}

func (l *memoryLedger) RecordResult(_ context.Context, row LedgerRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
	return nil
}

func newTestEngine(t *testing.T, cfg EngineConfig, resolver DomainResolver, sink Sink, pub Publisher, ledger Ledger) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, resolver, sink, pub, ledger, nil, system.New(), nil, nil, nil)
	require.NoError(t, err)
	return engine
}

func TestEngineStoresFoundAndSkipsMissing(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	sink, err := fssink.New(fssink.Config{OutDir: outDir}, nil)
	require.NoError(t, err)

	resolver := resolverFunc(func(_ context.Context, domain string) Result {
		if domain == "a.com" {
			return Result{Domain: domain, Status: StatusFound, Body: "a=1"}
		}
		return Result{Domain: domain, Status: StatusNotFound}
	})

	pub := memory.New()
	ledger := &memoryLedger{}
	engine := newTestEngine(t, EngineConfig{ChunkSize: 50, Topic: "found-files"}, resolver, sink, pub, ledger)

	summary, err := engine.Run(context.Background(), []string{"a.com", "b.com"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 1, summary.NotFound)
	assert.Zero(t, summary.Failed)

	content, err := os.ReadFile(filepath.Join(outDir, "a.com"))
	require.NoError(t, err)
	assert.Equal(t, "a=1", string(content))

	_, err = os.Stat(filepath.Join(outDir, "b.com"))
	assert.True(t, os.IsNotExist(err), "missing domains leave no file behind")

	require.Len(t, pub.Messages(), 1)
	assert.Equal(t, "found-files", pub.Messages()[0].Topic)

	assert.Len(t, ledger.rows, 2, "ledger records every resolved domain")
}

func TestEngineChunkBarrierBoundsConcurrency(t *testing.T) {
	t.Parallel()

	const chunkSize = 3
	var mu sync.Mutex
	inFlight, peak := 0, 0

	resolver := resolverFunc(func(_ context.Context, domain string) Result {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return Result{Domain: domain, Status: StatusNotFound}
	})

	engine := newTestEngine(t, EngineConfig{ChunkSize: chunkSize}, resolver, newMemorySink(), nil, nil)

	domains := make([]string, 10)
	for i := range domains {
		domains[i] = fmt.Sprintf("d%d.com", i)
	}
	summary, err := engine.Run(context.Background(), domains)
	require.NoError(t, err)

	assert.Equal(t, len(domains), summary.Processed)
	assert.LessOrEqual(t, peak, chunkSize, "no more than chunk_size tasks in flight")
	assert.Positive(t, peak)
}

func TestEngineTaskPanicIsFatal(t *testing.T) {
	t.Parallel()

	resolver := resolverFunc(func(_ context.Context, domain string) Result {
		if domain == "bad.com" {
			panic("task infrastructure broke")
		}
		return Result{Domain: domain, Status: StatusNotFound}
	})

	engine := newTestEngine(t, EngineConfig{ChunkSize: 2}, resolver, newMemorySink(), nil, nil)

	_, err := engine.Run(context.Background(), []string{"ok.com", "bad.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.com")
}

func TestEnginePerDomainFailuresDoNotAbort(t *testing.T) {
	t.Parallel()

	t.Run("FetchError", func(t *testing.T) {
		t.Parallel()
		resolver := resolverFunc(func(_ context.Context, domain string) Result {
			return Result{Domain: domain, Status: StatusFailed, Err: errors.New("connection reset")}
		})
		engine := newTestEngine(t, EngineConfig{ChunkSize: 2}, resolver, newMemorySink(), nil, nil)

		summary, err := engine.Run(context.Background(), []string{"a.com", "b.com"})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Failed)
	})

	t.Run("DecodeErrorCountedSeparately", func(t *testing.T) {
		t.Parallel()
		resolver := resolverFunc(func(_ context.Context, domain string) Result {
			return Result{
				Domain: domain,
				Status: StatusFailed,
				Err:    fmt.Errorf("decode body: %w", ErrBodyDecode),
			}
		})
		engine := newTestEngine(t, EngineConfig{ChunkSize: 1}, resolver, newMemorySink(), nil, nil)

		summary, err := engine.Run(context.Background(), []string{"a.com"})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 1, summary.DecodeErrors)
	})

	t.Run("SinkError", func(t *testing.T) {
		t.Parallel()
		resolver := resolverFunc(func(_ context.Context, domain string) Result {
			return Result{Domain: domain, Status: StatusFound, Body: "a=1"}
		})
		sink := newMemorySink()
		sink.fail = errors.New("disk full")
		engine := newTestEngine(t, EngineConfig{ChunkSize: 1}, resolver, sink, nil, nil)

		summary, err := engine.Run(context.Background(), []string{"a.com"})
		require.NoError(t, err, "a failed write never aborts the batch")
		assert.Equal(t, 1, summary.Found)
	})
}

func TestEngineProgressSnapshot(t *testing.T) {
	t.Parallel()

	resolver := resolverFunc(func(_ context.Context, domain string) Result {
		return Result{Domain: domain, Status: StatusFound, Body: "x"}
	})
	engine := newTestEngine(t, EngineConfig{ChunkSize: 2}, resolver, newMemorySink(), nil, nil)

	_, err := engine.Run(context.Background(), []string{"a.com", "b.com", "c.com"})
	require.NoError(t, err)

	snap := engine.Progress()
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(3), snap.Processed)
	assert.Equal(t, int64(3), snap.Found)
	assert.False(t, snap.Running)
}

func TestEngineRejectsInvalidChunkSize(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(EngineConfig{ChunkSize: 0}, resolverFunc(func(context.Context, string) Result {
		return Result{}
	}), newMemorySink(), nil, nil, nil, system.New(), nil, nil, nil)
	assert.Error(t, err)
}
