package crawler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// progressLogEvery is how many processed domains separate progress log lines.
const progressLogEvery = 10000

// DomainResolver yields the terminal state for one domain.
type DomainResolver interface {
	Resolve(ctx context.Context, domain string) Result
}

// EngineConfig controls batch scheduling.
type EngineConfig struct {
	// ChunkSize is the number of domains resolved concurrently. The next
	// chunk never starts before every task of the current one finished, so
	// this is also the peak number of in-flight fetch sequences.
	ChunkSize int
	// Topic, when set together with a publisher, receives one event per
	// stored file.
	Topic string
}

// Summary aggregates a finished batch.
type Summary struct {
	RunID        string
	Total        int
	Processed    int
	Found        int
	NotFound     int
	Failed       int
	DecodeErrors int
	Elapsed      time.Duration
}

// ProgressSnapshot is the externally visible state of a running batch.
type ProgressSnapshot struct {
	RunID     string `json:"run_id"`
	Total     int64  `json:"total"`
	Processed int64  `json:"processed"`
	Found     int64  `json:"found"`
	Failed    int64  `json:"failed"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Running   bool   `json:"running"`
}

// Engine is the batch scheduler: it partitions the domain list into chunks,
// resolves every domain of a chunk concurrently, and only then moves on. The
// hard barrier between chunks bounds peak concurrency and open connections,
// and serializes all progress accounting.
type Engine struct {
	cfg       EngineConfig
	resolver  DomainResolver
	sink      Sink
	publisher Publisher
	ledger    Ledger
	hasher    Hasher
	clock     Clock
	ids       IDGenerator
	metrics   *Metrics
	logger    *zap.Logger

	runID     atomic.Value
	total     atomic.Int64
	processed atomic.Int64
	found     atomic.Int64
	failed    atomic.Int64
	startNano atomic.Int64
	running   atomic.Bool
}

// NewEngine constructs an Engine. Publisher, ledger, ids and metrics may be
// nil; sink, resolver and clock are required.
func NewEngine(
	cfg EngineConfig,
	resolver DomainResolver,
	sink Sink,
	publisher Publisher,
	ledger Ledger,
	hasher Hasher,
	clock Clock,
	ids IDGenerator,
	metrics *Metrics,
	logger *zap.Logger,
) (*Engine, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", cfg.ChunkSize)
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		resolver:  resolver,
		sink:      sink,
		publisher: publisher,
		ledger:    ledger,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// taskOutcome is what one per-domain goroutine leaves behind. fatal is set
// only when the task itself could not run to completion.
type taskOutcome struct {
	result      Result
	decodeError bool
	fatal       error
}

// Run crawls the full domain list and returns the batch summary. Per-domain
// failures are logged and counted but never abort the run; only an
// infrastructural task failure (a panic inside a task) is fatal.
func (e *Engine) Run(ctx context.Context, domains []string) (Summary, error) {
	runID := e.newRunID()
	start := e.clock.Now()
	summary := Summary{RunID: runID, Total: len(domains)}

	e.runID.Store(runID)
	e.total.Store(int64(len(domains)))
	e.processed.Store(0)
	e.found.Store(0)
	e.failed.Store(0)
	e.startNano.Store(start.UnixNano())
	e.running.Store(true)
	defer e.running.Store(false)

	e.logger.Info("start crawl",
		zap.String("run_id", runID),
		zap.Int("domains", len(domains)),
		zap.Int("chunk_size", e.cfg.ChunkSize),
	)

	for chunk := range slices.Chunk(domains, e.cfg.ChunkSize) {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = e.clock.Now().Sub(start)
			return summary, fmt.Errorf("crawl interrupted: %w", err)
		}

		outcomes := make([]taskOutcome, len(chunk))
		var wg sync.WaitGroup
		for i, domain := range chunk {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						outcomes[i] = taskOutcome{
							fatal: fmt.Errorf("task for %s panicked: %v", domain, rec),
						}
					}
				}()
				outcomes[i] = e.processDomain(ctx, runID, domain)
			}()
		}
		wg.Wait()

		// The barrier has passed; this goroutine is the only writer of the
		// progress counters from here on.
		for _, out := range outcomes {
			if out.fatal != nil {
				summary.Elapsed = e.clock.Now().Sub(start)
				return summary, out.fatal
			}
			summary.Processed++
			switch out.result.Status {
			case StatusFound:
				summary.Found++
			case StatusNotFound:
				summary.NotFound++
			case StatusFailed:
				summary.Failed++
			}
			if out.decodeError {
				summary.DecodeErrors++
			}
			if summary.Processed%progressLogEvery == 0 {
				e.logProgress(summary, e.clock.Now().Sub(start))
			}
		}
		e.processed.Store(int64(summary.Processed))
		e.found.Store(int64(summary.Found))
		e.failed.Store(int64(summary.Failed))
	}

	summary.Elapsed = e.clock.Now().Sub(start)
	e.logProgress(summary, summary.Elapsed)
	e.logger.Info("crawl done",
		zap.String("run_id", runID),
		zap.Int("found", summary.Found),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// Progress returns a snapshot of the running (or last finished) batch.
func (e *Engine) Progress() ProgressSnapshot {
	snap := ProgressSnapshot{
		Total:     e.total.Load(),
		Processed: e.processed.Load(),
		Found:     e.found.Load(),
		Failed:    e.failed.Load(),
		Running:   e.running.Load(),
	}
	if id, ok := e.runID.Load().(string); ok {
		snap.RunID = id
	}
	if startNano := e.startNano.Load(); startNano > 0 {
		snap.ElapsedMs = e.clock.Now().Sub(time.Unix(0, startNano)).Milliseconds()
	}
	return snap
}

func (e *Engine) processDomain(ctx context.Context, runID, domain string) taskOutcome {
	fetchedAt := e.clock.Now()
	res := e.resolver.Resolve(ctx, domain)
	res.Duration = e.clock.Now().Sub(fetchedAt)
	e.metrics.ObserveResult(res)

	out := taskOutcome{result: res}
	uri, hash := "", ""

	switch res.Status {
	case StatusFound:
		uri, hash = e.persist(ctx, runID, domain, res)
	case StatusFailed:
		if errors.Is(res.Err, ErrBodyDecode) {
			out.decodeError = true
			e.metrics.ObserveDecodeError()
			e.logger.Debug("body decode failed", zap.String("domain", domain), zap.Error(res.Err))
		} else {
			e.logger.Error("domain failed", zap.String("domain", domain), zap.Error(res.Err))
		}
	}

	e.record(ctx, runID, domain, res, uri, hash, fetchedAt)
	return out
}

// persist stores the discovered file and emits the optional event. Failures
// here are logged and discarded: one broken write never aborts the batch.
func (e *Engine) persist(ctx context.Context, runID, domain string, res Result) (uri, hash string) {
	content := []byte(res.Body)
	uri, err := e.sink.Store(ctx, domain, content)
	if err != nil {
		e.metrics.ObserveSinkError()
		e.logger.Error("store failed", zap.String("domain", domain), zap.Error(err))
		return "", ""
	}

	if e.hasher != nil {
		if hash, err = e.hasher.Hash(content); err != nil {
			e.logger.Warn("hash failed", zap.String("domain", domain), zap.Error(err))
		}
	}

	if e.publisher != nil && e.cfg.Topic != "" {
		payload := map[string]any{
			"run_id":    runID,
			"domain":    domain,
			"uri":       uri,
			"bytes":     len(content),
			"sha256":    hash,
			"timestamp": e.clock.Now().Format(time.RFC3339),
		}
		if _, err := e.publisher.Publish(ctx, e.cfg.Topic, payload); err != nil {
			e.logger.Warn("publish failed", zap.String("domain", domain), zap.Error(err))
		}
	}
	return uri, hash
}

func (e *Engine) record(
	ctx context.Context,
	runID, domain string,
	res Result,
	uri, hash string,
	fetchedAt time.Time,
) {
	if e.ledger == nil {
		return
	}
	row := LedgerRow{
		RunID:      runID,
		Domain:     domain,
		Status:     res.Status,
		Bytes:      len(res.Body),
		Hash:       hash,
		URI:        uri,
		DurationMs: res.Duration.Milliseconds(),
		FetchedAt:  fetchedAt,
	}
	if err := e.ledger.RecordResult(ctx, row); err != nil {
		e.logger.Warn("ledger record failed", zap.String("domain", domain), zap.Error(err))
	}
}

func (e *Engine) newRunID() string {
	if e.ids == nil {
		return ""
	}
	id, err := e.ids.NewID()
	if err != nil {
		e.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func (e *Engine) logProgress(summary Summary, elapsed time.Duration) {
	e.logger.Info("progress",
		zap.Int("current", summary.Processed),
		zap.Int("total", summary.Total),
		zap.Int("found", summary.Found),
		zap.Duration("elapsed", elapsed),
	)
}
