// Package crawler implements the bounded-concurrency ads.txt discovery core:
// the per-domain fetch protocol, the per-fetch deadline, and the chunked batch
// scheduler that processes tens of thousands of domains without letting a
// single slow host stall the run.
package crawler

import (
	"context"
	"time"
)

// OutcomeKind tags the classification of a single fetch.
type OutcomeKind int

// Fetch classifications.
const (
	// OutcomeNotFound means no usable ads.txt at the URL: connect failure,
	// timeout, non-2xx status, wrong content type, or a 3xx without Location.
	OutcomeNotFound OutcomeKind = iota
	// OutcomeRedirect means the server answered 3xx with a Location header.
	OutcomeRedirect
	// OutcomeSuccess means a 2xx text/plain response with a UTF-8 body.
	OutcomeSuccess
)

// Outcome is the classified result of one fetch. Exactly one of Location or
// Body is meaningful, selected by Kind.
type Outcome struct {
	Kind     OutcomeKind
	Location string
	Body     string
}

// Fetcher issues one GET and classifies the raw response. Implementations
// perform no retries and follow no redirects.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Outcome, error)
}

// ResultStatus is the terminal state of one domain in a batch.
type ResultStatus string

// Per-domain terminal states.
const (
	StatusFound    ResultStatus = "found"
	StatusNotFound ResultStatus = "not_found"
	StatusFailed   ResultStatus = "failed"
)

// Result is what the resolver produced for a single domain. Body is set only
// when Status is StatusFound; Err only when Status is StatusFailed.
type Result struct {
	Domain   string
	Status   ResultStatus
	Body     string
	Err      error
	Duration time.Duration
	Attempts int
}

// Sink persists a discovered ads.txt file under a name derived from the
// domain and returns the stored URI. Storing the same domain twice overwrites.
type Sink interface {
	Store(ctx context.Context, domain string, content []byte) (string, error)
}

// Publisher pushes found-file events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Ledger records one row per resolved domain.
type Ledger interface {
	RecordResult(ctx context.Context, row LedgerRow) error
}

// LedgerRow is the persisted shape of a per-domain outcome.
type LedgerRow struct {
	RunID      string
	Domain     string
	Status     ResultStatus
	Bytes      int
	Hash       string
	URI        string
	DurationMs int64
	FetchedAt  time.Time
}

// Hasher computes digests for ledger rows and published events.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
