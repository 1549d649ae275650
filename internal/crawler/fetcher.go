package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// UserAgent is the fixed, version-stamped identity sent with every fetch.
const UserAgent = "ads.txt crawler/1.0.2; +github.com/adsight/adstxt-crawler"

// ErrBodyDecode marks a 2xx response whose body was not valid UTF-8. These are
// common symptoms of misbehaving servers and are counted but never fatal.
var ErrBodyDecode = errors.New("body is not valid UTF-8")

// redirectStatuses are the only statuses classified as OutcomeRedirect.
var redirectStatuses = map[int]struct{}{
	http.StatusMovedPermanently:  {},
	http.StatusFound:             {},
	http.StatusTemporaryRedirect: {},
	http.StatusPermanentRedirect: {},
}

// HTTPFetcher classifies a single GET into NotFound, Redirect or Success.
// The underlying transport keeps no idle connections: a batch touches a huge
// set of distinct hosts, so connection reuse would only leak sockets.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	// DialTimeout bounds connection establishment. Zero means 10s.
	DialTimeout time.Duration
	// MaxBodyBytes caps how much of a 2xx body is read. Zero means 1 MiB.
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 1 << 20

// NewHTTPFetcher builds a fetcher with a pool-free transport that never
// follows redirects; the resolver needs the raw 3xx and its Location header.
func NewHTTPFetcher(cfg FetcherConfig, logger *zap.Logger) *HTTPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: dialTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   dialTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
		MaxIdleConnsPerHost:   -1,
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &HTTPFetcher{
		client:   client,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Fetch issues one GET and classifies the response. A transport-level connect
// failure is not an error: the domain simply has no reachable server there.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := f.client.Do(req)
	if err != nil {
		if isConnectFailure(err) {
			f.logger.Debug("unreachable", zap.String("url", url), zap.Error(err))
			return Outcome{Kind: OutcomeNotFound}, nil
		}
		return Outcome{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", zap.String("url", url), zap.Error(cerr))
		}
	}()

	return f.classify(url, resp)
}

func (f *HTTPFetcher) classify(url string, resp *http.Response) (Outcome, error) {
	if _, ok := redirectStatuses[resp.StatusCode]; ok {
		location := resp.Header.Get("Location")
		if location == "" {
			return Outcome{Kind: OutcomeNotFound}, nil
		}
		return Outcome{Kind: OutcomeRedirect, Location: location}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{Kind: OutcomeNotFound}, nil
	}

	if ctype := resp.Header.Get("Content-Type"); ctype != "" &&
		!strings.HasPrefix(ctype, "text/plain") {
		return Outcome{Kind: OutcomeNotFound}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Outcome{}, fmt.Errorf("read body of %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBytes {
		return Outcome{}, fmt.Errorf("body of %s exceeds %d bytes", url, f.maxBytes)
	}
	if !utf8.Valid(body) {
		return Outcome{}, fmt.Errorf("decode body of %s: %w", url, ErrBodyDecode)
	}
	return Outcome{Kind: OutcomeSuccess, Body: string(body)}, nil
}

// isConnectFailure reports whether the client error was a failure to reach a
// usable server at all: refused connections, DNS misses, unroutable hosts,
// and TLS setup failures. A 2xx never arrives through a broken handshake, so
// these all land in the absent bucket.
func isConnectFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return isTLSSetupFailure(err)
}

// isTLSSetupFailure matches handshake-time certificate and record errors.
func isTLSSetupFailure(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidCert x509.CertificateInvalidError
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert)
}
