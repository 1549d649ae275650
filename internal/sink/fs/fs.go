// Package fs implements the filesystem sink for discovered ads.txt files.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Config captures the parameters for the filesystem sink.
type Config struct {
	// OutDir is the directory receiving one file per discovered domain.
	OutDir string `mapstructure:"out_dir"`
}

// Sink writes each discovered file to OutDir/<domain>, overwriting any
// previous crawl's copy. Domain strings double as filenames, so callers must
// hand in hostnames, not arbitrary paths.
type Sink struct {
	outDir string
	logger *zap.Logger
}

// New creates the sink, creating the output directory when absent.
func New(cfg Config, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.OutDir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", cfg.OutDir, err)
	}
	return &Sink{outDir: cfg.OutDir, logger: logger}, nil
}

// Store writes content under the domain's filename and returns a file:// URI.
func (s *Sink) Store(ctx context.Context, domain string, content []byte) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("domain is required")
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}

	target := filepath.Join(s.outDir, domain)

	// Domains come from an operator-supplied list, but refuse anything that
	// would escape the output directory.
	cleanBase := filepath.Clean(s.outDir)
	if !strings.HasPrefix(filepath.Clean(target), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("domain %q escapes the output directory", domain)
	}

	if err := os.WriteFile(target, content, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return "file://" + target, nil
}
