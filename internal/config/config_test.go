package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.ChunkSize != 50 {
		t.Errorf("chunk_size = %d, want 50", cfg.Crawler.ChunkSize)
	}
	if cfg.Crawler.TimeoutMs != 1000 {
		t.Errorf("timeout_ms = %d, want 1000", cfg.Crawler.TimeoutMs)
	}
	if got := cfg.Timeout(); got != time.Second {
		t.Errorf("Timeout() = %v, want 1s", got)
	}
	if cfg.Storage.Backend != BackendFS {
		t.Errorf("backend = %q, want fs", cfg.Storage.Backend)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  chunk_size: 200
  timeout_ms: 2500
  limit: 10000
  out_dir: /tmp/ads
server:
  metrics_addr: ":9091"
storage:
  backend: gcs
  gcs_bucket: ads-bucket
  prefix: crawl
db:
  dsn: postgres://localhost/adstxt
pubsub:
  project_id: proj
  topic_name: found-files
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.ChunkSize != 200 {
		t.Errorf("chunk_size = %d, want 200", cfg.Crawler.ChunkSize)
	}
	if cfg.Timeout() != 2500*time.Millisecond {
		t.Errorf("Timeout() = %v, want 2.5s", cfg.Timeout())
	}
	if cfg.Storage.GCSBucket != "ads-bucket" {
		t.Errorf("gcs_bucket = %q", cfg.Storage.GCSBucket)
	}
	if cfg.Logging.Development {
		t.Error("logging.development should be false")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := map[string]Config{
		"ZeroChunkSize": {
			Crawler: CrawlerConfig{ChunkSize: 0, OutDir: "out"},
			Storage: StorageConfig{Backend: BackendFS},
		},
		"NegativeTimeout": {
			Crawler: CrawlerConfig{ChunkSize: 1, TimeoutMs: -1, OutDir: "out"},
			Storage: StorageConfig{Backend: BackendFS},
		},
		"GCSWithoutBucket": {
			Crawler: CrawlerConfig{ChunkSize: 1},
			Storage: StorageConfig{Backend: BackendGCS},
		},
		"UnknownBackend": {
			Crawler: CrawlerConfig{ChunkSize: 1},
			Storage: StorageConfig{Backend: "s3"},
		},
		"HalfConfiguredPubSub": {
			Crawler: CrawlerConfig{ChunkSize: 1, OutDir: "out"},
			Storage: StorageConfig{Backend: BackendFS},
			PubSub:  PubSubConfig{ProjectID: "proj"},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
