package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8090"`

	// Pathstore publishing; empty URL disables it
	PathstoreURL    string `env:"PATHSTORE_URL"`
	PathstoreAPIKey string `env:"PATHSTORE_API_KEY"`

	// Auth
	APIKey string `env:"DOXNAV_API_KEY"`

	// Persistence
	CatalogPath string `env:"CATALOG_PATH" envDefault:"doxnav.db"`

	// Worker pool
	WorkerCount          int `env:"WORKER_COUNT" envDefault:"4"`
	MaxQueueSize         int `env:"MAX_QUEUE_SIZE" envDefault:"100"`
	MaxConcurrentPublish int `env:"MAX_CONCURRENT_PUBLISH" envDefault:"10"`

	// Upload limits
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"104857600"` // 100MB
	MaxUploadFiles int   `env:"MAX_UPLOAD_FILES" envDefault:"20000"`

	// Job state
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"1h"`

	// Bundles loaded from disk at startup, as id=dir pairs
	PreloadDirs []string `env:"PRELOAD_DIRS" envSeparator:","`

	// Verify page anchors when uploads include HTML
	CheckLinks bool `env:"CHECK_LINKS" envDefault:"true"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.MaxConcurrentPublish <= 0 {
		c.MaxConcurrentPublish = 10
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 104857600
	}
	if c.MaxUploadFiles <= 0 {
		c.MaxUploadFiles = 20000
	}
	if c.JobTTL <= 0 {
		c.JobTTL = time.Hour
	}
	c.PathstoreURL = strings.TrimRight(c.PathstoreURL, "/")
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOXNAV_API_KEY is required")
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	if _, err := c.Preloads(); err != nil {
		return err
	}
	return nil
}

// PublishEnabled reports whether sites are published to pathstore.
func (c Config) PublishEnabled() bool {
	return c.PathstoreURL != ""
}

// Preloads parses PreloadDirs into site id -> directory. A bare directory
// uses its base name as the id.
func (c Config) Preloads() (map[string]string, error) {
	out := make(map[string]string, len(c.PreloadDirs))
	for _, item := range c.PreloadDirs {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, dir, ok := strings.Cut(item, "=")
		if !ok {
			dir = id
			id = filepath.Base(filepath.Clean(dir))
		}
		id, dir = strings.TrimSpace(id), strings.TrimSpace(dir)
		if id == "" || dir == "" {
			return nil, fmt.Errorf("PRELOAD_DIRS: invalid entry %q", item)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("PRELOAD_DIRS: duplicate site id %q", id)
		}
		out[id] = dir
	}
	return out, nil
}
