package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8090" || cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.JobTTL != time.Hour || cfg.CatalogPath != "doxnav.db" || !cfg.CheckLinks {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PublishEnabled() {
		t.Error("expected publishing disabled without PATHSTORE_URL")
	}
}

func TestLoadFrom_Values(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":              "9000",
		"PATHSTORE_URL":     "http://ps:8080/",
		"PATHSTORE_API_KEY": "k",
		"DOXNAV_API_KEY":    "secret",
		"WORKER_COUNT":      "0",
		"JOB_TTL":           "15m",
		"PRELOAD_DIRS":      "ant=/srv/ant/html, /srv/other",
		"CHECK_LINKS":       "false",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" || cfg.PathstoreURL != "http://ps:8080" || cfg.JobTTL != 15*time.Minute {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected non-positive worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
	if cfg.CheckLinks {
		t.Error("expected CHECK_LINKS=false to be honored")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	pre, err := cfg.Preloads()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"ant": "/srv/ant/html", "other": "/srv/other"}
	if diff := cmp.Diff(want, pre); diff != "" {
		t.Errorf("preloads mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_BadValue(t *testing.T) {
	if _, err := LoadFrom(map[string]string{"JOB_TTL": "soon"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"missing api key", Config{}, false},
		{"minimal", Config{APIKey: "k"}, true},
		{"pathstore without key", Config{APIKey: "k", PathstoreURL: "http://ps"}, false},
		{"bad preload", Config{APIKey: "k", PreloadDirs: []string{"=dir"}}, false},
		{"duplicate preload", Config{APIKey: "k", PreloadDirs: []string{"a=x", "a=y"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
