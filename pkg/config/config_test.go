package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9039 {
		t.Errorf("expected default port 9039, got %d", cfg.Server.Port)
	}
	if cfg.Detector.NumPerm != 128 || cfg.Detector.Bands != 8 || cfg.Detector.Rows != 16 {
		t.Errorf("unexpected default banding: %+v", cfg.Detector)
	}
	if cfg.Detector.TTL != 24*time.Hour {
		t.Errorf("expected default ttl 24h, got %v", cfg.Detector.TTL)
	}
	if cfg.Recovery.Window != 4*time.Hour {
		t.Errorf("expected default recovery window 4h, got %v", cfg.Recovery.Window)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 8088
detector:
  languages: [english, spanish]
  ttl: 12h
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("expected port 8088, got %d", cfg.Server.Port)
	}
	if len(cfg.Detector.Languages) != 2 {
		t.Errorf("expected 2 languages, got %v", cfg.Detector.Languages)
	}
	if cfg.Detector.TTL != 12*time.Hour {
		t.Errorf("expected ttl 12h, got %v", cfg.Detector.TTL)
	}
	// Unset fields keep their defaults.
	if cfg.Detector.NumPerm != 128 {
		t.Errorf("expected default numPerm, got %d", cfg.Detector.NumPerm)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SD_SERVER_PORT", "7070")
	t.Setenv("SD_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("SD_DETECTOR_LANGUAGES", "english,french")
	t.Setenv("SD_DETECTOR_TTL", "6h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("env port override ignored, got %d", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("env redis override ignored, got %s", cfg.Redis.Addr)
	}
	if len(cfg.Detector.Languages) != 2 || cfg.Detector.Languages[1] != "french" {
		t.Errorf("env languages override ignored, got %v", cfg.Detector.Languages)
	}
	if cfg.Detector.TTL != 6*time.Hour {
		t.Errorf("env ttl override ignored, got %v", cfg.Detector.TTL)
	}
}

func TestDetectorValidate(t *testing.T) {
	valid := DetectorConfig{
		Languages: []string{"english"},
		NumPerm:   128, Bands: 8, Rows: 16,
		TTL: time.Hour,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*DetectorConfig)
	}{
		{"banding mismatch", func(d *DetectorConfig) { d.Bands = 4 }},
		{"zero numPerm", func(d *DetectorConfig) { d.NumPerm = 0 }},
		{"zero ttl", func(d *DetectorConfig) { d.TTL = 0 }},
		{"no languages", func(d *DetectorConfig) { d.Languages = nil }},
	}
	for _, tt := range tests {
		cfg := valid
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected a validation error", tt.name)
		}
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db.internal", Port: 5433,
		User: "reader", Password: "secret",
		Database: "articles", SSLMode: "require",
	}
	want := "host=db.internal port=5433 user=reader password=secret dbname=articles sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
