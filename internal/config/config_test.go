package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	v.Set("DB_DSN", "postgres://localhost/lpr")
	v.Set("JWT_ACCESS_SECRET", "secret")

	cfg, err := fromViper(v)
	if err != nil {
		t.Fatalf("fromViper: %v", err)
	}

	if cfg.HTTP.Host != "0.0.0.0" || cfg.HTTP.Port != 8080 {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.Live.Interval != time.Second {
		t.Errorf("Live.Interval = %v", cfg.Live.Interval)
	}
	if cfg.Inference.URL != "http://localhost:8000" {
		t.Errorf("Inference.URL = %q", cfg.Inference.URL)
	}
	if cfg.Timezone != "Asia/Jakarta" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("DB_DSN", "postgres://localhost/lpr")
	v.Set("JWT_ACCESS_SECRET", "secret")
	v.Set("HTTP_PORT", 9090)
	v.Set("LIVE_INTERVAL", "2s")
	v.Set("INFERENCE_VIDEO_PREVIEWS", true)
	v.Set("R2_BUCKET", "plates")

	cfg, err := fromViper(v)
	if err != nil {
		t.Fatalf("fromViper: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Port = %d", cfg.HTTP.Port)
	}
	if cfg.Live.Interval != 2*time.Second {
		t.Errorf("Live.Interval = %v", cfg.Live.Interval)
	}
	if !cfg.Inference.VideoPreviews {
		t.Error("VideoPreviews not set")
	}
	if cfg.Storage.Bucket != "plates" {
		t.Errorf("Storage.Bucket = %q", cfg.Storage.Bucket)
	}
}

func TestFromViperValidation(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{name: "missing dsn", values: map[string]any{"JWT_ACCESS_SECRET": "s"}},
		{name: "missing secret", values: map[string]any{"DB_DSN": "postgres://x"}},
		{name: "interval too short", values: map[string]any{"DB_DSN": "postgres://x", "JWT_ACCESS_SECRET": "s", "LIVE_INTERVAL": "10ms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.values {
				v.Set(k, val)
			}
			if _, err := fromViper(v); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	if _, err := cfg.Location(); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
