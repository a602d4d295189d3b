package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
	if cfg.Detection.IntervalSeconds != 2 {
		t.Errorf("expected default interval 2, got %d", cfg.Detection.IntervalSeconds)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.BitrateKbps != 64 {
		t.Errorf("unexpected default audio settings: %+v", cfg.Audio)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config file should not be an error, got: %v", err)
	}
	want := Default()
	if cfg.Detection.IntervalSeconds != want.Detection.IntervalSeconds {
		t.Errorf("expected default interval %d, got %d",
			want.Detection.IntervalSeconds, cfg.Detection.IntervalSeconds)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `data_dir: ` + dir + `
detection:
  interval_seconds: 5
  browsers:
    - "Google Chrome"
transcription:
  endpoint: https://transcribe.example.com/v1
  api_key: sekret
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Detection.IntervalSeconds != 5 {
		t.Errorf("expected interval 5, got %d", cfg.Detection.IntervalSeconds)
	}
	if len(cfg.Detection.Browsers) != 1 || cfg.Detection.Browsers[0] != "Google Chrome" {
		t.Errorf("unexpected browsers: %v", cfg.Detection.Browsers)
	}
	if cfg.Transcription.Endpoint != "https://transcribe.example.com/v1" {
		t.Errorf("unexpected endpoint: %s", cfg.Transcription.Endpoint)
	}
	// Values absent from the file keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero interval", func(c *Config) { c.Detection.IntervalSeconds = 0 }},
		{"no browsers", func(c *Config) { c.Detection.Browsers = nil }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"too many channels", func(c *Config) { c.Audio.Channels = 6 }},
		{"zero bitrate", func(c *Config) { c.Audio.BitrateKbps = 0 }},
		{"api key without endpoint", func(c *Config) { c.Transcription.APIKey = "k" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := Default()
	cfg.DataDir = dir
	cfg.Detection.IntervalSeconds = 7
	cfg.Notifications.Desktop = false

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Detection.IntervalSeconds != 7 {
		t.Errorf("expected interval 7, got %d", loaded.Detection.IntervalSeconds)
	}
	if loaded.Notifications.Desktop {
		t.Error("expected desktop notifications disabled")
	}
}

func TestRecordingsDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/meetscribe-test"
	got := cfg.RecordingsDir()
	want := filepath.Join("/tmp/meetscribe-test", "recordings")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
