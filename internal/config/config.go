package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir       string              `mapstructure:"data_dir" yaml:"data_dir"`
	Detection     DetectionConfig     `mapstructure:"detection" yaml:"detection"`
	Audio         AudioConfig         `mapstructure:"audio" yaml:"audio"`
	Transcription TranscriptionConfig `mapstructure:"transcription" yaml:"transcription"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
}

type DetectionConfig struct {
	IntervalSeconds int      `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	Browsers        []string `mapstructure:"browsers" yaml:"browsers"`
}

type AudioConfig struct {
	SampleRate  int `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels    int `mapstructure:"channels" yaml:"channels"`
	BitrateKbps int `mapstructure:"bitrate_kbps" yaml:"bitrate_kbps"`
}

type TranscriptionConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
}

type NotificationsConfig struct {
	Desktop bool `mapstructure:"desktop" yaml:"desktop"`
}

// Default returns the built-in configuration. DataDir falls back to the
// working directory when the user config dir cannot be resolved.
func Default() Config {
	dataDir := "meetscribe"
	if base, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(base, "meetscribe")
	}
	return Config{
		DataDir: dataDir,
		Detection: DetectionConfig{
			IntervalSeconds: 2,
			Browsers:        []string{"Google Chrome", "Safari"},
		},
		Audio: AudioConfig{
			SampleRate:  16000,
			Channels:    1,
			BitrateKbps: 64,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
	}
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "meetscribe.yaml"
	}
	return filepath.Join(base, "meetscribe", "config.yaml")
}

// Load reads the config file at configFile (or DefaultPath when empty)
// over the built-in defaults. A missing file is not an error; the
// defaults apply. Environment variables prefixed MEETSCRIBE_ override
// file values.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("MEETSCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.DataDir = expandPath(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields the rest of the program relies on.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Detection.IntervalSeconds < 1 {
		return fmt.Errorf("detection.interval_seconds must be >= 1, got: %d", c.Detection.IntervalSeconds)
	}
	if len(c.Detection.Browsers) == 0 {
		return fmt.Errorf("detection.browsers cannot be empty")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", c.Audio.Channels)
	}
	if c.Audio.BitrateKbps <= 0 {
		return fmt.Errorf("audio.bitrate_kbps must be > 0, got: %d", c.Audio.BitrateKbps)
	}
	if c.Transcription.APIKey != "" && c.Transcription.Endpoint == "" {
		return fmt.Errorf("transcription.api_key is set but transcription.endpoint is empty")
	}
	return nil
}

// RecordingsDir is where audio containers and metadata live.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.DataDir, "recordings")
}

// Save writes the config as YAML, creating the parent directory if
// needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
