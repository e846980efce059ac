// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Player    PlayerConfig    `yaml:"player"`
	Queue     QueueConfig     `yaml:"queue"`
	Library   LibraryConfig   `yaml:"library"`
	Playlists PlaylistsConfig `yaml:"playlists"`
	Log       LogConfig       `yaml:"log"`
}

// CatalogConfig represents the catalog service connection.
type CatalogConfig struct {
	URL             string `yaml:"url" default:"http://localhost:5000" validate:"required,url"`
	ProbeTimeoutMs  int    `yaml:"probe_timeout_ms" default:"3000" validate:"gte=100,lte=30000"`
	UploadChunkSize int    `yaml:"upload_chunk_size" default:"50" validate:"gte=1,lte=500"`
}

// PlayerConfig represents the media player process configuration.
type PlayerConfig struct {
	MpvBinary          string `yaml:"mpv_binary" default:"mpv"`
	MpvSocket          string `yaml:"mpv_socket" default:"/tmp/discbox-mpv.sock"`
	RestartThresholdMs int    `yaml:"restart_threshold_ms" default:"2000" validate:"gte=0,lte=30000"`
	ProgressIntervalMs int    `yaml:"progress_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
}

// QueueConfig represents queueing and history behavior.
type QueueConfig struct {
	HistorySize int `yaml:"history_size" default:"20" validate:"gte=0,lte=1000"`
	Lookahead   int `yaml:"lookahead" default:"5" validate:"gte=1,lte=100"`
}

// LibraryConfig represents catalog view behavior.
type LibraryConfig struct {
	FilterMode string `yaml:"filter_mode" default:"plain" validate:"oneof=plain fuzzy"`
}

// PlaylistsConfig represents playlist persistence configuration.
type PlaylistsConfig struct {
	Store    string         `yaml:"store" default:"file" validate:"oneof=file redis"`
	Settings map[string]any `yaml:"settings"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output     string `yaml:"output" default:"stdout"`
	Level      string `yaml:"level" default:"info"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"10" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"5" validate:"gte=0"`
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	case os.IsNotExist(err):
		// Run on defaults
	default:
		return nil, errors.Wrap(err, "failed to read config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if cfg.Playlists.Store == "file" && cfg.Playlists.Settings == nil {
		cfg.Playlists.Settings = map[string]any{"path": defaultPlaylistPath()}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCBOX_SERVER_URL"); v != "" {
		c.Catalog.URL = v
	}
	if v := os.Getenv("DISCBOX_REDIS_ADDR"); v != "" {
		c.Playlists.Store = "redis"
		if c.Playlists.Settings == nil {
			c.Playlists.Settings = map[string]any{}
		}
		c.Playlists.Settings["addr"] = v
	}
	if v := os.Getenv("DISCBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// ProbeTimeout returns the media probe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Catalog.ProbeTimeoutMs) * time.Millisecond
}

// RestartThreshold returns the previous-restart threshold as a duration.
func (c *Config) RestartThreshold() time.Duration {
	return time.Duration(c.Player.RestartThresholdMs) * time.Millisecond
}

// ProgressInterval returns the progress tick interval as a duration.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Player.ProgressIntervalMs) * time.Millisecond
}

func defaultPlaylistPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "discbox-playlists.json"
	}
	return home + "/.config/discbox/playlists.json"
}
