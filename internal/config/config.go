// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type RunnerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type StorageConfig struct {
	Bucket          string        `yaml:"bucket"`
	URLTTL          time.Duration `yaml:"url_ttl"`          // presigned URL expiry
	ChunkThreshold  int64         `yaml:"chunk_threshold"`  // bytes; above this uploads go chunked
	PartSize        int64         `yaml:"part_size"`        // bytes per part
	PartConcurrency int           `yaml:"part_concurrency"` // simultaneous part transfers
}

type PipelineConfig struct {
	Stages          []string      `yaml:"stages"`           // ordered expected artifacts
	RetryLimit      int           `yaml:"retry_limit"`      // per job lineage
	UpdateRetention time.Duration `yaml:"update_retention"` // event-store GC window after terminal
}

type WebhookConfig struct {
	Secret    string `yaml:"secret"`     // HMAC key for callback tokens
	PublicURL string `yaml:"public_url"` // externally reachable base of this service
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`    // 0 disables the sweeper
	StaleAfter time.Duration `yaml:"stale_after"` // how long since last check counts as stale
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Runner     RunnerConfig     `yaml:"runner"`
	Storage    StorageConfig    `yaml:"storage"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Runner.BaseURL == "" {
		return nil, errors.New("runner.base_url is required")
	}
	if cfg.Storage.Bucket == "" {
		return nil, errors.New("storage.bucket is required")
	}
	if cfg.Webhook.Secret == "" && !dev {
		return nil, errors.New("webhook.secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills zero values; exported so tests can build configs piecemeal.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Runner.RequestTimeout <= 0 {
		cfg.Runner.RequestTimeout = 30 * time.Second
	}
	if cfg.Storage.URLTTL <= 0 {
		cfg.Storage.URLTTL = 15 * time.Minute
	}
	if cfg.Storage.ChunkThreshold <= 0 {
		cfg.Storage.ChunkThreshold = 64 << 20
	}
	if cfg.Storage.PartSize <= 0 {
		cfg.Storage.PartSize = 16 << 20
	}
	if cfg.Storage.PartConcurrency <= 0 {
		cfg.Storage.PartConcurrency = 3
	}
	if len(cfg.Pipeline.Stages) == 0 {
		cfg.Pipeline.Stages = []string{"metadata.json", "detections.json", "tracking.json", "report.json"}
	}
	if cfg.Pipeline.RetryLimit <= 0 {
		cfg.Pipeline.RetryLimit = 3
	}
	if cfg.Pipeline.UpdateRetention <= 0 {
		cfg.Pipeline.UpdateRetention = time.Hour
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
}
