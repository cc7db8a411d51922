package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	AuthSignal AuthSignalConfig `yaml:"authsignal"`
}

// AuthSignalConfig is the project configuration.
type AuthSignalConfig struct {
	TenantID   string           `yaml:"tenant_id"`
	Input      InputConfig      `yaml:"input"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Rules      RulesConfig      `yaml:"rules"`
	Output     OutputConfig     `yaml:"output"`
	Stores     StoresConfig     `yaml:"stores"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Notify     NotifyConfig     `yaml:"notify"`
	Overrides  OverridesConfig  `yaml:"overrides"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InputConfig controls the input readers.
type InputConfig struct {
	Files []string    `yaml:"files"`
	Redis RedisConfig `yaml:"redis"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// RulesConfig controls Sigma detection rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// OutputConfig controls signal output. Mode selects stdout or file.
type OutputConfig struct {
	Mode string           `yaml:"mode"` // stdout|file
	File FileOutputConfig `yaml:"file"`
}

// StoresConfig controls the persistence collaborators. Each store is
// optional and independent.
type StoresConfig struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Forensic   HTTPClientConfig `yaml:"forensic"`
	RedisIndex RedisIndexConfig `yaml:"redis_index"`
}

// ClickHouseConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseConfig struct {
	Enabled  bool              `yaml:"enabled"`
	URL      string            `yaml:"url"`
	Database string            `yaml:"database"`
	Table    string            `yaml:"table"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}

// RedisIndexConfig config for the Redis similarity index.
type RedisIndexConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// EnrichmentConfig controls the narrative enrichment collaborator.
type EnrichmentConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// NotifyConfig controls webhook notifications.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// OverridesConfig controls analyst override loading.
type OverridesConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPClientConfig config for a remote HTTP collaborator.
type HTTPClientConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
