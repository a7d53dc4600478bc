package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Searx     SearxConfig     `yaml:"searx" mapstructure:"searx"`
	Brave     BraveConfig     `yaml:"brave" mapstructure:"brave"`
	Serper    SerperConfig    `yaml:"serper" mapstructure:"serper"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Credits   CreditsConfig   `yaml:"credits" mapstructure:"credits"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings. The classifier model covers
// intent, relevance, expansion and directory-link calls; the enrich model
// covers lead enrichment.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ClassifierModel string `yaml:"classifier_model" mapstructure:"classifier_model"`
	EnrichModel     string `yaml:"enrich_model" mapstructure:"enrich_model"`
}

// SearxConfig holds self-hosted metasearch settings. Empty base URL
// disables the provider.
type SearxConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// SerperConfig holds Serper API settings.
type SerperConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// PlacesConfig holds the paid local-business provider settings.
type PlacesConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OverpassConfig holds Overpass API settings.
type OverpassConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NominatimConfig holds Nominatim settings.
type NominatimConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig configures the provider cascade.
type SearchConfig struct {
	CallTimeoutSecs int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	DirectoryCap    int `yaml:"directory_cap" mapstructure:"directory_cap"`
}

// ExtractConfig configures website extraction.
type ExtractConfig struct {
	FetchTimeoutSecs int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
}

// PipelineConfig configures the foreground/background split.
type PipelineConfig struct {
	InitialBatchSize       int `yaml:"initial_batch_size" mapstructure:"initial_batch_size"`
	WorkerLimit            int `yaml:"worker_limit" mapstructure:"worker_limit"`
	ForegroundDeadlineSecs int `yaml:"foreground_deadline_secs" mapstructure:"foreground_deadline_secs"`
}

// SchedulerConfig configures job dispatch.
type SchedulerConfig struct {
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// CreditsConfig configures the in-process credit ledger.
type CreditsConfig struct {
	InitialBalance int `yaml:"initial_balance" mapstructure:"initial_balance"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadstream.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.classifier_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.enrich_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "leadstream/1.0")
	v.SetDefault("search.call_timeout_secs", 12)
	v.SetDefault("search.directory_cap", 10)
	v.SetDefault("extract.fetch_timeout_secs", 10)
	v.SetDefault("pipeline.initial_batch_size", 30)
	v.SetDefault("pipeline.worker_limit", 4)
	v.SetDefault("pipeline.foreground_deadline_secs", 25)
	v.SetDefault("scheduler.cooldown_secs", 2)
	v.SetDefault("credits.initial_balance", 1000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given mode depends on. Modes: "serve",
// "search", "migrate".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "migrate":
	case "search", "serve":
		if c.Pipeline.InitialBatchSize < 1 || c.Pipeline.InitialBatchSize > 100 {
			problems = append(problems, "pipeline.initial_batch_size must be between 1 and 100")
		}
		if c.Pipeline.WorkerLimit < 1 || c.Pipeline.WorkerLimit > 16 {
			problems = append(problems, "pipeline.worker_limit must be between 1 and 16")
		}
		if c.Pipeline.ForegroundDeadlineSecs < 1 || c.Pipeline.ForegroundDeadlineSecs > 300 {
			problems = append(problems, "pipeline.foreground_deadline_secs must be between 1 and 300")
		}
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
