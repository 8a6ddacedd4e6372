// Package config loads lakecheck configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for lakecheck.
// Configuration can come from a YAML file (config.yaml by default) or
// environment variables. Environment variables always override YAML values.
// Secrets (API keys, gateway credentials, tokens) must only come from
// environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// AWS holds Athena and Glue settings
	AWS AWSConfig `yaml:"aws"`

	// LLM holds provider settings for SQL generation
	LLM LLMConfig `yaml:"llm"`

	// Cache holds settings for the on-disk generated-SQL cache
	Cache CacheConfig `yaml:"cache"`

	// GitHub holds settings for DDL-based schema enrichment
	GitHub GitHubConfig `yaml:"github"`

	// Validation holds settings for validation runs
	Validation ValidationConfig `yaml:"validation"`
}

// AWSConfig holds Athena and Glue settings.
type AWSConfig struct {
	Region   string `yaml:"region" env:"AWS_REGION" env-default:"us-west-2"`
	Database string `yaml:"database" env:"ATHENA_DATABASE" env-default:"default"`

	// Workgroup selects the Athena workgroup. Empty means the account default.
	Workgroup string `yaml:"workgroup" env:"ATHENA_WORKGROUP" env-default:""`

	// OutputLocation is the s3:// URI for query results. Empty means the
	// workgroup's configured result location.
	OutputLocation string `yaml:"output_location" env:"ATHENA_OUTPUT_LOCATION" env-default:""`

	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"ATHENA_QUERY_TIMEOUT_SECONDS" env-default:"300"`
}

// QueryTimeout returns the per-query Athena timeout.
func (c *AWSConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// LLMConfig holds provider settings for SQL generation.
type LLMConfig struct {
	// Provider selects the client: "openai" for token-authenticated
	// endpoints, "anthropic" for deployments behind the key-pair gateway.
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`

	// Endpoint overrides the provider's default base URL. Required for
	// the key-pair gateway.
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`

	Model string `yaml:"model" env:"LLM_MODEL" env-default:"claude-3-5-sonnet-20241022"`

	APIKey    string `yaml:"-" env:"LLM_API_KEY"`    // Secret - not in YAML
	KeyID     string `yaml:"-" env:"LLM_KEY_ID"`     // Secret - not in YAML
	SecretKey string `yaml:"-" env:"LLM_SECRET_KEY"` // Secret - not in YAML

	MaxTokens      int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"800"`
	TimeoutSeconds int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"120"`
	Temperature    float32 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`

	// SelfValidate enables the second round-trip that audits generated SQL.
	// Off by default; the preflight gate catches the same defect classes
	// without the extra provider latency.
	SelfValidate bool `yaml:"self_validate" env:"LLM_SELF_VALIDATE" env-default:"false"`
}

// Timeout returns the per-call provider timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// UsesKeyPair returns true when the provider authenticates with the
// legacy key-id/secret-key header pair rather than a bearer token.
func (c *LLMConfig) UsesKeyPair() bool {
	return c.Provider == "anthropic"
}

// CacheConfig holds settings for the on-disk generated-SQL cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" env:"SQL_CACHE_ENABLED" env-default:"true"`
	Dir        string `yaml:"dir" env:"SQL_CACHE_DIR" env-default:".sql_cache"`
	TTLHours   int    `yaml:"ttl_hours" env:"SQL_CACHE_TTL_HOURS" env-default:"24"`
	MaxEntries int    `yaml:"max_entries" env:"SQL_CACHE_MAX_ENTRIES" env-default:"1000"`
}

// TTL returns the entry time-to-live.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// GitHubConfig holds settings for DDL-based schema enrichment.
type GitHubConfig struct {
	Enabled bool   `yaml:"enabled" env:"GITHUB_SCHEMA_ENABLED" env-default:"false"`
	Owner   string `yaml:"owner" env:"GITHUB_OWNER" env-default:""`
	Repo    string `yaml:"repo" env:"GITHUB_REPO" env-default:""`
	Branch  string `yaml:"branch" env:"GITHUB_BRANCH" env-default:"main"`
	Token   string `yaml:"-" env:"GITHUB_TOKEN"` // Secret - not in YAML
}

// IsAvailable returns true if GitHub schema enrichment is configured.
func (c *GitHubConfig) IsAvailable() bool {
	return c.Enabled && c.Owner != "" && c.Repo != ""
}

// ValidationConfig holds settings for validation runs.
type ValidationConfig struct {
	// MaxConcurrent bounds parallel Athena query execution per run.
	MaxConcurrent int `yaml:"max_concurrent" env:"VALIDATION_MAX_CONCURRENT" env-default:"5"`

	// NullTolerancePercent is the allowed null-count drift before a
	// null-value check fails.
	NullTolerancePercent float64 `yaml:"null_tolerance_percent" env:"VALIDATION_NULL_TOLERANCE_PERCENT" env-default:"5"`
}

// Load reads configuration from the given YAML path with environment
// variable overrides. An empty path means config.yaml in the working
// directory; a missing file is not an error, the tool then runs from
// environment variables and defaults alone. The version parameter is
// injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks cross-field constraints that tag defaults cannot express.
func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q (want openai or anthropic)", c.LLM.Provider)
	}

	// Gateway credentials come as a pair
	keyIDSet := c.LLM.KeyID != ""
	secretSet := c.LLM.SecretKey != ""
	if keyIDSet != secretSet {
		return fmt.Errorf("both LLM_KEY_ID and LLM_SECRET_KEY must be provided together")
	}

	if c.Cache.TTLHours < 1 {
		return fmt.Errorf("cache ttl_hours must be at least 1, got %d", c.Cache.TTLHours)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache max_entries must be at least 1, got %d", c.Cache.MaxEntries)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm max_tokens must be at least 1, got %d", c.LLM.MaxTokens)
	}
	if c.Validation.MaxConcurrent < 1 {
		return fmt.Errorf("validation max_concurrent must be at least 1, got %d", c.Validation.MaxConcurrent)
	}

	return nil
}
