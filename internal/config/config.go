// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds the pipeline configuration from defaults, an
// optional YAML file, PAPER_TRIAGE_* environment variables and secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-triage/internal/secrets"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// Name is the config file base name and the user config directory.
const Name = "paper-triage"

// EnvPrefix prefixes every environment override, e.g.
// PAPER_TRIAGE_VALIDATION_CONCURRENCY.
const EnvPrefix = "PAPER_TRIAGE"

// SetDefaults registers every key with its default so env overrides and
// Unmarshal see the full tree.
func SetDefaults(v *viper.Viper) {
	const ua = "paper-triage/0.1"

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/papers.db")

	v.SetDefault("arxiv.timeout", 30*time.Second)
	v.SetDefault("arxiv.user_agent", ua)
	v.SetDefault("arxiv.categories", []string{"cs.AI", "cs.CL", "cs.LG", "cs.CV", "stat.ML"})
	v.SetDefault("arxiv.max_papers", 2000)
	v.SetDefault("arxiv.page_size", 200)
	v.SetDefault("arxiv.feed_retries", 3)
	v.SetDefault("arxiv.batch_size", 100)
	setRetryDefaults(v, "arxiv.retry", 3)

	v.SetDefault("content.timeout", 30*time.Second)
	v.SetDefault("content.user_agent", ua)
	v.SetDefault("content.concurrency", 4)
	v.SetDefault("content.requests_per_second", 4.0)
	v.SetDefault("content.max_length", 8000)
	v.SetDefault("content.min_length", 200)
	setRetryDefaults(v, "content.retry", 3)

	v.SetDefault("embedding.timeout", 60*time.Second)
	v.SetDefault("embedding.user_agent", ua)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.topics_file", "")
	setRetryDefaults(v, "embedding.retry", 3)

	v.SetDefault("validation.timeout", 120*time.Second)
	v.SetDefault("validation.user_agent", ua)
	v.SetDefault("validation.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("validation.max_tokens", 2048)
	v.SetDefault("validation.concurrency", 4)
	v.SetDefault("validation.requests_per_second", 0.0)
	v.SetDefault("validation.similarity_threshold", 0.4)
	setRetryDefaults(v, "validation.retry", 3)

	v.SetDefault("scoring.timeout", 120*time.Second)
	v.SetDefault("scoring.user_agent", ua)
	v.SetDefault("scoring.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("scoring.max_tokens", 2048)
	v.SetDefault("scoring.concurrency", 4)
	v.SetDefault("scoring.requests_per_second", 0.0)
	setRetryDefaults(v, "scoring.retry", 3)

	v.SetDefault("reputation.timeout", 30*time.Second)
	v.SetDefault("reputation.user_agent", ua)
	v.SetDefault("reputation.concurrency", 2)
	v.SetDefault("reputation.requests_per_second", 1.0)
	v.SetDefault("reputation.notable_h_index", 30)
	setRetryDefaults(v, "reputation.retry", 3)

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.days", 14)

	v.SetDefault("notify.timeout", 30*time.Second)
	v.SetDefault("notify.user_agent", ua)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.channel", "")

	v.SetDefault("summary.metrics_file", "")
	v.SetDefault("summary.kafka_brokers", []string{})
	v.SetDefault("summary.kafka_topic", "")
}

func setRetryDefaults(v *viper.Viper, prefix string, maxRetries int) {
	v.SetDefault(prefix+".max_retries", maxRetries)
	v.SetDefault(prefix+".base_delay", time.Second)
	v.SetDefault(prefix+".jitter", time.Second)
	v.SetDefault(prefix+".rate_limit_min", time.Second)
	v.SetDefault(prefix+".rate_limit_max", 3*time.Second)
}

// New returns a viper instance with defaults, env binding and, when found,
// the config file read. file overrides the search path.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Build unmarshals v, applies secrets and validates the result.
func Build(v *viper.Viper, s map[string]string) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	ApplySecrets(&cfg, s)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplySecrets copies credentials into the stage configs.
func ApplySecrets(cfg *types.PipelineConfig, s map[string]string) {
	cfg.Validation.APIKey = s[secrets.AnthropicAPIKey]
	cfg.Scoring.APIKey = s[secrets.AnthropicAPIKey]
	cfg.Embedding.APIKey = s[secrets.OpenAIAPIKey]
	cfg.Reputation.APIKey = s[secrets.SemanticScholarAPIKey]
	cfg.Notify.Token = s[secrets.SlackBotToken]
	cfg.Store.DSN = s[secrets.PostgresDSN]
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints and cross-field rules.
func Validate(cfg types.PipelineConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN == "" {
		return fmt.Errorf("invalid config: store driver postgres needs the %s secret", secrets.PostgresDSN)
	}
	if len(cfg.Summary.KafkaBrokers) > 0 && cfg.Summary.KafkaTopic == "" {
		return errors.New("invalid config: summary.kafka_topic is required with kafka_brokers")
	}
	if cfg.Notify.Enabled && cfg.Notify.Token == "" {
		return fmt.Errorf("invalid config: notifications need the %s secret", secrets.SlackBotToken)
	}
	return nil
}
