package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single outbound request, independent of retries.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-triage/0.1").
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// RetryPolicy controls per-item retries in the executor. Attempt n (0-based)
// waits BaseDelay*2^n plus a uniform draw from [0, Jitter) before the next
// attempt. Rate-limited failures add a uniform draw from
// [RateLimitMin, RateLimitMax] on top.
type RetryPolicy struct {
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`
	BaseDelay    time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"gte=0"`
	Jitter       time.Duration `mapstructure:"jitter" yaml:"jitter" validate:"gte=0"`
	RateLimitMin time.Duration `mapstructure:"rate_limit_min" yaml:"rate_limit_min" validate:"gte=0"`
	RateLimitMax time.Duration `mapstructure:"rate_limit_max" yaml:"rate_limit_max" validate:"gtefield=RateLimitMin"`
}

// ExecConfig holds the executor settings of a per-item stage.
type ExecConfig struct {
	// Concurrency is the maximum number of in-flight worker calls.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1"`

	// RequestsPerSecond paces outbound calls across all workers of the
	// stage. Zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`

	Retry RetryPolicy `mapstructure:"retry" yaml:"retry"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `mapstructure:"model" yaml:"model" validate:"required"`

	// APIKey is the authentication key for the AI API. Loaded from secrets.
	APIKey string `mapstructure:"-" yaml:"-"`

	// MaxTokens caps the response length.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gt=0"`
}

// ArxivConfig holds settings for ingestion and the metadata stage.
type ArxivConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`

	// Categories restricts date-mode ingestion (e.g. "cs.AI", "cs.LG").
	Categories []string `mapstructure:"categories" yaml:"categories" validate:"min=1"`

	// MaxPapers is a hard ceiling on papers per run.
	MaxPapers int `mapstructure:"max_papers" yaml:"max_papers" validate:"gt=0"`

	// PageSize is the number of feed entries requested per page.
	PageSize int `mapstructure:"page_size" yaml:"page_size" validate:"gt=0"`

	// FeedRetries bounds 429 retries on feed requests.
	FeedRetries int `mapstructure:"feed_retries" yaml:"feed_retries" validate:"gte=0"`

	// BatchSize is the number of ids per metadata request.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"gt=0"`

	Retry RetryPolicy `mapstructure:"retry" yaml:"retry"`
}

// ContentConfig holds settings for the content extraction stage.
type ContentConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`
	ExecConfig `mapstructure:",squash" yaml:",inline"`

	// MaxLength truncates extracted introductions (in characters).
	MaxLength int `mapstructure:"max_length" yaml:"max_length" validate:"gt=0"`

	// MinLength is the shortest text accepted as an introduction.
	MinLength int `mapstructure:"min_length" yaml:"min_length" validate:"gte=0"`
}

// Topic is a research area papers are scored against.
type Topic struct {
	Name        string `mapstructure:"name" yaml:"name" validate:"required"`
	Description string `mapstructure:"description" yaml:"description" validate:"required"`
}

// EmbeddingConfig holds settings for the embedding similarity stage.
type EmbeddingConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`

	Model   string `mapstructure:"model" yaml:"model" validate:"required"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	APIKey  string `mapstructure:"-" yaml:"-"`

	// BatchSize is the number of papers embedded per API call.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"gt=0"`

	// TopicsFile optionally overrides the built-in topic list.
	TopicsFile string `mapstructure:"topics_file" yaml:"topics_file"`

	Retry RetryPolicy `mapstructure:"retry" yaml:"retry"`
}

// ValidationConfig holds settings for the LLM validation stage.
type ValidationConfig struct {
	AIConfig   `mapstructure:",squash" yaml:",inline"`
	ExecConfig `mapstructure:",squash" yaml:",inline"`

	// SimilarityThreshold admits a paper when any topic score reaches it.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold" validate:"gte=0,lte=1"`
}

// ScoringConfig holds settings for the LLM scoring stage.
type ScoringConfig struct {
	AIConfig   `mapstructure:",squash" yaml:",inline"`
	ExecConfig `mapstructure:",squash" yaml:",inline"`
}

// ReputationConfig holds settings for the author reputation stage.
type ReputationConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`
	ExecConfig `mapstructure:",squash" yaml:",inline"`

	// APIKey is an optional Semantic Scholar key for higher rate limits.
	APIKey string `mapstructure:"-" yaml:"-"`

	// NotableHIndex counts authors whose h-index is strictly above it.
	NotableHIndex int `mapstructure:"notable_h_index" yaml:"notable_h_index" validate:"gte=0"`
}

// RetentionConfig holds settings for the retention maintenance step.
type RetentionConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Days is how long a paper stays in the store after the last run
	// that included it.
	Days int `mapstructure:"days" yaml:"days" validate:"gt=0"`
}

// NotifyConfig holds settings for the Slack digest.
type NotifyConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`

	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Channel string `mapstructure:"channel" yaml:"channel" validate:"required_if=Enabled true"`
	Token   string `mapstructure:"-" yaml:"-"`
}

// StoreConfig selects and configures the entity store.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite postgres"`
	Path   string `mapstructure:"path" yaml:"path" validate:"required_if=Driver sqlite"`
	DSN    string `mapstructure:"-" yaml:"-"`
}

// SummaryConfig configures where the run summary is published besides the log.
type SummaryConfig struct {
	// MetricsFile, when set, receives the run metrics in Prometheus text format.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`

	// KafkaBrokers, when set, publishes the summary as JSON to KafkaTopic.
	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" yaml:"kafka_topic"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output" yaml:"output" validate:"oneof=stdout stderr"`
}

// PipelineConfig groups all stage configurations for the pipeline. It is
// built once per run and handed to each stage by value.
type PipelineConfig struct {
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Arxiv      ArxivConfig      `mapstructure:"arxiv" yaml:"arxiv"`
	Content    ContentConfig    `mapstructure:"content" yaml:"content"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding" yaml:"embedding"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Scoring    ScoringConfig    `mapstructure:"scoring" yaml:"scoring"`
	Reputation ReputationConfig `mapstructure:"reputation" yaml:"reputation"`
	Retention  RetentionConfig  `mapstructure:"retention" yaml:"retention"`
	Notify     NotifyConfig     `mapstructure:"notify" yaml:"notify"`
	Summary    SummaryConfig    `mapstructure:"summary" yaml:"summary"`
}
