package models

// Config holds the application configuration
type Config struct {
	Confirmation ConfirmationConfig `json:"confirmation"`
	RateLimit    RateLimitConfig    `json:"rate_limit"`
	Inbound      InboundConfig      `json:"inbound"`
	Dedup        DedupConfig        `json:"dedup"`
	Server       ServerConfig       `json:"server"`
	Tracing      TracingConfig      `json:"tracing"`
	// AuthorizedUserID is the only requester entitled to submit posts.
	AuthorizedUserID int64  `json:"authorized_user_id" env:"TWEETGRAM_AUTHORIZED_USER_ID"`
	DryRun           bool   `json:"dry_run" env:"TWEETGRAM_DRY_RUN"`
	LogLevel         string `json:"log_level" env:"TWEETGRAM_LOG_LEVEL"`
}

// ConfirmationConfig holds the outbound confirmation workflow settings
type ConfirmationConfig struct {
	TimeoutSec       int `json:"timeout_sec" env:"TWEETGRAM_CONFIRMATION_TIMEOUT_SEC"`
	SweepIntervalSec int `json:"sweep_interval_sec"`
	PostMaxLength    int `json:"post_max_length" env:"TWEETGRAM_POST_MAX_LENGTH"`
}

// RateLimitConfig holds spacing, retry and cache settings for outbound calls
type RateLimitConfig struct {
	MinIntervalSec int     `json:"min_interval_sec" env:"TWEETGRAM_MIN_CALL_INTERVAL_SEC"`
	MaxRetries     int     `json:"max_retries" env:"TWEETGRAM_MAX_RETRIES"`
	BackoffFactor  float64 `json:"backoff_factor"`
	CacheTTLSec    int     `json:"cache_ttl_sec"`
	CacheEnabled   bool    `json:"cache_enabled" env:"TWEETGRAM_CACHE_ENABLED"`
}

// InboundConfig holds the inbound message polling settings
type InboundConfig struct {
	Enabled          bool  `json:"enabled" env:"TWEETGRAM_INBOUND_ENABLED"`
	PollIntervalSec  int   `json:"poll_interval_sec" env:"TWEETGRAM_POLL_INTERVAL_SEC"`
	BackoffCapSec    int   `json:"backoff_cap_sec"`
	FetchPageSize    int   `json:"fetch_page_size"`
	FetchTimeoutSec  int   `json:"fetch_timeout_sec"`
	TargetChatID     int64 `json:"target_chat_id" env:"TWEETGRAM_INBOUND_TARGET_CHAT_ID"`
}

// DedupConfig holds the durable processed-message store settings
type DedupConfig struct {
	Backend    string `json:"backend" env:"TWEETGRAM_DEDUP_BACKEND"`
	Path       string `json:"path" env:"TWEETGRAM_DEDUP_PATH"`
	MaxAgeDays int    `json:"max_age_days" env:"TWEETGRAM_DEDUP_MAX_AGE_DAYS"`
}

// ServerConfig holds the health/stats HTTP server settings
type ServerConfig struct {
	Port            int `json:"port" env:"TWEETGRAM_PORT"`
	ReadTimeoutSec  int `json:"read_timeout_sec"`
	WriteTimeoutSec int `json:"write_timeout_sec"`
	IdleTimeoutSec  int `json:"idle_timeout_sec"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool    `json:"enabled" env:"TWEETGRAM_TRACING_ENABLED"`
	ServiceName  string  `json:"service_name"`
	Environment  string  `json:"environment" env:"TWEETGRAM_ENV"`
	OTLPEndpoint string  `json:"otlp_endpoint" env:"TWEETGRAM_OTLP_ENDPOINT"`
	SampleRate   float64 `json:"sample_rate"`
	UseStdout    bool    `json:"use_stdout"`
}

// ConfigError represents a configuration validation failure
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
