package config

import (
	"encoding/json"
	"fmt"
	"os"

	"tweetgram/internal/constants"
	"tweetgram/internal/models"
	"tweetgram/internal/privacy"

	"github.com/caarlos0/env/v11"
)

var (
	ErrMissingAuthorizedUser = models.ConfigError{Message: "missing authorized user ID"}
	ErrMissingTargetChat     = models.ConfigError{Message: "inbound polling is enabled but no target chat ID is set"}
	ErrMissingDedupPath      = models.ConfigError{Message: "missing dedup store path"}
)

// LoadConfig reads the JSON config file, applies environment overrides and
// validates the result. Defaults are filled in for every unset option so the
// rest of the program never has to guard against zero values.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg models.Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment variables win over file values
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(c *models.Config) error {
	if c.AuthorizedUserID == 0 {
		return ErrMissingAuthorizedUser
	}

	if c.Confirmation.TimeoutSec <= 0 {
		c.Confirmation.TimeoutSec = constants.DefaultConfirmationTimeoutSec
	}
	if c.Confirmation.SweepIntervalSec <= 0 {
		c.Confirmation.SweepIntervalSec = constants.DefaultSweepIntervalSec
	}
	if c.Confirmation.PostMaxLength <= 0 {
		c.Confirmation.PostMaxLength = constants.DefaultPostMaxLength
	}
	if c.Confirmation.PostMaxLength > constants.DefaultPostMaxLength {
		return models.ConfigError{Message: fmt.Sprintf("post_max_length must be between 1 and %d", constants.DefaultPostMaxLength)}
	}

	if c.RateLimit.MinIntervalSec <= 0 {
		c.RateLimit.MinIntervalSec = constants.DefaultMinCallIntervalSec
	}
	if c.RateLimit.MaxRetries < 0 {
		return models.ConfigError{Message: "max_retries must not be negative"}
	}
	if c.RateLimit.MaxRetries == 0 {
		c.RateLimit.MaxRetries = constants.DefaultMaxRetries
	}
	if c.RateLimit.BackoffFactor < 1 {
		c.RateLimit.BackoffFactor = constants.DefaultBackoffFactor
	}
	if c.RateLimit.CacheTTLSec <= 0 {
		c.RateLimit.CacheTTLSec = constants.DefaultCacheTTLSec
	}

	if c.Inbound.PollIntervalSec <= 0 {
		c.Inbound.PollIntervalSec = constants.DefaultPollIntervalSec
	}
	if c.Inbound.BackoffCapSec <= 0 {
		c.Inbound.BackoffCapSec = constants.DefaultPollBackoffCapSec
	}
	if c.Inbound.FetchPageSize <= 0 {
		c.Inbound.FetchPageSize = constants.DefaultFetchPageSize
	}
	if c.Inbound.FetchTimeoutSec <= 0 {
		c.Inbound.FetchTimeoutSec = constants.DefaultFetchTimeoutSec
	}
	if c.Inbound.Enabled && c.Inbound.TargetChatID == 0 {
		return ErrMissingTargetChat
	}

	switch c.Dedup.Backend {
	case "":
		c.Dedup.Backend = "sqlite"
	case "sqlite", "file":
	default:
		return models.ConfigError{Message: fmt.Sprintf("unknown dedup backend %q (expected sqlite or file)", c.Dedup.Backend)}
	}
	if c.Dedup.Path == "" {
		c.Dedup.Path = constants.DefaultDedupStorePath
	}
	if c.Dedup.MaxAgeDays <= 0 {
		c.Dedup.MaxAgeDays = constants.DefaultDedupMaxAgeDays
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.Port > 65535 {
		return models.ConfigError{Message: "server port must be in 1-65535"}
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "tweetgram"
	}
	if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
		c.Tracing.SampleRate = 1.0
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

// Sanitized returns a copy of the config safe for startup logging, with
// identifying values masked.
func Sanitized(c *models.Config) map[string]interface{} {
	return map[string]interface{}{
		"authorized_user_id":       privacy.MaskID(c.AuthorizedUserID),
		"dry_run":                  c.DryRun,
		"log_level":                c.LogLevel,
		"confirmation_timeout_sec": c.Confirmation.TimeoutSec,
		"post_max_length":          c.Confirmation.PostMaxLength,
		"min_call_interval_sec":    c.RateLimit.MinIntervalSec,
		"max_retries":              c.RateLimit.MaxRetries,
		"cache_enabled":            c.RateLimit.CacheEnabled,
		"inbound_enabled":          c.Inbound.Enabled,
		"poll_interval_sec":        c.Inbound.PollIntervalSec,
		"target_chat_id":           privacy.MaskID(c.Inbound.TargetChatID),
		"dedup_backend":            c.Dedup.Backend,
		"dedup_path":               c.Dedup.Path,
		"dedup_max_age_days":       c.Dedup.MaxAgeDays,
		"server_port":              c.Server.Port,
		"tracing_enabled":          c.Tracing.Enabled,
	}
}
