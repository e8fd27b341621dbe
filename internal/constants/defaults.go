package constants

// Default confirmation workflow values
const (
	DefaultConfirmationTimeoutSec = 300
	DefaultSweepIntervalSec       = 60
	DefaultPostMaxLength          = 280
	MaxMediaPerPost               = 4
)

// Default rate limiting and retry values
const (
	DefaultMinCallIntervalSec = 1
	DefaultMaxRetries         = 3
	DefaultBackoffFactor      = 2.0
	DefaultCacheTTLSec        = 300
)

// Default inbound polling values
const (
	DefaultPollIntervalSec   = 60
	DefaultPollBackoffCapSec = 300
	DefaultFetchPageSize     = 50
	DefaultFetchTimeoutSec   = 30
	DefaultDedupMaxAgeDays   = 7
	DefaultDedupStorePath    = "data/processed_messages.db"
)

// Default server values
const (
	DefaultServerPort            = 8000
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)

// Cache key sanitization limit: longer inputs are assumed to be message
// bodies or credentials and never participate in cache keys.
const MaxCacheKeyInputLength = 100
