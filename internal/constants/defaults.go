package constants

// Default dispatch loop configuration values
const (
	DefaultMaxSendAttempts    = 3
	DefaultBackoffStepMs      = 600
	DefaultEligibilitySlackMs = 1500
	DefaultPerIterationLimit  = 25
	DefaultTimeBudgetMs       = 45000
	DefaultMaxErrorLength     = 2000
)

// Default sending window configuration values
const (
	DefaultWindowStartHour = 8
	DefaultWindowEndHour   = 18
	DefaultTimezone        = "America/Sao_Paulo"
)

// Default jitter configuration values
const (
	DefaultMinDelayMs      = 8000
	DefaultMaxDelayMs      = 25000
	DefaultPauseEveryN     = 20
	DefaultPauseDurationMs = 120000
)

// Default timeout and server values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultGracefulShutdownSec   = 30
	DefaultServerPort            = 8084
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 60
	DefaultServerIdleTimeoutSec  = 60
	DefaultRetentionDays         = 30
	DefaultCleanupIntervalHours  = 24
	DefaultWatchPollIntervalSec  = 3
)

// Address normalization
const (
	// DefaultCountryCode is prefixed onto bare national numbers.
	DefaultCountryCode = "55"
	// NationalNumberMaxDigits is the longest digit count still treated as a
	// national-only number (two-digit area code plus nine-digit mobile).
	NationalNumberMaxDigits = 11
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)
