package constants

// Default scheduling configuration values
const (
	DefaultDispatchTickSec     = 10
	DefaultSuppressionTTLSec   = 60
	DefaultQRPollIntervalSec   = 5
	DefaultQRPollMaxAttempts   = 60
	DefaultSessionSettleSec    = 2
	DefaultRetryBackoffMs      = 500
	DefaultMaxBackoffMs        = 5000
	DefaultMaxAttempts         = 3
	DefaultServerPort          = 8084
)

// Default typing simulation values
const (
	DefaultTypingMinMs         = 2000
	DefaultTypingMaxMs         = 6000
	DefaultTypingMsPerChar     = 55
	DefaultInterChunkDelayMs   = 1500
)

// Default provider pressure values
const (
	DefaultProviderRatePerSec  = 1.0
	DefaultProviderRateBurst   = 3
	DefaultBreakerMaxFailures  = 5
	DefaultBreakerTimeoutSec   = 30
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
)

// Encryption parameters for at-rest protection of contact data
const (
	EncryptionSalt       = "mandatoja-salt-v1"
	EncryptionLookupSalt = "mandatoja-lookup-salt-v1"
	EncryptionNonceSize  = 12
	EncryptionKeySize    = 32
	EncryptionIterations = 100000
)
