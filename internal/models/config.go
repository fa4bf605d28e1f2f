package models

// Config is the application configuration loaded from JSON with environment
// overrides applied on top.
type Config struct {
	LogLevel string         `json:"log_level"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Session  SessionConfig  `json:"session"`
	Dispatch DispatchConfig `json:"dispatch"`
	Typing   TypingConfig   `json:"typing"`
	Provider ProviderConfig `json:"provider"`
	Retry    RetryConfig    `json:"retry"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// SessionConfig drives the session lifecycle controller.
type SessionConfig struct {
	QRPollIntervalSec int `json:"qr_poll_interval_sec"`
	QRPollMaxAttempts int `json:"qr_poll_max_attempts"`
	SettleDelaySec    int `json:"settle_delay_sec"`
	HTTPTimeoutSec    int `json:"http_timeout_sec"`
}

// DispatchConfig drives the scheduled dispatch worker.
type DispatchConfig struct {
	TickIntervalSec   int `json:"tick_interval_sec"`
	SuppressionTTLSec int `json:"suppression_ttl_sec"`
}

// TypingConfig drives the human typing cadence simulation. The typing
// duration for one chunk is MsPerChar per character, clamped to
// [MinMs, MaxMs].
type TypingConfig struct {
	MinMs             int `json:"min_ms"`
	MaxMs             int `json:"max_ms"`
	MsPerChar         int `json:"ms_per_char"`
	InterChunkDelayMs int `json:"inter_chunk_delay_ms"`
}

// ProviderConfig bounds the pressure we put on the gateway.
type ProviderConfig struct {
	RateLimitPerSec   float64 `json:"rate_limit_per_sec"`
	RateLimitBurst    int     `json:"rate_limit_burst"`
	BreakerMaxFails   uint32  `json:"breaker_max_failures"`
	BreakerTimeoutSec int     `json:"breaker_timeout_sec"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}
