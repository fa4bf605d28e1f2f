package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"mandatoja/internal/constants"
	"mandatoja/internal/models"
)

var (
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Dispatch.TickIntervalSec <= 0 {
		c.Dispatch.TickIntervalSec = constants.DefaultDispatchTickSec
	}
	if c.Dispatch.SuppressionTTLSec <= 0 {
		c.Dispatch.SuppressionTTLSec = constants.DefaultSuppressionTTLSec
	}
	if c.Session.QRPollIntervalSec <= 0 {
		c.Session.QRPollIntervalSec = constants.DefaultQRPollIntervalSec
	}
	if c.Session.QRPollMaxAttempts <= 0 {
		c.Session.QRPollMaxAttempts = constants.DefaultQRPollMaxAttempts
	}
	if c.Session.SettleDelaySec <= 0 {
		c.Session.SettleDelaySec = constants.DefaultSessionSettleSec
	}
	if c.Session.HTTPTimeoutSec <= 0 {
		c.Session.HTTPTimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Typing.MinMs <= 0 {
		c.Typing.MinMs = constants.DefaultTypingMinMs
	}
	if c.Typing.MaxMs <= 0 {
		c.Typing.MaxMs = constants.DefaultTypingMaxMs
	}
	if c.Typing.MaxMs < c.Typing.MinMs {
		return models.ConfigError{Message: "typing max_ms must not be below min_ms"}
	}
	if c.Typing.MsPerChar <= 0 {
		c.Typing.MsPerChar = constants.DefaultTypingMsPerChar
	}
	if c.Typing.InterChunkDelayMs <= 0 {
		c.Typing.InterChunkDelayMs = constants.DefaultInterChunkDelayMs
	}
	if c.Provider.RateLimitPerSec <= 0 {
		c.Provider.RateLimitPerSec = constants.DefaultProviderRatePerSec
	}
	if c.Provider.RateLimitBurst <= 0 {
		c.Provider.RateLimitBurst = constants.DefaultProviderRateBurst
	}
	if c.Provider.BreakerMaxFails == 0 {
		c.Provider.BreakerMaxFails = constants.DefaultBreakerMaxFailures
	}
	if c.Provider.BreakerTimeoutSec <= 0 {
		c.Provider.BreakerTimeoutSec = constants.DefaultBreakerTimeoutSec
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.Port = n
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
