package config

import (
	"encoding/json"
	"fmt"
	"os"

	"zapdispatch/internal/constants"
	"zapdispatch/internal/models"
)

var (
	ErrMissingTransportURL = models.ConfigError{Message: "missing transport base URL"}
	ErrMissingInstance     = models.ConfigError{Message: "missing transport instance name"}
	ErrMissingDBPath       = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Transport.BaseURL == "" {
		return ErrMissingTransportURL
	}
	if c.Transport.Instance == "" {
		return ErrMissingInstance
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Transport.TimeoutSec <= 0 {
		c.Transport.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
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

	if c.Dispatch.MaxAttempts <= 0 {
		c.Dispatch.MaxAttempts = constants.DefaultMaxSendAttempts
	}
	if c.Dispatch.BackoffStepMs <= 0 {
		c.Dispatch.BackoffStepMs = constants.DefaultBackoffStepMs
	}
	if c.Dispatch.SlackMs <= 0 {
		c.Dispatch.SlackMs = constants.DefaultEligibilitySlackMs
	}
	if c.Dispatch.PerIterationLimit <= 0 {
		c.Dispatch.PerIterationLimit = constants.DefaultPerIterationLimit
	}
	if c.Dispatch.TimeBudgetMs <= 0 {
		c.Dispatch.TimeBudgetMs = constants.DefaultTimeBudgetMs
	}

	if c.Window.StartHour == 0 && c.Window.EndHour == 0 {
		c.Window.StartHour = constants.DefaultWindowStartHour
		c.Window.EndHour = constants.DefaultWindowEndHour
	}
	if c.Window.StartHour < 0 || c.Window.StartHour > 23 ||
		c.Window.EndHour < 1 || c.Window.EndHour > 24 ||
		c.Window.StartHour >= c.Window.EndHour {
		return models.ConfigError{Message: fmt.Sprintf("invalid sending window %d-%d", c.Window.StartHour, c.Window.EndHour)}
	}
	if c.Window.Timezone == "" {
		c.Window.Timezone = constants.DefaultTimezone
	}

	if c.Jitter.MinDelayMs <= 0 {
		c.Jitter.MinDelayMs = constants.DefaultMinDelayMs
	}
	if c.Jitter.MaxDelayMs <= 0 {
		c.Jitter.MaxDelayMs = constants.DefaultMaxDelayMs
	}
	if c.Jitter.PauseEveryN < 0 {
		c.Jitter.PauseEveryN = constants.DefaultPauseEveryN
	}
	if c.Jitter.PauseDurationMs <= 0 {
		c.Jitter.PauseDurationMs = constants.DefaultPauseDurationMs
	}

	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("ZAPDISPATCH_TRANSPORT_URL"); url != "" {
		c.Transport.BaseURL = url
	}
	if token := os.Getenv("ZAPDISPATCH_TRANSPORT_TOKEN"); token != "" {
		c.Transport.APIToken = token
	}
	if instance := os.Getenv("ZAPDISPATCH_INSTANCE"); instance != "" {
		c.Transport.Instance = instance
	}
	if path := os.Getenv("ZAPDISPATCH_DB_PATH"); path != "" {
		c.Database.Path = path
	}

	// Secrets should come from the environment rather than the config file
	if key := os.Getenv("ZAPDISPATCH_API_KEY"); key != "" {
		c.Server.APIKey = key
	}
	if secret := os.Getenv("ZAPDISPATCH_DB_SECRET"); secret != "" {
		c.Database.EncryptionSecret = secret
	}
}
