package models

type TransportConfig struct {
	BaseURL    string `json:"baseUrl"`
	APIToken   string `json:"apiToken"`
	Instance   string `json:"instance"`
	TimeoutSec int    `json:"timeoutSec"`
}

type ServerConfig struct {
	Port            int    `json:"port"`
	APIKey          string `json:"apiKey"`
	ReadTimeoutSec  int    `json:"readTimeoutSec"`
	WriteTimeoutSec int    `json:"writeTimeoutSec"`
	IdleTimeoutSec  int    `json:"idleTimeoutSec"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
	// EncryptionSecret enables at-rest encryption of recipient numbers
	// when non-empty.
	EncryptionSecret string `json:"encryptionSecret"`
}

type DispatchConfig struct {
	MaxAttempts       int   `json:"maxAttempts"`
	BackoffStepMs     int   `json:"backoffStepMs"`
	SlackMs           int   `json:"slackMs"`
	PerIterationLimit int   `json:"perIterationLimit"`
	TimeBudgetMs      int64 `json:"timeBudgetMs"`
}

type WindowConfig struct {
	StartHour int    `json:"startHour"`
	EndHour   int    `json:"endHour"`
	Timezone  string `json:"timezone"`
}

type JitterConfig struct {
	MinDelayMs      int64 `json:"minDelayMs"`
	MaxDelayMs      int64 `json:"maxDelayMs"`
	PauseEveryN     int   `json:"pauseEveryN"`
	PauseDurationMs int64 `json:"pauseDurationMs"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	ServiceName  string  `json:"serviceName"`
	OTLPEndpoint string  `json:"otlpEndpoint"`
	SampleRate   float64 `json:"sampleRate"`
	UseStdout    bool    `json:"useStdout"`
}

type Config struct {
	Transport     TransportConfig `json:"transport"`
	Server        ServerConfig    `json:"server"`
	Database      DatabaseConfig  `json:"database"`
	Dispatch      DispatchConfig  `json:"dispatch"`
	Window        WindowConfig    `json:"window"`
	Jitter        JitterConfig    `json:"jitter"`
	Tracing       TracingConfig   `json:"tracing"`
	RetentionDays int             `json:"retentionDays"`
	LogLevel      string          `json:"logLevel"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
