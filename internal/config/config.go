package config

// Config represents the main whatif configuration
type Config struct {
	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Remote store
	Remote RemoteConfig `json:"remote" mapstructure:"remote"`

	// Chat completion
	Completion CompletionConfig `json:"completion" mapstructure:"completion"`

	// Gateway
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Reconciliation sweep
	Sync SyncConfig `json:"sync" mapstructure:"sync"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// RemoteConfig holds remote store configuration
type RemoteConfig struct {
	// DatabasePath is the chat database. Empty disables the
	// authenticated path entirely.
	DatabasePath string `json:"database_path" mapstructure:"database_path"`
}

// CompletionConfig holds chat-completion provider configuration
type CompletionConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// SyncConfig holds reconciliation configuration
type SyncConfig struct {
	// Schedule is a cron expression; empty disables scheduled sweeps.
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Completion: CompletionConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   256,
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 8790,
		},
		Sync: SyncConfig{
			Schedule: "@every 15m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}
