package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates a completion provider name
func (v *Validator) ValidateProvider(provider string) error {
	switch provider {
	case "openai", "anthropic":
		return nil
	default:
		return fmt.Errorf("unknown completion provider: %s", provider)
	}
}

// ValidateSchedule validates a cron schedule expression
func (v *Validator) ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sync schedule: %w", err)
	}
	return nil
}

// ValidateGateway validates gateway settings
func (v *Validator) ValidateGateway(cfg GatewayConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("gateway port must be between 1 and 65535, got %d", cfg.Port)
	}
	return nil
}

// Validate runs every check against a full config
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateProvider(cfg.Completion.Provider); err != nil {
		return err
	}
	if cfg.Completion.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Completion.APIKey, cfg.Completion.Provider); err != nil {
			return err
		}
	}
	if err := v.ValidateSchedule(cfg.Sync.Schedule); err != nil {
		return err
	}
	if err := v.ValidateGateway(cfg.Gateway); err != nil {
		return err
	}
	return nil
}
