package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the runtime configuration of a simulation.
type Settings struct {
	Provider ProviderSettings `mapstructure:"provider"`
	Limits   LimitsSettings   `mapstructure:"limits"`
	Retry    RetrySettings    `mapstructure:"retry"`
	Log      LogSettings      `mapstructure:"log"`
	Storage  StorageSettings  `mapstructure:"storage"`
}

// ProviderSettings selects the reasoning backend.
type ProviderSettings struct {
	// Name is heuristic, anthropic, bedrock or openai.
	Name        string  `mapstructure:"name"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	// AWSRegion and AWSProfile select the AWS account used by bedrock.
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// LimitsSettings bounds the simulation.
type LimitsSettings struct {
	MaxReasoningCalls      int   `mapstructure:"max_reasoning_calls"`
	MaxConcurrentReasoning int64 `mapstructure:"max_concurrent_reasoning"`
	MaxConversationTurns   int   `mapstructure:"max_conversation_turns"`
	MailboxSize            int   `mapstructure:"mailbox_size"`
}

// RetrySettings is the caller side retry policy for reasoning service errors.
type RetrySettings struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageSettings configures snapshot persistence. An empty DBPath keeps
// snapshots in memory.
type StorageSettings struct {
	DBPath string `mapstructure:"db_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "heuristic")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.temperature", 0.7)
	v.SetDefault("provider.max_tokens", 4096)
	v.SetDefault("provider.aws_region", "")
	v.SetDefault("provider.aws_profile", "")

	v.SetDefault("limits.max_reasoning_calls", 50)
	v.SetDefault("limits.max_concurrent_reasoning", 1)
	v.SetDefault("limits.max_conversation_turns", 12)
	v.SetDefault("limits.mailbox_size", 20)

	v.SetDefault("retry.max_attempts", 0)
	v.SetDefault("retry.backoff", "2s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("storage.db_path", "")
}

// LoadSettings reads settings from defaults, the optional YAML file at path
// and AGENTORG_* environment variables. The provider API key also falls back
// to ANTHROPIC_API_KEY and OPENAI_API_KEY.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	v.SetEnvPrefix("AGENTORG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("provider.api_key", "AGENTORG_PROVIDER_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("provider.aws_region", "AGENTORG_PROVIDER_AWS_REGION", "AWS_REGION")
	_ = v.BindEnv("provider.aws_profile", "AGENTORG_PROVIDER_AWS_PROFILE", "AWS_PROFILE")

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	var errs []error
	switch s.Provider.Name {
	case "heuristic", "anthropic", "bedrock", "openai":
	default:
		errs = append(errs, fmt.Errorf("provider.name: unknown provider %q", s.Provider.Name))
	}
	if s.Limits.MaxConcurrentReasoning < 1 {
		errs = append(errs, errors.New("limits.max_concurrent_reasoning must be at least 1"))
	}
	if s.Limits.MaxReasoningCalls < 0 {
		errs = append(errs, errors.New("limits.max_reasoning_calls must not be negative"))
	}
	if s.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry.max_attempts must not be negative"))
	}
	return errors.Join(errs...)
}
