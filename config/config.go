package config

import (
	"strings"

	"github.com/atendai/atendai/errors"
)

type (
	LogConfig struct {
		LogLevel   string `env:"LOG_LEVEL"`
		LogHandler string `env:"LOG_HANDLER"`
	}

	OpenAIConfig struct {
		OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
		OpenAIAssistantID string `env:"OPENAI_ASSISTANT_ID"`
	}

	WHMCSConfig struct {
		WHMCSAPIURL     string `env:"WHMCS_API_URL"`
		WHMCSIdentifier string `env:"WHMCS_API_IDENTIFIER"`
		WHMCSSecret     string `env:"WHMCS_API_SECRET"`
	}

	MessengerConfig struct {
		MessengerAPIURL string `env:"MESSENGER_API_URL"`
		MessengerToken  string `env:"MESSENGER_API_TOKEN"`
	}

	WebhookConfig struct {
		WebhookSecret          string `env:"WEBHOOK_SECRET"`
		WebhookStrictSignature bool   `env:"WEBHOOK_STRICT_SIGNATURE"`
	}

	CacheConfig struct {
		RedisURL string `env:"REDIS_URL"`
	}

	RuntimeConfig struct {
		LogConfig
		OpenAIConfig
		WHMCSConfig
		MessengerConfig
		WebhookConfig
		CacheConfig
		Host string `env:"HOST"`
		Port int    `env:"PORT"`
	}
)

// defaultWebhookSecret is the placeholder value from the sample environment.
// As long as the operator has not replaced it, signature checking stays
// disabled.
const defaultWebhookSecret = "change-me"

func NewRuntimeConfig() (*RuntimeConfig, error) {
	conf := &RuntimeConfig{
		LogConfig: LogConfig{
			LogLevel:   "debug",
			LogHandler: "default",
		},
		Host: "0.0.0.0",
		Port: 8080,
	}

	if err := resolveConfig(conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// Validate fails fast with every missing required name in one message.
func (c *RuntimeConfig) Validate() error {
	missing := c.MissingCredentials()
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MissingCredentials reports which required external credentials are absent.
// Shared by Validate and by the health endpoint.
func (c *RuntimeConfig) MissingCredentials() []string {
	required := []struct {
		name  string
		value string
	}{
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"OPENAI_ASSISTANT_ID", c.OpenAIAssistantID},
		{"WHMCS_API_URL", c.WHMCSAPIURL},
		{"WHMCS_API_IDENTIFIER", c.WHMCSIdentifier},
		{"WHMCS_API_SECRET", c.WHMCSSecret},
		{"MESSENGER_API_URL", c.MessengerAPIURL},
		{"MESSENGER_API_TOKEN", c.MessengerToken},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

// SignatureSecret returns the webhook shared secret, or empty when it is
// unset or still the placeholder value.
func (c *RuntimeConfig) SignatureSecret() string {
	if c.WebhookSecret == "" || c.WebhookSecret == defaultWebhookSecret {
		return ""
	}
	return c.WebhookSecret
}
