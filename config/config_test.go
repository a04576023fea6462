package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atendai/atendai/errors"
)

func TestNewRuntimeConfigReadsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("PORT", "9090")
	t.Setenv("WEBHOOK_STRICT_SIGNATURE", "true")

	conf, err := NewRuntimeConfig()
	require.NoError(t, err)
	require.Equal(t, "sk-env", conf.OpenAIAPIKey)
	require.Equal(t, 9090, conf.Port)
	require.True(t, conf.WebhookStrictSignature)
	require.Equal(t, "0.0.0.0", conf.Host)
}

func TestValidateListsEveryMissingVariable(t *testing.T) {
	conf := &RuntimeConfig{
		OpenAIConfig: OpenAIConfig{OpenAIAPIKey: "sk"},
	}

	err := conf.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidConfig))
	require.Contains(t, err.Error(), "OPENAI_ASSISTANT_ID")
	require.Contains(t, err.Error(), "WHMCS_API_SECRET")
	require.Contains(t, err.Error(), "MESSENGER_API_TOKEN")
	require.NotContains(t, err.Error(), "OPENAI_API_KEY,")
}

func TestValidatePassesWhenComplete(t *testing.T) {
	conf := &RuntimeConfig{
		OpenAIConfig:    OpenAIConfig{OpenAIAPIKey: "sk", OpenAIAssistantID: "asst"},
		WHMCSConfig:     WHMCSConfig{WHMCSAPIURL: "https://x", WHMCSIdentifier: "i", WHMCSSecret: "s"},
		MessengerConfig: MessengerConfig{MessengerAPIURL: "https://y", MessengerToken: "t"},
	}
	require.NoError(t, conf.Validate())
	require.Empty(t, conf.MissingCredentials())
}

func TestSignatureSecret(t *testing.T) {
	conf := &RuntimeConfig{}
	require.Empty(t, conf.SignatureSecret())

	conf.WebhookSecret = defaultWebhookSecret
	require.Empty(t, conf.SignatureSecret(), "placeholder secret must not enable verification")

	conf.WebhookSecret = "real-secret"
	require.Equal(t, "real-secret", conf.SignatureSecret())
}
