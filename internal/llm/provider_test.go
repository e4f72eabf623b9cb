package llm

import (
	"context"
	"errors"
	"testing"

	"charm.land/fantasy"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/errs"
)

func TestResolve(t *testing.T) {
	f := Factory{Credentials: config.StaticCredentials{blueprint.OpenAIKeyName: "sk-test"}}

	t.Run("openai reads the named credential", func(t *testing.T) {
		cfg, err := f.Resolve(blueprint.OpenAI{Model: "gpt-4o", APIKeyName: blueprint.OpenAIKeyName})
		require.NoError(t, err)
		require.Equal(t, Config{Provider: blueprint.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test"}, cfg)
	})

	t.Run("missing credential is a configuration error", func(t *testing.T) {
		_, err := f.Resolve(blueprint.Google{Model: "gemini-2.5-flash", APIKeyName: blueprint.GoogleKeyName})
		require.ErrorIs(t, err, errs.ErrConfiguration)
		require.ErrorContains(t, err, "GOOGLE_API_KEY is not set")
	})

	t.Run("self-hosted carries its own credential", func(t *testing.T) {
		cfg, err := f.Resolve(blueprint.SelfHosted{Model: "llama3", APIKey: "tok", BaseURL: "http://gpu:8080/v1"})
		require.NoError(t, err)
		require.Equal(t, Config{Provider: blueprint.ProviderSelfHosted, Model: "llama3", APIKey: "tok", BaseURL: "http://gpu:8080/v1"}, cfg)
	})

	t.Run("defaults to the environment", func(t *testing.T) {
		t.Setenv(blueprint.OpenAIKeyName, "sk-env")
		cfg, err := Factory{}.Resolve(blueprint.OpenAI{Model: "gpt-4o", APIKeyName: blueprint.OpenAIKeyName})
		require.NoError(t, err)
		require.Equal(t, "sk-env", cfg.APIKey)
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		p, err := NewProvider(Config{Provider: blueprint.ProviderOpenAI, APIKey: "sk-test"})
		require.NoError(t, err)
		require.NotNil(t, p)
	})

	t.Run("self-hosted", func(t *testing.T) {
		p, err := NewProvider(Config{Provider: blueprint.ProviderSelfHosted, APIKey: "tok", BaseURL: "http://gpu:8080/v1"})
		require.NoError(t, err)
		require.NotNil(t, p)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewProvider(Config{Provider: "anthropic"})
		require.ErrorIs(t, err, errs.ErrConfiguration)
	})
}

func TestFactoryLanguageModel(t *testing.T) {
	f := Factory{Credentials: config.StaticCredentials{}}
	model, err := f.LanguageModel(context.Background(), blueprint.SelfHosted{Model: "llama3", BaseURL: "http://gpu:8080/v1"})
	require.NoError(t, err)
	require.NotNil(t, model)

	_, err = f.LanguageModel(context.Background(), blueprint.OpenAI{Model: "gpt-4o", APIKeyName: blueprint.OpenAIKeyName})
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestProxyClient(t *testing.T) {
	client, err := ProxyClient("")
	require.NoError(t, err)
	require.Nil(t, client)

	client, err = ProxyClient("http://127.0.0.1:8080")
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = ProxyClient("://bad")
	var uerr errs.Error
	require.ErrorAs(t, err, &uerr)
}

type pingModel struct {
	fantasy.LanguageModel
	got fantasy.Call
	err error
}

func (m *pingModel) Generate(_ context.Context, call fantasy.Call) (*fantasy.Response, error) {
	m.got = call
	if m.err != nil {
		return nil, m.err
	}
	return &fantasy.Response{}, nil
}

func TestPing(t *testing.T) {
	m := &pingModel{}
	require.NoError(t, Ping(context.Background(), m))
	require.Len(t, m.got.Prompt, 1)
	text, ok := fantasy.AsMessagePart[fantasy.TextPart](m.got.Prompt[0].Content[0])
	require.True(t, ok)
	require.Equal(t, PingPrompt, text.Text)

	m.err = errors.New("401 unauthorized")
	require.ErrorContains(t, Ping(context.Background(), m), "401 unauthorized")
}
