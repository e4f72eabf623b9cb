// Package llm builds fantasy language models for blueprint agents and
// converts run state into fantasy prompts.
package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"charm.land/fantasy"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/errs"
)

// Config represents provider configuration resolved for one agent.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewProvider constructs the fantasy provider named by cfg.Provider.
// Self-hosted models go through the OpenAI-compatible provider.
func NewProvider(cfg Config) (fantasy.Provider, error) {
	switch cfg.Provider {
	case blueprint.ProviderOpenAI:
		opts := []fopenai.Option{fopenai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fopenai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fopenai.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := fopenai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openai provider: %w", err)
		}
		return provider, nil
	case blueprint.ProviderGoogle:
		opts := []fgoogle.Option{fgoogle.WithGeminiAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fgoogle.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fgoogle.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := fgoogle.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy google provider: %w", err)
		}
		return provider, nil
	case blueprint.ProviderSelfHosted:
		opts := []fopenaicompat.Option{
			fopenaicompat.WithName(blueprint.ProviderSelfHosted),
			fopenaicompat.WithBaseURL(cfg.BaseURL),
		}
		if cfg.APIKey != "" {
			opts = append(opts, fopenaicompat.WithAPIKey(cfg.APIKey))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fopenaicompat.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := fopenaicompat.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openai-compatible provider: %w", err)
		}
		return provider, nil
	default:
		return nil, errs.Configurationf("unknown model provider %q", cfg.Provider)
	}
}

// Factory turns blueprint provider selections into language models.
type Factory struct {
	Credentials config.Credentials
	HTTPClient  *http.Client
}

// NewFactory returns a Factory reading credentials from creds and sending
// provider traffic through httpProxy when set.
func NewFactory(creds config.Credentials, httpProxy string) (Factory, error) {
	client, err := ProxyClient(httpProxy)
	if err != nil {
		return Factory{}, err
	}
	return Factory{Credentials: creds, HTTPClient: client}, nil
}

// Resolve maps a provider selection to a provider Config. Built-in providers
// read their credential through the factory's credential lookup; a missing
// credential is a configuration error.
func (f Factory) Resolve(p blueprint.Provider) (Config, error) {
	cfg := Config{Provider: p.ProviderName(), Model: p.ModelName(), HTTPClient: f.HTTPClient}

	switch p := p.(type) {
	case blueprint.OpenAI:
		key, err := f.lookup(p.APIKeyName)
		if err != nil {
			return cfg, err
		}
		cfg.APIKey = key
	case blueprint.Google:
		key, err := f.lookup(p.APIKeyName)
		if err != nil {
			return cfg, err
		}
		cfg.APIKey = key
	case blueprint.SelfHosted:
		cfg.APIKey = p.APIKey
		cfg.BaseURL = p.BaseURL
	default:
		return cfg, errs.Configurationf("unknown model provider %q", p.ProviderName())
	}
	return cfg, nil
}

func (f Factory) lookup(name string) (string, error) {
	creds := f.Credentials
	if creds == nil {
		creds = config.EnvCredentials{}
	}
	key, ok := creds.Lookup(name)
	if !ok {
		return "", errs.Configurationf("credential %s is not set", name)
	}
	return key, nil
}

// LanguageModel resolves p and constructs its language model.
func (f Factory) LanguageModel(ctx context.Context, p blueprint.Provider) (fantasy.LanguageModel, error) {
	cfg, err := f.Resolve(p)
	if err != nil {
		return nil, err
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("fantasy language model %s/%s: %w", cfg.Provider, cfg.Model, err)
	}
	return model, nil
}

// ProxyClient returns an HTTP client sending traffic through httpProxy, or
// nil when httpProxy is empty.
func ProxyClient(httpProxy string) (*http.Client, error) {
	if httpProxy == "" {
		return nil, nil
	}
	proxyURL, err := url.Parse(httpProxy)
	if err != nil {
		return nil, errs.Error{Err: err, Reason: "There was an error parsing your proxy URL."}
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errs.Error{Err: fmt.Errorf("default transport is not *http.Transport"), Reason: "Could not configure proxy."}
	}
	tr := base.Clone()
	tr.Proxy = http.ProxyURL(proxyURL)
	tr.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	tr.IdleConnTimeout = 90 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second
	return &http.Client{Transport: tr}, nil
}
