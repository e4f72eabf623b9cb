package blueprint

// Provider discriminators.
const (
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google_genai"
	ProviderSelfHosted = "self-hosted"
)

// Credential variable names of the built-in providers.
const (
	OpenAIKeyName = "OPENAI_API_KEY"
	GoogleKeyName = "GOOGLE_API_KEY"
)

// SelfHostedPlaceholderKey is sent to self-hosted servers that take no key.
const SelfHostedPlaceholderKey = "xxxxxxxxxxxxxx"

// OpenAIModels lists the models an OpenAI agent may select.
var OpenAIModels = []string{"gpt-4.1-mini", "gpt-4.1-nano", "gpt-4o-mini", "o4-mini", "o3-mini", "gpt-4.1", "gpt-4o"}

// GoogleModels lists the models a Google agent may select.
var GoogleModels = []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.0-flash-lite"}

// Provider selects the model behind an agent. The concrete types are
// OpenAI, Google and SelfHosted.
type Provider interface {
	ProviderName() string
	ModelName() string
	isProvider()
}

// OpenAI selects a hosted OpenAI model. The credential is read from the
// variable named by APIKeyName.
type OpenAI struct {
	Model      string `json:"model" jsonschema:"required"`
	APIKeyName string `json:"api_key_name" jsonschema:"required,enum=OPENAI_API_KEY"`
}

// Google selects a hosted Gemini model.
type Google struct {
	Model      string `json:"model" jsonschema:"required"`
	APIKeyName string `json:"api_key_name" jsonschema:"required,enum=GOOGLE_API_KEY"`
}

// SelfHosted selects a model on an OpenAI-compatible server. APIKey holds the
// credential itself.
type SelfHosted struct {
	Model   string `json:"model" jsonschema:"required,minLength=1"`
	APIKey  string `json:"api_key_name,omitempty" jsonschema:"default=xxxxxxxxxxxxxx"`
	BaseURL string `json:"base_url" jsonschema:"required,format=uri"`
}

// ProviderName and ModelName implement Provider.
func (OpenAI) ProviderName() string     { return ProviderOpenAI }
func (Google) ProviderName() string     { return ProviderGoogle }
func (SelfHosted) ProviderName() string { return ProviderSelfHosted }

func (p OpenAI) ModelName() string     { return p.Model }
func (p Google) ModelName() string     { return p.Model }
func (p SelfHosted) ModelName() string { return p.Model }

func (OpenAI) isProvider()     {}
func (Google) isProvider()     {}
func (SelfHosted) isProvider() {}

// MarshalJSON encodes the provider with its model_provider discriminator.
func (p OpenAI) MarshalJSON() ([]byte, error) {
	type plain OpenAI
	return marshalTagged("model_provider", ProviderOpenAI, plain(p))
}

// MarshalJSON encodes the provider with its model_provider discriminator.
func (p Google) MarshalJSON() ([]byte, error) {
	type plain Google
	return marshalTagged("model_provider", ProviderGoogle, plain(p))
}

// MarshalJSON masks the inline credential so it never leaves the process.
func (p SelfHosted) MarshalJSON() ([]byte, error) {
	type plain SelfHosted
	masked := plain(p)
	if masked.APIKey != "" {
		masked.APIKey = "********"
	}
	return marshalTagged("model_provider", ProviderSelfHosted, masked)
}
