package blueprint

import (
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var schemaReflector = jsonschema.Reflector{
	AllowAdditionalProperties:  true,
	DoNotReference:             true,
	RequiredFromJSONSchemaTags: true,
}

// JSONSchema describes the blueprint wire format, including the legacy
// param_dict bag accepted on agent, tool and remote agent nodes.
func JSONSchema() *jsonschema.Schema {
	openAI := variant(&OpenAI{}, "model_provider", ProviderOpenAI)
	openAI.Properties.Set("model", enumSchema(OpenAIModels))
	google := variant(&Google{}, "model_provider", ProviderGoogle)
	google.Properties.Set("model", enumSchema(GoogleModels))
	selfHosted := variant(&SelfHosted{}, "model_provider", ProviderSelfHosted)

	modelProps := orderedmap.New[string, *jsonschema.Schema]()
	modelProps.Set("config", &jsonschema.Schema{OneOf: []*jsonschema.Schema{openAI, google, selfHosted}})
	agent := variant(&Agent{}, "type", TypeAgent)
	agent.Properties.Set("model", &jsonschema.Schema{
		Type:       "object",
		Properties: modelProps,
		Required:   []string{"config"},
	})
	agent.Required = append(agent.Required, "model")

	nodes := []*jsonschema.Schema{
		variant(&Start{}, "type", TypeStart),
		variant(&End{}, "type", TypeEnd),
		agent,
		variant(&Tool{}, "type", TypeTool),
		variant(&RemoteAgent{}, "type", TypeRemoteAgent),
	}
	for _, n := range nodes[2:] {
		n.Properties.Set("param_dict", &jsonschema.Schema{
			Type:        "object",
			Description: "Legacy bag whose keys are lifted to the node itself.",
		})
	}

	connections := []*jsonschema.Schema{
		variant(&Direct{}, "type", TypeDirect),
		variant(&Conditional{}, "type", TypeConditional),
		variant(&ToolLink{}, "type", TypeToolLink),
	}

	props := orderedmap.New[string, *jsonschema.Schema]()
	props.Set("workflow_id", &jsonschema.Schema{Type: "string", Description: "Generated when omitted."})
	props.Set("name", &jsonschema.Schema{Type: "string"})
	props.Set("nodes", &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{OneOf: nodes}})
	props.Set("connections", &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{OneOf: connections}})

	return &jsonschema.Schema{
		Version:    jsonschema.Version,
		Title:      "Blueprint",
		Type:       "object",
		Properties: props,
		Required:   []string{"name", "nodes", "connections"},
	}
}

func variant(v any, field, value string) *jsonschema.Schema {
	s := schemaReflector.Reflect(v)
	s.Version = ""
	s.ID = ""
	s.Properties.Set(field, &jsonschema.Schema{Type: "string", Const: value})
	s.Required = append([]string{field}, s.Required...)
	return s
}

func enumSchema(values []string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}
