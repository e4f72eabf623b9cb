package blueprint

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dotcommander/agentgraph/internal/errs"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// edit applies sjson edits to a fixture. A nil value deletes the path; a
// json.RawMessage is set raw.
func edit(t *testing.T, data []byte, edits map[string]any) []byte {
	t.Helper()
	var err error
	for path, v := range edits {
		switch v := v.(type) {
		case nil:
			data, err = sjson.DeleteBytes(data, path)
		case json.RawMessage:
			data, err = sjson.SetRawBytes(data, path, v)
		default:
			data, err = sjson.SetBytes(data, path, v)
		}
		require.NoError(t, err)
	}
	return data
}

func TestParse(t *testing.T) {
	bp, err := Parse(fixture(t, "weather.json"))
	require.NoError(t, err)

	require.Equal(t, "wf-weather", bp.WorkflowID)
	require.Equal(t, "weather desk", bp.Name)
	require.Len(t, bp.Nodes, 4)
	require.Len(t, bp.Connections, 3)

	agent, ok := bp.Nodes[1].(Agent)
	require.True(t, ok)
	require.Equal(t, "Forecaster", agent.DisplayName())
	require.Equal(t, OpenAI{Model: "gpt-4.1-mini", APIKeyName: OpenAIKeyName}, agent.Model)
	require.InDelta(t, 0.2, agent.Parameters.Temperature, 1e-9)
	require.NotNil(t, agent.Parameters.SystemPrompt)
	require.Equal(t, "You forecast the weather.", *agent.Parameters.SystemPrompt)
	require.Nil(t, agent.Parameters.MaxTokens)

	require.Equal(t, Tool{NodeBase: NodeBase{NodeID: "weather", Name: "Weather"}, Endpoint: "http://localhost:9000/mcp"}, bp.Nodes[2])
	require.Equal(t, ToolLink{ConnectionBase{ConnectionID: "c-tool", SourceNodeID: "weather", DestinationNodeID: "forecaster"}}, bp.Connections[1])
}

func TestParseDefaults(t *testing.T) {
	data := edit(t, fixture(t, "weather.json"), map[string]any{
		"workflow_id":                 nil,
		"nodes.0.node_id":             nil,
		"connections.2.connection_id": nil,
		"nodes.1.parameters":          nil,
	})
	bp, err := Parse(data)
	require.NoError(t, err)

	_, err = uuid.Parse(bp.WorkflowID)
	require.NoError(t, err)
	_, err = uuid.Parse(bp.Nodes[0].ID())
	require.NoError(t, err)
	_, err = uuid.Parse(bp.Connections[2].ID())
	require.NoError(t, err)
	require.Equal(t, DefaultParameters(), bp.Nodes[1].(Agent).Parameters)
}

func TestParseSelfHosted(t *testing.T) {
	t.Run("placeholder credential", func(t *testing.T) {
		data := edit(t, fixture(t, "weather.json"), map[string]any{
			"nodes.1.model.config": json.RawMessage(`{"model_provider":"self-hosted","model":"llama3","base_url":"http://gpu:8080/v1"}`),
		})
		bp, err := Parse(data)
		require.NoError(t, err)
		require.Equal(t, SelfHosted{Model: "llama3", APIKey: SelfHostedPlaceholderKey, BaseURL: "http://gpu:8080/v1"}, bp.Nodes[1].(Agent).Model)
	})

	t.Run("inline credential", func(t *testing.T) {
		data := edit(t, fixture(t, "weather.json"), map[string]any{
			"nodes.1.model.config": json.RawMessage(`{"model_provider":"self-hosted","model":"llama3","api_key_name":"tok","base_url":"https://gpu/v1"}`),
		})
		bp, err := Parse(data)
		require.NoError(t, err)
		require.Equal(t, "tok", bp.Nodes[1].(Agent).Model.(SelfHosted).APIKey)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("param_dict matches flat payload", func(t *testing.T) {
		flat, err := Parse(fixture(t, "weather.json"))
		require.NoError(t, err)
		nested, err := Parse(fixture(t, "weather_param_dict.json"))
		require.NoError(t, err)
		require.Equal(t, flat, nested)
	})

	t.Run("drops the bag", func(t *testing.T) {
		out, err := Normalize(fixture(t, "weather_param_dict.json"))
		require.NoError(t, err)
		require.False(t, gjson.GetBytes(out, "nodes.1.param_dict").Exists())
		require.Equal(t, "http://localhost:9000/mcp", gjson.GetBytes(out, "nodes.2.tool_endpoint").String())
	})

	t.Run("bag wins over top level", func(t *testing.T) {
		data := edit(t, fixture(t, "weather.json"), map[string]any{
			"nodes.2.param_dict": json.RawMessage(`{"tool_endpoint":"http://other:1/sse"}`),
		})
		out, err := Normalize(data)
		require.NoError(t, err)
		require.Equal(t, "http://other:1/sse", gjson.GetBytes(out, "nodes.2.tool_endpoint").String())
	})

	t.Run("non-object bag is left alone", func(t *testing.T) {
		data := edit(t, fixture(t, "weather.json"), map[string]any{"nodes.2.param_dict": "x"})
		out, err := Normalize(data)
		require.NoError(t, err)
		require.Equal(t, data, out)
	})
}

func TestParseSchemaErrors(t *testing.T) {
	tests := map[string]struct {
		edits map[string]any
		want  string
	}{
		"missing name":             {map[string]any{"name": nil}, "name: required"},
		"empty name":               {map[string]any{"name": ""}, "name: must not be empty"},
		"nodes not an array":       {map[string]any{"nodes": "x"}, "nodes: required array"},
		"missing connections":      {map[string]any{"connections": nil}, "connections: required array"},
		"unknown node type":        {map[string]any{"nodes.3.type": "Router"}, `nodes[3]: type: unknown node type "Router"`},
		"missing node type":        {map[string]any{"nodes.0.type": nil}, "nodes[0]: type: required"},
		"empty node name":          {map[string]any{"nodes.0.name": ""}, "nodes[0]: name: must not be empty"},
		"numeric node id":          {map[string]any{"nodes.0.node_id": 7}, "nodes[0]: node_id: must be a string"},
		"unknown provider":         {map[string]any{"nodes.1.model.config.model_provider": "anthropic"}, `model_provider: unknown provider "anthropic"`},
		"model out of enumeration": {map[string]any{"nodes.1.model.config.model": "gpt-3"}, `model.config.model: "gpt-3" is not one of`},
		"wrong key name":           {map[string]any{"nodes.1.model.config.api_key_name": "MY_KEY"}, "api_key_name"},
		"missing model":            {map[string]any{"nodes.1.model": nil}, "nodes[1]: model: required object"},
		"temperature too high":     {map[string]any{"nodes.1.parameters.temperature": 2.5}, "parameters.temperature: 2.5 is outside [0, 2]"},
		"negative temperature":     {map[string]any{"nodes.1.parameters.temperature": -0.1}, "outside [0, 2]"},
		"zero max tokens":          {map[string]any{"nodes.1.parameters.max_tokens": 0}, "max_tokens: must be positive"},
		"string temperature":       {map[string]any{"nodes.1.parameters.temperature": "hot"}, "parameters.decode"},
		"non-http tool endpoint":   {map[string]any{"nodes.2.tool_endpoint": "ftp://host/mcp"}, "tool_endpoint: \"ftp://host/mcp\" is not an absolute http(s) URL"},
		"relative tool endpoint":   {map[string]any{"nodes.2.tool_endpoint": "/mcp"}, "not an absolute http(s) URL"},
		"unknown connection type":  {map[string]any{"connections.0.type": "loop"}, `connections[0]: type: unknown connection type "loop"`},
		"conditional no condition": {map[string]any{"connections.2.type": "conditional"}, "connections[2]: condition: required"},
		"missing source":           {map[string]any{"connections.1.source_node_id": nil}, "connections[1]: source_node_id: required"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(edit(t, fixture(t, "weather.json"), tc.edits))
			require.ErrorIs(t, err, errs.ErrSchema)
			require.ErrorContains(t, err, tc.want)
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		_, err := Parse([]byte(`{"name":`))
		require.ErrorIs(t, err, errs.ErrSchema)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := Parse([]byte(`[1,2]`))
		require.ErrorIs(t, err, errs.ErrSchema)
	})
}

func TestNodeJSON(t *testing.T) {
	bp, err := Parse(fixture(t, "weather.json"))
	require.NoError(t, err)

	t.Run("agent carries discriminators", func(t *testing.T) {
		data, err := json.Marshal(bp.Nodes[1])
		require.NoError(t, err)
		require.Equal(t, TypeAgent, gjson.GetBytes(data, "type").String())
		require.Equal(t, ProviderOpenAI, gjson.GetBytes(data, "model.config.model_provider").String())
		require.Equal(t, "forecaster", gjson.GetBytes(data, "node_id").String())
		require.True(t, gjson.GetBytes(data, "parameters.max_tokens").Type == gjson.Null)
	})

	t.Run("round trips through parse", func(t *testing.T) {
		data, err := json.Marshal(bp)
		require.NoError(t, err)
		again, err := Parse(data)
		require.NoError(t, err)
		require.Equal(t, bp, again)
	})

	t.Run("self-hosted credential is masked", func(t *testing.T) {
		n := Agent{
			NodeBase:   NodeBase{NodeID: "a", Name: "A"},
			Model:      SelfHosted{Model: "llama3", APIKey: "secret", BaseURL: "http://gpu/v1"},
			Parameters: DefaultParameters(),
		}
		data, err := json.Marshal(n)
		require.NoError(t, err)
		require.NotContains(t, string(data), "secret")
		require.Equal(t, ProviderSelfHosted, gjson.GetBytes(data, "model.config.model_provider").String())
	})
}
