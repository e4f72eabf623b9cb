package blueprint

import (
	json "github.com/goccy/go-json"
	"github.com/tidwall/sjson"
)

// Node type discriminators as they appear on the wire.
const (
	TypeStart       = "START"
	TypeEnd         = "END"
	TypeAgent       = "LLMNode"
	TypeTool        = "ToolNode"
	TypeRemoteAgent = "A2ANode"
)

// Node is one vertex of a blueprint. The concrete types are Start, End,
// Agent, Tool and RemoteAgent.
type Node interface {
	ID() string
	DisplayName() string
	// Type returns the wire discriminator.
	Type() string
	isNode()
}

// NodeBase holds the fields every node variant carries.
type NodeBase struct {
	NodeID string `json:"node_id,omitempty" jsonschema:"description=Unique node identifier. Generated when omitted."`
	Name   string `json:"name" jsonschema:"required,minLength=1"`
}

// ID implements Node.
func (b NodeBase) ID() string { return b.NodeID }

// DisplayName implements Node.
func (b NodeBase) DisplayName() string { return b.Name }

func (NodeBase) isNode() {}

// Start marks the single entry of the graph.
type Start struct {
	NodeBase
}

// End marks a terminal of the graph.
type End struct {
	NodeBase
}

// Agent is a model-backed node that may use tools.
type Agent struct {
	NodeBase
	Model      Provider   `json:"-"`
	Parameters Parameters `json:"parameters"`
}

// Tool is a tool server reachable over MCP.
type Tool struct {
	NodeBase
	Endpoint string `json:"tool_endpoint" jsonschema:"required,format=uri"`
}

// RemoteAgent is an agent hosted elsewhere and reached over A2A.
type RemoteAgent struct {
	NodeBase
	BaseURL string `json:"api_base_url" jsonschema:"required,format=uri"`
}

// Parameters tune an agent's generation.
type Parameters struct {
	Temperature  float64 `json:"temperature" jsonschema:"minimum=0,maximum=2,default=0.7"`
	MaxTokens    *int64  `json:"max_tokens" jsonschema:"minimum=1"`
	SystemPrompt *string `json:"system_prompt"`
}

// DefaultTemperature applies when an agent's parameters omit temperature.
const DefaultTemperature = 0.7

// DefaultParameters returns the parameters of an agent that sets none.
func DefaultParameters() Parameters {
	return Parameters{Temperature: DefaultTemperature}
}

// Type implements Node.
func (Start) Type() string { return TypeStart }

// Type implements Node.
func (End) Type() string { return TypeEnd }

// Type implements Node.
func (Agent) Type() string { return TypeAgent }

// Type implements Node.
func (Tool) Type() string { return TypeTool }

// Type implements Node.
func (RemoteAgent) Type() string { return TypeRemoteAgent }

// MarshalJSON encodes the node with its type discriminator.
func (n Start) MarshalJSON() ([]byte, error) {
	return marshalTagged("type", TypeStart, n.NodeBase)
}

// MarshalJSON encodes the node with its type discriminator.
func (n End) MarshalJSON() ([]byte, error) {
	return marshalTagged("type", TypeEnd, n.NodeBase)
}

// MarshalJSON encodes the node with its type discriminator.
func (n Tool) MarshalJSON() ([]byte, error) {
	type plain Tool
	return marshalTagged("type", TypeTool, plain(n))
}

// MarshalJSON encodes the node with its type discriminator.
func (n RemoteAgent) MarshalJSON() ([]byte, error) {
	type plain RemoteAgent
	return marshalTagged("type", TypeRemoteAgent, plain(n))
}

// MarshalJSON encodes the node with its type discriminator and nests the
// provider under model.config.
func (n Agent) MarshalJSON() ([]byte, error) {
	return marshalTagged("type", TypeAgent, struct {
		NodeBase
		Model      modelWrapper `json:"model"`
		Parameters Parameters   `json:"parameters"`
	}{n.NodeBase, modelWrapper{Config: n.Model}, n.Parameters})
}

type modelWrapper struct {
	Config Provider `json:"config"`
}

// marshalTagged encodes v and sets the discriminator field on the result.
func marshalTagged(field, value string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(data, field, value)
}
