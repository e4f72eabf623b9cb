package blueprint

// Connection type discriminators as they appear on the wire.
const (
	TypeDirect      = "direct"
	TypeConditional = "conditional"
	TypeToolLink    = "tool-connection"
)

// Connection is one edge of a blueprint. The concrete types are Direct,
// Conditional and ToolLink.
type Connection interface {
	ID() string
	Source() string
	Destination() string
	// Type returns the wire discriminator.
	Type() string
	isConnection()
}

// ConnectionBase holds the fields every connection variant carries.
type ConnectionBase struct {
	ConnectionID      string `json:"connection_id,omitempty"`
	SourceNodeID      string `json:"source_node_id" jsonschema:"required"`
	DestinationNodeID string `json:"destination_node_id" jsonschema:"required"`
}

// ID implements Connection.
func (c ConnectionBase) ID() string { return c.ConnectionID }

// Source implements Connection.
func (c ConnectionBase) Source() string { return c.SourceNodeID }

// Destination implements Connection.
func (c ConnectionBase) Destination() string { return c.DestinationNodeID }

func (ConnectionBase) isConnection() {}

// Direct is an unconditional control-flow edge.
type Direct struct {
	ConnectionBase
}

// Conditional is a control-flow edge guarded by a condition expression. The
// condition is carried but never evaluated.
type Conditional struct {
	ConnectionBase
	Condition string `json:"condition" jsonschema:"required,minLength=1"`
}

// ToolLink attaches a Tool node to the Agent that may call it. It carries no
// control flow.
type ToolLink struct {
	ConnectionBase
}

// Type implements Connection.
func (Direct) Type() string { return TypeDirect }

// Type implements Connection.
func (Conditional) Type() string { return TypeConditional }

// Type implements Connection.
func (ToolLink) Type() string { return TypeToolLink }

// MarshalJSON encodes the connection with its type discriminator.
func (c Direct) MarshalJSON() ([]byte, error) {
	return marshalTagged("type", TypeDirect, c.ConnectionBase)
}

// MarshalJSON encodes the connection with its type discriminator.
func (c Conditional) MarshalJSON() ([]byte, error) {
	type plain Conditional
	return marshalTagged("type", TypeConditional, plain(c))
}

// MarshalJSON encodes the connection with its type discriminator.
func (c ToolLink) MarshalJSON() ([]byte, error) {
	return marshalTagged("type", TypeToolLink, c.ConnectionBase)
}
