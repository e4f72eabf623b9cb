// Package proto defines the conversation state shared by executable graph
// nodes.
package proto

// Role identifies the author of a message.
type Role string

// Roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Function is the name and raw JSON arguments of a requested tool call.
type Function struct {
	Name      string
	Arguments []byte
}

// ToolCall is a tool invocation requested by an assistant message, or, on a
// tool message, the call the message answers.
type ToolCall struct {
	ID       string
	Function Function
	IsError  bool
}

// Message is one entry of the run state.
type Message struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall
	// Sender is the node id that produced the message; empty for input.
	Sender string
	// Remote is set on replies from remote agents.
	Remote *RemoteRef
}

// RemoteRef identifies the remote conversation a reply belongs to.
type RemoteRef struct {
	ContextID string
	TaskID    string
}

// Conversation is the ordered message state of one run.
type Conversation []Message

// Last returns the most recent message, if any.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// PreviousRemote returns the remote reference of the message just before the
// last one, which is where a remote agent's earlier reply sits when the
// conversation loops back to it.
func (c Conversation) PreviousRemote() *RemoteRef {
	if len(c) < 2 {
		return nil
	}
	return c[len(c)-2].Remote
}
