package translate

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/engine"
)

type pendingCall struct {
	index int
	name  string
	args  strings.Builder
	id    string
}

// Translator accumulates tool call fragments across the events of one run.
// Fragments are kept per event namespace, so nodes running in the same
// step never share calls. It is not safe for concurrent use; each run owns
// its own.
type Translator struct {
	nodes   map[string]blueprint.Node
	meta    Metadata
	pending map[string]map[int]*pendingCall
}

// New returns a Translator resolving node ids through nodes and stamping
// every frame with meta.
func New(nodes map[string]blueprint.Node, meta Metadata) *Translator {
	return &Translator{nodes: nodes, meta: meta, pending: map[string]map[int]*pendingCall{}}
}

// Pending reports how many tool calls are being accumulated for namespace.
func (t *Translator) Pending(namespace string) int { return len(t.pending[namespace]) }

// Translate returns the frames ev produces, possibly none.
func (t *Translator) Translate(ev engine.Event) ([]Frame, error) {
	if ev.Skipped() || len(ev.Namespace) == 0 || ev.Mode != engine.ModeMessages {
		return nil, nil
	}
	nodeID, _, _ := strings.Cut(ev.Namespace[0], ":")
	node, ok := t.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("event from unknown node %q", nodeID)
	}

	switch p := ev.Payload.(type) {
	case engine.Chunk:
		return t.chunk(ev.Namespace[0], node, p)
	case engine.ToolResult:
		id := p.CallID
		return []Frame{t.frame(node, RoleTool, StreamMessage, p.Content, nil, &id)}, nil
	case engine.Reply:
		if p.Content == "" {
			return nil, nil
		}
		return []Frame{t.frame(node, RoleAI, StreamMessage, p.Content, nil, nil)}, nil
	default:
		return nil, nil
	}
}

func (t *Translator) chunk(ns string, node blueprint.Node, c engine.Chunk) ([]Frame, error) {
	for _, frag := range c.ToolCallChunks {
		calls, ok := t.pending[ns]
		if !ok {
			calls = map[int]*pendingCall{}
			t.pending[ns] = calls
		}
		call, ok := calls[frag.Index]
		if !ok {
			call = &pendingCall{index: frag.Index, name: frag.Name, id: frag.ID}
			calls[frag.Index] = call
		}
		if call.name == "" {
			call.name = frag.Name
		}
		if call.id == "" {
			call.id = frag.ID
		}
		call.args.WriteString(frag.Args)
	}

	var frames []Frame
	if c.Content != "" {
		frames = append(frames, t.frame(node, RoleAI, StreamToken, c.Content, nil, nil))
	}
	if c.FinishReason == engine.FinishToolCalls && len(t.pending[ns]) > 0 {
		calls, err := t.finalize(ns)
		if err != nil {
			return frames, err
		}
		frames = append(frames, t.frame(node, RoleAI, StreamMessage, "", calls, nil))
	}
	return frames, nil
}

// finalize parses the pending calls of ns, ordered by call id and then by
// fragment index, and resets that namespace.
func (t *Translator) finalize(ns string) ([]ToolCall, error) {
	pending := slices.SortedFunc(maps.Values(t.pending[ns]), func(a, b *pendingCall) int {
		return cmp.Or(cmp.Compare(a.id, b.id), cmp.Compare(a.index, b.index))
	})
	delete(t.pending, ns)

	calls := make([]ToolCall, 0, len(pending))
	for _, p := range pending {
		args, err := parseArgs(p.args.String())
		if err != nil {
			return nil, fmt.Errorf("tool call %s (%s): %w", p.id, p.name, err)
		}
		calls = append(calls, ToolCall{Name: p.name, Args: args, ID: p.id, Type: ToolCallType})
	}
	return calls, nil
}

func parseArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("malformed arguments %q", raw)
	}
	if !gjson.Parse(raw).IsObject() {
		return nil, fmt.Errorf("arguments %q are not a JSON object", raw)
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}

func (t *Translator) frame(node blueprint.Node, role, stream, content string, calls []ToolCall, callID *string) Frame {
	if calls == nil {
		calls = []ToolCall{}
	}
	return Frame{
		Node:       node,
		Content:    content,
		Type:       role,
		StreamType: stream,
		ToolCalls:  calls,
		ToolCallID: callID,
		Metadata:   t.meta,
	}
}
