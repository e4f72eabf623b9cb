package blueprint

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dotcommander/agentgraph/internal/errs"
)

// paramDictKeys lists, per node type, the keys lifted out of a legacy
// param_dict bag.
var paramDictKeys = map[string][]string{
	TypeAgent:       {"model", "parameters"},
	TypeTool:        {"tool_endpoint"},
	TypeRemoteAgent: {"api_base_url"},
}

// Normalize lifts the keys of each node's param_dict object to the node's
// top level and drops the bag. Payloads without param_dict are returned
// unchanged.
func Normalize(data []byte) ([]byte, error) {
	nodes := gjson.GetBytes(data, "nodes")
	if !nodes.IsArray() {
		return data, nil
	}

	out := data
	var err error
	for i, n := range nodes.Array() {
		bag := n.Get("param_dict")
		if !bag.IsObject() {
			continue
		}
		for _, key := range paramDictKeys[n.Get("type").String()] {
			v := bag.Get(key)
			if !v.Exists() {
				continue
			}
			out, err = sjson.SetRawBytes(out, "nodes."+strconv.Itoa(i)+"."+key, []byte(v.Raw))
			if err != nil {
				return nil, fmt.Errorf("nodes[%d]: lift %s: %w", i, key, err)
			}
		}
		out, err = sjson.DeleteBytes(out, "nodes."+strconv.Itoa(i)+".param_dict")
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: drop param_dict: %w", i, err)
		}
	}
	return out, nil
}

// Parse normalizes and decodes a blueprint payload. Every failure wraps
// errs.ErrSchema and names the offending index and field.
func Parse(data []byte) (*Blueprint, error) {
	if !gjson.ValidBytes(data) {
		return nil, errs.Schemaf("payload is not valid JSON")
	}
	data, err := Normalize(data)
	if err != nil {
		return nil, errs.Schemaf("%w", err)
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errs.Schemaf("blueprint must be a JSON object")
	}

	bp := &Blueprint{}
	if bp.WorkflowID, err = optionalID(root, "workflow_id"); err != nil {
		return nil, errs.Schemaf("%w", err)
	}
	if bp.Name, err = requireString(root, "name"); err != nil {
		return nil, errs.Schemaf("%w", err)
	}

	nodes := root.Get("nodes")
	if !nodes.IsArray() {
		return nil, errs.Schemaf("nodes: required array")
	}
	for i, raw := range nodes.Array() {
		n, err := parseNode(raw)
		if err != nil {
			return nil, errs.Schemaf("nodes[%d]: %w", i, err)
		}
		bp.Nodes = append(bp.Nodes, n)
	}

	conns := root.Get("connections")
	if !conns.IsArray() {
		return nil, errs.Schemaf("connections: required array")
	}
	for i, raw := range conns.Array() {
		c, err := parseConnection(raw)
		if err != nil {
			return nil, errs.Schemaf("connections[%d]: %w", i, err)
		}
		bp.Connections = append(bp.Connections, c)
	}

	return bp, nil
}

func parseNode(raw gjson.Result) (Node, error) {
	if !raw.IsObject() {
		return nil, errors.New("must be an object")
	}
	typ, err := requireString(raw, "type")
	if err != nil {
		return nil, err
	}

	var base NodeBase
	if base.NodeID, err = optionalID(raw, "node_id"); err != nil {
		return nil, err
	}
	if base.Name, err = requireString(raw, "name"); err != nil {
		return nil, err
	}

	switch typ {
	case TypeStart:
		return Start{base}, nil
	case TypeEnd:
		return End{base}, nil
	case TypeAgent:
		return parseAgent(raw, base)
	case TypeTool:
		ep, err := httpURL(raw, "tool_endpoint")
		if err != nil {
			return nil, err
		}
		return Tool{NodeBase: base, Endpoint: ep}, nil
	case TypeRemoteAgent:
		u, err := httpURL(raw, "api_base_url")
		if err != nil {
			return nil, err
		}
		return RemoteAgent{NodeBase: base, BaseURL: u}, nil
	default:
		return nil, fmt.Errorf("type: unknown node type %q", typ)
	}
}

func parseAgent(raw gjson.Result, base NodeBase) (Agent, error) {
	if !raw.Get("model").IsObject() {
		return Agent{}, errors.New("model: required object")
	}
	cfg := raw.Get("model.config")
	if !cfg.IsObject() {
		return Agent{}, errors.New("model.config: required object")
	}
	p, err := parseProvider(cfg)
	if err != nil {
		return Agent{}, fmt.Errorf("model.config.%w", err)
	}
	params, err := parseParameters(raw.Get("parameters"))
	if err != nil {
		return Agent{}, fmt.Errorf("parameters.%w", err)
	}
	return Agent{NodeBase: base, Model: p, Parameters: params}, nil
}

func parseProvider(cfg gjson.Result) (Provider, error) {
	name, err := requireString(cfg, "model_provider")
	if err != nil {
		return nil, err
	}

	switch name {
	case ProviderOpenAI:
		model, err := enumString(cfg, "model", OpenAIModels)
		if err != nil {
			return nil, err
		}
		key, err := enumString(cfg, "api_key_name", []string{OpenAIKeyName})
		if err != nil {
			return nil, err
		}
		return OpenAI{Model: model, APIKeyName: key}, nil
	case ProviderGoogle:
		model, err := enumString(cfg, "model", GoogleModels)
		if err != nil {
			return nil, err
		}
		key, err := enumString(cfg, "api_key_name", []string{GoogleKeyName})
		if err != nil {
			return nil, err
		}
		return Google{Model: model, APIKeyName: key}, nil
	case ProviderSelfHosted:
		model, err := requireString(cfg, "model")
		if err != nil {
			return nil, err
		}
		key, ok, err := optionalString(cfg, "api_key_name")
		if err != nil {
			return nil, err
		}
		if !ok {
			key = SelfHostedPlaceholderKey
		}
		baseURL, err := httpURL(cfg, "base_url")
		if err != nil {
			return nil, err
		}
		return SelfHosted{Model: model, APIKey: key, BaseURL: baseURL}, nil
	default:
		return nil, fmt.Errorf("model_provider: unknown provider %q", name)
	}
}

type parametersWire struct {
	Temperature  *float64 `json:"temperature"`
	MaxTokens    *int64   `json:"max_tokens"`
	SystemPrompt *string  `json:"system_prompt"`
}

func parseParameters(raw gjson.Result) (Parameters, error) {
	p := DefaultParameters()
	if !raw.Exists() || raw.Type == gjson.Null {
		return p, nil
	}
	if !raw.IsObject() {
		return p, errors.New("must be an object")
	}

	var w parametersWire
	if err := json.Unmarshal([]byte(raw.Raw), &w); err != nil {
		return p, fmt.Errorf("decode: %w", err)
	}
	if w.Temperature != nil {
		if t := *w.Temperature; t < 0 || t > 2 {
			return p, fmt.Errorf("temperature: %v is outside [0, 2]", t)
		}
		p.Temperature = *w.Temperature
	}
	if w.MaxTokens != nil {
		if *w.MaxTokens <= 0 {
			return p, fmt.Errorf("max_tokens: must be positive, got %d", *w.MaxTokens)
		}
		p.MaxTokens = w.MaxTokens
	}
	p.SystemPrompt = w.SystemPrompt
	return p, nil
}

func parseConnection(raw gjson.Result) (Connection, error) {
	if !raw.IsObject() {
		return nil, errors.New("must be an object")
	}
	typ, err := requireString(raw, "type")
	if err != nil {
		return nil, err
	}

	var base ConnectionBase
	if base.ConnectionID, err = optionalID(raw, "connection_id"); err != nil {
		return nil, err
	}
	if base.SourceNodeID, err = requireString(raw, "source_node_id"); err != nil {
		return nil, err
	}
	if base.DestinationNodeID, err = requireString(raw, "destination_node_id"); err != nil {
		return nil, err
	}

	switch typ {
	case TypeDirect:
		return Direct{base}, nil
	case TypeConditional:
		cond, err := requireString(raw, "condition")
		if err != nil {
			return nil, err
		}
		return Conditional{ConnectionBase: base, Condition: cond}, nil
	case TypeToolLink:
		return ToolLink{base}, nil
	default:
		return nil, fmt.Errorf("type: unknown connection type %q", typ)
	}
}

func requireString(r gjson.Result, field string) (string, error) {
	v, ok, err := optionalString(r, field)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: required", field)
	}
	if v == "" {
		return "", fmt.Errorf("%s: must not be empty", field)
	}
	return v, nil
}

// optionalString treats an absent field and an explicit null alike.
func optionalString(r gjson.Result, field string) (string, bool, error) {
	v := r.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return "", false, nil
	}
	if v.Type != gjson.String {
		return "", false, fmt.Errorf("%s: must be a string", field)
	}
	return v.Str, true, nil
}

func optionalID(r gjson.Result, field string) (string, error) {
	v, ok, err := optionalString(r, field)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return uuid.NewString(), nil
	}
	return v, nil
}

func enumString(r gjson.Result, field string, allowed []string) (string, error) {
	v, err := requireString(r, field)
	if err != nil {
		return "", err
	}
	if !slices.Contains(allowed, v) {
		return "", fmt.Errorf("%s: %q is not one of %v", field, v, allowed)
	}
	return v, nil
}

func httpURL(r gjson.Result, field string) (string, error) {
	v, err := requireString(r, field)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%s: %q is not an absolute http(s) URL", field, v)
	}
	return v, nil
}
