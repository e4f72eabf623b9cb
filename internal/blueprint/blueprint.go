// Package blueprint models the declarative description of a multi-agent
// pipeline: typed nodes, typed connections and the rules that make them a
// well-formed graph.
package blueprint

// Blueprint is a parsed pipeline description.
type Blueprint struct {
	WorkflowID  string       `json:"workflow_id"`
	Name        string       `json:"name"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// NodesByID indexes the nodes by identifier. Later duplicates win; Validate
// rejects duplicates before anything relies on the index.
func (b *Blueprint) NodesByID() map[string]Node {
	out := make(map[string]Node, len(b.Nodes))
	for _, n := range b.Nodes {
		out[n.ID()] = n
	}
	return out
}

// NodesOf returns the nodes of concrete type T in declaration order.
func NodesOf[T Node](b *Blueprint) []T {
	var out []T
	for _, n := range b.Nodes {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// ConnectionsOf returns the connections of concrete type T in declaration
// order.
func ConnectionsOf[T Connection](b *Blueprint) []T {
	var out []T
	for _, c := range b.Connections {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// EntryConnection returns the direct connection leaving the Start node. It
// reports false unless exactly one Start with exactly one outgoing direct
// connection exists.
func (b *Blueprint) EntryConnection() (Direct, bool) {
	starts := NodesOf[Start](b)
	if len(starts) != 1 {
		return Direct{}, false
	}
	var found []Direct
	for _, c := range ConnectionsOf[Direct](b) {
		if c.Source() == starts[0].ID() {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return Direct{}, false
	}
	return found[0], true
}
