// Package a2a is a minimal client for remote agents speaking the A2A
// protocol: agent card discovery, message/send and tasks/get polling.
package a2a

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"github.com/dotcommander/agentgraph/internal/errs"
)

// Well-known agent card locations, tried in order.
const (
	CardPath       = "/.well-known/agent-card.json"
	LegacyCardPath = "/.well-known/agent.json"
)

// Task states.
const (
	StateSubmitted     = "submitted"
	StateWorking       = "working"
	StateCompleted     = "completed"
	StateCanceled      = "canceled"
	StateCancelled     = "cancelled"
	StateRejected      = "rejected"
	StateFailed        = "failed"
	StateInputRequired = "input-required"
	StateAuthRequired  = "auth-required"
)

// Terminal reports whether a task in state will not change again without
// further input.
func Terminal(state string) bool {
	switch state {
	case StateCompleted, StateCanceled, StateCancelled, StateRejected,
		StateFailed, StateInputRequired, StateAuthRequired:
		return true
	}
	return false
}

// Card is the subset of an agent card the client uses.
type Card struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Version     string `json:"version"`
}

// Options configure a Client.
type Options struct {
	HTTPClient   *http.Client
	PollInterval time.Duration
	// Timeout bounds one Send including polling. Zero means no bound.
	Timeout time.Duration
}

// Client talks to one remote agent.
type Client struct {
	rest *resty.Client
	card Card
	rpc  string
	opts Options
}

// Resolve fetches the agent card under baseURL and returns a client bound to
// the endpoint it advertises.
func Resolve(ctx context.Context, baseURL string, opts Options) (*Client, error) {
	var rest *resty.Client
	if opts.HTTPClient != nil {
		rest = resty.NewWithClient(opts.HTTPClient)
	} else {
		rest = resty.New()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}

	base := strings.TrimRight(baseURL, "/")
	var lastErr error
	for _, path := range []string{CardPath, LegacyCardPath} {
		card, err := fetchCard(ctx, rest, base+path)
		if err != nil {
			lastErr = err
			continue
		}
		rpc := card.URL
		if rpc == "" {
			rpc = base
		}
		return &Client{rest: rest, card: card, rpc: rpc, opts: opts}, nil
	}
	rest.Close() //nolint:errcheck,gosec
	return nil, fmt.Errorf("resolve agent card for %s: %w", baseURL, lastErr)
}

func fetchCard(ctx context.Context, rest *resty.Client, url string) (Card, error) {
	res, err := rest.R().SetContext(ctx).SetHeader("Accept", "application/json").Get(url)
	if err != nil {
		return Card{}, err
	}
	if res.IsError() {
		return Card{}, fmt.Errorf("GET %s: %s", url, res.Status())
	}
	var card Card
	if err := json.Unmarshal([]byte(res.String()), &card); err != nil {
		return Card{}, fmt.Errorf("decode agent card %s: %w", url, err)
	}
	return card, nil
}

// Card returns the resolved agent card.
func (c *Client) Card() Card { return c.card }

// Close releases idle connections.
func (c *Client) Close() error { return c.rest.Close() }

// Request is one user turn sent to the remote agent.
type Request struct {
	Text             string
	ContextID        string
	ReferenceTaskIDs []string
}

// Reply is the remote agent's answer to a Request.
type Reply struct {
	Text      string
	ContextID string
	TaskID    string
	State     string
}

// Send delivers req and waits for the remote agent's answer. When the agent
// answers with a task, the task is polled until it reaches a terminal state.
// Failed and rejected tasks are runtime errors.
func (c *Client) Send(ctx context.Context, req Request) (Reply, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	msg := message{
		Kind:             "message",
		Role:             "user",
		MessageID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		Parts:            []textPart{{Kind: "text", Text: req.Text}},
		ContextID:        req.ContextID,
		ReferenceTaskIDs: req.ReferenceTaskIDs,
	}
	result, err := c.call(ctx, "message/send", map[string]any{"message": msg})
	if err != nil {
		return Reply{}, err
	}

	if result.Get("kind").String() != "task" {
		return Reply{
			Text:      partsText(result.Get("parts")),
			ContextID: result.Get("contextId").String(),
			TaskID:    result.Get("taskId").String(),
		}, nil
	}

	task, err := c.await(ctx, result)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{
		Text:      partsText(task.Get("artifacts.0.parts")),
		ContextID: task.Get("contextId").String(),
		TaskID:    task.Get("id").String(),
		State:     task.Get("status.state").String(),
	}
	switch reply.State {
	case StateFailed, StateRejected:
		reason := partsText(task.Get("status.message.parts"))
		if reason == "" {
			reason = reply.Text
		}
		return reply, errs.Runtimef("remote agent task %s %s: %s", reply.TaskID, reply.State, reason)
	}
	return reply, nil
}

func (c *Client) await(ctx context.Context, task gjson.Result) (gjson.Result, error) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	id := task.Get("id").String()
	for !Terminal(task.Get("status.state").String()) {
		select {
		case <-ctx.Done():
			return task, fmt.Errorf("poll task %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
		next, err := c.call(ctx, "tasks/get", map[string]any{"id": id})
		if err != nil {
			return task, fmt.Errorf("poll task %s: %w", id, err)
		}
		task = next
	}
	return task, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type message struct {
	Kind             string     `json:"kind"`
	Role             string     `json:"role"`
	MessageID        string     `json:"messageId"`
	Parts            []textPart `json:"parts"`
	ContextID        string     `json:"contextId,omitempty"`
	ReferenceTaskIDs []string   `json:"referenceTaskIds,omitempty"`
}

type textPart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// call performs one JSON-RPC exchange and returns its result member.
func (c *Client) call(ctx context.Context, method string, params any) (gjson.Result, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return gjson.Result{}, err
	}
	res, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.rpc)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("a2a %s: %w", method, err)
	}
	if res.IsError() {
		return gjson.Result{}, fmt.Errorf("a2a %s: %s", method, res.Status())
	}

	payload := res.String()
	if !gjson.Valid(payload) {
		return gjson.Result{}, fmt.Errorf("a2a %s: response is not JSON", method)
	}
	if rpcErr := gjson.Get(payload, "error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		return gjson.Result{}, errs.Runtimef("remote agent returned an error: %s", rpcErr.Get("message").String())
	}
	result := gjson.Get(payload, "result")
	if !result.IsObject() {
		return gjson.Result{}, fmt.Errorf("a2a %s: response has no result", method)
	}
	return result, nil
}

// partsText joins text parts with newlines. Other parts are kept as raw JSON.
func partsText(parts gjson.Result) string {
	var out []string
	for _, part := range parts.Array() {
		if part.Get("kind").String() == "text" {
			out = append(out, part.Get("text").String())
			continue
		}
		out = append(out, part.Raw)
	}
	return strings.Join(out, "\n")
}
