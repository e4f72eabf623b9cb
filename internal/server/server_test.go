package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dotcommander/agentgraph/internal/a2a"
	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/graph"
	"github.com/dotcommander/agentgraph/internal/readiness"
	"github.com/dotcommander/agentgraph/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChecker struct{ err error }

func (f fakeChecker) Check(context.Context, *blueprint.Blueprint) error { return f.err }

type fakeRemote struct {
	reply a2a.Reply
	err   error
}

func (f *fakeRemote) Send(context.Context, a2a.Request) (a2a.Reply, error) { return f.reply, f.err }
func (f *fakeRemote) Close() error { return nil }

type fakeRemotes struct{ remote *fakeRemote }

func (f fakeRemotes) Connect(context.Context, string) (graph.RemoteAgent, error) {
	return f.remote, nil
}

func relayBody(t *testing.T, query string) string {
	t.Helper()
	bp := &blueprint.Blueprint{
		WorkflowID: "wf-1",
		Name:       "relay",
		Nodes: []blueprint.Node{
			blueprint.Start{NodeBase: blueprint.NodeBase{NodeID: "start", Name: "Start"}},
			blueprint.RemoteAgent{NodeBase: blueprint.NodeBase{NodeID: "helper", Name: "Helper"}, BaseURL: "http://helper.local"},
			blueprint.End{NodeBase: blueprint.NodeBase{NodeID: "end", Name: "End"}},
		},
		Connections: []blueprint.Connection{
			blueprint.Direct{ConnectionBase: blueprint.ConnectionBase{ConnectionID: "c1", SourceNodeID: "start", DestinationNodeID: "helper"}},
			blueprint.Direct{ConnectionBase: blueprint.ConnectionBase{ConnectionID: "c2", SourceNodeID: "helper", DestinationNodeID: "end"}},
		},
	}
	wf, err := json.Marshal(bp)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{"workflow": json.RawMessage(wf), "query": query})
	require.NoError(t, err)
	return string(body)
}

func newRouter(checkErr error, remote *fakeRemote) *gin.Engine {
	svc := &session.Service{
		Checker:  fakeChecker{err: checkErr},
		Compiler: &graph.Compiler{Remotes: fakeRemotes{remote: remote}},
	}
	return NewRouter(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(r http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newRouter(nil, &fakeRemote{}), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestPreflight(t *testing.T) {
	rec := do(newRouter(nil, &fakeRemote{}), http.MethodOptions, "/api/app", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun(t *testing.T) {
	remote := &fakeRemote{reply: a2a.Reply{Text: "pong", State: a2a.StateCompleted}}
	header := http.Header{UserHeader: {"alice"}}
	rec := do(newRouter(nil, remote), http.MethodPost, "/api/app", relayBody(t, "ping"), header)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := sseData(t, rec.Body.Bytes())
	require.Len(t, events, 1)
	ev := gjson.ParseBytes(events[0])
	require.Equal(t, "pong", ev.Get("content").String())
	require.Equal(t, "message", ev.Get("stream_type").String())
	require.Equal(t, "alice", ev.Get("metadata.user_id").String())
	require.Equal(t, "wf-1", ev.Get("metadata.worflow_id").String())
	require.Equal(t, "A2ANode", ev.Get("node.type").String())
}

func TestRunFailureFrame(t *testing.T) {
	remote := &fakeRemote{err: errors.New("connection reset")}
	rec := do(newRouter(nil, remote), http.MethodPost, "/api/app", relayBody(t, "ping"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	events := sseData(t, rec.Body.Bytes())
	require.Len(t, events, 1)
	ev := gjson.ParseBytes(events[0])
	require.Equal(t, "error", ev.Get("type").String())
	require.True(t, ev.Get("full_traceback").Bool())
	require.Contains(t, ev.Get("content").String(), "connection reset")
}

func TestRunRejected(t *testing.T) {
	tests := map[string]struct {
		body     string
		checkErr error
		status   int
		kind     string
	}{
		"malformed json": {
			body:   `{"workflow":`,
			status: http.StatusBadRequest,
			kind:   "schema",
		},
		"missing query": {
			body:   `{"workflow":{"name":"x","nodes":[],"connections":[]}}`,
			status: http.StatusBadRequest,
			kind:   "schema",
		},
		"no start node": {
			body:   `{"workflow":{"name":"x","nodes":[],"connections":[]},"query":"hi"}`,
			status: http.StatusUnprocessableEntity,
			kind:   "structural",
		},
		"dependencies down": {
			checkErr: &readiness.ReadinessError{Failures: []readiness.Outcome{{
				Target: readiness.Target{Kind: readiness.KindRemote, Name: "Helper", Address: "http://helper.local"},
				Err:    errors.New("connection refused"),
			}}},
			status: http.StatusFailedDependency,
			kind:   "readiness",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			body := tc.body
			if body == "" {
				body = relayBody(t, "ping")
			}
			rec := do(newRouter(tc.checkErr, &fakeRemote{}), http.MethodPost, "/api/app", body, nil)
			require.Equal(t, tc.status, rec.Code)
			require.NotContains(t, rec.Body.String(), "data: ")

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.kind, resp.Error)
			require.NotEmpty(t, resp.Reason)
			require.NotEmpty(t, resp.Details)
		})
	}
}

func TestReadinessFailures(t *testing.T) {
	checkErr := &readiness.ReadinessError{Failures: []readiness.Outcome{{
		Target: readiness.Target{Kind: readiness.KindTool, Name: "Search", Address: "http://search.local/mcp"},
		Err:    errors.New("timed out after 15s"),
	}}}
	rec := do(newRouter(checkErr, &fakeRemote{}), http.MethodPost, "/api/app", relayBody(t, "ping"), nil)

	require.Equal(t, http.StatusFailedDependency, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []Failure{{
		Kind:   string(readiness.KindTool),
		Name:   "Search",
		Target: "http://search.local/mcp",
		Error:  "timed out after 15s",
	}}, resp.Failures)
	require.Equal(t, "http://search.local/mcp", gjson.GetBytes(rec.Body.Bytes(), "failures.0.target").String())
}

func TestReadinessMissingCredential(t *testing.T) {
	checkErr := &readiness.ReadinessError{Failures: []readiness.Outcome{{
		Target: readiness.Target{Kind: readiness.KindModel, Name: "Writer", Address: "gpt-4.1-mini"},
		Err:    errs.Configurationf("credential OPENAI_API_KEY is not set"),
	}}}
	rec := do(newRouter(checkErr, &fakeRemote{}), http.MethodPost, "/api/app", relayBody(t, "ping"), nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "configuration", gjson.GetBytes(rec.Body.Bytes(), "error").String())
	require.Equal(t, "Writer", gjson.GetBytes(rec.Body.Bytes(), "failures.0.name").String())
}

func TestStatusOf(t *testing.T) {
	tests := map[string]struct {
		err    error
		status int
	}{
		"schema":          {errs.Schemaf("x"), http.StatusBadRequest},
		"structural":      {errs.Structuralf("x"), http.StatusUnprocessableEntity},
		"configuration":   {errs.Configurationf("x"), http.StatusUnprocessableEntity},
		"topology":        {errs.Topologyf("x"), http.StatusUnprocessableEntity},
		"not implemented": {errs.NotImplementedf("x"), http.StatusUnprocessableEntity},
		"readiness":       {&readiness.ReadinessError{}, http.StatusFailedDependency},
		"runtime":         {errs.Runtimef("x"), http.StatusInternalServerError},
		"unknown":         {errors.New("x"), http.StatusInternalServerError},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.status, StatusOf(tc.err))
		})
	}
}

func sseData(t *testing.T, body []byte) [][]byte {
	t.Helper()
	var out [][]byte
	for _, block := range bytes.Split(bytes.TrimSpace(body), []byte("\n\n")) {
		data, ok := bytes.CutPrefix(block, []byte("data: "))
		require.True(t, ok, "unexpected block %q", block)
		out = append(out, data)
	}
	return out
}
