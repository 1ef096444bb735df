package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kbchat/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func eventStream() string {
	lines := []string{
		`{"trace": {"sessionId": "s-1", "trace": {"preProcessingTrace": {"modelInvocationInput": {"traceId": "p-0"}}}}}`,
		`{"trace": {"trace": {"orchestrationTrace": {"rationale": {"traceId": "o-0", "text": "look"}}}}}`,
		`{"trace": {"trace": {"orchestrationTrace": {"observation": {"traceId": "o-0", "knowledgeBaseLookupOutput": {"retrievedReferences": []}}}}}}`,
		`{"chunk": {"bytes": "` + b64("Paris is ") + `"}}`,
		`{"chunk": {"bytes": "` + b64("the capital.") + `", "attribution": {"citations": [{"retrievedReferences": [{"location": {"s3Location": {"uri": "s3://kb/a.pdf"}}}]}]}}}`,
		`{"trace": {"trace": {"guardrailTrace": {"traceId": "g-1", "action": "NONE"}, "unknownTrace": {}}}}`,
	}
	return strings.Join(lines, "\n") + "\n"
}

// =============================================================================
// COLLECT / DECODE
// =============================================================================

func TestCollect(t *testing.T) {
	events := []Event{
		{Chunk: &Chunk{Text: "Hello "}},
		{Chunk: &Chunk{Bytes: []byte("world"), Attribution: &Attribution{Citations: []types.CitationRecord{{}}}}},
		{Trace: &TraceEvent{Trace: map[string]json.RawMessage{
			types.KeyOrchestration: json.RawMessage(`{"rationale": {"traceId": "x"}}`),
		}}},
	}
	resp, err := Collect(events)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", resp.OutputText)
	assert.Len(t, resp.Citations, 1)
	assert.Len(t, resp.Trace[types.KeyOrchestration], 1)
}

func TestCollect_StreamError(t *testing.T) {
	_, err := Collect([]Event{{Chunk: &Chunk{Text: "partial"}}, {Error: &ErrorDetail{Message: "throttled"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStream))
	assert.Contains(t, err.Error(), "throttled")
}

func TestDecode_EventStream(t *testing.T) {
	resp, err := Decode(strings.NewReader(eventStream()))
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital.", resp.OutputText)
	require.Len(t, resp.Citations, 1)
	assert.Len(t, resp.Trace[types.KeyPreProcessing], 1)
	assert.Len(t, resp.Trace[types.KeyOrchestration], 2)
	assert.Len(t, resp.Trace[types.KeyGuardrail], 1)
	_, unknown := resp.Trace["unknownTrace"]
	assert.False(t, unknown, "only known phase keys are collected")
}

func TestDecode_StreamBadAttribution(t *testing.T) {
	stream := `{"chunk": {"text": "Paris", "attribution": {"citations": [{"retrievedReferences": {}}, {"retrievedReferences": [{"location": {"s3Location": {"uri": "s3://kb/a.pdf"}}}]}]}}}` + "\n"
	resp, err := Decode(strings.NewReader(stream))
	require.NoError(t, err)

	assert.Equal(t, "Paris", resp.OutputText)
	assert.Len(t, resp.Citations, 1)
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, "citation", resp.Diagnostics[0].Component)
}

func TestDecode_DocumentWrongShapes(t *testing.T) {
	resp, err := Decode(strings.NewReader(`{"output_text": "kept", "citations": {}, "trace": []}`))
	require.NoError(t, err)
	assert.Equal(t, "kept", resp.OutputText)
	assert.Len(t, resp.Diagnostics, 2)
}

func TestDecode_Document(t *testing.T) {
	resp, err := Decode(strings.NewReader(`{"output_text": "{\"result\": \"42\"}", "citations": []}`))
	require.NoError(t, err)
	assert.Equal(t, `{"result": "42"}`, resp.OutputText)
	assert.False(t, resp.HasCitations())
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader(""))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`{"chunk": {"text": "a"}}` + "\n{broken"))
	assert.Error(t, err)
}

// =============================================================================
// HTTP INVOKER
// =============================================================================

func TestHTTPInvoker_Stream(t *testing.T) {
	var gotPath string
	var gotBody invokeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, eventStream())
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(HTTPConfig{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	resp, err := inv.Invoke(context.Background(), Request{AgentID: "AG", AliasID: "TSTALIASID", SessionID: "s-1", Prompt: "capital?"})
	require.NoError(t, err)

	assert.Equal(t, "/agents/AG/agentAliases/TSTALIASID/sessions/s-1/text", gotPath)
	assert.Equal(t, "capital?", gotBody.InputText)
	assert.True(t, gotBody.EnableTrace)
	assert.Equal(t, "Paris is the capital.", resp.OutputText)
}

func TestHTTPInvoker_Document(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output_text": "hi", "trace": {"orchestrationTrace": [{"rationale": {"traceId": "a"}}]}}`)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(HTTPConfig{BaseURL: srv.URL})
	resp, err := inv.Invoke(context.Background(), Request{AgentID: "AG", AliasID: "A", SessionID: "s", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.OutputText)
	assert.Equal(t, 1, resp.Trace.Len())
}

func TestHTTPInvoker_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(HTTPConfig{BaseURL: srv.URL})
	_, err := inv.Invoke(context.Background(), Request{AgentID: "AG", AliasID: "A", SessionID: "s", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "access denied")
}

func TestHTTPInvoker_MissingAgentID(t *testing.T) {
	inv := NewHTTPInvoker(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := inv.Invoke(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestHTTPInvoker_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	inv := NewHTTPInvoker(HTTPConfig{BaseURL: srv.URL})
	_, err := inv.Invoke(ctx, Request{AgentID: "AG", AliasID: "A", SessionID: "s", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// =============================================================================
// REPLAY
// =============================================================================

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestReplayInvoker(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a-first.json", `{"output_text": "first"}`)
	writeFixture(t, dir, "b-second.ndjson", `{"chunk": {"text": "second"}}`)
	writeFixture(t, dir, "what-is-the-capital.json", `{"output_text": "Paris"}`)
	writeFixture(t, dir, "notes.txt", "ignored")

	inv, err := NewReplayInvoker(dir)
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := inv.Invoke(ctx, Request{Prompt: "What is the capital?"})
	require.NoError(t, err)
	assert.Equal(t, "Paris", resp.OutputText, "slug match wins")

	var got []string
	for i := 0; i < 4; i++ {
		resp, err := inv.Invoke(ctx, Request{Prompt: "anything"})
		require.NoError(t, err)
		got = append(got, resp.OutputText)
	}
	assert.Equal(t, []string{"first", "second", "Paris", "first"}, got)
}

func TestReplayInvoker_Empty(t *testing.T) {
	_, err := NewReplayInvoker(t.TempDir())
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "what-is-the-capital", Slug("  What is the *capital*? "))
	assert.Equal(t, "", Slug("?!"))
}
