package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"kbchat/internal/agent"
	"kbchat/internal/citation"
	"kbchat/internal/session"
	"kbchat/internal/types"
)

const tracedResponse = `{
	"output_text": "{\"result\": \"Paris is the capital of France %[1]%.\"}",
	"citations": [
		{
			"generatedResponsePart": {"textResponsePart": {"text": "Paris is the capital of France"}},
			"retrievedReferences": [{"content": {"text": "Paris, capital since 987"}, "location": {"s3Location": {"uri": "s3://kcknowledgebase/france.pdf"}}}]
		}
	],
	"trace": {
		"orchestrationTrace": [
			{"rationale": {"traceId": "o-0", "text": "look it up"}},
			{"observation": {"traceId": "o-1", "finalResponse": {"text": "Paris"}}}
		]
	}
}`

// stubInvoker returns a canned response or error. When block is set each
// call signals entered and then waits for block to be closed.
type stubInvoker struct {
	mu      sync.Mutex
	calls   int
	resp    types.RawResponse
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (s *stubInvoker) Invoke(ctx context.Context, req agent.Request) (types.RawResponse, error) {
	if s.block != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.resp, s.err
}

func decodeResponse(t *testing.T, raw string) types.RawResponse {
	t.Helper()
	var resp types.RawResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

type testOption func(*testSetup)

type testSetup struct {
	invoker *stubInvoker
	sess    *session.Session
}

func withError(err error) testOption {
	return func(s *testSetup) { s.invoker.err = err }
}

func withBlock(block, entered chan struct{}) testOption {
	return func(s *testSetup) {
		s.invoker.block = block
		s.invoker.entered = entered
	}
}

func withSession(sess *session.Session) testOption {
	return func(s *testSetup) { s.sess = sess }
}

// NewTestModel builds a sized model around a stub agent.
func NewTestModel(t *testing.T, opts ...testOption) (Model, *stubInvoker) {
	t.Helper()
	setup := &testSetup{
		invoker: &stubInvoker{resp: decodeResponse(t, tracedResponse)},
		sess:    session.New(),
	}
	for _, opt := range opts {
		opt(setup)
	}

	resolver := citation.NewResolver("s3://kcknowledgebase/", "https://docs.example.com/")
	conv := session.NewConversation(
		session.ConversationConfig{AgentID: "AGENT", AliasID: "TSTALIASID"},
		setup.invoker,
		session.NewAssembler(citation.NewAggregator(resolver)),
		setup.sess,
		nil,
	)

	m := New(Config{
		Title:        "Test UI",
		Theme:        "light",
		Conversation: conv,
		Resolver:     resolver,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), setup.invoker
}

func press(m Model, msg tea.KeyMsg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func altKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}, Alt: true}
}

// completeTurn submits prompt and feeds the agent result back into the model.
func completeTurn(t *testing.T, m Model, prompt string) Model {
	t.Helper()
	m.textarea.SetValue(prompt)
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.isLoading {
		t.Fatalf("expected loading after submit")
	}
	next, _ := m.Update(m.submitCmd(prompt)())
	return next.(Model)
}
