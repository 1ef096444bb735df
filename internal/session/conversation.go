package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"kbchat/internal/agent"
	"kbchat/internal/logging"
	"kbchat/internal/types"
)

var (
	// ErrTurnInFlight is returned when a prompt is submitted while the
	// previous one is still waiting for the agent.
	ErrTurnInFlight = errors.New("a turn is already in flight")

	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Persister keeps a copy of the active session outside the process.
// Implemented by store.SessionStore.
type Persister interface {
	Begin(ctx context.Context, sessionID string) error
	AppendTurns(ctx context.Context, sessionID string, turns ...Turn) error
	SaveLastResponse(ctx context.Context, sessionID string, resp types.RawResponse) error
}

// Conversation drives one session: it forwards prompts to the agent,
// assembles the response and records the exchange.
type Conversation struct {
	invoker   agent.Invoker
	assembler *Assembler
	session   *Session
	persister Persister

	agentID string
	aliasID string

	inFlight atomic.Bool
}

// ConversationConfig holds the agent identity used for every turn.
type ConversationConfig struct {
	AgentID string
	AliasID string
}

// NewConversation wires a conversation. persister may be nil.
func NewConversation(cfg ConversationConfig, invoker agent.Invoker, assembler *Assembler, sess *Session, persister Persister) *Conversation {
	return &Conversation{
		invoker:   invoker,
		assembler: assembler,
		session:   sess,
		persister: persister,
		agentID:   cfg.AgentID,
		aliasID:   cfg.AliasID,
	}
}

// Session returns the conversation's session.
func (c *Conversation) Session() *Session {
	return c.session
}

// InFlight reports whether a turn is waiting for the agent.
func (c *Conversation) InFlight() bool {
	return c.inFlight.Load()
}

// Submit runs one turn. On failure no turn is appended and the session is
// left untouched.
func (c *Conversation) Submit(ctx context.Context, prompt string) (Display, error) {
	if strings.TrimSpace(prompt) == "" {
		return Display{}, ErrEmptyPrompt
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return Display{}, ErrTurnInFlight
	}
	defer c.inFlight.Store(false)

	sessionID := c.session.ID()
	resp, err := c.invoker.Invoke(ctx, agent.Request{
		AgentID:   c.agentID,
		AliasID:   c.aliasID,
		SessionID: sessionID,
		Prompt:    prompt,
	})
	if err != nil {
		return Display{}, fmt.Errorf("invoke agent: %w", err)
	}

	d := c.assembler.Assemble(resp)
	turns, err := c.session.Record(sessionID, prompt, resp, d)
	if err != nil {
		return Display{}, err
	}

	if c.persister != nil {
		if err := c.persister.AppendTurns(ctx, sessionID, turns...); err != nil {
			logging.StoreError("failed to persist turns for %s: %v", sessionID, err)
		}
		if err := c.persister.SaveLastResponse(ctx, sessionID, resp); err != nil {
			logging.StoreError("failed to persist last response for %s: %v", sessionID, err)
		}
	}
	return d, nil
}

// Reset starts a new session and returns its id.
func (c *Conversation) Reset(ctx context.Context) string {
	id := c.session.Reset()
	if c.persister != nil {
		if err := c.persister.Begin(ctx, id); err != nil {
			logging.StoreError("failed to begin session %s: %v", id, err)
		}
	}
	return id
}
