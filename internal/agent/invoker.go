// Package agent talks to the remote agent service and turns whatever it
// sends back into a types.RawResponse.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"kbchat/internal/logging"
	"kbchat/internal/types"
)

// Request identifies one agent invocation.
type Request struct {
	AgentID   string
	AliasID   string
	SessionID string
	Prompt    string
}

// Invoker sends a prompt to an agent and waits for the complete response.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (types.RawResponse, error)
}

// =============================================================================
// COMPLETION EVENTS
// =============================================================================

// Event is one element of a completion stream. Exactly one field is set.
type Event struct {
	Chunk *Chunk       `json:"chunk,omitempty"`
	Trace *TraceEvent  `json:"trace,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// Chunk carries a piece of the answer. Bytes is base64 on the wire; gateways
// that forward plain text use Text instead.
type Chunk struct {
	Bytes       []byte       `json:"bytes,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attribution *Attribution `json:"attribution,omitempty"`
}

// Attribution lists the citations attached to a chunk.
type Attribution struct {
	Citations []types.CitationRecord `json:"citations,omitempty"`

	// Diagnostics notes citation records that could not be decoded.
	Diagnostics []types.Diagnostic `json:"-"`
}

// UnmarshalJSON decodes citations one record at a time so a malformed
// record does not fail the whole stream.
func (a *Attribution) UnmarshalJSON(b []byte) error {
	var fields struct {
		Citations json.RawMessage `json:"citations"`
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	a.Citations, a.Diagnostics = types.DecodeCitations(fields.Citations)
	return nil
}

// TraceEvent wraps one trace part, keyed by phase.
type TraceEvent struct {
	SessionID string                     `json:"sessionId,omitempty"`
	Trace     map[string]json.RawMessage `json:"trace"`
}

// ErrorDetail is a failure reported inside the stream.
type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// ErrStream is wrapped by errors reported inside a completion stream.
var ErrStream = errors.New("agent stream error")

// Collect folds completion events into a raw response: chunk text is
// concatenated, chunk citations appended and each trace part appended
// under its phase key.
func Collect(events []Event) (types.RawResponse, error) {
	var c collector
	for _, evt := range events {
		if err := c.add(evt); err != nil {
			return types.RawResponse{}, err
		}
	}
	return c.response(), nil
}

type collector struct {
	text      bytes.Buffer
	citations []types.CitationRecord
	trace     types.Trace
	diags     []types.Diagnostic
	skipped   int
}

func (c *collector) add(evt Event) error {
	if evt.Error != nil {
		return fmt.Errorf("%w: %s", ErrStream, evt.Error.Message)
	}
	if evt.Chunk != nil {
		c.text.Write(evt.Chunk.Bytes)
		c.text.WriteString(evt.Chunk.Text)
		if evt.Chunk.Attribution != nil {
			c.citations = append(c.citations, evt.Chunk.Attribution.Citations...)
			c.diags = append(c.diags, evt.Chunk.Attribution.Diagnostics...)
		}
	}
	if evt.Trace != nil {
		for _, key := range types.PhaseKeys {
			raw, ok := evt.Trace.Trace[key]
			if !ok {
				continue
			}
			frag, err := types.NewFragment(raw)
			if err != nil {
				c.skipped++
				continue
			}
			if c.trace == nil {
				c.trace = make(types.Trace)
			}
			c.trace[key] = append(c.trace[key], frag)
		}
	}
	return nil
}

func (c *collector) response() types.RawResponse {
	if c.skipped > 0 {
		logging.Get(logging.CategoryAgent).Warn("skipped %d undecodable trace parts", c.skipped)
	}
	return types.RawResponse{
		OutputText:  c.text.String(),
		Citations:   c.citations,
		Trace:       c.trace,
		Diagnostics: c.diags,
	}
}

// Decode reads either a complete raw response document or a stream of
// completion events (NDJSON or concatenated JSON) from r.
func Decode(r io.Reader) (types.RawResponse, error) {
	dec := json.NewDecoder(r)

	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		if errors.Is(err, io.EOF) {
			return types.RawResponse{}, fmt.Errorf("empty response body")
		}
		return types.RawResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if isDocument(first) {
		var resp types.RawResponse
		if err := json.Unmarshal(first, &resp); err != nil {
			return types.RawResponse{}, fmt.Errorf("failed to parse response: %w", err)
		}
		return resp, nil
	}

	var c collector
	raw := first
	for {
		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			return types.RawResponse{}, fmt.Errorf("failed to parse event: %w", err)
		}
		if err := c.add(evt); err != nil {
			return types.RawResponse{}, err
		}
		raw = nil
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return types.RawResponse{}, fmt.Errorf("failed to parse event stream: %w", err)
		}
	}
	return c.response(), nil
}

// isDocument reports whether v is a complete raw response rather than an event.
func isDocument(v json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(v, &probe); err != nil {
		return false
	}
	_, ok := probe["output_text"]
	return ok
}
