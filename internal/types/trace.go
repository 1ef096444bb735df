package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Backend phase keys that may appear in a trace.
const (
	KeyGuardrail      = "guardrailTrace"
	KeyPreProcessing  = "preProcessingTrace"
	KeyOrchestration  = "orchestrationTrace"
	KeyPostProcessing = "postProcessingTrace"
)

var errInvalidFragment = errors.New("trace fragment: invalid JSON")

// PhaseKeys lists the trace keys the backend emits, in emission order.
var PhaseKeys = []string{KeyGuardrail, KeyPreProcessing, KeyOrchestration, KeyPostProcessing}

// FragmentKind is the tag a trace fragment carries.
type FragmentKind string

const (
	KindInvocationInput       FragmentKind = "invocationInput"
	KindModelInvocationInput  FragmentKind = "modelInvocationInput"
	KindModelInvocationOutput FragmentKind = "modelInvocationOutput"
	KindObservation           FragmentKind = "observation"
	KindRationale             FragmentKind = "rationale"

	// KindUnrecognized marks a fragment with none of the known tags.
	KindUnrecognized FragmentKind = ""
)

// RecognizedKinds lists every known tag in lookup priority order.
var RecognizedKinds = []FragmentKind{
	KindInvocationInput,
	KindModelInvocationInput,
	KindModelInvocationOutput,
	KindObservation,
	KindRationale,
}

// Trace maps a backend phase key to its fragments in chronological order.
type Trace map[string][]Fragment

// UnmarshalJSON decodes a trace leniently: a phase holding a single object is
// treated as a one-element list and phases of any other shape are dropped.
// A trace that is not an object at all decodes as empty.
func (t *Trace) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*t = nil
		return nil
	}
	var phases map[string]json.RawMessage
	if err := json.Unmarshal(b, &phases); err != nil {
		if !json.Valid(b) {
			return err
		}
		*t = nil
		return nil
	}
	out := make(Trace, len(phases))
	for key, raw := range phases {
		raw = bytes.TrimSpace(raw)
		switch {
		case len(raw) > 0 && raw[0] == '[':
			var frags []Fragment
			if err := json.Unmarshal(raw, &frags); err != nil {
				continue
			}
			out[key] = frags
		case len(raw) > 0 && raw[0] == '{':
			frag, err := NewFragment(raw)
			if err != nil {
				continue
			}
			out[key] = []Fragment{frag}
		}
	}
	*t = out
	return nil
}

// Len returns the total number of fragments across all phases.
func (t Trace) Len() int {
	n := 0
	for _, frags := range t {
		n += len(frags)
	}
	return n
}

// Fragment is a tagged variant over the recognized fragment kinds. The raw
// payload is always retained so unrecognized shapes can still be displayed.
type Fragment struct {
	// Kind is the first recognized tag present, or KindUnrecognized.
	Kind FragmentKind

	// TraceID is the fragment's own top-level traceId, if any.
	TraceID string

	tags map[FragmentKind]json.RawMessage
	raw  json.RawMessage
}

// NewFragment decodes a fragment from its JSON object form.
func NewFragment(raw json.RawMessage) (Fragment, error) {
	var f Fragment
	if err := f.UnmarshalJSON(raw); err != nil {
		return Fragment{}, err
	}
	return f, nil
}

// UnmarshalJSON never fails on valid JSON; non-object payloads become
// unrecognized fragments carrying the raw value.
func (f *Fragment) UnmarshalJSON(b []byte) error {
	if !json.Valid(b) {
		return errInvalidFragment
	}
	f.raw = append(json.RawMessage(nil), b...)
	f.Kind = KindUnrecognized
	f.TraceID = ""
	f.tags = nil

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil
	}
	if id, ok := fields["traceId"]; ok {
		var s string
		if json.Unmarshal(id, &s) == nil {
			f.TraceID = s
		}
	}
	for _, kind := range RecognizedKinds {
		body, ok := fields[string(kind)]
		if !ok {
			continue
		}
		if f.tags == nil {
			f.tags = make(map[FragmentKind]json.RawMessage)
		}
		f.tags[kind] = body
		if f.Kind == KindUnrecognized {
			f.Kind = kind
		}
	}
	return nil
}

// MarshalJSON returns the original payload.
func (f Fragment) MarshalJSON() ([]byte, error) {
	if len(f.raw) == 0 {
		return []byte("{}"), nil
	}
	return f.raw, nil
}

// Raw returns the original JSON payload.
func (f Fragment) Raw() json.RawMessage {
	return f.raw
}

// Has reports whether the fragment carries the given tag.
func (f Fragment) Has(kind FragmentKind) bool {
	_, ok := f.tags[kind]
	return ok
}

// Body returns the nested payload under the given tag.
func (f Fragment) Body(kind FragmentKind) (json.RawMessage, bool) {
	body, ok := f.tags[kind]
	return body, ok
}

// StepID returns the backend-assigned traceId nested under the given tag.
func (f Fragment) StepID(kind FragmentKind) (string, bool) {
	body, ok := f.tags[kind]
	if !ok {
		return "", false
	}
	var probe struct {
		TraceID *string `json:"traceId"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.TraceID == nil {
		return "", false
	}
	return *probe.TraceID, true
}

// Observation decodes the observation payload, if the fragment has one.
func (f Fragment) Observation() (*Observation, bool) {
	body, ok := f.tags[KindObservation]
	if !ok {
		return nil, false
	}
	var obs Observation
	if err := json.Unmarshal(body, &obs); err != nil {
		return nil, false
	}
	return &obs, true
}

// Observation is the result the agent observed after an action.
type Observation struct {
	TraceID                   string                     `json:"traceId,omitempty"`
	Type                      string                     `json:"type,omitempty"`
	KnowledgeBaseLookupOutput *KnowledgeBaseLookupOutput `json:"knowledgeBaseLookupOutput,omitempty"`
	FinalResponse             *FinalResponse             `json:"finalResponse,omitempty"`
}

// KnowledgeBaseLookupOutput carries the references a lookup returned.
type KnowledgeBaseLookupOutput struct {
	RetrievedReferences []RetrievedReference `json:"retrievedReferences,omitempty"`
}

// FinalResponse is the agent's final answer as seen by the orchestrator.
type FinalResponse struct {
	Text string `json:"text"`
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
