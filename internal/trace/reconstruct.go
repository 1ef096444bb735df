// Package trace regroups the agent's flat trace fragments into execution
// steps for each processing phase.
package trace

import (
	"fmt"

	"kbchat/internal/logging"
	"kbchat/internal/types"
)

// Phase labels, in display order.
const (
	LabelPreProcessing  = "Pre-Processing"
	LabelOrchestration  = "Orchestration"
	LabelPostProcessing = "Post-Processing"
)

type phaseDef struct {
	label string
	keys  []string
}

// phases maps each display phase to the backend keys that feed it. The
// guardrail trace belongs to both ends of the pipeline.
var phases = []phaseDef{
	{LabelPreProcessing, []string{types.KeyGuardrail, types.KeyPreProcessing}},
	{LabelOrchestration, []string{types.KeyOrchestration}},
	{LabelPostProcessing, []string{types.KeyPostProcessing, types.KeyGuardrail}},
}

// stepTags lists, per backend key, the fragment tags whose nested traceId
// identifies the step. Keys without an entry group by top-level traceId.
var stepTags = map[string][]types.FragmentKind{
	types.KeyPreProcessing: {
		types.KindModelInvocationInput,
		types.KindModelInvocationOutput,
	},
	types.KeyOrchestration: {
		types.KindInvocationInput,
		types.KindModelInvocationInput,
		types.KindModelInvocationOutput,
		types.KindObservation,
		types.KindRationale,
	},
	types.KeyPostProcessing: {
		types.KindModelInvocationInput,
		types.KindModelInvocationOutput,
		types.KindObservation,
	},
}

// Step is one logical execution step: the fragments sharing a step id.
type Step struct {
	// Number is 1-based and restarts for every backend key.
	Number    int
	ID        string
	SourceKey string
	Fragments []types.Fragment
}

// Title is the display header of the step.
func (s Step) Title() string {
	return fmt.Sprintf("Trace Step %d", s.Number)
}

// Kinds returns the distinct fragment kinds of the step in order.
func (s Step) Kinds() []types.FragmentKind {
	var kinds []types.FragmentKind
	seen := make(map[types.FragmentKind]bool)
	for _, f := range s.Fragments {
		if seen[f.Kind] {
			continue
		}
		seen[f.Kind] = true
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

// Phase is one display phase of a reconstructed trace.
type Phase struct {
	Label string
	Steps []Step

	// NoTrace is set when none of the phase's backend keys were present.
	NoTrace bool

	// Skipped counts fragments that carried none of the recognized tags.
	Skipped int

	Diagnostics []types.Diagnostic
}

// Reconstruct groups t into the three fixed phases.
func Reconstruct(t types.Trace) []Phase {
	out := make([]Phase, 0, len(phases))
	for _, def := range phases {
		p := Phase{Label: def.label, NoTrace: true}
		for _, key := range def.keys {
			frags, ok := t[key]
			if !ok {
				continue
			}
			p.NoTrace = false
			p.Steps = append(p.Steps, groupKey(key, frags, &p)...)
		}
		logging.TraceDebug("phase %s: %d steps, %d skipped, no_trace=%v", p.Label, len(p.Steps), p.Skipped, p.NoTrace)
		out = append(out, p)
	}
	return out
}

// groupKey groups the fragments of one backend key into steps, preserving
// first-seen step id order.
func groupKey(key string, frags []types.Fragment, p *Phase) []Step {
	tags, tabled := stepTags[key]

	var steps []Step
	index := make(map[string]int)
	newStep := func(id string, f types.Fragment) {
		steps = append(steps, Step{
			Number:    len(steps) + 1,
			ID:        id,
			SourceKey: key,
			Fragments: []types.Fragment{f},
		})
	}
	addTo := func(id string, f types.Fragment) {
		if i, ok := index[id]; ok {
			steps[i].Fragments = append(steps[i].Fragments, f)
			return
		}
		index[id] = len(steps)
		newStep(id, f)
	}

	for i, f := range frags {
		if !tabled {
			if f.TraceID == "" {
				newStep("", f)
				continue
			}
			addTo(f.TraceID, f)
			continue
		}

		tag, found := firstTag(f, tags)
		if !found {
			p.Skipped++
			continue
		}
		id, ok := f.StepID(tag)
		if !ok {
			p.Diagnostics = append(p.Diagnostics,
				types.Diagnosticf("trace", "%s fragment %d (%s) has no traceId", key, i+1, tag))
			newStep("", f)
			continue
		}
		addTo(id, f)
	}
	return steps
}

func firstTag(f types.Fragment, tags []types.FragmentKind) (types.FragmentKind, bool) {
	for _, tag := range tags {
		if f.Has(tag) {
			return tag, true
		}
	}
	return types.KindUnrecognized, false
}

// StepCount returns the total number of steps across phases.
func StepCount(ps []Phase) int {
	n := 0
	for _, p := range ps {
		n += len(p.Steps)
	}
	return n
}
