package ui

import (
	"encoding/json"
	"strings"
	"testing"

	"kbchat/internal/trace"
	"kbchat/internal/types"
)

func testPhases(t *testing.T) []trace.Phase {
	t.Helper()
	var tr types.Trace
	raw := `{
		"orchestrationTrace": [
			{"modelInvocationInput": {"traceId": "o-0", "text": "prompt"}},
			{"rationale": {"traceId": "o-0", "text": "look it up"}},
			{"observation": {"traceId": "o-1", "finalResponse": {"text": "Paris"}}}
		],
		"postProcessingTrace": [
			{"modelInvocationOutput": {"traceId": "p-0"}},
			{"unknownTag": {}}
		]
	}`
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		t.Fatalf("unmarshal trace: %v", err)
	}
	return trace.Reconstruct(tr)
}

func TestTracePaneEmptyState(t *testing.T) {
	pane := NewTracePane(DefaultStyles(), 60, 20)
	if !strings.Contains(pane.Content(), "No trace yet") {
		t.Fatalf("expected empty state message")
	}
	// navigation on an empty pane is a no-op
	pane.SelectNext()
	pane.SelectPrev()
	pane.ToggleExpand()
}

func TestTracePaneSetPhases(t *testing.T) {
	pane := NewTracePane(DefaultStyles(), 60, 20)
	pane.SetPhases(testPhases(t))

	if pane.StepCount() != 3 {
		t.Fatalf("expected 3 steps, got %d", pane.StepCount())
	}

	content := pane.Content()
	for _, want := range []string{
		trace.LabelPreProcessing,
		trace.LabelOrchestration,
		trace.LabelPostProcessing,
		trace.NoTraceText,
		"Trace Step 1",
		"Trace Step 2",
		"1 unrecognized fragments skipped",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected content to contain %q", want)
		}
	}
	if strings.Contains(content, "look it up") {
		t.Errorf("steps should start collapsed")
	}
}

func TestTracePaneNavigation(t *testing.T) {
	pane := NewTracePane(DefaultStyles(), 60, 20)
	pane.SetPhases(testPhases(t))

	pane.SelectPrev()
	if pane.Selected() != 0 {
		t.Fatalf("selection should not move above the first step")
	}

	pane.ToggleExpand()
	if !pane.IsExpanded(0) {
		t.Fatalf("expected first step expanded")
	}
	if !strings.Contains(pane.Content(), "look it up") {
		t.Fatalf("expanded step should show its fragments")
	}

	pane.SelectNext()
	pane.SelectNext()
	pane.SelectNext()
	if pane.Selected() != 2 {
		t.Fatalf("expected selection clamped at last step, got %d", pane.Selected())
	}

	pane.SelectPrev()
	pane.SelectPrev()
	pane.ToggleExpand()
	if pane.IsExpanded(0) {
		t.Fatalf("expected first step collapsed again")
	}
}

func TestTracePaneResetsOnNewTrace(t *testing.T) {
	pane := NewTracePane(DefaultStyles(), 60, 20)
	pane.SetPhases(testPhases(t))
	pane.SelectNext()
	pane.ToggleExpand()

	pane.SetPhases(trace.Reconstruct(nil))
	if pane.StepCount() != 0 || pane.Selected() != 0 {
		t.Fatalf("expected fresh selection state")
	}
	if strings.Count(pane.Content(), trace.NoTraceText) != 3 {
		t.Fatalf("expected every phase to show %q", trace.NoTraceText)
	}
}
