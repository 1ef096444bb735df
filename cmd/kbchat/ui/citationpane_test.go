package ui

import (
	"strings"
	"testing"

	"kbchat/internal/citation"
	"kbchat/internal/types"
)

func testEntries() []citation.PanelEntry {
	return []citation.PanelEntry{
		{
			Number:    1,
			Record:    1,
			CitedText: "Paris is the capital",
			Snippet:   "Paris has been the capital of France since 987.",
			Locator:   "s3://kb/france.pdf",
			URL:       "https://docs.example.com/france.pdf",
			Reference: types.RetrievedReference{Metadata: map[string]any{"page": 3, "author": "atlas"}},
		},
		{Number: 2, Record: 1, Locator: "s3://kb/france.pdf"},
		{Number: 3, Snippet: "orphan chunk"},
	}
}

func TestCitationPaneStates(t *testing.T) {
	pane := NewCitationPane(DefaultStyles(), 60, 20)
	if !strings.Contains(pane.Content(), "No response yet") {
		t.Fatalf("expected initial empty state")
	}

	pane.SetEntries(nil)
	if !strings.Contains(pane.Content(), "retrieved no references") {
		t.Fatalf("expected no-references state after an empty response")
	}

	pane.SetEntries(testEntries())
	pane.Clear()
	if pane.Len() != 0 || !strings.Contains(pane.Content(), "No response yet") {
		t.Fatalf("expected Clear to return to the initial state")
	}
}

func TestCitationPaneEntries(t *testing.T) {
	pane := NewCitationPane(DefaultStyles(), 60, 20)
	pane.SetEntries(testEntries())

	content := pane.Content()
	if strings.Count(content, "s3://kb/france.pdf") != 2 {
		t.Errorf("duplicate references must each get a block")
	}
	if !strings.Contains(content, "[3] (no location)") {
		t.Errorf("expected placeholder label for a reference without location")
	}
	if strings.Contains(content, "since 987") {
		t.Errorf("entries should start collapsed")
	}

	pane.ToggleExpand()
	content = pane.Content()
	for _, want := range []string{"Citation", "#1", "https://docs.example.com/france.pdf", "Paris is the capital", "since 987", "author: atlas", "page: 3"} {
		if !strings.Contains(content, want) {
			t.Errorf("expected expanded entry to contain %q", want)
		}
	}
}

func TestCitationPaneNavigation(t *testing.T) {
	pane := NewCitationPane(DefaultStyles(), 60, 20)
	pane.SetEntries(testEntries())

	pane.SelectNext()
	pane.SelectNext()
	pane.SelectNext()
	if pane.Selected() != 2 {
		t.Fatalf("expected selection clamped at 2, got %d", pane.Selected())
	}
	pane.ToggleExpand()
	if !pane.IsExpanded(2) || pane.IsExpanded(0) {
		t.Fatalf("only the selected entry should toggle")
	}
	if !strings.Contains(pane.Content(), "knowledge base lookup") {
		t.Fatalf("trace-derived entry should name its source")
	}
}
