package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"kbchat/internal/types"
)

// NoTraceText is shown for a phase that produced no trace.
const NoTraceText = "None"

// FormatFragment renders a fragment as indented JSON.
func FormatFragment(f types.Fragment) string {
	raw := f.Raw()
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Render writes the phases as plain text, one block per step. Used by the
// non-interactive commands.
func Render(ps []Phase) string {
	var sb strings.Builder
	for i, p := range ps {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Label)
		sb.WriteString("\n")
		if p.NoTrace {
			sb.WriteString("  " + NoTraceText + "\n")
			continue
		}
		for _, s := range p.Steps {
			sb.WriteString(fmt.Sprintf("  %s [%s]", s.Title(), s.SourceKey))
			if s.ID != "" {
				sb.WriteString(" " + s.ID)
			}
			sb.WriteString("\n")
			for _, f := range s.Fragments {
				sb.WriteString(indent(FormatFragment(f), "    "))
				sb.WriteString("\n")
			}
		}
		if p.Skipped > 0 {
			sb.WriteString(fmt.Sprintf("  (%d unrecognized fragments skipped)\n", p.Skipped))
		}
	}
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
