package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"kbchat/internal/logging"
	"kbchat/internal/types"
)

// LoadResponse reads a recorded response file (document or event stream).
func LoadResponse(path string) (types.RawResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.RawResponse{}, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	resp, err := Decode(f)
	if err != nil {
		return types.RawResponse{}, fmt.Errorf("%s: %w", path, err)
	}
	return resp, nil
}

// ReplayInvoker serves recorded responses from a fixtures directory. A file
// named after the prompt's slug wins; otherwise fixtures are served in name
// order, wrapping around.
type ReplayInvoker struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
}

// NewReplayInvoker indexes the *.json and *.ndjson files in dir.
func NewReplayInvoker(dir string) (*ReplayInvoker, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".ndjson":
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no fixtures in %s", dir)
	}
	sort.Strings(files)
	logging.Agent("replay invoker: %d fixtures in %s", len(files), dir)
	return &ReplayInvoker{dir: dir, files: files}, nil
}

// Invoke returns the fixture for req.Prompt.
func (r *ReplayInvoker) Invoke(ctx context.Context, req Request) (types.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.RawResponse{}, err
	}
	name := r.pick(req.Prompt)
	logging.AgentDebug("replaying %s for session=%s", name, req.SessionID)
	return LoadResponse(filepath.Join(r.dir, name))
}

func (r *ReplayInvoker) pick(prompt string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	slug := Slug(prompt)
	for _, f := range r.files {
		if strings.TrimSuffix(f, filepath.Ext(f)) == slug {
			return f
		}
	}
	name := r.files[r.next%len(r.files)]
	r.next++
	return name
}

// Slug lowercases s and joins its alphanumeric words with dashes.
func Slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "-")
}
