package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"kbchat/cmd/kbchat/chat"
	"kbchat/internal/agent"
	"kbchat/internal/citation"
	"kbchat/internal/config"
	"kbchat/internal/logging"
	"kbchat/internal/session"
	"kbchat/internal/store"
)

// app is the wired response pipeline shared by every command.
type app struct {
	cfg       *config.Config
	resolver  *citation.Resolver
	assembler *session.Assembler
	out       io.Writer

	// Set by connect.
	conv  *session.Conversation
	store *store.SessionStore
}

func resolveWorkspace() (string, error) {
	if workspace != "" {
		return filepath.Abs(workspace)
	}
	return os.Getwd()
}

// loadConfig reads the config file and validates it. requireAgent=false
// tolerates a missing agent id for commands that only normalize files.
func loadConfig(requireAgent bool) (*config.Config, string, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve workspace: %w", err)
	}
	path := configPath
	if path == "" {
		path = config.DefaultPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		if requireAgent || !errors.Is(err, config.ErrNoAgentID) {
			return nil, "", err
		}
	}
	return cfg, ws, nil
}

// newApp builds the offline part of the pipeline.
func newApp(cfg *config.Config) *app {
	resolver := citation.NewResolver(cfg.Citations.SourcePrefix, cfg.Citations.PublicPrefix)
	aggregator := citation.NewAggregator(resolver,
		citation.WithEmptyMode(cfg.Citations.EmptyMode),
		citation.WithPlaceholder(cfg.Citations.Placeholder),
	)
	return &app{
		cfg:       cfg,
		resolver:  resolver,
		assembler: session.NewAssembler(aggregator),
		out:       os.Stdout,
	}
}

// newInvoker picks the replay invoker when a fixtures directory is set.
func newInvoker(cfg *config.Config, ws string) (agent.Invoker, error) {
	if dir := cfg.Agent.FixturesDir; dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(ws, dir)
		}
		return agent.NewReplayInvoker(dir)
	}
	return agent.NewHTTPInvoker(agent.HTTPConfig{
		BaseURL: cfg.Agent.GatewayURL,
		Timeout: cfg.GetAgentTimeout(),
	}), nil
}

// connect adds the agent, the session and, when enabled, the session
// store. A stored session is resumed.
func (a *app) connect(ctx context.Context, ws string, resume bool) error {
	inv, err := newInvoker(a.cfg, ws)
	if err != nil {
		return err
	}

	sess := session.New()
	var persister session.Persister
	if a.cfg.IsStoreEnabled() {
		path := a.cfg.Store.Path
		if path != ":memory:" && !filepath.IsAbs(path) {
			path = filepath.Join(ws, path)
		}
		st, err := store.NewSessionStore(path)
		if err != nil {
			return err
		}
		a.store = st
		persister = st

		saved, err := st.Load(ctx)
		switch {
		case resume && err == nil:
			sess.Restore(saved)
		case err != nil && !errors.Is(err, store.ErrNoActiveSession):
			logging.StoreError("ignoring unreadable stored session: %v", err)
			fallthrough
		default:
			if err := st.Begin(ctx, sess.ID()); err != nil {
				return err
			}
		}
	}

	a.conv = session.NewConversation(session.ConversationConfig{
		AgentID: a.cfg.Agent.ID,
		AliasID: a.cfg.Agent.AliasID,
	}, inv, a.assembler, sess, persister)
	return nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.StoreError("failed to close session store: %v", err)
		}
	}
}

func runInteractiveChat() error {
	cfg, ws, err := loadConfig(true)
	if err != nil {
		return err
	}
	if err := logging.Initialize(ws, cfg.Logging.Options()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}
	defer logging.CloseAll()

	a := newApp(cfg)
	if err := a.connect(context.Background(), ws, true); err != nil {
		return err
	}
	defer a.Close()

	logging.Boot("starting chat for agent %s/%s", cfg.Agent.ID, cfg.Agent.AliasID)
	return chat.Run(chat.Config{
		Title:        cfg.UI.Title,
		Icon:         cfg.UI.Icon,
		Theme:        cfg.UI.Theme,
		SplitRatio:   cfg.UI.SplitRatio,
		Timeout:      cfg.GetAgentTimeout(),
		Conversation: a.conv,
		Resolver:     a.resolver,
	})
}
