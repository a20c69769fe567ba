// Package tui provides the interactive terminal executor for frametree,
// showing the live iframe tree of each tracked session.
//
// The TUI codebase is split into multiple files:
// - executor.go: Executor implementation and program lifecycle
// - model.go: Core model structure, state and messages
// - update.go: Bubble Tea Update function and polling
// - view.go: Bubble Tea View function and rendering
// - styles.go: Color schemes and styling
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/registry"
	"github.com/entrhq/frametree/pkg/transport"
)

// Source lists the sessions to display and hands out presenter channels.
// *app.App implements it.
type Source interface {
	Sessions(ctx context.Context) ([]registry.SessionID, error)
	PresenterChannel(session registry.SessionID) transport.Channel
}

// Options configures the TUI.
type Options struct {
	// Interval between polls
	Interval time.Duration

	// JSON shows the serialized tree above the indented view on start
	JSON bool

	// Highlight colors the JSON block
	Highlight bool

	// Title is shown in the status bar, usually the tracked page url
	Title string
}

// Executor is a TUI-based executor that polls the registry and renders
// the tree of the selected session.
type Executor struct {
	source  Source
	opts    Options
	logger  logging.Sink
	program *tea.Program
}

// NewExecutor creates a new TUI executor reading from source.
func NewExecutor(source Source, opts Options, logger logging.Sink) *Executor {
	return &Executor{
		source: source,
		opts:   opts,
		logger: logger,
	}
}

// Run starts the TUI and blocks until the user exits or ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	m := newModel(ctx, e.source, e.opts, e.logger)

	e.program = tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	if _, err := e.program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to run TUI program: %w", err)
	}

	return nil
}
