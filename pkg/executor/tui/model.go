package tui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/presenter"
	"github.com/entrhq/frametree/pkg/registry"
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

// pollTimeout bounds a single poll round
const pollTimeout = 5 * time.Second

// model represents the state of the TUI application.
type model struct {
	// Bubble Tea components
	viewport viewport.Model
	spinner  spinner.Model

	ctx    context.Context
	source Source
	logger logging.Sink
	opts   Options

	// Poll state
	sessions []registry.SessionID
	trees    map[registry.SessionID][]*presenter.VisualNode
	errs     map[registry.SessionID]error
	listErr  error
	lastPoll time.Time
	polling  bool
	rounds   int

	// UI state
	selected int
	showJSON bool
	status   string

	// Window dimensions
	width  int
	height int
	ready  bool
}

// tickMsg schedules the next poll
type tickMsg time.Time

// pollResultMsg carries the outcome of one poll round
type pollResultMsg struct {
	sessions []registry.SessionID
	trees    map[registry.SessionID][]*presenter.VisualNode
	errs     map[registry.SessionID]error
	err      error
	at       time.Time
	manual   bool
}

func newModel(ctx context.Context, source Source, opts Options, logger logging.Sink) *model {
	if opts.Interval <= 0 {
		opts.Interval = presenter.DefaultInterval
	}
	if logger == nil {
		logger = logging.Nop{}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &model{
		spinner:  s,
		ctx:      ctx,
		source:   source,
		logger:   logger,
		opts:     opts,
		trees:    make(map[registry.SessionID][]*presenter.VisualNode),
		errs:     make(map[registry.SessionID]error),
		showJSON: opts.JSON,
	}
}

// current returns the selected session, empty when none is known
func (m *model) current() registry.SessionID {
	if len(m.sessions) == 0 {
		return ""
	}
	return m.sessions[m.selected]
}
