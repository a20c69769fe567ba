package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/presenter"
	"github.com/entrhq/frametree/pkg/registry"
	"github.com/entrhq/frametree/pkg/transport"
)

const (
	statusSuccess        = "success"
	statusFailed         = "failed"
	statusPartialSuccess = "partial_success"
)

// Source lists the sessions to display and hands out presenter channels.
// *app.App implements it.
type Source interface {
	Sessions(ctx context.Context) ([]registry.SessionID, error)
	PresenterChannel(session registry.SessionID) transport.Channel
}

// Config controls a headless run
type Config struct {
	StartURL string

	// Interval between poll rounds
	Interval time.Duration

	// Duration stops the run after this long; zero runs until cancelled
	Duration time.Duration

	// MaxPolls stops the run after this many rounds; zero means no limit
	MaxPolls int

	JSON      bool
	Highlight bool

	// ArtifactDir receives execution.json and summary.md; empty disables artifacts
	ArtifactDir string
}

// Executor implements the headless mode executor
type Executor struct {
	source         Source
	config         Config
	console        *Logger
	logger         logging.Sink
	artifactWriter *ArtifactWriter

	summary  *ExecutionSummary
	sessions map[registry.SessionID]*SessionSummary
	order    []registry.SessionID
}

// NewExecutor creates a headless executor. console receives user-facing
// output, logger the diagnostic log.
func NewExecutor(source Source, config Config, console *Logger, logger logging.Sink) *Executor {
	if config.Interval <= 0 {
		config.Interval = presenter.DefaultInterval
	}
	if console == nil {
		console = NewLogger(LogLevelNormal)
	}
	if logger == nil {
		logger = logging.Nop{}
	}

	var artifactWriter *ArtifactWriter
	if config.ArtifactDir != "" {
		artifactWriter = NewArtifactWriter(config.ArtifactDir)
	}

	return &Executor{
		source:         source,
		config:         config,
		console:        console,
		logger:         logger,
		artifactWriter: artifactWriter,
		summary: &ExecutionSummary{
			StartURL: config.StartURL,
			Status:   "running",
		},
		sessions: make(map[registry.SessionID]*SessionSummary),
	}
}

// Run polls every session until ctx is cancelled or a configured limit is
// reached, then prints the summary and writes artifacts.
func (e *Executor) Run(ctx context.Context) error {
	e.summary.StartTime = time.Now()

	e.console.Header("Frametree Headless")
	if e.config.StartURL != "" {
		e.console.Infof("Tracking frames of %s", e.config.StartURL)
	}
	e.console.Verbosef("Polling every %s", e.config.Interval)

	runCtx := ctx
	if e.config.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.config.Duration)
		defer cancel()
	}

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

loop:
	for round := 1; ; round++ {
		e.pollRound(runCtx, round)

		if e.config.MaxPolls > 0 && round >= e.config.MaxPolls {
			break
		}

		select {
		case <-runCtx.Done():
			break loop
		case <-ticker.C:
		}
	}

	return e.finalize()
}

// Summary returns the execution summary collected so far
func (e *Executor) Summary() *ExecutionSummary {
	return e.summary
}

func (e *Executor) pollRound(ctx context.Context, round int) {
	sessions, err := e.source.Sessions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.summary.Metrics.Polls++
		e.summary.Metrics.FailedPolls++
		e.console.Warningf("could not list sessions: %v", err)
		e.logger.Errorf("Listing sessions failed: %v", err)
		return
	}

	e.console.Poll(round, len(sessions))
	if len(sessions) == 0 {
		e.summary.Metrics.Polls++
		e.console.Infof(presenter.NoFramesMessage)
		return
	}

	for _, id := range sessions {
		e.pollSession(ctx, id)
	}
}

func (e *Executor) pollSession(ctx context.Context, id registry.SessionID) {
	out := e.console.Output()
	if out == nil {
		out = io.Discard
	}

	p := presenter.New(e.source.PresenterChannel(id), e.logger, presenter.Options{
		Interval:  e.config.Interval,
		JSON:      e.config.JSON,
		Highlight: e.config.Highlight,
		Output:    out,
	})

	nodes, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.summary.Metrics.Polls++
		e.summary.Metrics.FailedPolls++
		e.console.Errorf("Error while displaying the tree: %v", err)
		e.logger.Errorf("Poll of session %s failed: %v", id, err)
		return
	}
	e.summary.Metrics.Polls++

	e.console.Section(fmt.Sprintf("Session %s", id))
	if err := p.Render(nodes); err != nil {
		e.console.Errorf("Error while displaying the tree: %v", err)
	}

	s, ok := e.sessions[id]
	if !ok {
		s = &SessionSummary{ID: id}
		e.sessions[id] = s
		e.order = append(e.order, id)
	}
	s.Tree = nodes
	s.Frames = presenter.CountNodes(nodes)
}

// finalize completes the execution and generates artifacts
func (e *Executor) finalize() error {
	e.summary.EndTime = time.Now()
	e.summary.Duration = e.summary.EndTime.Sub(e.summary.StartTime)

	e.summary.Sessions = e.summary.Sessions[:0]
	e.summary.Metrics.Frames = 0
	for _, id := range e.order {
		s := e.sessions[id]
		e.summary.Sessions = append(e.summary.Sessions, *s)
		e.summary.Metrics.Frames += s.Frames
	}

	m := e.summary.Metrics
	switch {
	case m.Polls > 0 && m.FailedPolls == m.Polls:
		e.summary.Status = statusFailed
		e.summary.Error = "every poll failed"
	case m.FailedPolls > 0:
		e.summary.Status = statusPartialSuccess
	default:
		e.summary.Status = statusSuccess
	}

	e.console.Summary(e.summary)

	if e.artifactWriter != nil {
		if err := e.artifactWriter.WriteAll(e.summary); err != nil {
			e.console.Warningf("failed to write artifacts: %v", err)
		} else {
			e.console.Successf("Artifacts written to %s", e.config.ArtifactDir)
		}
	}

	e.logger.Infof("Execution completed: %s (duration: %s)", e.summary.Status, e.summary.Duration)

	if e.summary.Status == statusFailed {
		return errors.New("execution failed: " + e.summary.Error)
	}
	return nil
}
