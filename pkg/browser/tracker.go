package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/frametree/pkg/filter"
	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/reporter"
	"github.com/entrhq/frametree/pkg/transport"
)

// ChannelFunc opens the frame channel for a sender.
type ChannelFunc func(transport.Sender) transport.Channel

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	// Filter drops frames before they are reported; nil reports all.
	Filter *filter.URLFilter

	// Evaluate measures depth inside each frame with a script instead of
	// walking frame handles.
	Evaluate bool

	Logger logging.Sink
}

// Tracker plays the role of the content script for every frame of a
// tracked page: each time a frame commits a navigation it is reported once.
type Tracker struct {
	channel  ChannelFunc
	reporter *reporter.Reporter
	filter   *filter.URLFilter
	evaluate bool
	logger   logging.Sink
}

// NewTracker creates a tracker that reports over channels from ch.
func NewTracker(ch ChannelFunc, opts TrackerOptions) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Tracker{
		channel:  ch,
		reporter: reporter.New(logger),
		filter:   opts.Filter,
		evaluate: opts.Evaluate,
		logger:   logger,
	}
}

// Attach reports the frames already in the session's page and every frame
// navigated from now on.
func (t *Tracker) Attach(ctx context.Context, s *Session) {
	s.Page.OnFrameNavigated(func(f playwright.Frame) {
		// Event handlers must not block the driver's dispatch loop
		go func() {
			if err := t.ReportFrame(ctx, s, f); err != nil {
				t.logger.Warnf("Frame %s not reported: %v", f.URL(), err)
			}
		}()
	})

	for _, f := range s.Page.Frames() {
		if err := t.ReportFrame(ctx, s, f); err != nil {
			t.logger.Warnf("Frame %s not reported: %v", f.URL(), err)
		}
	}
}

// ReportFrame computes f's depth and registers it under session s. Filtered
// frames are skipped without error.
func (t *Tracker) ReportFrame(ctx context.Context, s *Session, f playwright.Frame) error {
	sender := s.Sender(f)
	if sender.URL == "" || !t.filter.Allow(sender.URL) {
		t.logger.Debugf("Skipping frame %q", sender.URL)
		return nil
	}

	var c reporter.Context = FrameContext{Frame: f}
	if t.evaluate {
		measured, err := Measure(f)
		if err != nil {
			return fmt.Errorf("failed to measure frame depth: %w", err)
		}
		c = measured
	}

	_, err := t.reporter.Report(ctx, t.channel(sender), c)
	return err
}
