// Package app assembles the registry, the frame channel and the frame
// sources (playwright browser, extension endpoint) from a configuration.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/frametree/pkg/browser"
	"github.com/entrhq/frametree/pkg/config"
	"github.com/entrhq/frametree/pkg/filter"
	"github.com/entrhq/frametree/pkg/logging"
	"github.com/entrhq/frametree/pkg/registry"
	"github.com/entrhq/frametree/pkg/transport"
)

// PresenterURL is the sender url used by local presenters. It only has to
// be non-empty; presenters never register.
const PresenterURL = "frametree://presenter"

// App is one running frametree instance.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	Registry *registry.Registry
	Bus      *transport.Bus
	Server   *transport.Server

	Browser *browser.SessionManager
	tracker *browser.Tracker

	wg   sync.WaitGroup
	errs chan error
}

// New builds an App. Nothing runs until Start.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	urlFilter, err := filter.New(cfg.Filter.AllowedPatterns, cfg.Filter.DeniedPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to create url filter: %w", err)
	}

	reg := registry.New(registry.WithLogger(logger.With("registry")))
	bus := transport.NewBus(transport.NewDispatcher(reg, logger.With("dispatcher")), logger.With("bus"))

	a := &App{
		cfg:      cfg,
		logger:   logger,
		Registry: reg,
		Bus:      bus,
		errs:     make(chan error, 2),
	}

	if cfg.ListenAddr != "" {
		a.Server = transport.NewServer(bus, logger.With("http"))
	}

	if cfg.StartURL != "" {
		a.Browser = browser.NewSessionManager(logger.With("browser"))
		a.tracker = browser.NewTracker(a.channel, browser.TrackerOptions{
			Filter:   urlFilter,
			Evaluate: cfg.Browser.Evaluate,
			Logger:   logger.With("reporter"),
		})
	}

	return a, nil
}

func (a *App) channel(s transport.Sender) transport.Channel {
	return a.Bus.Endpoint(s)
}

// Start runs the bus and the configured frame sources. When a start url is
// configured it opens the page and waits for the first navigation.
func (a *App) Start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.Bus.Run(ctx)
	}()

	if a.Server != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.Server.ListenAndServe(ctx, a.cfg.ListenAddr); err != nil {
				a.logger.Errorf("HTTP endpoint stopped: %v", err)
				a.errs <- fmt.Errorf("http endpoint: %w", err)
			}
		}()
	}

	if a.Browser == nil {
		return nil
	}

	if err := a.Browser.Initialize(); err != nil {
		return err
	}

	a.Browser.OnSessionClosed(func(id registry.SessionID) {
		notifyCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := a.Bus.NotifySessionClosed(notifyCtx, id); err != nil {
			a.logger.Warnf("Session %s close not delivered: %v", id, err)
		}
	})

	timeoutMs := float64(a.cfg.Browser.Timeout.Milliseconds())
	session, err := a.Browser.StartSession(browser.SessionOptions{
		Headless: a.cfg.Browser.Headless,
		Viewport: &browser.Viewport{Width: a.cfg.Browser.Width, Height: a.cfg.Browser.Height},
		Timeout:  timeoutMs,
	})
	if err != nil {
		return err
	}
	a.tracker.Attach(ctx, session)

	if err := session.Navigate(a.cfg.StartURL, browser.NavigateOptions{WaitUntil: "load", Timeout: timeoutMs}); err != nil {
		return err
	}
	return nil
}

// Errors reports fatal failures of background components.
func (a *App) Errors() <-chan error {
	return a.errs
}

// Sessions returns the sessions to display: the open browser pages when
// there are any, otherwise every session that has reported frames.
func (a *App) Sessions(ctx context.Context) ([]registry.SessionID, error) {
	if a.Browser != nil && a.Browser.HasSessions() {
		infos := a.Browser.ListSessions()
		ids := make([]registry.SessionID, len(infos))
		for i, info := range infos {
			ids[i] = info.ID
		}
		return ids, nil
	}
	return a.Bus.Sessions(ctx)
}

// BrowserSessions describes the open browser pages. It is empty when no
// start url is configured.
func (a *App) BrowserSessions() []browser.SessionInfo {
	if a.Browser == nil {
		return nil
	}
	return a.Browser.ListSessions()
}

// PresenterChannel returns the channel a presenter for session queries
// through. Browser sessions query as their top-level frame.
func (a *App) PresenterChannel(session registry.SessionID) transport.Channel {
	if a.Browser != nil {
		if s, err := a.Browser.GetSession(session); err == nil {
			return a.Bus.Endpoint(s.TopSender())
		}
	}
	return a.Bus.Endpoint(transport.Sender{SessionID: session, URL: PresenterURL})
}

// Close shuts the browser down and stops the bus. ctx passed to Start must
// be cancelled first for the HTTP endpoint to stop.
func (a *App) Close() error {
	var err error
	if a.Browser != nil {
		err = a.Browser.Shutdown()
	}
	a.Bus.Close()
	a.wg.Wait()
	return err
}
