// Package browser drives a real browser with Playwright and feeds the frame
// registry from it.
//
// Each page opened by the SessionManager is one session. A Tracker attached
// to the page acts as the per-frame reporter: whenever a frame commits a
// navigation its depth is measured and registered under the page's session
// id. When the page closes, SessionManager subscribers are told so the
// session's frames can be purged.
//
// # Depth measurement
//
// By default depth is read from the driver's frame tree (FrameContext), which
// sees through origin boundaries. With TrackerOptions.Evaluate the walk runs
// inside the frame instead (Measure), reproducing what an extension content
// script observes, including under-counts behind cross-origin ancestors.
//
// # Example Usage
//
//	manager := browser.NewSessionManager(logger)
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	session, err := manager.StartSession(browser.SessionOptions{Headless: true})
//	tracker := browser.NewTracker(func(s transport.Sender) transport.Channel {
//	    return bus.Endpoint(s)
//	}, browser.TrackerOptions{})
//	tracker.Attach(ctx, session)
//	err = session.Navigate("https://example.com", browser.NavigateOptions{})
package browser
