package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/postwatch/extract"
)

// Session is one authenticated browsing context. It is owned by a single
// run and must be closed on every exit path.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter

	retry        RetryPolicy
	navTimeout   time.Duration
	readyTimeout time.Duration
	logger       *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Fetch navigates to targetURL under the retry policy and returns the page
// once the timeline landmark is present.
func (s *Session) Fetch(ctx context.Context, targetURL string) (extract.Page, error) {
	err := s.retry.Do(ctx, s.logger, func(ctx context.Context, attempt int) error {
		s.logger.Info("navigating", "url", targetURL, "attempt", attempt)

		navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
		defer cancel()
		return s.page.Context(navCtx).Navigate(targetURL)
	})
	if err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()
	if err := s.page.Context(readyCtx).WaitElementsMoreThan(extract.ReadyLandmark, 0); err != nil {
		return nil, categorizeError(err, "page landmark did not appear")
	}

	return &rodPage{page: s.page}, nil
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// HTML returns the current DOM serialized as HTML.
func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close stops request interception, closes the browser and removes its
// profile directory. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			_ = s.page.Close()
		}
		closeBrowser := func() error { return nil }
		if s.browser != nil {
			closeBrowser = s.browser.Close
		}
		s.closeErr = shutdown(closeBrowser, s.launcher.Kill, s.launcher.Cleanup)
		s.logger.Info("browser closed", "error", s.closeErr)
	})
	return s.closeErr
}

// shutdown closes the browser, then waits for the process and removes its
// profile. Cleanup blocks until the process exits, so a browser that did not
// close gracefully is killed first.
func shutdown(closeBrowser func() error, kill, cleanup func()) error {
	err := closeBrowser()
	if err != nil {
		kill()
	}
	cleanup()
	return err
}
