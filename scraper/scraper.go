package scraper

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/models"
)

// Scraper opens authenticated browsing sessions against the target site.
// Each Open launches a dedicated browser that the returned Session owns.
type Scraper struct {
	targetCfg  config.TargetConfig
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	logger     *slog.Logger
}

// New creates a Scraper. No browser is launched until Open.
func New(targetCfg config.TargetConfig, browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, logger *slog.Logger) *Scraper {
	return &Scraper{
		targetCfg:  targetCfg,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		logger:     logger,
	}
}

// Open launches a headless browser, prepares a page carrying the session
// cookie and returns the Session that owns both. The caller must Close it.
//
// Setup order matters: stealth script, user agent, headers, cookie and the
// hijack router must all be in place before the first navigation.
func (s *Scraper) Open(ctx context.Context, credential string) (*Session, error) {
	l := s.newLauncher()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewRunError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	s.logger.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, models.NewRunError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	sess := &Session{
		launcher: l,
		browser:  browser,
		retry: RetryPolicy{
			MaxAttempts: s.scraperCfg.MaxAttempts,
			Delay:       s.scraperCfg.RetryDelay,
		},
		navTimeout:   s.scraperCfg.NavigationTimeout,
		readyTimeout: s.scraperCfg.ReadyTimeout,
		logger:       s.logger,
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = sess.Close()
		return nil, models.NewRunError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}
	sess.page = page

	if err := s.preparePage(ctx, page, credential); err != nil {
		_ = sess.Close()
		return nil, err
	}
	sess.router = setupHijack(page, s.scraperCfg.BlockedResourceTypes, s.scraperCfg.BlockTrackers)

	return sess, nil
}

func (s *Scraper) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(s.browserCfg.Headless).
		NoSandbox(s.browserCfg.NoSandbox)

	if s.browserCfg.BrowserBin != "" {
		l = l.Bin(s.browserCfg.BrowserBin)
	}
	if s.browserCfg.Proxy != "" {
		l = l.Proxy(s.browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	return l
}

func (s *Scraper) preparePage(ctx context.Context, page *rod.Page, credential string) error {
	p := page.Context(ctx)

	// ── Stealth injection ─────────────────────────────────────────────
	if s.browserCfg.Stealth {
		if _, evalErr := p.EvalOnNewDocument(stealth.JS); evalErr != nil {
			s.logger.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── Identity: user agent and viewport ────────────────────────────
	if s.browserCfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: s.browserCfg.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to override user agent", "error", err)
		}
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.browserCfg.ViewportWidth,
		Height:            s.browserCfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.logger.Warn("failed to set viewport", "error", err)
	}

	// English UI text keeps the "Pinned" label stable.
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		}),
	}.Call(p)

	// ── Session cookie ───────────────────────────────────────────────
	if _, err := (proto.NetworkSetCookie{
		Name:     s.targetCfg.CookieName,
		Value:    credential,
		Domain:   s.targetCfg.CookieDomain,
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
	}).Call(p); err != nil {
		return models.NewRunError(
			models.ErrCodeBrowserCrash,
			"failed to install session cookie",
			err,
		)
	}
	return nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
