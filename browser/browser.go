// Package browser provides the rod-backed browser session used by the
// consultation pipeline. One Browser process serves many sessions; each
// session is a dedicated page owned by a single consultation attempt.
package browser

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/openregistry/consulta/config"
	"github.com/openregistry/consulta/consult"
	"github.com/openregistry/consulta/models"
)

// Browser manages the global browser process lifecycle.
// It is safe for concurrent use.
type Browser struct {
	browser    *rod.Browser
	browserCfg config.BrowserConfig
	consultCfg config.ConsultConfig
}

// New launches a headless browser and connects to it.
func New(browserCfg config.BrowserConfig, consultCfg config.ConsultConfig) (*Browser, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewConsultError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewConsultError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Browser{
		browser:    b,
		browserCfg: browserCfg,
		consultCfg: consultCfg,
	}, nil
}

// NewSession creates a fresh page bound to ctx. Stealth JS and resource
// blocking are installed before any navigation so they take effect for the
// whole session.
func (b *Browser) NewSession(ctx context.Context) (consult.Session, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewConsultError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	if b.browserCfg.AcceptLanguage != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Accept-Language": b.browserCfg.AcceptLanguage,
			}),
		}.Call(page)
	}

	router := setupHijack(page, b.browserCfg.BlockedResourceTypes)

	return &session{
		page:         page.Context(ctx),
		raw:          page,
		router:       router,
		probeTimeout: b.consultCfg.ChallengeProbeTimeout,
	}, nil
}

// Close kills the browser process. Call this on graceful shutdown to prevent
// zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down")
	b.browser.MustClose()
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
