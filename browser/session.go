package browser

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resultPollInterval is how often WaitResult re-checks the page.
const resultPollInterval = 500 * time.Millisecond

// session is a rod page implementing consult.Session. The page is owned by
// exactly one consultation attempt and closed when the attempt ends.
type session struct {
	page         *rod.Page // context-bound; all operations go through this
	raw          *rod.Page // unbound original, used for teardown
	router       *rod.HijackRouter
	probeTimeout time.Duration
	closeOnce    sync.Once
}

func (s *session) Navigate(url string) error {
	return s.page.Navigate(url)
}

func (s *session) WaitLoadIdle(timeout time.Duration) error {
	p := s.page.Timeout(timeout)
	if err := p.WaitLoad(); err != nil {
		return err
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", err,
		)
	}
	return nil
}

func (s *session) ElementAttribute(selector, attr string) (string, bool) {
	el, err := s.page.Timeout(s.probeTimeout).Element(selector)
	if err != nil {
		return "", false
	}
	v, err := el.Attribute(attr)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (s *session) FillField(name, value string) error {
	_, err := s.page.Eval(`(name, value) => {
		const el = document.querySelector(
			'textarea[name="' + name + '"], input[name="' + name + '"]');
		if (el) el.value = value;
	}`, name, value)
	return err
}

func (s *session) Click(selector string) error {
	el, err := s.page.Timeout(s.probeTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// WaitResult polls for either a URL match or the marker text. Submission
// triggers a cross-page navigation, so event listeners are unreliable here;
// polling the page state is the robust option.
func (s *session) WaitResult(urlFragment, markerText string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if strings.Contains(s.CurrentURL(), urlFragment) {
			return nil
		}
		if text, err := s.PageText(); err == nil && strings.Contains(text, markerText) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("result page not detected within %s", timeout)
		}
		select {
		case <-time.After(resultPollInterval):
		case <-s.page.GetContext().Done():
			return s.page.GetContext().Err()
		}
	}
}

func (s *session) PageText() (string, error) {
	res, err := s.page.Eval(`() => document.body.innerText`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *session) PageHTML() (string, error) {
	return s.page.HTML()
}

func (s *session) CurrentURL() string {
	return evalStringOrEmpty(s.page, `() => window.location.href`)
}

func (s *session) Screenshot(path string) error {
	data, err := s.page.Screenshot(true, nil)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *session) Close() {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if err := s.raw.Close(); err != nil {
			slog.Warn("failed to close page", "error", err)
		}
	})
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
