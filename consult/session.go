package consult

import (
	"context"
	"time"

	"github.com/openregistry/consulta/models"
)

// Session is one exclusively-owned browser page. The coordinator acquires a
// session per attempt and always closes it before the attempt ends,
// whatever the exit path.
type Session interface {
	// Navigate loads the given URL.
	Navigate(url string) error

	// WaitLoadIdle blocks until the page settles or the timeout elapses.
	WaitLoadIdle(timeout time.Duration) error

	// ElementAttribute looks up the first element matching selector and
	// returns the named attribute. ok is false when no such element appears
	// within the session's probe window.
	ElementAttribute(selector, attr string) (value string, ok bool)

	// FillField writes value into the named form field.
	FillField(name, value string) error

	// Click clicks the first element matching selector.
	Click(selector string) error

	// WaitResult blocks until the current URL contains urlFragment or the
	// page text contains markerText, failing after timeout.
	WaitResult(urlFragment, markerText string, timeout time.Duration) error

	// PageText returns the rendered text of the current page.
	PageText() (string, error)

	// PageHTML returns the full HTML of the current page.
	PageHTML() (string, error)

	// CurrentURL returns the page's current location.
	CurrentURL() string

	// Screenshot writes a full-page screenshot to path.
	Screenshot(path string) error

	// Close releases the session. Idempotent.
	Close()
}

// SessionFactory produces sessions. Implemented by the browser package;
// faked in tests.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// Solver redeems a bot challenge for a token.
type Solver interface {
	Solve(ctx context.Context, sitekey, pageURL string) (string, error)
}

// Cache stores extracted records between consultations.
type Cache interface {
	Get(id string) (*models.RegistryRecord, bool)
	Put(id string, rec *models.RegistryRecord)
}
