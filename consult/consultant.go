// Package consult orchestrates one registry consultation: cache lookup,
// browser session, challenge solving, query submission, extraction, and
// cache write-back, with bounded retries and guaranteed session teardown.
package consult

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/openregistry/consulta/config"
	"github.com/openregistry/consulta/extractor"
	"github.com/openregistry/consulta/models"
)

// Page anchors on the registry site.
const (
	challengeSelector = "[data-sitekey]"
	sitekeyAttr       = "data-sitekey"
	submitSelector    = "button.btn-primary"
	resultURLFragment = "Cnpjreva_Comprovante.asp"
	resultMarker      = "COMPROVANTE DE INSCRIÇÃO"
)

// tokenFields are the form fields the solution token is written into. The
// page reads whichever one its challenge widget uses.
var tokenFields = []string{"h-captcha-response", "g-recaptcha-response"}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeID strips non-digit characters and validates the result is
// exactly 14 digits.
func NormalizeID(raw string) (string, error) {
	id := nonDigits.ReplaceAllString(raw, "")
	if len(id) != 14 {
		return "", models.NewConsultError(models.ErrCodeInvalidID,
			fmt.Sprintf("identifier must contain exactly 14 digits, got %d", len(id)), nil)
	}
	return id, nil
}

// Consultant runs the consultation pipeline. Safe for concurrent use for
// distinct identifiers; each call owns its browser session exclusively.
type Consultant struct {
	sessions SessionFactory
	solver   Solver
	cache    Cache
	cfg      config.ConsultConfig
}

// New wires the coordinator's collaborators.
func New(sessions SessionFactory, solver Solver, cache Cache, cfg config.ConsultConfig) *Consultant {
	return &Consultant{sessions: sessions, solver: solver, cache: cache, cfg: cfg}
}

// Consult retrieves the registry record for rawID.
//
// The only error it ever returns is identifier validation; every other
// failure is retried up to the attempt ceiling and then converted into a
// failure record, so callers always receive a record.
func (c *Consultant) Consult(ctx context.Context, rawID string, useCache bool) (*models.RegistryRecord, error) {
	id, err := NormalizeID(rawID)
	if err != nil {
		return nil, err
	}

	if useCache {
		if rec, ok := c.cache.Get(id); ok {
			slog.Info("cache hit", "id", id)
			served := *rec
			served.Metadata.Source = "cache"
			return &served, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		rec, err := c.attempt(ctx, id)
		if err == nil {
			if useCache {
				c.cache.Put(id, rec)
			}
			return rec, nil
		}

		lastErr = err
		slog.Warn("consultation attempt failed",
			"id", id, "attempt", attempt, "maxAttempts", c.cfg.MaxAttempts, "error", err)

		if attempt < c.cfg.MaxAttempts {
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return failureRecord(ctx.Err()), nil
			}
		}
	}

	return failureRecord(lastErr), nil
}

// attempt runs the pipeline once. The session acquired here is closed on
// every exit path, including panics inside collaborators.
func (c *Consultant) attempt(ctx context.Context, id string) (rec *models.RegistryRecord, err error) {
	sess, err := c.sessions.NewSession(ctx)
	if err != nil {
		return nil, models.NewConsultError(models.ErrCodeBrowserCrash,
			"failed to acquire browser session", err)
	}
	defer sess.Close()
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = models.NewConsultError(models.ErrCodeInternal,
				fmt.Sprintf("consultation panic: %v", r), nil)
		}
	}()

	queryURL := fmt.Sprintf("%s?cnpj=%s", c.cfg.QueryEndpoint, id)
	if err := sess.Navigate(queryURL); err != nil {
		c.saveDebugArtifacts(sess, "navigation_failed")
		return nil, models.NewConsultError(models.ErrCodeNavigationTimeout,
			"navigation to query page failed", err)
	}
	if err := sess.WaitLoadIdle(c.cfg.NavigationTimeout); err != nil {
		c.saveDebugArtifacts(sess, "navigation_timeout")
		return nil, models.NewConsultError(models.ErrCodeNavigationTimeout,
			"query page did not settle", err)
	}

	if sitekey, ok := sess.ElementAttribute(challengeSelector, sitekeyAttr); ok {
		token, err := c.solver.Solve(ctx, sitekey, sess.CurrentURL())
		if err != nil {
			c.saveDebugArtifacts(sess, "challenge_failed")
			return nil, err
		}
		for _, field := range tokenFields {
			if err := sess.FillField(field, token); err != nil {
				c.saveDebugArtifacts(sess, "token_inject_failed")
				return nil, models.NewConsultError(models.ErrCodeCaptchaSolve,
					"failed to inject solution token", err)
			}
		}
		// Give the page scripts a beat to pick the token up.
		select {
		case <-time.After(c.cfg.TokenSettleDelay):
		case <-ctx.Done():
			return nil, models.NewConsultError(models.ErrCodeNavigationTimeout,
				"consultation canceled", ctx.Err())
		}
		slog.Info("challenge solved", "id", id)
	} else {
		slog.Info("no challenge on query page", "id", id)
	}

	if err := sess.Click(submitSelector); err != nil {
		c.saveDebugArtifacts(sess, "submit_failed")
		return nil, models.NewConsultError(models.ErrCodeResultPageNotFound,
			"failed to submit query", err)
	}
	if err := sess.WaitResult(resultURLFragment, resultMarker, c.cfg.ResultTimeout); err != nil {
		c.saveDebugArtifacts(sess, "result_timeout")
		return nil, models.NewConsultError(models.ErrCodeResultPageNotFound,
			"result page did not appear", err)
	}

	text, err := sess.PageText()
	if err != nil {
		c.saveDebugArtifacts(sess, "page_text_failed")
		return nil, models.NewConsultError(models.ErrCodeBrowserCrash,
			"failed to read result page text", err)
	}

	rec = extractor.Extract(text)
	rec.Metadata = models.Metadata{
		Timestamp: time.Now().Format(time.RFC3339),
		Success:   true,
		SourceURL: sess.CurrentURL(),
		Source:    "online",
	}
	return rec, nil
}

// saveDebugArtifacts writes a screenshot and an HTML dump of the current
// page, named <kind>_<timestamp>. Best effort; failures are only logged.
func (c *Consultant) saveDebugArtifacts(sess Session, kind string) {
	if c.cfg.DebugDir == "" {
		return
	}
	if err := os.MkdirAll(c.cfg.DebugDir, 0o755); err != nil {
		slog.Warn("debug dir unavailable", "dir", c.cfg.DebugDir, "error", err)
		return
	}

	base := filepath.Join(c.cfg.DebugDir,
		fmt.Sprintf("%s_%s", kind, time.Now().Format("20060102_150405")))

	if err := sess.Screenshot(base + ".png"); err != nil {
		slog.Warn("debug screenshot failed", "path", base+".png", "error", err)
	}
	if html, err := sess.PageHTML(); err == nil {
		if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
			slog.Warn("debug html dump failed", "path", base+".html", "error", err)
		}
	} else {
		slog.Warn("debug html capture failed", "error", err)
	}
}

// failureRecord is the terminal shape returned after retries are exhausted.
func failureRecord(cause error) *models.RegistryRecord {
	msg := "maximum consultation attempts exceeded"
	if cause != nil {
		msg = cause.Error()
	}
	return &models.RegistryRecord{
		Activities: models.Activities{Secondary: []models.CodeDescription{}},
		Error:      msg,
		Metadata: models.Metadata{
			Timestamp: time.Now().Format(time.RFC3339),
			Success:   false,
		},
	}
}
