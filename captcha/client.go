// Package captcha talks to an external challenge-solving service speaking
// the in.php/res.php protocol: one POST to submit the challenge, then
// polling until a worker produces the redemption token.
package captcha

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/openregistry/consulta/config"
	"github.com/openregistry/consulta/models"
)

// notReady is the poll status meaning "keep waiting". Any other non-success
// value is terminal. The misspelling is the service's, not ours.
const notReady = "CAPCHA_NOT_READY"

// apiResponse is the envelope both endpoints return with json=1.
// status==1 means request holds the payload (challenge id or token);
// otherwise request holds an error string.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Client is a challenge-solving service client. Safe for concurrent use.
type Client struct {
	http         *resty.Client
	apiKey       string
	pollInterval time.Duration
	solveTimeout time.Duration
	maxAttempts  int
	retryDelay   time.Duration
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.CaptchaConfig) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "consulta/0.1"),
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		solveTimeout: cfg.SolveTimeout,
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.RetryDelay,
	}
}

// Submit sends one challenge to the service and returns its challenge id.
func (c *Client) Submit(ctx context.Context, sitekey, pageURL string) (string, error) {
	var out apiResponse
	_, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"key":     c.apiKey,
			"method":  "hcaptcha",
			"sitekey": sitekey,
			"pageurl": pageURL,
			"json":    "1",
		}).
		SetResult(&out).
		Post("/in.php")
	if err != nil {
		return "", models.NewConsultError(models.ErrCodeCaptchaSubmit,
			"challenge submit request failed", err)
	}
	if out.Status != 1 {
		return "", models.NewConsultError(models.ErrCodeCaptchaSubmit,
			fmt.Sprintf("solving service rejected challenge: %s", out.Request), nil)
	}
	slog.Debug("challenge submitted", "challengeID", out.Request)
	return out.Request, nil
}

// AwaitSolution polls the service for the token of a submitted challenge.
// It returns on success, on the first terminal error status, or when timeout
// elapses. Every iteration sleeps for the poll interval, so the loop never
// spins.
func (c *Client) AwaitSolution(ctx context.Context, challengeID string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		var out apiResponse
		_, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":    c.apiKey,
				"action": "get",
				"id":     challengeID,
				"json":   "1",
			}).
			SetResult(&out).
			Get("/res.php")
		switch {
		case err != nil:
			// Transient transport failure: keep polling until the deadline.
			slog.Warn("challenge poll failed", "challengeID", challengeID, "error", err)
		case out.Status == 1:
			return out.Request, nil
		case out.Request != notReady:
			return "", models.NewConsultError(models.ErrCodeCaptchaSolve,
				fmt.Sprintf("solving service failed: %s", out.Request), nil)
		}

		if time.Now().Add(c.pollInterval).After(deadline) {
			return "", models.NewConsultError(models.ErrCodeCaptchaTimeout,
				fmt.Sprintf("challenge %s not solved within %s", challengeID, timeout), nil)
		}
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return "", models.NewConsultError(models.ErrCodeCaptchaTimeout,
				"challenge wait canceled", ctx.Err())
		}
	}
}

// Solve composes Submit and AwaitSolution with up to maxAttempts tries,
// short-circuiting on the first token.
func (c *Client) Solve(ctx context.Context, sitekey, pageURL string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		challengeID, err := c.Submit(ctx, sitekey, pageURL)
		if err == nil {
			var token string
			token, err = c.AwaitSolution(ctx, challengeID, c.solveTimeout)
			if err == nil {
				return token, nil
			}
		}
		lastErr = err
		slog.Warn("challenge solve attempt failed",
			"attempt", attempt, "maxAttempts", c.maxAttempts, "error", err)

		if attempt < c.maxAttempts {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", models.NewConsultError(models.ErrCodeCaptchaTimeout,
					"challenge solve canceled", ctx.Err())
			}
		}
	}

	return "", lastErr
}
