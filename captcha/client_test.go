package captcha

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/openregistry/consulta/models"
)

// newTestClient points a Client with fast timings at a test server.
func newTestClient(baseURL string) *Client {
	return &Client{
		http:         resty.New().SetBaseURL(baseURL),
		apiKey:       "test-key",
		pollInterval: 5 * time.Millisecond,
		solveTimeout: 250 * time.Millisecond,
		maxAttempts:  2,
		retryDelay:   time.Millisecond,
	}
}

func TestSubmitReturnsChallengeID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/in.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("method"); got != "hcaptcha" {
			t.Errorf("method = %q, want hcaptcha", got)
		}
		if got := r.PostForm.Get("sitekey"); got != "sk-123" {
			t.Errorf("sitekey = %q, want sk-123", got)
		}
		fmt.Fprint(w, `{"status":1,"request":"77001122"}`)
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Submit(context.Background(), "sk-123", "https://example.test/q")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "77001122" {
		t.Errorf("challenge id = %q, want 77001122", id)
	}
}

func TestSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_WRONG_USER_KEY"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Submit(context.Background(), "sk", "url")
	if err == nil {
		t.Fatal("Submit succeeded on a rejection")
	}
	var ce *models.ConsultError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeCaptchaSubmit {
		t.Errorf("error = %v, want code %s", err, models.ErrCodeCaptchaSubmit)
	}
}

func TestAwaitSolutionPollsUntilReady(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/res.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
			return
		}
		fmt.Fprint(w, `{"status":1,"request":"token-abc"}`)
	}))
	defer srv.Close()

	token, err := newTestClient(srv.URL).AwaitSolution(context.Background(), "77001122", 250*time.Millisecond)
	if err != nil {
		t.Fatalf("AwaitSolution: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("token = %q, want token-abc", token)
	}
	if polls.Load() < 3 {
		t.Errorf("polls = %d, want at least 3", polls.Load())
	}
}

func TestAwaitSolutionTerminalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).AwaitSolution(context.Background(), "id", 250*time.Millisecond)
	var ce *models.ConsultError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeCaptchaSolve {
		t.Errorf("error = %v, want code %s", err, models.ErrCodeCaptchaSolve)
	}
}

func TestAwaitSolutionTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
	}))
	defer srv.Close()

	start := time.Now()
	_, err := newTestClient(srv.URL).AwaitSolution(context.Background(), "id", 30*time.Millisecond)
	var ce *models.ConsultError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeCaptchaTimeout {
		t.Fatalf("error = %v, want code %s", err, models.ErrCodeCaptchaTimeout)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout took far longer than the deadline")
	}
}

func TestSolveRetriesSubmitFailures(t *testing.T) {
	var submits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			if submits.Add(1) == 1 {
				fmt.Fprint(w, `{"status":0,"request":"ERROR_NO_SLOT_AVAILABLE"}`)
				return
			}
			fmt.Fprint(w, `{"status":1,"request":"77001122"}`)
		case "/res.php":
			fmt.Fprint(w, `{"status":1,"request":"token-abc"}`)
		}
	}))
	defer srv.Close()

	token, err := newTestClient(srv.URL).Solve(context.Background(), "sk", "url")
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("token = %q, want token-abc", token)
	}
	if submits.Load() != 2 {
		t.Errorf("submits = %d, want 2", submits.Load())
	}
}

func TestSolveGivesUpAfterMaxAttempts(t *testing.T) {
	var submits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		fmt.Fprint(w, `{"status":0,"request":"ERROR_NO_SLOT_AVAILABLE"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Solve(context.Background(), "sk", "url")
	if err == nil {
		t.Fatal("Solve succeeded with a permanently failing service")
	}
	if submits.Load() != 2 {
		t.Errorf("submits = %d, want exactly maxAttempts", submits.Load())
	}
}
