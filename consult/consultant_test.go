package consult

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openregistry/consulta/config"
	"github.com/openregistry/consulta/models"
)

// fakeSession scripts one browser session.
type fakeSession struct {
	pageText    string
	sitekey     string // empty means no challenge on the page
	navigateErr error
	resultErr   error

	filled     map[string]string
	clicks     int
	closeCount int
	panicOn    string // method name that should panic, for teardown tests
}

func (f *fakeSession) Navigate(string) error { return f.navigateErr }

func (f *fakeSession) WaitLoadIdle(time.Duration) error { return nil }

func (f *fakeSession) ElementAttribute(selector, attr string) (string, bool) {
	if f.sitekey == "" {
		return "", false
	}
	return f.sitekey, true
}

func (f *fakeSession) FillField(name, value string) error {
	if f.panicOn == "FillField" {
		panic("injected fill panic")
	}
	if f.filled == nil {
		f.filled = map[string]string{}
	}
	f.filled[name] = value
	return nil
}

func (f *fakeSession) Click(string) error {
	f.clicks++
	return nil
}

func (f *fakeSession) WaitResult(string, string, time.Duration) error { return f.resultErr }

func (f *fakeSession) PageText() (string, error) { return f.pageText, nil }

func (f *fakeSession) PageHTML() (string, error) { return "<html></html>", nil }

func (f *fakeSession) CurrentURL() string { return "https://registry.test/result" }

func (f *fakeSession) Screenshot(string) error { return nil }

func (f *fakeSession) Close() { f.closeCount++ }

// fakeFactory hands out a fresh scripted session per attempt.
type fakeFactory struct {
	template fakeSession
	sessions []*fakeSession
}

func (f *fakeFactory) NewSession(context.Context) (Session, error) {
	s := f.template
	f.sessions = append(f.sessions, &s)
	return &s, nil
}

type fakeSolver struct {
	token string
	err   error
	calls int
}

func (f *fakeSolver) Solve(context.Context, string, string) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeCache struct {
	entries map[string]*models.RegistryRecord
	puts    int
	gets    int
}

func (f *fakeCache) Get(id string) (*models.RegistryRecord, bool) {
	f.gets++
	rec, ok := f.entries[id]
	return rec, ok
}

func (f *fakeCache) Put(id string, rec *models.RegistryRecord) {
	f.puts++
	if f.entries == nil {
		f.entries = map[string]*models.RegistryRecord{}
	}
	f.entries[id] = rec
}

func testConfig() config.ConsultConfig {
	return config.ConsultConfig{
		QueryEndpoint:     "https://registry.test/query",
		MaxAttempts:       3,
		RetryBackoff:      time.Millisecond,
		NavigationTimeout: time.Second,
		ResultTimeout:     time.Second,
		TokenSettleDelay:  0,
		DebugDir:          "", // no artifacts from tests
	}
}

const resultText = "NÚMERO DE INSCRIÇÃO\n38.139.407/0001-77\nMATRIZ\nNOME EMPRESARIAL\nEXEMPLO TECNOLOGIA LTDA"

func TestNormalizeID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"38.139.407/0001-77", "38139407000177", false},
		{"38139407000177", "38139407000177", false},
		{" 38 139 407 0001 77 ", "38139407000177", false},
		{"1234567890123", "", true},
		{"123456789012345", "", true},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeID(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeID(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeID(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConsultInvalidIDTouchesNothing(t *testing.T) {
	factory := &fakeFactory{}
	cacheF := &fakeCache{}
	co := New(factory, &fakeSolver{}, cacheF, testConfig())

	_, err := co.Consult(context.Background(), "123", true)
	var ce *models.ConsultError
	if !errors.As(err, &ce) || ce.Code != models.ErrCodeInvalidID {
		t.Fatalf("error = %v, want code %s", err, models.ErrCodeInvalidID)
	}
	if len(factory.sessions) != 0 {
		t.Errorf("sessions opened = %d, want 0", len(factory.sessions))
	}
	if cacheF.gets != 0 {
		t.Errorf("cache gets = %d, want 0", cacheF.gets)
	}
}

func TestConsultCacheHitSkipsPipeline(t *testing.T) {
	stored := &models.RegistryRecord{
		Identification: models.Identification{Number: "38.139.407/0001-77"},
		Metadata:       models.Metadata{Timestamp: "2026-08-29T10:00:00Z", Success: true, Source: "online"},
	}
	factory := &fakeFactory{}
	cacheF := &fakeCache{entries: map[string]*models.RegistryRecord{"38139407000177": stored}}
	co := New(factory, &fakeSolver{}, cacheF, testConfig())

	rec, err := co.Consult(context.Background(), "38.139.407/0001-77", true)
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if len(factory.sessions) != 0 {
		t.Errorf("sessions opened = %d, want 0 on cache hit", len(factory.sessions))
	}
	if rec.Identification.Number != stored.Identification.Number {
		t.Errorf("Number = %q, want stored value", rec.Identification.Number)
	}
	if rec.Metadata.Source != "cache" {
		t.Errorf("Source = %q, want cache", rec.Metadata.Source)
	}
	// The cached copy itself keeps its original provenance.
	if stored.Metadata.Source != "online" {
		t.Errorf("stored entry mutated: Source = %q", stored.Metadata.Source)
	}
}

func TestConsultSuccessFillsTokenAndCaches(t *testing.T) {
	factory := &fakeFactory{template: fakeSession{pageText: resultText, sitekey: "sk-42"}}
	solver := &fakeSolver{token: "tok-99"}
	cacheF := &fakeCache{}
	co := New(factory, solver, cacheF, testConfig())

	rec, err := co.Consult(context.Background(), "38139407000177", true)
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}

	if len(factory.sessions) != 1 {
		t.Fatalf("sessions opened = %d, want 1", len(factory.sessions))
	}
	sess := factory.sessions[0]
	if sess.closeCount == 0 {
		t.Error("session not closed")
	}
	if sess.clicks != 1 {
		t.Errorf("clicks = %d, want 1", sess.clicks)
	}
	for _, field := range []string{"h-captcha-response", "g-recaptcha-response"} {
		if sess.filled[field] != "tok-99" {
			t.Errorf("field %s = %q, want token", field, sess.filled[field])
		}
	}

	if rec.Identification.Number != "38.139.407/0001-77" {
		t.Errorf("Number = %q, extraction did not run", rec.Identification.Number)
	}
	if !rec.Metadata.Success {
		t.Error("Success = false on a successful consultation")
	}
	if rec.Metadata.Source != "online" {
		t.Errorf("Source = %q, want online", rec.Metadata.Source)
	}
	if rec.Metadata.SourceURL == "" {
		t.Error("SourceURL empty")
	}
	if _, err := time.Parse(time.RFC3339, rec.Metadata.Timestamp); err != nil {
		t.Errorf("Timestamp %q not RFC 3339: %v", rec.Metadata.Timestamp, err)
	}
	if cacheF.puts != 1 {
		t.Errorf("cache puts = %d, want 1", cacheF.puts)
	}
}

func TestConsultNoChallengeSkipsSolver(t *testing.T) {
	factory := &fakeFactory{template: fakeSession{pageText: resultText}}
	solver := &fakeSolver{token: "unused"}
	co := New(factory, solver, &fakeCache{}, testConfig())

	rec, err := co.Consult(context.Background(), "38139407000177", true)
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if solver.calls != 0 {
		t.Errorf("solver calls = %d, want 0 when no challenge is present", solver.calls)
	}
	if !rec.Metadata.Success {
		t.Error("Success = false")
	}
}

func TestConsultBypassCache(t *testing.T) {
	stored := &models.RegistryRecord{Metadata: models.Metadata{Success: true}}
	factory := &fakeFactory{template: fakeSession{pageText: resultText}}
	cacheF := &fakeCache{entries: map[string]*models.RegistryRecord{"38139407000177": stored}}
	co := New(factory, &fakeSolver{}, cacheF, testConfig())

	_, err := co.Consult(context.Background(), "38139407000177", false)
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if len(factory.sessions) != 1 {
		t.Errorf("sessions opened = %d, want 1 with cache bypassed", len(factory.sessions))
	}
	if cacheF.gets != 0 {
		t.Errorf("cache gets = %d, want 0 with cache bypassed", cacheF.gets)
	}
	if cacheF.puts != 0 {
		t.Errorf("cache puts = %d, want 0 with cache bypassed", cacheF.puts)
	}
}

func TestConsultExhaustsRetriesIntoFailureRecord(t *testing.T) {
	factory := &fakeFactory{template: fakeSession{navigateErr: errors.New("connection refused")}}
	co := New(factory, &fakeSolver{}, &fakeCache{}, testConfig())

	rec, err := co.Consult(context.Background(), "38139407000177", true)
	if err != nil {
		t.Fatalf("Consult returned error %v, want failure record", err)
	}
	if len(factory.sessions) != 3 {
		t.Errorf("sessions opened = %d, want exactly the attempt ceiling", len(factory.sessions))
	}
	for i, s := range factory.sessions {
		if s.closeCount == 0 {
			t.Errorf("session %d not closed", i)
		}
	}
	if rec.Metadata.Success {
		t.Error("Success = true on a failure record")
	}
	if rec.Error == "" {
		t.Error("failure record carries no error message")
	}
	if rec.Activities.Secondary == nil {
		t.Error("failure record Secondary is nil, want empty slice")
	}
}

func TestConsultRecoversOnLaterAttempt(t *testing.T) {
	factory := &flakyFactory{failures: 1, good: fakeSession{pageText: resultText}}
	cacheF := &fakeCache{}
	co := New(factory, &fakeSolver{}, cacheF, testConfig())

	rec, err := co.Consult(context.Background(), "38139407000177", true)
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if !rec.Metadata.Success {
		t.Error("Success = false after a recovering retry")
	}
	if factory.opened != 2 {
		t.Errorf("sessions opened = %d, want 2", factory.opened)
	}
	if cacheF.puts != 1 {
		t.Errorf("cache puts = %d, want 1", cacheF.puts)
	}
}

func TestConsultPanicClosesSession(t *testing.T) {
	factory := &fakeFactory{template: fakeSession{pageText: resultText, sitekey: "sk", panicOn: "FillField"}}
	co := New(factory, &fakeSolver{token: "tok"}, &fakeCache{}, testConfig())

	rec, err := co.Consult(context.Background(), "38139407000177", true)
	if err != nil {
		t.Fatalf("Consult: %v", err)
	}
	if rec.Metadata.Success {
		t.Error("Success = true after panicking attempts")
	}
	for i, s := range factory.sessions {
		if s.closeCount == 0 {
			t.Errorf("session %d leaked after panic", i)
		}
	}
}

// flakyFactory fails the first n attempts at navigation, then hands out
// working sessions.
type flakyFactory struct {
	failures int
	good     fakeSession
	opened   int
}

func (f *flakyFactory) NewSession(context.Context) (Session, error) {
	f.opened++
	s := f.good
	if f.opened <= f.failures {
		s.navigateErr = errors.New("transient browser failure")
	}
	return &s, nil
}
