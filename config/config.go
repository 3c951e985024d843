package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Captcha   CaptchaConfig
	Consult   ConsultConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// AcceptLanguage is sent as an extra header on every navigation.
	AcceptLanguage string // default: "pt-BR,pt;q=0.9"

	// BlockedResourceTypes lists resource types to block during navigation.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// CaptchaConfig controls the challenge-solving service client.
type CaptchaConfig struct {
	// APIKey authenticates against the solving service. Required for live
	// consultations.
	APIKey string

	// BaseURL is the solving service endpoint.
	BaseURL string // default: "https://api.solvecaptcha.com"

	// PollInterval is the delay between result polls.
	PollInterval time.Duration // default: 3s

	// SolveTimeout bounds one submit+poll cycle.
	SolveTimeout time.Duration // default: 300s

	// MaxAttempts is the number of submit+poll cycles before giving up.
	MaxAttempts int // default: 3

	// RetryDelay separates consecutive solve attempts.
	RetryDelay time.Duration // default: 5s
}

// ConsultConfig controls the consultation pipeline.
type ConsultConfig struct {
	// QueryEndpoint is the registry query page.
	// default: the federal revenue CNPJ consultation endpoint.
	QueryEndpoint string

	// MaxAttempts is the number of full pipeline attempts per consultation.
	MaxAttempts int // default: 3

	// RetryBackoff separates consecutive pipeline attempts.
	RetryBackoff time.Duration // default: 10s

	// NavigationTimeout bounds navigation + page settle.
	NavigationTimeout time.Duration // default: 30s

	// ChallengeProbeTimeout bounds the challenge-element lookup. A missing
	// element within this window means the page carried no challenge.
	ChallengeProbeTimeout time.Duration // default: 10s

	// ResultTimeout bounds the wait for the result page after submission.
	ResultTimeout time.Duration // default: 30s

	// TokenSettleDelay is the pause after injecting the solution token,
	// giving the page scripts time to pick it up.
	TokenSettleDelay time.Duration // default: 2s

	// DebugDir is where failure screenshots and HTML dumps are written.
	DebugDir string // default: "debug"
}

// CacheConfig controls the persistent record cache.
type CacheConfig struct {
	// Dir is the cache directory (one JSON file per identifier).
	Dir string // default: "cache"

	// TTL is the freshness window; older entries are treated as absent.
	TTL time.Duration // default: 24h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CONSULTA_HOST", "0.0.0.0"),
			Port: envIntOr("CONSULTA_PORT", 8080),
			Mode: envOr("CONSULTA_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("CONSULTA_HEADLESS", true),
			NoSandbox:      envBoolOr("CONSULTA_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("CONSULTA_BROWSER_BIN"),
			Proxy:          os.Getenv("CONSULTA_PROXY"),
			AcceptLanguage: envOr("CONSULTA_ACCEPT_LANGUAGE", "pt-BR,pt;q=0.9"),
			BlockedResourceTypes: envSliceOr("CONSULTA_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Captcha: CaptchaConfig{
			APIKey:       os.Getenv("CONSULTA_CAPTCHA_KEY"),
			BaseURL:      envOr("CONSULTA_CAPTCHA_URL", "https://api.solvecaptcha.com"),
			PollInterval: envDurationOr("CONSULTA_CAPTCHA_POLL", 3*time.Second),
			SolveTimeout: envDurationOr("CONSULTA_CAPTCHA_TIMEOUT", 300*time.Second),
			MaxAttempts:  envIntOr("CONSULTA_CAPTCHA_ATTEMPTS", 3),
			RetryDelay:   envDurationOr("CONSULTA_CAPTCHA_RETRY_DELAY", 5*time.Second),
		},
		Consult: ConsultConfig{
			QueryEndpoint: envOr("CONSULTA_QUERY_ENDPOINT",
				"https://solucoes.receita.fazenda.gov.br/servicos/cnpjreva/Cnpjreva_Solicitacao.asp"),
			MaxAttempts:           envIntOr("CONSULTA_MAX_ATTEMPTS", 3),
			RetryBackoff:          envDurationOr("CONSULTA_RETRY_BACKOFF", 10*time.Second),
			NavigationTimeout:     envDurationOr("CONSULTA_NAV_TIMEOUT", 30*time.Second),
			ChallengeProbeTimeout: envDurationOr("CONSULTA_CHALLENGE_PROBE_TIMEOUT", 10*time.Second),
			ResultTimeout:         envDurationOr("CONSULTA_RESULT_TIMEOUT", 30*time.Second),
			TokenSettleDelay:      envDurationOr("CONSULTA_TOKEN_SETTLE_DELAY", 2*time.Second),
			DebugDir:              envOr("CONSULTA_DEBUG_DIR", "debug"),
		},
		Cache: CacheConfig{
			Dir: envOr("CONSULTA_CACHE_DIR", "cache"),
			TTL: envDurationOr("CONSULTA_CACHE_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CONSULTA_AUTH_ENABLED", true),
			APIKeys: envSliceOr("CONSULTA_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CONSULTA_RATE_RPS", 1.0),
			Burst:             envIntOr("CONSULTA_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("CONSULTA_LOG_LEVEL", "info"),
			Format: envOr("CONSULTA_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
