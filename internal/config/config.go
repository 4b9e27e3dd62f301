package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr          = ":8080"
	defaultDatabaseURL       = "portal.db"
	defaultJWTSecret         = "change-me-jwt-secret"
	defaultNotificationURL   = "http://localhost:9000/notifications/stream"
	defaultAssistantURL      = "http://localhost:9100"
	defaultLeaveAPIURL       = "http://localhost:9200/api/leave/requests"
	defaultCorporateDomain   = "company.co.kr"
	defaultTimezone          = "Asia/Seoul"
	defaultReconnectInitial  = "1s"
	defaultReconnectMax      = "30s"
	defaultReconnectFactor   = "2"
	defaultReconnectJitter   = "0.2"
	defaultReconnectFailures = "5"
	defaultSSEIdleTimeout    = "75s"
	defaultGiftPopupDelay    = "2s"
	defaultToastDuration     = "4s"
	defaultDedupTTL          = "24h"
	defaultPartialPolicy     = "discard"
)

// Config is the runtime configuration of the portal gateway.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string
	CORSOrigins string

	NotificationStreamURL string
	AssistantBaseURL      string
	LeaveAPIURL           string

	CorporateDomain string
	Location        *time.Location

	ReconnectInitial   time.Duration
	ReconnectMax       time.Duration
	ReconnectFactor    float64
	ReconnectJitter    float64
	ReconnectFailAfter int
	SSEIdleTimeout     time.Duration

	GiftPopupDelay time.Duration
	ToastDuration  time.Duration
	DedupTTL       time.Duration

	// PartialPolicy decides what happens to visible text of a failed stream: "discard" or "persist".
	PartialPolicy string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.CORSOrigins = os.Getenv("CORS_ALLOWED_ORIGINS")
	cfg.NotificationStreamURL = strings.TrimSpace(getEnv("NOTIFICATION_STREAM_URL", defaultNotificationURL))
	cfg.AssistantBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("ASSISTANT_BASE_URL", defaultAssistantURL)), "/")
	cfg.LeaveAPIURL = strings.TrimSpace(getEnv("LEAVE_API_URL", defaultLeaveAPIURL))
	cfg.CorporateDomain = strings.TrimPrefix(strings.TrimSpace(getEnv("CORPORATE_EMAIL_DOMAIN", defaultCorporateDomain)), "@")
	cfg.PartialPolicy = strings.ToLower(strings.TrimSpace(getEnv("STREAM_PARTIAL_POLICY", defaultPartialPolicy)))

	tz := strings.TrimSpace(getEnv("PORTAL_TIMEZONE", defaultTimezone))
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid PORTAL_TIMEZONE value %q: %w", tz, err)
	}
	cfg.Location = loc

	durations := []struct {
		name     string
		fallback string
		dst      *time.Duration
	}{
		{"SSE_RECONNECT_INITIAL", defaultReconnectInitial, &cfg.ReconnectInitial},
		{"SSE_RECONNECT_MAX", defaultReconnectMax, &cfg.ReconnectMax},
		{"SSE_IDLE_TIMEOUT", defaultSSEIdleTimeout, &cfg.SSEIdleTimeout},
		{"GIFT_POPUP_DELAY", defaultGiftPopupDelay, &cfg.GiftPopupDelay},
		{"TOAST_DURATION", defaultToastDuration, &cfg.ToastDuration},
		{"NOTIFICATION_DEDUP_TTL", defaultDedupTTL, &cfg.DedupTTL},
	}
	for _, d := range durations {
		*d.dst, err = parseDurationEnv(d.name, d.fallback)
		if err != nil {
			return nil, err
		}
	}

	cfg.ReconnectFactor, err = parseFloatEnv("SSE_RECONNECT_FACTOR", defaultReconnectFactor)
	if err != nil {
		return nil, err
	}
	cfg.ReconnectJitter, err = parseFloatEnv("SSE_RECONNECT_JITTER", defaultReconnectJitter)
	if err != nil {
		return nil, err
	}
	cfg.ReconnectFailAfter, err = parseIntEnv("SSE_RECONNECT_FAIL_AFTER", defaultReconnectFailures)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("portal config: env=%s addr=%s notification_stream=%s redis=%t", cfg.AppEnv, cfg.HTTPAddr, cfg.NotificationStreamURL, cfg.RedisAddr != "")

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.NotificationStreamURL == "" {
		return fmt.Errorf("NOTIFICATION_STREAM_URL must not be empty")
	}
	if cfg.AssistantBaseURL == "" {
		return fmt.Errorf("ASSISTANT_BASE_URL must not be empty")
	}
	if cfg.CorporateDomain == "" {
		return fmt.Errorf("CORPORATE_EMAIL_DOMAIN must not be empty")
	}
	if cfg.ReconnectInitial <= 0 {
		return fmt.Errorf("SSE_RECONNECT_INITIAL must be > 0")
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		return fmt.Errorf("SSE_RECONNECT_MAX must be >= SSE_RECONNECT_INITIAL")
	}
	if cfg.ReconnectFactor < 1 {
		return fmt.Errorf("SSE_RECONNECT_FACTOR must be >= 1")
	}
	if cfg.ReconnectJitter < 0 || cfg.ReconnectJitter > 1 {
		return fmt.Errorf("SSE_RECONNECT_JITTER must be within [0, 1]")
	}
	if cfg.ReconnectFailAfter <= 0 {
		return fmt.Errorf("SSE_RECONNECT_FAIL_AFTER must be > 0")
	}
	if cfg.SSEIdleTimeout < 0 {
		return fmt.Errorf("SSE_IDLE_TIMEOUT must be >= 0")
	}
	if cfg.GiftPopupDelay < 0 {
		return fmt.Errorf("GIFT_POPUP_DELAY must be >= 0")
	}
	if cfg.ToastDuration <= 0 {
		return fmt.Errorf("TOAST_DURATION must be > 0")
	}
	if cfg.DedupTTL <= 0 {
		return fmt.Errorf("NOTIFICATION_DEDUP_TTL must be > 0")
	}
	if cfg.PartialPolicy != "discard" && cfg.PartialPolicy != "persist" {
		return fmt.Errorf("STREAM_PARTIAL_POLICY must be one of: discard, persist")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}

	return nil
}

// IsProduction reports whether the app runs in a prod-like environment.
func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseFloatEnv(name, fallback string) (float64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return f, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
