package util

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 24 * time.Hour

	defaultRateLimit     = 60
	defaultRateInterval  = 1 * time.Minute
	defaultRateBlockTime = 5 * time.Minute

	defaultNotifyTimeout = 5 * time.Second
	defaultClientTimeout = 15 * time.Second

	defaultCookiePayloadName   = "ba_rt_payload"
	defaultCookieSignatureName = "ba_rt_sig"
	defaultCookieTokenName     = "ba_rt_token"

	TokenPartsExpected = 3
	RawTokenLength     = 32
	JWTLeeWay          = 5 * time.Second
	MaxSessionIDLength = 128
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// TokenConfig holds signing keys and lifetimes for bearer tokens and refresh material.
// The two secrets must differ so a bearer token can never be replayed as refresh material.
type TokenConfig struct {
	JwtSecretKey     []byte
	RefreshSecretKey []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
}

func NewTokenConfig() *TokenConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	refreshSecret := os.Getenv("REFRESH_SECRET")
	if refreshSecret == "" {
		log.Fatal("REFRESH_SECRET is not set")
	}
	if refreshSecret == secret {
		log.Fatal("REFRESH_SECRET must differ from JWT_SECRET")
	}
	return &TokenConfig{
		JwtSecretKey:     []byte(secret),
		RefreshSecretKey: []byte(refreshSecret),
		AccessTTL:        parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:       parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

// CookieConfig describes the three cookies carrying refresh material.
type CookieConfig struct {
	PayloadName   string
	SignatureName string
	TokenName     string
	Domain        string
	Path          string
	Secure        bool
	SameSite      http.SameSite
}

func NewCookieConfig() *CookieConfig {
	return &CookieConfig{
		PayloadName:   stringOrDefault("COOKIE_PAYLOAD_NAME", defaultCookiePayloadName),
		SignatureName: stringOrDefault("COOKIE_SIGNATURE_NAME", defaultCookieSignatureName),
		TokenName:     stringOrDefault("COOKIE_TOKEN_NAME", defaultCookieTokenName),
		Domain:        os.Getenv("COOKIE_DOMAIN"),
		Path:          stringOrDefault("COOKIE_PATH", "/"),
		Secure:        parseBoolOrDefault("COOKIE_SECURE", true),
		SameSite:      parseSameSite(os.Getenv("COOKIE_SAMESITE")),
	}
}

type RateLimiterConfig struct {
	Limit     int
	Interval  time.Duration
	BlockTime time.Duration
}

func NewRateLimiterConfig() *RateLimiterConfig {
	limitStr := os.Getenv("RATE_LIMIT_LIMIT")
	limit := defaultRateLimit
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		} else {
			log.Printf("Invalid RATE_LIMIT_LIMIT: %s, using default %d", limitStr, defaultRateLimit)
		}
	}

	interval := parseDurationOrDefault("RATE_LIMIT_INTERVAL", defaultRateInterval)
	blockTime := parseDurationOrDefault("RATE_LIMIT_BLOCK_TIME", defaultRateBlockTime)

	return &RateLimiterConfig{
		Limit:     limit,
		Interval:  interval,
		BlockTime: blockTime,
	}
}

// NotifierConfig selects the security-alert channel. Webhook wins when both are set.
type NotifierConfig struct {
	WebhookURL string
	Timeout    time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFromName string
	SMTPSecure   bool
}

func NewNotifierConfig() *NotifierConfig {
	return &NotifierConfig{
		WebhookURL:   os.Getenv("ALERT_WEBHOOK_URL"),
		Timeout:      parseDurationOrDefault("NOTIFY_TIMEOUT", defaultNotifyTimeout),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     stringOrDefault("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFromName: stringOrDefault("SMTP_FROM_NAME", "Blog Admin"),
		SMTPSecure:   parseBoolOrDefault("SMTP_SECURE", false),
	}
}

// ClientConfig configures the command-line admin client.
type ClientConfig struct {
	APIURL         string
	SessionFile    string
	RequestTimeout time.Duration
	// PublicRoutes are reachable without a session (login, registration, password help).
	PublicRoutes []string
	LoginRoute   string
	HomeRoute    string
	// RegistrationRoute receives users whose profile is not onboarded yet.
	RegistrationRoute string
}

func NewClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		APIURL:            stringOrDefault("ADMIN_API_URL", "http://"+defaultServerAddr),
		SessionFile:       stringOrDefault("ADMIN_SESSION_FILE", ".blogadmin-session.json"),
		RequestTimeout:    parseDurationOrDefault("ADMIN_REQUEST_TIMEOUT", defaultClientTimeout),
		LoginRoute:        stringOrDefault("ADMIN_LOGIN_ROUTE", "/login"),
		HomeRoute:         stringOrDefault("ADMIN_HOME_ROUTE", "/posts"),
		RegistrationRoute: stringOrDefault("ADMIN_REGISTRATION_ROUTE", "/registration"),
	}
	for _, r := range strings.Split(stringOrDefault("ADMIN_PUBLIC_ROUTES", "/login,/registration"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			cfg.PublicRoutes = append(cfg.PublicRoutes, r)
		}
	}
	return cfg
}

// StorageBackend returns "postgres" (default) or "memory".
func StorageBackend() string {
	return strings.ToLower(stringOrDefault("STORAGE_BACKEND", "postgres"))
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseBoolOrDefault(varName string, def bool) bool {
	if v := os.Getenv(varName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Invalid bool in %s: %s, using default %t", varName, v, def)
	}
	return def
}

func stringOrDefault(varName, def string) string {
	if v := strings.TrimSpace(os.Getenv(varName)); v != "" {
		return v
	}
	return def
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
