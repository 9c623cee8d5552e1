package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string

	Storage     string // "sql" or "memory"
	DBDriver    string // "sqlite" or "postgres"
	DatabaseURL string
	UploadDir   string
	StaticDir   string

	SessionKey     []byte
	SessionBackend string // "memory" or "redis"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CookieDomain   string
	CookieSecure   bool

	CSRFEnabled bool
	CSRFKey     []byte
	// CSRFTrustedOrigins are extra hosts (host or host:port) whose Referer
	// passes the CSRF origin check, from the comma separated
	// CSRF_TRUSTED_ORIGINS.
	CSRFTrustedOrigins []string

	PasswordScheme string
	AdminUsername  string
	AdminPassword  string

	MaxUploadBytes int64
	UploadMaxWidth uint
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel  slog.Level
	LogFormat string
}

// IsProduction reports whether APP_ENV (or NODE_ENV) is "production".
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LoadConfig reads the environment, after loading a .env file when one is
// present in the working directory.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		AppEnv:         getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		Storage:        getEnv("STORAGE", "sql"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		StaticDir:      getEnv("STATIC_DIR", "./dist/public"),
		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
		PasswordScheme: getEnv("PASSWORD_SCHEME", "bcrypt"),
		AdminUsername:  getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:  getEnv("ADMIN_PASSWORD", "admin123"),
		CSRFEnabled:    getEnv("CSRF_ENABLED", "false") == "true",
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
	cfg.CookieSecure = getEnv("COOKIE_SECURE", strconv.FormatBool(cfg.IsProduction())) == "true"
	cfg.CSRFTrustedOrigins = splitHosts(os.Getenv("CSRF_TRUSTED_ORIGINS"))

	// DATABASE_URL wins; a postgres:// URL implies the postgres driver.
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	defaultDriver := "sqlite"
	if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		defaultDriver = "postgres"
	}
	cfg.DBDriver = getEnv("DB_DRIVER", defaultDriver)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = getEnv("DB_PATH", "./jewelry.db")
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		return nil, err
	}
	width, err := getInt("UPLOAD_MAX_WIDTH", 0)
	if err != nil {
		return nil, err
	}
	if width < 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_WIDTH must not be negative")
	}
	cfg.UploadMaxWidth = uint(width)
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "1"), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 5); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Session secret (critical for security)
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.SessionKey = []byte(secret)
	} else if cfg.IsProduction() {
		return nil, errors.New("SESSION_SECRET must be set in production")
	} else {
		slog.Warn("SESSION_SECRET environment variable not set. Generating a random key for development. Sessions will be invalid on restart.")
		cfg.SessionKey = generateRandomBytes(32)
	}

	if cfg.CSRFEnabled {
		csrfKeyStr := os.Getenv("CSRF_KEY")
		decodedKey, err := base64.StdEncoding.DecodeString(csrfKeyStr)
		switch {
		case csrfKeyStr != "" && err == nil && len(decodedKey) == 32:
			cfg.CSRFKey = decodedKey
		case cfg.IsProduction():
			return nil, errors.New("CSRF_KEY must be a base64 encoded 32 byte key in production")
		default:
			slog.Warn("CSRF_KEY not set or invalid. Generating a random key for development.")
			cfg.CSRFKey = generateRandomBytes(32)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TrustedOrigins lists the hosts the CSRF middleware accepts as request
// origins: local development hosts, the cookie domain and
// CSRF_TRUSTED_ORIGINS.
func (c *Config) TrustedOrigins() []string {
	origins := []string{"localhost:" + c.Port, "127.0.0.1:" + c.Port, "localhost", "127.0.0.1"}
	extra := c.CSRFTrustedOrigins
	if d := strings.TrimPrefix(c.CookieDomain, "."); d != "" {
		extra = append([]string{d}, extra...)
	}
	for _, o := range extra {
		if !slices.Contains(origins, o) {
			origins = append(origins, o)
		}
	}
	return origins
}

// splitHosts parses a comma separated host list. Schemes and trailing
// slashes are dropped so full origins can be pasted as well.
func splitHosts(s string) []string {
	var hosts []string
	for _, part := range strings.Split(s, ",") {
		h := strings.TrimSpace(part)
		if i := strings.Index(h, "://"); i >= 0 {
			h = h[i+len("://"):]
		}
		h = strings.TrimRight(h, "/")
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	switch c.Storage {
	case "sql", "memory":
	default:
		return fmt.Errorf("invalid STORAGE %q (want sql or memory)", c.Storage)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}
	switch c.SessionBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q (want memory or redis)", c.SessionBackend)
	}
	switch c.PasswordScheme {
	case "bcrypt", "plain":
	default:
		return fmt.Errorf("invalid PASSWORD_SCHEME %q (want bcrypt or plain)", c.PasswordScheme)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (want text or json)", c.LogFormat)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.AdminUsername == "" || c.AdminPassword == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := getInt64(key, int64(defaultValue))
	return int(v), err
}

func getInt64(key string, defaultValue int64) (int64, error) {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// generateRandomBytes returns n bytes from crypto/rand.
func generateRandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return b
}
