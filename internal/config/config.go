package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-genealogy/pkg/genealogy"
	"github.com/tendant/simple-genealogy/pkg/repository"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr      string
	ServerPort      int
	ShutdownTimeout time.Duration

	// Database
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Redis Streams for notifications and audit
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventsStream  string
	AuditStream   string
	StreamMaxLen  int64

	// JWT access tokens issued by the identity service
	JWTSecret string
	JWTIssuer string

	// Engine
	InviteTTL             time.Duration
	MaxInviteTTL          time.Duration
	TraversalDefaultDepth int
	TraversalMaxDepth     int
	RelationshipPageSize  int
	AppBaseURL            string

	// SMTP (optional)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Logging
	LogLevel  string
	LogFormat string

	RateLimit          RateLimitConfig
	Validation         ValidationConfig
	SecurityHeaders    SecurityHeadersConfig
	CORSAllowedOrigins []string
}

// RateLimitConfig holds per-route rate limits.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RedeemPerMinute   int
	LookupPerMinute   int
}

// ValidationConfig holds request validation limits.
type ValidationConfig struct {
	MaxRequestBodySize int64
}

// SecurityHeadersConfig holds response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
	CacheControl       string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:      getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnvInt("DB_PORT", 25432),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "simple_genealogy"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		// Redis (optional)
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		EventsStream:  getEnv("EVENTS_STREAM", "genealogy:events"),
		AuditStream:   getEnv("AUDIT_STREAM", "genealogy:audit"),
		StreamMaxLen:  int64(getEnvInt("STREAM_MAX_LEN", 100000)),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "simple-idm"),

		// Engine
		InviteTTL:             getEnvDuration("INVITE_TTL", 7*24*time.Hour),
		MaxInviteTTL:          getEnvDuration("MAX_INVITE_TTL", 30*24*time.Hour),
		TraversalDefaultDepth: getEnvInt("TRAVERSAL_DEFAULT_DEPTH", 5),
		TraversalMaxDepth:     getEnvInt("TRAVERSAL_MAX_DEPTH", 25),
		RelationshipPageSize:  getEnvInt("RELATIONSHIP_PAGE_SIZE", 500),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),

		// SMTP (optional)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Family Tree"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 300),
			RedeemPerMinute:   getEnvInt("RATE_LIMIT_REDEEM_PER_MINUTE", 10),
			LookupPerMinute:   getEnvInt("RATE_LIMIT_LOOKUP_PER_MINUTE", 30),
		},
		Validation: ValidationConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 0),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			CacheControl:       getEnv("SECURITY_CACHE_CONTROL", "no-store"),
		},
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.InviteTTL > cfg.MaxInviteTTL {
		return nil, fmt.Errorf("INVITE_TTL (%s) exceeds MAX_INVITE_TTL (%s)", cfg.InviteTTL, cfg.MaxInviteTTL)
	}
	if cfg.TraversalDefaultDepth > cfg.TraversalMaxDepth {
		return nil, fmt.Errorf("TRAVERSAL_DEFAULT_DEPTH (%d) exceeds TRAVERSAL_MAX_DEPTH (%d)", cfg.TraversalDefaultDepth, cfg.TraversalMaxDepth)
	}

	return cfg, nil
}

// Database returns the repository connection settings.
func (c *Config) Database() repository.Config {
	return repository.Config{
		Host:         c.DBHost,
		Port:         c.DBPort,
		User:         c.DBUser,
		Password:     c.DBPassword,
		DBName:       c.DBName,
		SSLMode:      c.DBSSLMode,
		MaxOpenConns: c.DBMaxOpenConns,
		MaxIdleConns: c.DBMaxIdleConns,
	}
}

// Engine returns the genealogy engine settings.
func (c *Config) Engine() genealogy.Config {
	return genealogy.Config{
		InviteTTL:             c.InviteTTL,
		MaxInviteTTL:          c.MaxInviteTTL,
		DefaultTraversalDepth: c.TraversalDefaultDepth,
		MaxTraversalDepth:     c.TraversalMaxDepth,
		RelationshipPageSize:  c.RelationshipPageSize,
		AppBaseURL:            c.AppBaseURL,
	}
}

// HasRedis returns true if a Redis address is configured.
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// HasSMTP returns true if invite emails can be sent.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
