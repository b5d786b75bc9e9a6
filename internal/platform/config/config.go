package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "veil/pkg/platform/strings"
)

// Audit delivery modes.
const (
	AuditModeAsync  = "async"
	AuditModeOutbox = "outbox"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Audit    Audit
	SeedFile string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr               string
	Environment        string
	LogLevel           string
	JWTSigningKey      string // empty disables bearer authentication
	JWTAudience        string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	RequestTimeout     time.Duration
}

// Database holds postgres settings. An empty URL selects in-memory stores.
type Database struct {
	URL string
}

// RedisConfig holds the entity cache connection. An empty URL disables it.
type RedisConfig struct {
	URL          string
	EntityTTL    time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers       string
	Topic         string
	ConsumerGroup string // audit archiver group
}

type Audit struct {
	Mode   string
	Buffer int
}

// FromEnv builds the config from environment variables so main stays lean.
// Invalid numbers and durations fall back to their defaults.
func FromEnv() Config {
	auditMode := strings.ToLower(envString("AUDIT_MODE", AuditModeAsync))
	if auditMode != AuditModeOutbox {
		auditMode = AuditModeAsync
	}

	return Config{
		Server: Server{
			Addr:               envString("VEIL_ADDR", ":8080"),
			Environment:        envString("ENVIRONMENT", "local"),
			LogLevel:           envString("LOG_LEVEL", "info"),
			JWTSigningKey:      os.Getenv("JWT_SIGNING_KEY"),
			JWTAudience:        os.Getenv("JWT_AUDIENCE"),
			CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			MaxBodyBytes:       int64(envInt("MAX_BODY_BYTES", 64*1024)),
			RequestTimeout:     envDuration("REQUEST_TIMEOUT", 10*time.Second),
		},
		Database: Database{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			EntityTTL:    envDuration("ENTITY_CACHE_TTL", 30*time.Second),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:       os.Getenv("KAFKA_BROKERS"),
			Topic:         envString("AUDIT_TOPIC", "veil.redaction.audit"),
			ConsumerGroup: envString("AUDIT_CONSUMER_GROUP", "veil-audit-archiver"),
		},
		Audit: Audit{
			Mode:   auditMode,
			Buffer: envInt("AUDIT_BUFFER", 1024),
		},
		SeedFile: os.Getenv("SEED_FILE"),
	}
}

// AuthEnabled reports whether callers must present a bearer token.
func (s Server) AuthEnabled() bool {
	return s.JWTSigningKey != ""
}

// OutboxEnabled reports whether audit entries go through the durable outbox.
// The outbox needs postgres; without it the async publisher is used.
func (c Config) OutboxEnabled() bool {
	return c.Audit.Mode == AuditModeOutbox && c.Database.URL != ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envList(key string, def []string) []string {
	out := strutil.SplitList(os.Getenv(key))
	if len(out) == 0 {
		return def
	}
	return out
}
