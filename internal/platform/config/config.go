// Package config reads service configuration from the environment.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends accepted by SESSION_STORE.
const (
	SessionStoreAuto     = "auto"
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

// Config is the full runtime configuration of the server.
type Config struct {
	Addr           string
	Environment    string
	RequestTimeout time.Duration
	// TrustedProxies lists the IPs or CIDRs whose forwarding headers are
	// believed. Empty means the connection address is the client.
	TrustedProxies []string

	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Audit    AuditConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig configures the PostgreSQL pool. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the optional Redis session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds session and credential settings.
type AuthConfig struct {
	SessionTTL        time.Duration
	SessionStore      string
	BcryptCost        int
	RateLimitRPS      float64
	RateLimitBurst    int
	RateLimitDisabled bool
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// AuditConfig configures the Kafka audit sink. No brokers means audit events
// are only logged.
type AuditConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// UsePostgres reports whether a database URL is configured.
func (c Config) UsePostgres() bool {
	return c.Database.URL != ""
}

// ResolvedSessionStore turns "auto" into a concrete backend: Redis when
// configured, otherwise the primary store.
func (c Config) ResolvedSessionStore() string {
	if c.Auth.SessionStore != SessionStoreAuto {
		return c.Auth.SessionStore
	}
	switch {
	case c.Redis.URL != "":
		return SessionStoreRedis
	case c.UsePostgres():
		return SessionStorePostgres
	default:
		return SessionStoreMemory
	}
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	r := envReader{lookup: lookup}

	cfg := Config{
		Addr:           r.str("TASKBOARD_ADDR", ":8000"),
		Environment:    r.str("TASKBOARD_ENV", "development"),
		RequestTimeout: r.duration("REQUEST_TIMEOUT", 30*time.Second),
		TrustedProxies: r.list("TRUSTED_PROXIES", nil),
		Log: LogConfig{
			Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(r.str("LOG_FORMAT", "json")),
		},
		Database: DatabaseConfig{
			URL:          r.str("DATABASE_URL", ""),
			MaxOpenConns: r.integer("DB_MAX_OPEN_CONNS", 15),
			MaxIdleConns: r.integer("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          r.str("REDIS_URL", ""),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			SessionTTL:        r.sessionTTL(),
			SessionStore:      strings.ToLower(r.str("SESSION_STORE", SessionStoreAuto)),
			BcryptCost:        r.integer("BCRYPT_COST", 12),
			RateLimitRPS:      r.float("AUTH_RATE_LIMIT_RPS", 5),
			RateLimitBurst:    r.integer("AUTH_RATE_LIMIT_BURST", 10),
			RateLimitDisabled: r.boolean("AUTH_RATE_LIMIT_DISABLED", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: r.list("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Audit: AuditConfig{
			KafkaBrokers: r.list("KAFKA_BROKERS", nil),
			KafkaTopic:   r.str("KAFKA_AUDIT_TOPIC", "taskboard.audit"),
		},
	}

	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	switch c.Auth.SessionStore {
	case SessionStoreAuto, SessionStoreMemory:
	case SessionStorePostgres:
		if !c.UsePostgres() {
			return fmt.Errorf("SESSION_STORE=postgres requires DATABASE_URL")
		}
	case SessionStoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("SESSION_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be one of auto, memory, postgres, redis, got %q", c.Auth.SessionStore)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Auth.RateLimitRPS <= 0 || c.Auth.RateLimitBurst < 1 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS and AUTH_RATE_LIMIT_BURST must be positive")
	}
	if c.Database.MaxOpenConns < 1 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive and DB_MAX_IDLE_CONNS non-negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	for _, proxy := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}

// envReader collects the first parse error so FromEnv can report it once.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (r *envReader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *envReader) boolean(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *envReader) list(key string, def []string) []string {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sessionTTL prefers SESSION_TTL and falls back to SESSION_EXPIRE_MINUTES.
func (r *envReader) sessionTTL() time.Duration {
	if _, ok := r.raw("SESSION_TTL"); ok {
		return r.duration("SESSION_TTL", 24*time.Hour)
	}
	if _, ok := r.raw("SESSION_EXPIRE_MINUTES"); ok {
		return time.Duration(r.integer("SESSION_EXPIRE_MINUTES", 1440)) * time.Minute
	}
	return 24 * time.Hour
}
