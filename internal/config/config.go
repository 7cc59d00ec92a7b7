package config

import (
	"fmt"
	"log"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Store backends.
const (
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// DefaultAdminCIDRS are the private ranges and loopback trusted for admin calls.
const DefaultAdminCIDRS = "10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128"

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request budget, must cover one probe pass (ex: 15s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store string // "mongo" | "redis" | "memory"

	// Mongo
	MongoURI            string        // required when Store=mongo
	MongoDatabase       string        // ex: "beacon"
	MongoCollection     string        // ex: "services"
	MongoConnectTimeout time.Duration // per-dial timeout (ex: 10s)
	MongoPoolSize       int           // 0 = driver default

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisPrefix           string        // key namespace (ex: "beacon")
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisPoolSize         int           // Redis connection pool size

	// Connection retry, shared by the Mongo and Redis connectors
	ConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	MaxWait        time.Duration // max wait between retries (ex: 10s)
	PingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	WarnThreshold  int           // warn after this many attempts

	// Probing
	ProbeTimeout     time.Duration // per-probe timeout (default: 5s)
	ProbeConcurrency int           // max in-flight probes per pass (0 = unlimited)
	PollInterval     time.Duration // background reconcile interval (0 = disabled)
	SeedFile         string        // optional YAML loaded into an empty store at startup

	// Access restrictions
	AllowedHosts    []string // optional, restrict admin routes to specific Host headers
	AdminCIDRS      []string // networks allowed to call admin routes
	OpsCIDRS        []string // optional, networks allowed to call healthz/readyz/infra/metrics
	TrustProxy      bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	AdminRateBurst  int      // admin token bucket size
	AdminRatePerMin int      // admin token refill per client per minute
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("BEACON_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("BEACON_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("BEACON_REQUEST_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  getenv("BEACON_LOG_LEVEL", "info"),
		PrettyLog: mustBool("BEACON_PRETTY_LOG", true),

		Store: strings.ToLower(getenv("BEACON_STORE", StoreMongo)),

		// Mongo settings
		MongoDatabase:       getenv("BEACON_MONGO_DATABASE", "beacon"),
		MongoCollection:     getenv("BEACON_MONGO_COLLECTION", "services"),
		MongoConnectTimeout: mustDuration("BEACON_MONGO_CONNECT_TIMEOUT", 10*time.Second),
		MongoPoolSize:       getenvInt("BEACON_MONGO_POOL_SIZE", 0),

		// Redis settings
		RedisUser:             getenv("BEACON_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("BEACON_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("BEACON_REDIS_PASSWORD", ""),
		RedisPrefix:           getenv("BEACON_REDIS_PREFIX", "beacon"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),

		// Connection retry
		ConnectTimeout: mustDuration("BEACON_CONNECT_TIMEOUT", 30*time.Second),
		RetryInterval:  mustDuration("BEACON_RETRY_INTERVAL", 2*time.Second),
		MaxWait:        mustDuration("BEACON_MAX_WAIT", 10*time.Second),
		PingTimeout:    mustDuration("BEACON_PING_TIMEOUT", 5*time.Second),
		WarnThreshold:  getenvInt("BEACON_WARN_THRESHOLD", 3),

		// Probing
		ProbeTimeout:     mustDuration("BEACON_PROBE_TIMEOUT", 5*time.Second),
		ProbeConcurrency: getenvInt("BEACON_PROBE_CONCURRENCY", 0),
		PollInterval:     mustDuration("BEACON_POLL_INTERVAL", 0),
		SeedFile:         getenv("BEACON_SEED_FILE", ""),

		// Access restrictions
		AllowedHosts:    splitAndTrim(getenv("BEACON_ALLOWED_HOSTS", "")),
		AdminCIDRS:      splitAndTrim(getenv("BEACON_ADMIN_CIDRS", DefaultAdminCIDRS)),
		OpsCIDRS:        splitAndTrim(getenv("BEACON_OPS_CIDRS", "")),
		TrustProxy:      mustBool("BEACON_TRUST_PROXY", true),
		AdminRateBurst:  getenvInt("BEACON_ADMIN_RATE_BURST", 20),
		AdminRatePerMin: getenvInt("BEACON_ADMIN_RATE_PER_MIN", 60),
	}

	// Backend-specific required settings
	switch cfg.Store {
	case StoreMongo:
		cfg.MongoURI = requireEnv("BEACON_MONGO_URI")
	case StoreRedis:
		cfg.RedisAddr = requireEnv("BEACON_REDIS_ADDR")
		cfg.RedisDB = requireEnvInt("BEACON_REDIS_DB")
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: BEACON_REDIS_PASSWORD is required when BEACON_REDIS_PASSWORD_REQUIRED=true")
		}
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid configuration: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Validate checks value ranges that the env helpers cannot.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ListenPort, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Store, validation.Required, validation.In(StoreMongo, StoreRedis, StoreMemory)),
		validation.Field(&c.MongoURI, validation.When(c.Store == StoreMongo, validation.Required)),
		validation.Field(&c.RedisAddr, validation.When(c.Store == StoreRedis, validation.Required)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.RequestTimeout, validation.Min(time.Second)),
		validation.Field(&c.ProbeTimeout, validation.Min(10*time.Millisecond)),
		validation.Field(&c.ProbeConcurrency, validation.Min(0)),
		validation.Field(&c.MongoPoolSize, validation.Min(0)),
		validation.Field(&c.PollInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.AdminRateBurst, validation.Min(1)),
		validation.Field(&c.AdminRatePerMin, validation.Min(1)),
		validation.Field(&c.AdminCIDRS, validation.Each(validation.By(ipOrPrefix))),
		validation.Field(&c.OpsCIDRS, validation.Each(validation.By(ipOrPrefix))),
	)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.MongoURI != "" {
		cp.MongoURI = "***REDACTED***"
	}
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

func ipOrPrefix(value interface{}) error {
	s, _ := value.(string)
	if strings.Contains(s, "/") {
		if _, err := netip.ParsePrefix(s); err != nil {
			return fmt.Errorf("invalid CIDR %q", s)
		}
		return nil
	}
	if _, err := netip.ParseAddr(s); err != nil {
		return fmt.Errorf("invalid IP %q", s)
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
