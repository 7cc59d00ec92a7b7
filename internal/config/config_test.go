package config

import (
	"os"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestRequireEnvInt(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		expected  int
		wantPanic bool
	}{
		{
			name:      "valid integer",
			key:       "TEST_INT",
			value:     "42",
			expected:  42,
			wantPanic: false,
		},
		{
			name:      "invalid integer",
			key:       "TEST_INT_INVALID",
			value:     "not_a_number",
			wantPanic: true,
		},
		{
			name:      "missing variable",
			key:       "TEST_INT_MISSING",
			value:     "",
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnvInt() should have panicked")
					}
				}()
			}

			result := requireEnvInt(tt.key)
			if !tt.wantPanic && result != tt.expected {
				t.Errorf("requireEnvInt() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{
			name:     "single value",
			value:    "10.0.0.0/8",
			expected: []string{"10.0.0.0/8"},
		},
		{
			name:     "multiple values with spaces and quotes",
			value:    ` "10.0.0.0/8", '192.168.1.9' ,,::1 `,
			expected: []string{"10.0.0.0/8", "192.168.1.9", "::1"},
		},
		{
			name:     "empty",
			value:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.value)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BEACON_STORE", "memory")

	cfg := Load()
	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %s, want :8080", cfg.ListenPort)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.ProbeTimeout)
	}
	if cfg.PollInterval != 0 {
		t.Errorf("PollInterval = %v, want disabled", cfg.PollInterval)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if len(cfg.AdminCIDRS) != 5 {
		t.Errorf("AdminCIDRS = %v, want the private ranges and loopback", cfg.AdminCIDRS)
	}
	if len(cfg.AllowedHosts) != 0 || len(cfg.OpsCIDRS) != 0 {
		t.Errorf("optional restrictions should default to empty: hosts=%v ops=%v", cfg.AllowedHosts, cfg.OpsCIDRS)
	}
	if !cfg.TrustProxy || !cfg.PrettyLog {
		t.Error("TrustProxy and PrettyLog should default to true")
	}
}

func TestLoadBackendRequirements(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantPanic bool
	}{
		{
			name:      "mongo without uri",
			env:       map[string]string{"BEACON_STORE": "mongo"},
			wantPanic: true,
		},
		{
			name: "mongo with uri",
			env:  map[string]string{"BEACON_STORE": "mongo", "BEACON_MONGO_URI": "mongodb://localhost:27017"},
		},
		{
			name:      "redis without password",
			env:       map[string]string{"BEACON_STORE": "redis", "BEACON_REDIS_ADDR": "localhost:6379", "BEACON_REDIS_DB": "0"},
			wantPanic: true,
		},
		{
			name: "redis without password allowed",
			env: map[string]string{
				"BEACON_STORE": "redis", "BEACON_REDIS_ADDR": "localhost:6379", "BEACON_REDIS_DB": "0",
				"BEACON_REDIS_PASSWORD_REQUIRED": "false",
			},
		},
		{
			name:      "unknown backend",
			env:       map[string]string{"BEACON_STORE": "sqlite"},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			defer func() {
				r := recover()
				if tt.wantPanic && r == nil {
					t.Error("Load() should have panicked")
				}
				if !tt.wantPanic && r != nil {
					t.Errorf("Load() panicked: %v", r)
				}
			}()
			_ = Load()
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ListenPort:      ":8080",
			ShutdownTimeout: 5 * time.Second,
			RequestTimeout:  15 * time.Second,
			LogLevel:        "info",
			Store:           StoreMemory,
			ProbeTimeout:    5 * time.Second,
			AdminRateBurst:  20,
			AdminRatePerMin: 60,
			AdminCIDRS:      []string{"10.0.0.0/8", "::1"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on a valid config = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad cidr", func(c *Config) { c.AdminCIDRS = []string{"10.0.0.0/33"} }},
		{"bad ops ip", func(c *Config) { c.OpsCIDRS = []string{"not-an-ip"} }},
		{"negative concurrency", func(c *Config) { c.ProbeConcurrency = -1 }},
		{"zero burst", func(c *Config) { c.AdminRateBurst = 0 }},
		{"tiny request timeout", func(c *Config) { c.RequestTimeout = time.Millisecond }},
		{"mongo without uri", func(c *Config) { c.Store = StoreMongo }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	c := &Config{MongoURI: "mongodb://root:secret@db", RedisPassword: "pw", RedisUser: "default"}
	r := c.Redacted()
	if r.MongoURI == c.MongoURI || r.RedisPassword == c.RedisPassword || r.RedisUser == c.RedisUser {
		t.Errorf("Redacted() leaked secrets: %+v", r)
	}
	if c.MongoURI != "mongodb://root:secret@db" {
		t.Error("Redacted() mutated the original")
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}
