package seed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoadNative(t *testing.T) {
	path := writeSeed(t, `services:
  - name: Grafana
    url: 192.168.1.9
    port: 3000
  - name: Docs
    isExternal: true
    externalUrl: https://docs.example.com
    position: 7
`)

	services, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("Load() returned %d services, want 2", len(services))
	}
	if services[0].Name != "Grafana" || services[0].Address != "192.168.1.9" || services[0].Port != 3000 {
		t.Errorf("first service = %+v", services[0])
	}
	if services[0].Position == nil || *services[0].Position != 0 {
		t.Errorf("first position = %v, want 0", services[0].Position)
	}
	if !services[1].IsExternal || *services[1].Position != 7 {
		t.Errorf("second service = %+v", services[1])
	}
}

func TestLoaderLoadHomepage(t *testing.T) {
	path := writeSeed(t, `---
- Infrastructure:
    - AdGuard Home:
        icon: adguard-home.svg
        href: https://adguard.domain.ext
        description: Network-wide ads & trackers blocking DNS server
`)

	services, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(services) != 1 || services[0].Name != "AdGuard Home" {
		t.Fatalf("Load() = %+v", services)
	}
}

func TestLoaderLoadWithTemplateVariables(t *testing.T) {
	t.Setenv("HOMEPAGE_VAR_GRAFANA_URL", "http://192.168.1.9:3000")
	path := writeSeed(t, `---
- Monitoring:
    - Grafana:
        href: {{HOMEPAGE_VAR_GRAFANA_URL}}
`)

	services, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("Load() returned %d services, want 1", len(services))
	}
	if services[0].Address != "192.168.1.9" || services[0].Port != 3000 {
		t.Errorf("service = %+v", services[0])
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	loader := NewLoader("/nonexistent/path/services.yaml")
	if _, err := loader.Load(); err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestLoaderParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "scalar", input: "just text"},
		{name: "invalid yaml", input: "services: [unclosed"},
		{name: "homepage without services", input: "- Empty: []\n"},
	}

	l := NewLoader("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.parse([]byte(tt.input)); err == nil {
				t.Errorf("parse(%q) should return error", tt.input)
			}
		})
	}
}

func TestExpandTemplateVariables(t *testing.T) {
	env := map[string]string{"HOMEPAGE_VAR_URL": "http://10.0.0.1:8080"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single template variable",
			input:    "url: {{HOMEPAGE_VAR_URL}}",
			expected: "url: http://10.0.0.1:8080",
		},
		{
			name:     "inner spaces",
			input:    "url: {{ HOMEPAGE_VAR_URL }}",
			expected: "url: http://10.0.0.1:8080",
		},
		{
			name:     "inside quotes",
			input:    `url: "{{HOMEPAGE_VAR_URL}}/health"`,
			expected: `url: "http://10.0.0.1:8080/health"`,
		},
		{
			name:     "unknown variable",
			input:    "url: {{MISSING}}",
			expected: "url: ",
		},
		{
			name:     "no template variables",
			input:    "plain text",
			expected: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandTemplateVariables([]byte(tt.input), lookup)
			if string(result) != tt.expected {
				t.Errorf("expandTemplateVariables() = %q, want %q", string(result), tt.expected)
			}
		})
	}
}
