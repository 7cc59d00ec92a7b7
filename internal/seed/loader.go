package seed

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/beacon/internal/domain"
)

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Loader reads a seed file in the native format or a Homepage services.yaml.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a new seed loader. Template variables resolve from the environment.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Load reads, expands and maps the seed file.
func (l *Loader) Load() ([]domain.Service, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return l.parse(data)
}

func (l *Loader) parse(data []byte) ([]domain.Service, error) {
	data = expandTemplateVariables(data, l.lookup)

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("seed file is empty")
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var cfg HomepageConfig
		if err := doc.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode homepage services: %w", err)
		}
		return MapHomepage(cfg)
	case yaml.MappingNode:
		var f File
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode seed services: %w", err)
		}
		return MapEntries(f.Services), nil
	default:
		return nil, fmt.Errorf("unsupported seed document (yaml kind %d)", doc.Kind)
	}
}

// expandTemplateVariables replaces {{VAR}} with the value of VAR.
// Unknown variables become an empty string.
// Example: {{HOMEPAGE_VAR_GRAFANA_URL}} -> http://192.168.1.9:3000
func expandTemplateVariables(data []byte, lookup func(string) (string, bool)) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSpace(string(m[2 : len(m)-2]))
		v, _ := lookup(name)
		return []byte(v)
	})
}
