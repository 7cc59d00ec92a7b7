package seed

// File is the native seed format:
//
//	services:
//	  - name: Grafana
//	    url: 192.168.1.9
//	    port: 3000
type File struct {
	Services []Entry `yaml:"services"`
}

// Entry mirrors the descriptor wire names.
type Entry struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	Port         int    `yaml:"port"`
	Path         string `yaml:"path,omitempty"`
	LocalURL     string `yaml:"localUrl,omitempty"`
	IsExternal   bool   `yaml:"isExternal,omitempty"`
	ExternalURL  string `yaml:"externalUrl,omitempty"`
	Position     *int   `yaml:"position,omitempty"`
	IsDeprecated bool   `yaml:"isDeprecated,omitempty"`
}

// HomepageConfig represents the top-level structure of a Homepage services.yaml.
// Homepage uses dynamic keys, so we parse as []map[string][]map[string]HomepageProps
type HomepageConfig []map[string][]map[string]HomepageProps

// HomepageProps holds the Homepage service properties we map.
type HomepageProps struct {
	Href        string `yaml:"href"`
	Icon        string `yaml:"icon,omitempty"`
	Description string `yaml:"description,omitempty"`
	SiteMonitor string `yaml:"siteMonitor,omitempty"`
}
