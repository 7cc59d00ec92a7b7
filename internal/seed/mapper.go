package seed

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/MrSnakeDoc/beacon/internal/domain"
)

// MapEntries converts native entries. Entries without a position get their
// index in the file.
func MapEntries(entries []Entry) []domain.Service {
	services := make([]domain.Service, 0, len(entries))
	for i, e := range entries {
		pos := i
		if e.Position != nil {
			pos = *e.Position
		}
		services = append(services, domain.Service{
			Name:         e.Name,
			Address:      e.URL,
			Port:         e.Port,
			Path:         e.Path,
			LocalAddress: e.LocalURL,
			IsExternal:   e.IsExternal,
			ExternalURL:  e.ExternalURL,
			Position:     &pos,
			IsDeprecated: e.IsDeprecated,
		})
	}
	return services
}

// MapHomepage converts a Homepage services.yaml.
//
// Plain http targets (siteMonitor first, then href) become probed services.
// Anything else (https, other schemes) becomes an external bookmark on href.
// Positions follow file order across groups.
func MapHomepage(config HomepageConfig) ([]domain.Service, error) {
	var services []domain.Service

	// Iterate through groups
	for _, groupMap := range config {
		for _, servicesList := range groupMap {
			for _, serviceMap := range servicesList {
				for name, props := range serviceMap {
					svc, ok := mapHomepageService(name, props)
					if !ok {
						continue
					}
					pos := len(services)
					svc.Position = &pos
					services = append(services, svc)
				}
			}
		}
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no valid services found in homepage config")
	}
	return services, nil
}

func mapHomepageService(name string, props HomepageProps) (domain.Service, bool) {
	target := props.SiteMonitor
	if target == "" {
		target = props.Href
	}
	if name == "" || target == "" {
		return domain.Service{}, false
	}

	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return domain.Service{}, false
	}

	if u.Scheme != "http" {
		if props.Href == "" {
			return domain.Service{}, false
		}
		return domain.Service{
			Name:        name,
			IsExternal:  true,
			ExternalURL: props.Href,
		}, true
	}

	port := 80
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return domain.Service{}, false
		}
		port = n
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return domain.Service{
		Name:    name,
		Address: u.Hostname(),
		Port:    port,
		Path:    path,
	}, true
}
