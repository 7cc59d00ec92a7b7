package domain

import "time"

// Service is a single monitored or bookmarked entry on the dashboard.
//
// It is NOT tied to Mongo, Redis or any storage backend.
// A Service is uniquely identified by its Name.
type Service struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// Name is the unique key and the display label.
	Name string `json:"name" bson:"name"`

	// ─────────────────────────────
	// Network location (ignored for external services)
	// ─────────────────────────────

	// Address is the host or IP the prober targets.
	// The wire name stays "url" for compatibility with existing clients.
	Address string `json:"url" bson:"url"`

	// Port is the TCP port the prober targets.
	Port int `json:"port" bson:"port"`

	// Path is appended to the probe URL. Example: /docs
	Path string `json:"path,omitempty" bson:"path,omitempty"`

	// LocalAddress is an alternate address for same-network access.
	LocalAddress string `json:"localUrl,omitempty" bson:"localUrl,omitempty"`

	// ─────────────────────────────
	// External bookmark
	// ─────────────────────────────

	// IsExternal marks a shortcut to an outside URL. Never probed.
	IsExternal bool `json:"isExternal" bson:"isExternal"`

	// ExternalURL is required when IsExternal is set.
	ExternalURL string `json:"externalUrl,omitempty" bson:"externalUrl,omitempty"`

	// ─────────────────────────────
	// Status
	// ─────────────────────────────

	// IsOnline is the last known reachability.
	IsOnline bool `json:"isOnline" bson:"isOnline"`

	// IsManualStatus is true when IsOnline was last set by an administrator.
	IsManualStatus bool `json:"isManualStatus" bson:"isManualStatus"`

	// LastChecked is the time of the last status determination.
	LastChecked time.Time `json:"lastChecked" bson:"lastChecked"`

	// ─────────────────────────────
	// Display
	// ─────────────────────────────

	// Position defines display order. nil sorts after every positioned entry.
	Position *int `json:"position,omitempty" bson:"position,omitempty"`

	// IsDeprecated is display-only.
	IsDeprecated bool `json:"isDeprecated,omitempty" bson:"isDeprecated,omitempty"`
}

// Probeable reports whether the reconciler should probe this service.
func (s Service) Probeable() bool {
	return !s.IsExternal
}

// Clone returns a deep copy (Position is re-allocated).
func (s Service) Clone() Service {
	out := s
	if s.Position != nil {
		p := *s.Position
		out.Position = &p
	}
	return out
}

// ServicePatch carries a partial update. Nil fields are left untouched.
type ServicePatch struct {
	Name           *string `json:"name,omitempty"`
	Address        *string `json:"url,omitempty"`
	Port           *int    `json:"port,omitempty"`
	Path           *string `json:"path,omitempty"`
	LocalAddress   *string `json:"localUrl,omitempty"`
	IsExternal     *bool   `json:"isExternal,omitempty"`
	ExternalURL    *string `json:"externalUrl,omitempty"`
	IsOnline       *bool   `json:"isOnline,omitempty"`
	IsManualStatus *bool   `json:"isManualStatus,omitempty"`
	Position       *int    `json:"position,omitempty"`
	IsDeprecated   *bool   `json:"isDeprecated,omitempty"`
}

// Apply merges the supplied fields into s and returns the result.
// An admin-supplied IsOnline without IsManualStatus flags the status as manual.
func (p ServicePatch) Apply(s Service) Service {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	if p.Port != nil {
		out.Port = *p.Port
	}
	if p.Path != nil {
		out.Path = *p.Path
	}
	if p.LocalAddress != nil {
		out.LocalAddress = *p.LocalAddress
	}
	if p.IsExternal != nil {
		out.IsExternal = *p.IsExternal
	}
	if p.ExternalURL != nil {
		out.ExternalURL = *p.ExternalURL
	}
	if p.IsOnline != nil {
		out.IsOnline = *p.IsOnline
		if p.IsManualStatus == nil {
			out.IsManualStatus = true
		}
	}
	if p.IsManualStatus != nil {
		out.IsManualStatus = *p.IsManualStatus
	}
	if p.Position != nil {
		pos := *p.Position
		out.Position = &pos
	}
	if p.IsDeprecated != nil {
		out.IsDeprecated = *p.IsDeprecated
	}
	return out
}

// Renames reports whether the patch moves the service to a different name.
func (p ServicePatch) Renames(current string) bool {
	return p.Name != nil && *p.Name != current
}

// PositionUpdate is one entry of a bulk reorder.
// Entries without a position are skipped.
type PositionUpdate struct {
	Name     string `json:"name"`
	Position *int   `json:"position"`
}

// Tally counts probed services by status and external services separately.
func Tally(services []Service) (online, offline, external int) {
	for _, s := range services {
		switch {
		case !s.Probeable():
			external++
		case s.IsOnline:
			online++
		default:
			offline++
		}
	}
	return online, offline, external
}
