package models

// Settings is the persisted per-project permission configuration
// (spec.md §3). Deny entries always take precedence over allow entries.
type Settings struct {
	Permissions PermissionSettings `json:"permissions" yaml:"permissions"`

	// Hooks is opaque, host-defined hook configuration passed through
	// unmodified; the core never interprets it.
	Hooks map[string]any `json:"hooks,omitempty" yaml:"hooks,omitempty"`
}

// PermissionSettings holds the three pattern lists the Permission Engine
// consults, in spec.md §4.A evaluation order.
type PermissionSettings struct {
	Allow []string `json:"allow" yaml:"allow"`
	Deny  []string `json:"deny" yaml:"deny"`
	Ask   []string `json:"ask" yaml:"ask"`
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return &Settings{}
	}
	c := &Settings{
		Permissions: PermissionSettings{
			Allow: append([]string(nil), s.Permissions.Allow...),
			Deny:  append([]string(nil), s.Permissions.Deny...),
			Ask:   append([]string(nil), s.Permissions.Ask...),
		},
	}
	if s.Hooks != nil {
		c.Hooks = make(map[string]any, len(s.Hooks))
		for k, v := range s.Hooks {
			c.Hooks[k] = v
		}
	}
	return c
}
