package config

// Settings represents the entire user configuration file.
type Settings struct {
	Version     int          `yaml:"version"`
	Backend     *Backend     `yaml:"backend,omitempty"`
	Preferences *Preferences `yaml:"preferences,omitempty"`
}

// Backend holds how to reach the coordinating backend. All fields are
// optional; without a URL the tool runs in device-only mode.
type Backend struct {
	URL      string `yaml:"url,omitempty"`
	Token    string `yaml:"token,omitempty"`
	SchoolID string `yaml:"school_id,omitempty"`

	// AuthHeader overrides the default bearer scheme with a custom header
	// carrying the token verbatim (e.g. "X-Api-Key").
	AuthHeader string `yaml:"auth_header,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultUsername string `yaml:"default_username,omitempty"` // Pre-filled terminal username
	AutoDiscover    bool   `yaml:"auto_discover"`              // Enable automatic mDNS discovery on startup
	DiscoverTimeout int    `yaml:"discover_timeout"`           // mDNS discovery timeout in seconds
}

// NewSettings creates Settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Backend: &Backend{},
		Preferences: &Preferences{
			DefaultUsername: "admin",
			AutoDiscover:    true,
			DiscoverTimeout: 10,
		},
	}
}

// BackendConfigured reports whether a backend URL is set.
func (s *Settings) BackendConfigured() bool {
	return s.Backend != nil && s.Backend.URL != ""
}
