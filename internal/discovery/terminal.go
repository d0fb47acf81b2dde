package discovery

import (
	"fmt"
	"time"
)

// Terminal represents a discovered access-control terminal on the network.
type Terminal struct {
	// Model is the model designation parsed from the hostname
	// (e.g., "DS-K1T341AM")
	Model string

	// Hostname is the mDNS hostname (e.g., "DS-K1T341AM.local")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.4.16")
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains additional mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the terminal was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable representation of the terminal.
func (t *Terminal) String() string {
	return fmt.Sprintf("Terminal %s (%s) at %s:%d", t.Model, t.Hostname, t.IP, t.Port)
}

// Endpoint returns the host:port pair used when pairing credentials.
func (t *Terminal) Endpoint() (host string, port int) {
	return t.IP, t.Port
}

// GetMetadata retrieves a TXT metadata value by key, or returns empty string
// if not found.
func (t *Terminal) GetMetadata(key string) string {
	if t.Metadata == nil {
		return ""
	}
	return t.Metadata[key]
}
