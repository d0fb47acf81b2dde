package store

import (
	"fmt"
	"strings"
	"time"
)

// CredentialTTL is how long stored device credentials stay usable before a
// re-pair is required.
const CredentialTTL = 30 * 24 * time.Hour

// Device is one stored terminal credential record.
//
// BackendID links this record to the coordinating backend's device entity;
// DeviceID is the hardware identifier the terminal reports about itself and is
// discovered lazily during connection tests. Either may be empty.
type Device struct {
	ID                   string `json:"id"`
	BackendID            string `json:"backendId,omitempty"`
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	Username             string `json:"username"`
	Password             string `json:"password"`
	CredentialsUpdatedAt string `json:"credentialsUpdatedAt,omitempty"`
	CredentialsExpiresAt string `json:"credentialsExpiresAt,omitempty"`
	DeviceID             string `json:"deviceId,omitempty"`
}

// TouchCredentials stamps the rolling credential validity window starting now.
func (d *Device) TouchCredentials(now time.Time) {
	d.CredentialsUpdatedAt = now.UTC().Format(time.RFC3339)
	d.CredentialsExpiresAt = now.UTC().Add(CredentialTTL).Format(time.RFC3339)
}

// CredentialsExpired reports whether the stored credentials are past their
// validity window. Records without an expiry stamp never expire (legacy
// entries written before the window was introduced).
func (d *Device) CredentialsExpired() bool {
	if d.CredentialsExpiresAt == "" {
		return false
	}
	expires, err := time.Parse(time.RFC3339, d.CredentialsExpiresAt)
	if err != nil {
		return false
	}
	return expires.Before(time.Now())
}

// Label returns the name shown to the user for this device in error messages
// and result lists.
func (d *Device) Label() string {
	if strings.TrimSpace(d.BackendID) != "" {
		return fmt.Sprintf("Backend %s", d.BackendID)
	}
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// MatchLabel returns the most specific identifier known for this device,
// used in clone summaries.
func (d *Device) MatchLabel() string {
	if strings.TrimSpace(d.BackendID) != "" {
		return d.BackendID
	}
	if strings.TrimSpace(d.DeviceID) != "" {
		return d.DeviceID
	}
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// FindIndex locates a local device for a backend device id, falling back to
// the terminal-reported hardware id when no backend link exists.
func FindIndex(devices []Device, backendDeviceID string, externalDeviceID string) int {
	for i := range devices {
		if devices[i].BackendID != "" && devices[i].BackendID == backendDeviceID {
			return i
		}
	}
	if externalDeviceID != "" {
		for i := range devices {
			if devices[i].DeviceID == externalDeviceID {
				return i
			}
		}
	}
	return -1
}
