package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "devices.json"))
}

func writeRaw(t *testing.T, s *Store, devices []Device) {
	t.Helper()
	content, err := json.Marshal(devices)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(s.Path(), content, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s := tempStore(t)
	if devices := s.Load(); len(devices) != 0 {
		t.Errorf("Load() on missing file = %d devices, want 0", len(devices))
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	s := tempStore(t)
	devices := []Device{
		{ID: "a", Host: "10.0.0.5", Port: 80, Username: "admin", Password: "pw"},
		{ID: "b", Host: "10.0.0.6", Port: 80, Username: "admin", Password: "pw"},
	}
	if err := s.Save(devices); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := s.Load()
	if len(loaded) != 2 {
		t.Fatalf("Load() = %d devices, want 2", len(loaded))
	}
	if loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Errorf("Load() order = %s,%s, want a,b", loaded[0].ID, loaded[1].ID)
	}
}

func TestLoadDedupesByBackendIDLaterWins(t *testing.T) {
	s := tempStore(t)
	writeRaw(t, s, []Device{
		{ID: "old", BackendID: "bk-1", Host: "10.0.0.5", Port: 80, Username: "admin"},
		{ID: "new", BackendID: "bk-1", Host: "10.0.0.9", Port: 8080, Username: "root"},
	})

	loaded := s.Load()
	if len(loaded) != 1 {
		t.Fatalf("Load() = %d devices, want 1", len(loaded))
	}
	if loaded[0].ID != "new" || loaded[0].Host != "10.0.0.9" {
		t.Errorf("dedupe kept %+v, want the later record", loaded[0])
	}
}

func TestLoadDedupeFallsBackToDeviceIDThenEndpoint(t *testing.T) {
	s := tempStore(t)
	writeRaw(t, s, []Device{
		{ID: "a", DeviceID: "HW-42", Host: "10.0.0.5", Port: 80, Username: "admin"},
		{ID: "b", DeviceID: "hw-42", Host: "10.0.0.6", Port: 80, Username: "admin"},
		{ID: "c", Host: "10.0.0.7", Port: 80, Username: "Admin"},
		{ID: "d", Host: "10.0.0.7", Port: 80, Username: "admin"},
	})

	loaded := s.Load()
	if len(loaded) != 2 {
		t.Fatalf("Load() = %d devices, want 2", len(loaded))
	}
	if loaded[0].ID != "b" {
		t.Errorf("deviceId dedupe kept %s, want b (case-insensitive)", loaded[0].ID)
	}
	if loaded[1].ID != "d" {
		t.Errorf("endpoint dedupe kept %s, want d (case-insensitive)", loaded[1].ID)
	}
}

func TestLoadRewritesCanonicalForm(t *testing.T) {
	s := tempStore(t)
	// Compact JSON on disk differs from the indented canonical form
	writeRaw(t, s, []Device{{ID: "a", Host: "10.0.0.5", Port: 80, Username: "admin"}})

	s.Load()

	content, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var devices []Device
	if err := json.Unmarshal(content, &devices); err != nil {
		t.Fatalf("canonical file does not parse: %v", err)
	}
	canonical, _ := json.MarshalIndent(devices, "", "  ")
	if string(content) != string(canonical) {
		t.Error("Load() did not rewrite the file in canonical form")
	}
}

func TestCredentialsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt string
		want      bool
	}{
		{"no expiry stamp", "", false},
		{"future expiry", time.Now().Add(time.Hour).Format(time.RFC3339), false},
		{"past expiry", time.Now().Add(-time.Hour).Format(time.RFC3339), true},
		{"unparseable stamp", "not-a-time", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Device{CredentialsExpiresAt: tt.expiresAt}
			if got := d.CredentialsExpired(); got != tt.want {
				t.Errorf("CredentialsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTouchCredentialsSetsThirtyDayWindow(t *testing.T) {
	var d Device
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.TouchCredentials(now)

	expires, err := time.Parse(time.RFC3339, d.CredentialsExpiresAt)
	if err != nil {
		t.Fatalf("expiry stamp does not parse: %v", err)
	}
	if want := now.Add(CredentialTTL); !expires.Equal(want) {
		t.Errorf("expiry = %v, want %v", expires, want)
	}
}

func TestFindIndex(t *testing.T) {
	devices := []Device{
		{ID: "a", BackendID: "bk-1"},
		{ID: "b", DeviceID: "HW-7"},
	}

	if got := FindIndex(devices, "bk-1", ""); got != 0 {
		t.Errorf("FindIndex(backend match) = %d, want 0", got)
	}
	if got := FindIndex(devices, "bk-9", "HW-7"); got != 1 {
		t.Errorf("FindIndex(hardware fallback) = %d, want 1", got)
	}
	if got := FindIndex(devices, "bk-9", "HW-9"); got != -1 {
		t.Errorf("FindIndex(no match) = %d, want -1", got)
	}
}

func TestDeviceLabel(t *testing.T) {
	backendLinked := Device{BackendID: "bk-1", Host: "10.0.0.5", Port: 80}
	if got := backendLinked.Label(); got != "Backend bk-1" {
		t.Errorf("Label() = %q, want %q", got, "Backend bk-1")
	}
	local := Device{Host: "10.0.0.5", Port: 8080}
	if got := local.Label(); got != "10.0.0.5:8080" {
		t.Errorf("Label() = %q, want %q", got, "10.0.0.5:8080")
	}
}
