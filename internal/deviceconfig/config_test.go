package deviceconfig

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/schoolpass/registrator/internal/store"
)

func terminalDevice(t *testing.T, server *httptest.Server) store.Device {
	t.Helper()
	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return store.Device{
		ID:       "dev-1",
		Host:     parsed.Hostname(),
		Port:     port,
		Username: "admin",
		Password: "secret12",
	}
}

// configTerminal answers the system configuration endpoints and records
// writes. Paths absent from answers return 404 so the capability probe
// marks them unsupported.
type configTerminal struct {
	answers map[string]any
	puts    map[string]map[string]any
}

func (c *configTerminal) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		if r.Method == http.MethodPut {
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			if c.puts == nil {
				c.puts = make(map[string]map[string]any)
			}
			c.puts[key] = payload
			_ = json.NewEncoder(w).Encode(map[string]any{"statusCode": 1, "statusString": "OK"})
			return
		}
		answer, ok := c.answers[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(answer)
	}
}

func TestGetReadsAllSections(t *testing.T) {
	terminal := &configTerminal{answers: map[string]any{
		"ISAPI/System/time":               map[string]any{"Time": map[string]any{"timeMode": "NTP"}},
		"ISAPI/System/Network/ntpServers": map[string]any{"NTPServerList": []any{}},
	}}
	server := httptest.NewServer(terminal.handler())
	defer server.Close()

	config, err := Get(terminalDevice(t, server))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	timeSection, ok := config.Time.(map[string]any)
	if !ok || timeSection["Time"] == nil {
		t.Errorf("time section = %v", config.Time)
	}

	// Interfaces endpoint answered 404; the error folds into the section.
	network, ok := config.NetworkInterfaces.(map[string]any)
	if !ok || network["error"] == nil {
		t.Errorf("networkInterfaces = %v, want inline error", config.NetworkInterfaces)
	}
}

func TestUpdateSnapshotsBeforeWrite(t *testing.T) {
	terminal := &configTerminal{answers: map[string]any{
		"ISAPI/System/deviceInfo": map[string]any{"model": "DS-K1T341AM"},
		"ISAPI/System/time":       map[string]any{"Time": map[string]any{"timeMode": "manual"}},
	}}
	server := httptest.NewServer(terminal.handler())
	defer server.Close()

	payload := map[string]any{"Time": map[string]any{"timeMode": "NTP"}}
	result, err := Update(terminalDevice(t, server), ConfigTime, payload)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !result.OK || result.ConfigType != ConfigTime {
		t.Errorf("result = %+v", result)
	}

	before, ok := result.Before.(map[string]any)
	if !ok || before["Time"] == nil {
		t.Errorf("before = %v, want pre-write snapshot", result.Before)
	}

	written := terminal.puts["ISAPI/System/time"]
	if written == nil || written["Time"] == nil {
		t.Errorf("terminal received %v", terminal.puts)
	}
}

func TestUpdateRefusesUnsupportedSection(t *testing.T) {
	// Terminal answers nothing: the probe marks every section unsupported.
	terminal := &configTerminal{answers: map[string]any{}}
	server := httptest.NewServer(terminal.handler())
	defer server.Close()

	_, err := Update(terminalDevice(t, server), ConfigNTPServers, map[string]any{"NTPServerList": []any{}})
	if err == nil || !strings.Contains(err.Error(), "not supported on this device") {
		t.Errorf("error = %v", err)
	}
}

func TestUpdateRejectsNilPayload(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := Update(terminalDevice(t, server), ConfigTime, nil)
	if err == nil || !strings.Contains(err.Error(), "payload must be JSON object") {
		t.Errorf("error = %v", err)
	}
}

func TestExpiredCredentialsRefused(t *testing.T) {
	device := store.Device{Host: "10.0.0.5", Port: 80}
	device.CredentialsExpiresAt = time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	if _, err := Get(device); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("Get() error = %v", err)
	}
	if _, err := Probe(device); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Errorf("Probe() error = %v", err)
	}
}

func TestParseConfigType(t *testing.T) {
	if _, err := ParseConfigType("time"); err != nil {
		t.Errorf("ParseConfigType(time) error = %v", err)
	}
	if _, err := ParseConfigType("diverter"); err == nil {
		t.Error("ParseConfigType(diverter) should fail")
	}
}
