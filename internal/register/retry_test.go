package register

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/schoolpass/registrator/internal/backend"
	"github.com/schoolpass/registrator/internal/store"
)

func TestRetryRechecksConnectivity(t *testing.T) {
	terminal := &fakeTerminal{deviceID: "HW-1"}
	terminalServer := httptest.NewServer(terminal.handler())
	defer terminalServer.Close()

	var reports []map[string]any
	record := `{
		"student": {"deviceStudentId": "5550001111"},
		"devices": [
			{"deviceId": "bk-1", "status": "PENDING", "device": {"deviceId": "HW-1", "name": "Gate A", "location": "front"}},
			{"deviceId": "bk-2", "status": "FAILED", "lastError": "old error", "device": {"deviceId": "HW-2", "name": "Gate B", "location": "back"}}
		]
	}`
	backendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/retry"):
			fmt.Fprint(w, `{"ok":true,"updated":2,"targetDeviceIds":["bk-1","bk-2"]}`)
		case strings.HasSuffix(r.URL.Path, "/device-result"):
			var report map[string]any
			_ = json.NewDecoder(r.Body).Decode(&report)
			reports = append(reports, report)
			fmt.Fprint(w, `{}`)
		default:
			fmt.Fprint(w, record)
		}
	}))
	defer backendServer.Close()

	api, err := backend.NewClient(backend.Config{BaseURL: backendServer.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	// bk-1 has working local credentials, bk-2 has none stored.
	device := terminalDevice(t, terminalServer, "dev-1")
	device.BackendID = "bk-1"
	st := newStore(t, []store.Device{device})

	summary, err := Retry(st, api, "p-1", nil)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	if summary.ConnectionCheck.Checked != 1 {
		t.Errorf("checked = %d, want 1", summary.ConnectionCheck.Checked)
	}
	if summary.ConnectionCheck.Failed != 1 || summary.ConnectionCheck.MissingCredentials != 1 {
		t.Errorf("connectionCheck = %+v", summary.ConnectionCheck)
	}

	if len(reports) != 1 {
		t.Fatalf("reports = %d, want one for the missing device", len(reports))
	}
	if reports[0]["deviceId"] != "bk-2" || reports[0]["status"] != "FAILED" {
		t.Errorf("report = %v", reports[0])
	}
	if reports[0]["employeeNoOnDevice"] != "5550001111" {
		t.Errorf("report employeeNoOnDevice = %v", reports[0]["employeeNoOnDevice"])
	}

	if len(summary.PerDeviceResults) != 2 {
		t.Fatalf("perDeviceResults = %+v", summary.PerDeviceResults)
	}
	if summary.PerDeviceResults[1].LastError != "old error" {
		t.Errorf("lastError = %q", summary.PerDeviceResults[1].LastError)
	}

	// The working terminal's hardware id is learned and persisted.
	devices := st.Load()
	if len(devices) != 1 || devices[0].DeviceID != "HW-1" {
		t.Errorf("stored devices = %+v, want learned hardware id", devices)
	}
}

func TestRetryScopesToRequestedDevices(t *testing.T) {
	record := `{
		"student": {"deviceStudentId": "1"},
		"devices": [
			{"deviceId": "bk-1", "status": "SUCCESS", "device": {"name": "Gate A"}},
			{"deviceId": "bk-2", "status": "FAILED", "device": {"name": "Gate B"}}
		]
	}`
	backendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/retry"):
			fmt.Fprint(w, `{"ok":true,"updated":1,"targetDeviceIds":["bk-2"]}`)
		case strings.HasSuffix(r.URL.Path, "/device-result"):
			fmt.Fprint(w, `{}`)
		default:
			fmt.Fprint(w, record)
		}
	}))
	defer backendServer.Close()

	api, err := backend.NewClient(backend.Config{BaseURL: backendServer.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	st := newStore(t, nil)

	summary, err := Retry(st, api, "p-1", []string{"bk-2"})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if len(summary.PerDeviceResults) != 1 || summary.PerDeviceResults[0].BackendDeviceID != "bk-2" {
		t.Errorf("perDeviceResults = %+v, want bk-2 only", summary.PerDeviceResults)
	}
}
