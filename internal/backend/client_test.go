package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(Config{BaseURL: server.URL, Token: "tok123"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "  "}); err == nil {
		t.Error("NewClient() accepted an empty base URL")
	}
}

func TestStartProvisioningDefaultsToAllActive(t *testing.T) {
	var captured map[string]any
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schools/sch-1/students/provision" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		fmt.Fprint(w, `{"provisioningId":"p-1","deviceStudentId":"12345","studentId":"s-1",
			"targetDevices":[{"id":"bk-1","deviceId":"HW-1"}]}`)
	})

	response, err := c.StartProvisioning("sch-1",
		StudentFields{Name: "Alice", Gender: "female"}, "req-1", AllActiveTargets())
	if err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	if response.ProvisioningID != "p-1" || response.DeviceStudentID != "12345" {
		t.Errorf("response = %+v", response)
	}
	if len(response.TargetDevices) != 1 || response.TargetDevices[0].DeviceID != "HW-1" {
		t.Errorf("targetDevices = %+v", response.TargetDevices)
	}

	if captured["targetAllActive"] != true {
		t.Error("targetAllActive should default to true without explicit selection")
	}
	if ids, _ := captured["targetDeviceIds"].([]any); len(ids) != 0 {
		t.Errorf("targetDeviceIds = %v, want empty", ids)
	}
	if captured["requestId"] != "req-1" {
		t.Errorf("requestId = %v", captured["requestId"])
	}
}

func TestStartProvisioningExplicitEmptySelection(t *testing.T) {
	var captured map[string]any
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		fmt.Fprint(w, `{"provisioningId":"p-2","deviceStudentId":"1","studentId":"s-2"}`)
	})

	// Explicit empty list: backend-only provisioning, no device push
	_, err := c.StartProvisioning("sch-1",
		StudentFields{Name: "Bob", Gender: "male"}, "req-2", ExplicitTargets(nil))
	if err != nil {
		t.Fatalf("StartProvisioning() error = %v", err)
	}
	if captured["targetAllActive"] != false {
		t.Error("explicit selection must set targetAllActive=false")
	}
}

func TestStartProvisioningErrorCarriesResponseBody(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"duplicate requestId"}`)
	})

	_, err := c.StartProvisioning("sch-1", StudentFields{Name: "x"}, "req-3", AllActiveTargets())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "duplicate requestId") {
		t.Errorf("error = %q, want raw body", err)
	}
}

func TestReportDeviceResult(t *testing.T) {
	var captured DeviceReport
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/provisioning/p-1/device-result" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.ReportDeviceResult("p-1", DeviceReport{
		DeviceID:   "bk-1",
		Status:     StatusFailed,
		EmployeeNo: "12345",
		Error:      "upload failed",
	})
	if err != nil {
		t.Fatalf("ReportDeviceResult() error = %v", err)
	}
	if captured.Status != StatusFailed || captured.EmployeeNo != "12345" {
		t.Errorf("captured = %+v", captured)
	}
}

func TestCustomAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "tok123" {
			t.Errorf("X-Api-Key = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want unset", got)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, Token: "tok123", AuthHeader: "X-Api-Key"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := c.GetProvisioning("p-1"); err != nil {
		t.Fatalf("GetProvisioning() error = %v", err)
	}
}

func TestRetryProvisioning(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/provisioning/p-1/retry" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(payload["deviceIds"]) != 2 {
			t.Errorf("deviceIds = %v", payload["deviceIds"])
		}
		fmt.Fprint(w, `{"status":"RETRYING"}`)
	})

	record, err := c.RetryProvisioning("p-1", []string{"bk-1", "bk-2"})
	if err != nil {
		t.Fatalf("RetryProvisioning() error = %v", err)
	}
	if record["status"] != "RETRYING" {
		t.Errorf("record = %v", record)
	}
}

func TestFinalizeProvisioningFailure(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/provisioning/p-1/finalize-failure" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.Contains(payload["reason"], "Rolled back") {
			t.Errorf("reason = %q", payload["reason"])
		}
		fmt.Fprint(w, `{"status":"FAILED"}`)
	})

	if _, err := c.FinalizeProvisioningFailure("p-1", "Rolled back due to failure: timeout"); err != nil {
		t.Fatalf("FinalizeProvisioningFailure() error = %v", err)
	}
}

func TestListStudentsAndPhoto(t *testing.T) {
	c := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/schools/sch-1/students":
			if r.URL.Query().Get("page") != "2" {
				t.Errorf("page = %s", r.URL.Query().Get("page"))
			}
			fmt.Fprint(w, `{"data":[{"id":"s-1","deviceStudentId":"111","name":"Alice","gender":"FEMALE","photoUrl":"/media/s-1.jpg"}]}`)
		case r.URL.Path == "/media/s-1.jpg":
			w.Write([]byte{0xFF, 0xD8})
		default:
			http.NotFound(w, r)
		}
	})

	page, err := c.ListStudents("sch-1", 2)
	if err != nil {
		t.Fatalf("ListStudents() error = %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].DeviceStudentID != "111" {
		t.Fatalf("page = %+v", page)
	}

	photo, err := c.FetchStudentPhoto(page.Data[0].PhotoURL)
	if err != nil {
		t.Fatalf("FetchStudentPhoto() error = %v", err)
	}
	if len(photo) != 2 {
		t.Errorf("photo length = %d", len(photo))
	}
}
