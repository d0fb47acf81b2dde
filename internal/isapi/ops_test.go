package isapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

// encodeImage returns a base64 payload decoding to n bytes.
func encodeImage(n int) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0xAB}, n))
}

func TestParseActionResult(t *testing.T) {
	tests := []struct {
		name string
		text string
		want ActionResult
	}{
		{
			name: "ok by status code",
			text: `{"statusCode":1,"statusString":"OK"}`,
			want: ActionResult{OK: true, StatusCode: 1, StatusString: "OK"},
		},
		{
			name: "ok by status string alone",
			text: `{"statusString":"OK"}`,
			want: ActionResult{OK: true, StatusString: "OK"},
		},
		{
			name: "device rejection",
			text: `{"statusCode":4,"statusString":"Invalid Operation","errorMsg":"employeeNo exists"}`,
			want: ActionResult{OK: false, StatusCode: 4, StatusString: "Invalid Operation", ErrorMsg: "employeeNo exists"},
		},
		{
			name: "unparseable body",
			text: `<html>nope</html>`,
			want: ActionResult{OK: false, StatusString: "ParseError", ErrorMsg: `<html>nope</html>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseActionResult([]byte(tt.text)); got != tt.want {
				t.Errorf("parseActionResult() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractDeviceID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"lowercase nested", `{"DeviceInfo":{"deviceID":"DS-1"}}`, "DS-1"},
		{"capitalized nested", `{"DeviceInfo":{"DeviceID":"DS-2"}}`, "DS-2"},
		{"camel nested", `{"DeviceInfo":{"deviceId":"DS-3"}}`, "DS-3"},
		{"top level", `{"deviceID":"DS-4"}`, "DS-4"},
		{"absent", `{"DeviceInfo":{"model":"x"}}`, ""},
		{"not json", `garbage`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDeviceID([]byte(tt.text)); got != tt.want {
				t.Errorf("extractDeviceID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTestConnectionDiscoversHardwareID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISAPI/System/deviceInfo" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"DeviceInfo":{"deviceID":"HW-1","model":"DS-K1T341"}}`)
	}))
	defer server.Close()

	result := newTestClient(t, server).TestConnection()
	if !result.OK {
		t.Fatalf("TestConnection() = %+v, want ok", result)
	}
	if result.DeviceID != "HW-1" {
		t.Errorf("DeviceID = %q, want HW-1", result.DeviceID)
	}
}

func TestTestConnectionFoldsErrorsIntoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // immediately unreachable

	result := newTestClient(t, server).TestConnection()
	if result.OK {
		t.Fatal("TestConnection() ok against a closed server")
	}
	if result.Message == "" {
		t.Error("failure carries no message")
	}
}

func TestCreateUserPayloadShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		fmt.Fprint(w, `{"statusCode":1,"statusString":"OK"}`)
	}))
	defer server.Close()

	result := newTestClient(t, server).CreateUser("777", "Alice", "female", "2026-01-01T00:00:00", "2036-01-01T00:00:00")
	if !result.OK {
		t.Fatalf("CreateUser() = %+v, want ok", result)
	}

	userInfo, ok := captured["UserInfo"].(map[string]any)
	if !ok {
		t.Fatalf("payload missing UserInfo: %v", captured)
	}
	if userInfo["employeeNo"] != "777" || userInfo["userType"] != "normal" || userInfo["doorRight"] != "1" {
		t.Errorf("UserInfo fields = %v", userInfo)
	}
	valid, ok := userInfo["Valid"].(map[string]any)
	if !ok {
		t.Fatalf("payload missing Valid window")
	}
	if valid["timeType"] != "local" || valid["enable"] != true {
		t.Errorf("Valid = %v", valid)
	}
	if valid["beginTime"] != "2026-01-01T00:00:00" || valid["endTime"] != "2036-01-01T00:00:00" {
		t.Errorf("validity window = %v", valid)
	}
}

func TestUploadFaceRejectsInvalidBase64(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("network call made for an undecodable image")
	}))
	defer server.Close()

	result := newTestClient(t, server).UploadFace("1", "Alice", "female", "!!!not-base64!!!")
	if result.OK || result.StatusString != "InvalidImage" {
		t.Errorf("UploadFace() = %+v, want InvalidImage", result)
	}
}

func TestUploadFaceRejectsOversizedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("network call made for an oversized image")
	}))
	defer server.Close()

	result := newTestClient(t, server).UploadFace("1", "Alice", "female", encodeImage(MaxFaceImageBytes+1))
	if result.OK || result.StatusString != "ImageTooLarge" {
		t.Errorf("UploadFace() = %+v, want ImageTooLarge", result)
	}
}

func TestSearchUsersParsesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode search condition: %v", err)
		}
		cond := payload["UserInfoSearchCond"]
		if cond["maxResults"] != float64(20) || cond["searchResultPosition"] != float64(40) {
			t.Errorf("pagination = %v", cond)
		}
		fmt.Fprint(w, `{"UserInfoSearch":{"numOfMatches":2,"totalMatches":50,"UserInfo":[
			{"employeeNo":"1","name":"Alice","gender":"female","numOfFace":1},
			{"employeeNo":"2","name":"Bob","faceURL":"/LOCALS/pic/2.jpg"}
		]}}`)
	}))
	defer server.Close()

	page := newTestClient(t, server).SearchUsers(40, 20)
	if len(page.Users) != 2 || page.TotalMatches != 50 {
		t.Fatalf("SearchUsers() = %+v", page)
	}
	if page.Users[1].FaceURL != "/LOCALS/pic/2.jpg" {
		t.Errorf("FaceURL = %q", page.Users[1].FaceURL)
	}
}

func TestSearchUsersIsBestEffort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	if page := newTestClient(t, server).SearchUsers(0, 10); len(page.Users) != 0 {
		t.Errorf("SearchUsers() against dead device = %+v, want empty", page)
	}
}

func TestGetUserByEmployeeNo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode search condition: %v", err)
		}
		list, _ := payload["UserInfoSearchCond"]["EmployeeNoList"].([]any)
		if len(list) != 1 {
			t.Fatalf("EmployeeNoList = %v", list)
		}
		if filter, _ := list[0].(map[string]any); filter["employeeNo"] == "42" {
			fmt.Fprint(w, `{"UserInfoSearch":{"numOfMatches":1,"UserInfo":[{"employeeNo":"42","name":"Alice"}]}}`)
			return
		}
		fmt.Fprint(w, `{"UserInfoSearch":{"numOfMatches":0}}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	user, found := c.GetUserByEmployeeNo("42")
	if !found || user.Name != "Alice" {
		t.Errorf("GetUserByEmployeeNo(42) = %+v, %v", user, found)
	}
	if _, found := c.GetUserByEmployeeNo("99"); found {
		t.Error("GetUserByEmployeeNo(99) found a user that does not exist")
	}
}

func TestDeleteUserSendsDeletionCondition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		var payload map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode deletion condition: %v", err)
		}
		if _, ok := payload["UserInfoDelCond"]; !ok {
			t.Errorf("payload = %v, missing UserInfoDelCond", payload)
		}
		fmt.Fprint(w, `{"statusCode":1,"statusString":"OK"}`)
	}))
	defer server.Close()

	if result := newTestClient(t, server).DeleteUser("42"); !result.OK {
		t.Errorf("DeleteUser() = %+v, want ok", result)
	}
}

func TestGetJSONAppendsFormatHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ISAPI/System/time":
			if r.URL.RawQuery != "format=json" {
				t.Errorf("query = %q, want format=json", r.URL.RawQuery)
			}
		case "/ISAPI/System/status":
			if r.URL.RawQuery != "format=json&x=1" {
				t.Errorf("query = %q, hint appended to explicit query", r.URL.RawQuery)
			}
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	if _, err := c.GetJSON("ISAPI/System/time"); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if _, err := c.GetJSON("/ISAPI/System/status?format=json&x=1"); err != nil {
		t.Fatalf("GetJSON() with query error = %v", err)
	}
}

func TestProbeCapabilitiesUnreachableIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := newTestClient(t, server)
	first := c.ProbeCapabilities()
	second := c.ProbeCapabilities()

	if len(first.Supported) != len(capabilityProbes) {
		t.Fatalf("supported entries = %d, want %d", len(first.Supported), len(capabilityProbes))
	}
	for name, ok := range first.Supported {
		if ok {
			t.Errorf("probe %s reported supported against a dead device", name)
		}
	}
	if !reflect.DeepEqual(first.Supported, second.Supported) {
		t.Errorf("probe results differ across calls: %v vs %v", first.Supported, second.Supported)
	}
}

func TestProbeCapabilitiesMixedSupport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ISAPI/System/Network/ntpServers" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	caps := newTestClient(t, server).ProbeCapabilities()
	if caps.Supported["ntpServers"] {
		t.Error("ntpServers reported supported despite 404")
	}
	if !caps.Supported["deviceInfo"] || !caps.Supported["time"] {
		t.Errorf("supported = %v", caps.Supported)
	}
	if _, ok := caps.Details["ntpServers_error"]; !ok {
		t.Error("probe failure detail missing")
	}
}

func TestFetchFaceImageResolvesRelativeURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/LOCALS/pic/7.jpg" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer server.Close()

	image, err := newTestClient(t, server).FetchFaceImage("/LOCALS/pic/7.jpg")
	if err != nil {
		t.Fatalf("FetchFaceImage() error = %v", err)
	}
	if len(image) != 3 {
		t.Errorf("image length = %d, want 3", len(image))
	}
}

func TestDefaultValidityIsTenYears(t *testing.T) {
	now := time.Date(2026, 2, 14, 9, 30, 0, 0, time.Local)
	begin, end := DefaultValidity(now)
	if begin != "2026-02-14T09:30:00" {
		t.Errorf("begin = %s", begin)
	}
	if end != "2036-02-14T09:30:00" {
		t.Errorf("end = %s", end)
	}
}
