package isapi

import (
	"encoding/json"
	"time"
)

// ConnectionResult is the outcome of a connection test. DeviceID carries the
// hardware identifier the terminal reported about itself, when it did.
type ConnectionResult struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

// ActionResult is the uniform outcome of every mutating terminal call.
// Transport failures and protocol-level rejections both land here so callers
// branch on OK once instead of handling two error channels.
type ActionResult struct {
	OK           bool   `json:"ok"`
	StatusCode   int    `json:"statusCode,omitempty"`
	StatusString string `json:"statusString,omitempty"`
	ErrorMsg     string `json:"errorMsg,omitempty"`
}

func failedAction(statusString, errorMsg string) ActionResult {
	return ActionResult{OK: false, StatusString: statusString, ErrorMsg: errorMsg}
}

// UserInfo is one user record as the terminal reports it in search results.
type UserInfo struct {
	EmployeeNo string `json:"employeeNo"`
	Name       string `json:"name"`
	Gender     string `json:"gender,omitempty"`
	NumOfFace  int    `json:"numOfFace,omitempty"`
	FaceURL    string `json:"faceURL,omitempty"`
}

// SearchResult is a page of user records.
type SearchResult struct {
	Users        []UserInfo `json:"users"`
	NumOfMatches int        `json:"numOfMatches"`
	TotalMatches int        `json:"totalMatches"`
}

type userInfoSearch struct {
	UserInfo     []UserInfo `json:"UserInfo"`
	NumOfMatches int        `json:"numOfMatches"`
	TotalMatches int        `json:"totalMatches"`
}

type userInfoSearchResponse struct {
	UserInfoSearch *userInfoSearch `json:"UserInfoSearch"`
}

// Capabilities maps probe names to whether the terminal answered, with the
// raw answer (or the error text under "<name>_error") kept for display.
type Capabilities struct {
	Supported map[string]bool `json:"supported"`
	Details   map[string]any  `json:"details"`
}

// deviceTimeLayout is the local-time layout terminals accept in validity
// windows. No timezone suffix: the terminal interprets it in its own zone.
const deviceTimeLayout = "2006-01-02T15:04:05"

// DeviceTime formats a timestamp the way terminals expect.
func DeviceTime(t time.Time) string {
	return t.Format(deviceTimeLayout)
}

// DefaultValidity returns the standard 10-year access window starting now.
func DefaultValidity(now time.Time) (begin, end string) {
	return DeviceTime(now), DeviceTime(now.AddDate(10, 0, 0))
}

// parseActionResult normalizes the vendor's {statusCode, statusString,
// errorMsg} envelope. Responses that do not parse as JSON become a failed
// result carrying the raw text, never an error.
func parseActionResult(text []byte) ActionResult {
	var envelope struct {
		StatusCode   int    `json:"statusCode"`
		StatusString string `json:"statusString"`
		ErrorMsg     string `json:"errorMsg"`
	}
	if err := json.Unmarshal(text, &envelope); err != nil {
		return failedAction("ParseError", string(text))
	}
	return ActionResult{
		OK:           envelope.StatusCode == 1 || envelope.StatusString == "OK",
		StatusCode:   envelope.StatusCode,
		StatusString: envelope.StatusString,
		ErrorMsg:     envelope.ErrorMsg,
	}
}

// extractDeviceID pulls the hardware identifier from a device-info response.
// Firmware generations disagree on the key's capitalization.
func extractDeviceID(text []byte) string {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(text, &data); err != nil {
		return ""
	}
	if raw, ok := data["DeviceInfo"]; ok {
		var info map[string]json.RawMessage
		if err := json.Unmarshal(raw, &info); err == nil {
			for _, key := range []string{"deviceID", "DeviceID", "deviceId"} {
				if id := stringField(info, key); id != "" {
					return id
				}
			}
		}
	}
	return stringField(data, "deviceID")
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}
