package isapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// MaxFaceImageBytes is the largest decoded face image terminals accept.
const MaxFaceImageBytes = 200 * 1024

// TestConnection fetches device info and extracts the hardware identifier.
// It never returns an error; failures are folded into the result.
func (c *Client) TestConnection() ConnectionResult {
	url := c.BaseURL() + "/ISAPI/System/deviceInfo?format=json"
	body, err := c.send(http.MethodGet, url, nil, "")
	if err != nil {
		return ConnectionResult{OK: false, Message: err.Error()}
	}
	return ConnectionResult{OK: true, DeviceID: extractDeviceID(body)}
}

// CreateUser registers a user record with door access over the given local
// validity window.
func (c *Client) CreateUser(employeeNo, name, gender, beginTime, endTime string) ActionResult {
	url := c.BaseURL() + "/ISAPI/AccessControl/UserInfo/Record?format=json"
	payload := map[string]any{
		"UserInfo": map[string]any{
			"employeeNo": employeeNo,
			"name":       name,
			"userType":   "normal",
			"doorRight":  "1",
			"RightPlan":  []map[string]any{{"doorNo": 1, "planTemplateNo": "1"}},
			"Valid": map[string]any{
				"enable":    true,
				"beginTime": beginTime,
				"endTime":   endTime,
				"timeType":  "local",
			},
			"gender":          gender,
			"localUIRight":    false,
			"maxOpenDoorTime": 0,
			"userVerifyMode":  "",
		},
	}
	body, err := c.postJSON(url, payload)
	if err != nil {
		return failedAction("RequestFailed", err.Error())
	}
	return parseActionResult(body)
}

// UploadFace attaches a face template to an existing user record. The image
// is validated locally before any request goes out.
func (c *Client) UploadFace(employeeNo, name, gender, imageBase64 string) ActionResult {
	imageBytes, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return failedAction("InvalidImage", err.Error())
	}
	if len(imageBytes) > MaxFaceImageBytes {
		return failedAction("ImageTooLarge", fmt.Sprintf(
			"Face image too large: %d bytes (max %d bytes)", len(imageBytes), MaxFaceImageBytes))
	}

	record, err := json.Marshal(map[string]any{
		"faceLibType": "blackFD",
		"FDID":        "1",
		"FPID":        employeeNo,
		"name":        name,
		"gender":      gender,
	})
	if err != nil {
		return failedAction("UploadFailed", err.Error())
	}

	formBody, contentType, err := buildFaceForm(record, imageBytes)
	if err != nil {
		return failedAction("UploadFailed", err.Error())
	}

	url := c.BaseURL() + "/ISAPI/Intelligent/FDLib/FaceDataRecord?format=json"
	body, err := c.sendMultipart(url, formBody, contentType)
	if err != nil {
		return failedAction("UploadFailed", err.Error())
	}
	return parseActionResult(body)
}

// buildFaceForm assembles the two-part upload form: the JSON FaceDataRecord
// descriptor followed by the raw JPEG bytes.
func buildFaceForm(record, imageBytes []byte) ([]byte, string, error) {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)

	if err := writer.WriteField("FaceDataRecord", string(record)); err != nil {
		return nil, "", err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="FaceImage"; filename="face.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buffer.Bytes(), writer.FormDataContentType(), nil
}

// SearchUsers returns one page of the terminal's user list. Search is
// best-effort: transport or parse failures yield an empty page.
func (c *Client) SearchUsers(offset, limit int) SearchResult {
	url := c.BaseURL() + "/ISAPI/AccessControl/UserInfo/Search?format=json"
	payload := map[string]any{
		"UserInfoSearchCond": map[string]any{
			"searchID":             newSearchID(),
			"maxResults":           limit,
			"searchResultPosition": offset,
		},
	}
	body, err := c.postJSON(url, payload)
	if err != nil {
		return SearchResult{}
	}
	var response userInfoSearchResponse
	if err := json.Unmarshal(body, &response); err != nil || response.UserInfoSearch == nil {
		return SearchResult{}
	}
	return SearchResult{
		Users:        response.UserInfoSearch.UserInfo,
		NumOfMatches: response.UserInfoSearch.NumOfMatches,
		TotalMatches: response.UserInfoSearch.TotalMatches,
	}
}

// GetUserByEmployeeNo looks up a single user record.
func (c *Client) GetUserByEmployeeNo(employeeNo string) (UserInfo, bool) {
	url := c.BaseURL() + "/ISAPI/AccessControl/UserInfo/Search?format=json"
	payload := map[string]any{
		"UserInfoSearchCond": map[string]any{
			"searchID":             newSearchID(),
			"maxResults":           1,
			"searchResultPosition": 0,
			"EmployeeNoList":       []map[string]any{{"employeeNo": employeeNo}},
		},
	}
	body, err := c.postJSON(url, payload)
	if err != nil {
		return UserInfo{}, false
	}
	var response userInfoSearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return UserInfo{}, false
	}
	if response.UserInfoSearch == nil || len(response.UserInfoSearch.UserInfo) == 0 {
		return UserInfo{}, false
	}
	return response.UserInfoSearch.UserInfo[0], true
}

// DeleteUser removes a user record (and its face templates) from the
// terminal. Deleting an absent user is reported as OK by most firmware.
func (c *Client) DeleteUser(employeeNo string) ActionResult {
	url := c.BaseURL() + "/ISAPI/AccessControl/UserInfo/Delete?format=json"
	payload := map[string]any{
		"UserInfoDelCond": map[string]any{
			"EmployeeNoList": []map[string]any{{"employeeNo": employeeNo}},
		},
	}
	body, err := c.putJSON(url, payload)
	if err != nil {
		return failedAction("DeleteFailed", err.Error())
	}
	return parseActionResult(body)
}

// GetJSON fetches an arbitrary configuration endpoint, appending
// ?format=json when the path carries no query of its own.
func (c *Client) GetJSON(path string) (any, error) {
	body, err := c.send(http.MethodGet, c.jsonURL(path), nil, "")
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, NewParseError(fmt.Sprintf("Response is not JSON: %v", err), err)
	}
	return value, nil
}

// PutJSON writes an arbitrary configuration endpoint and returns the parsed
// response.
func (c *Client) PutJSON(path string, payload any) (any, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("Cannot encode payload: %v", err))
	}
	body, err := c.send(http.MethodPut, c.jsonURL(path), encoded, "application/json")
	if err != nil {
		return nil, err
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, NewParseError(fmt.Sprintf("Response is not JSON: %v", err), err)
	}
	return value, nil
}

// GetRaw fetches a configuration endpoint without the JSON format hint,
// returning the body verbatim. Old firmware answers these with XML-ish text.
func (c *Client) GetRaw(path string) (string, error) {
	url := c.BaseURL() + "/" + cleanPath(path)
	body, err := c.send(http.MethodGet, url, nil, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PutRaw writes a configuration endpoint verbatim.
func (c *Client) PutRaw(path, payload, contentType string) (string, error) {
	url := c.BaseURL() + "/" + cleanPath(path)
	body, err := c.send(http.MethodPut, url, []byte(payload), contentType)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// capabilityProbes is the fixed set of endpoints used to fingerprint what a
// terminal's firmware supports.
var capabilityProbes = []struct {
	name string
	path string
}{
	{"deviceInfo", "ISAPI/System/deviceInfo?format=json"},
	{"status", "ISAPI/System/status?format=json"},
	{"time", "ISAPI/System/time?format=json"},
	{"ntpServers", "ISAPI/System/Network/ntpServers?format=json"},
	{"networkInterfaces", "ISAPI/System/Network/interfaces?format=json"},
	{"systemCapabilities", "ISAPI/System/capabilities?format=json"},
}

// ProbeCapabilities queries every probe endpoint and records which answered.
// Individual probe failures are captured in the map, never propagated.
func (c *Client) ProbeCapabilities() Capabilities {
	caps := Capabilities{
		Supported: make(map[string]bool, len(capabilityProbes)),
		Details:   make(map[string]any, len(capabilityProbes)),
	}
	for _, probe := range capabilityProbes {
		value, err := c.GetJSON(probe.path)
		if err != nil {
			caps.Supported[probe.name] = false
			caps.Details[probe.name+"_error"] = err.Error()
			continue
		}
		caps.Supported[probe.name] = true
		caps.Details[probe.name] = value
	}
	return caps
}

// FetchFaceImage downloads a face image by the URL a search result reported,
// resolving device-relative links against the terminal's base URL.
func (c *Client) FetchFaceImage(faceURL string) ([]byte, error) {
	return c.send(http.MethodGet, c.resolveURL(faceURL), nil, "")
}

func (c *Client) postJSON(url string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("Cannot encode payload: %v", err))
	}
	return c.send(http.MethodPost, url, encoded, "application/json")
}

func (c *Client) putJSON(url string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("Cannot encode payload: %v", err))
	}
	return c.send(http.MethodPut, url, encoded, "application/json")
}

func cleanPath(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), "/")
}

// jsonURL builds the absolute URL for a configuration path, adding the JSON
// format hint unless the path already carries a query string.
func (c *Client) jsonURL(path string) string {
	clean := cleanPath(path)
	if strings.Contains(clean, "?") {
		return c.BaseURL() + "/" + clean
	}
	return c.BaseURL() + "/" + clean + "?format=json"
}

func newSearchID() string {
	return fmt.Sprintf("search-%d", time.Now().Unix())
}
