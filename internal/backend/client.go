// Package backend implements the HTTP client for the coordinating backend's
// provisioning API. It is deliberately thin: every method maps a non-2xx
// response to an error carrying the raw response body, and nothing retries
// automatically - retry is a user-facing operation, not a transport feature.
package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/schoolpass/registrator/internal/logging"
)

// Config describes how to reach the backend. AuthHeader overrides the
// default bearer scheme with a custom header carrying the token verbatim.
type Config struct {
	BaseURL    string
	Token      string
	AuthHeader string
}

// Client talks to the coordinating backend.
type Client struct {
	config     Config
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a backend client. The base URL must not be empty.
func NewClient(config Config) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, errors.New("backendUrl is required")
	}
	config.BaseURL = strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{},
		log:        logging.GetLogger(),
	}, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

func (c *Client) applyAuth(req *http.Request) {
	if c.config.Token == "" {
		return
	}
	if c.config.AuthHeader != "" {
		req.Header.Set(c.config.AuthHeader, c.config.Token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
}

// do performs one exchange and returns the response body. Non-2xx responses
// become an error carrying the raw body (the backend encodes its own error
// shape in there; this layer does not interpret it).
func (c *Client) do(method, url string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	c.log.Debug("backend exchange",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, errors.New(text)
	}
	return body, nil
}

// StartProvisioning creates a provisioning record for a student. When the
// caller made no explicit target selection, the backend resolves the target
// set to all active devices.
func (c *Client) StartProvisioning(schoolID string, student StudentFields, requestID string, targets TargetSelection) (StartResponse, error) {
	url := fmt.Sprintf("%s/schools/%s/students/provision", c.config.BaseURL, schoolID)

	deviceIDs := targets.DeviceIDs
	if deviceIDs == nil {
		deviceIDs = []string{}
	}
	payload := map[string]any{
		"student":         student,
		"requestId":       requestID,
		"targetAllActive": !targets.Explicit,
		"targetDeviceIds": deviceIDs,
	}

	body, err := c.do(http.MethodPost, url, payload)
	if err != nil {
		return StartResponse{}, err
	}
	var response StartResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return StartResponse{}, fmt.Errorf("decode provisioning response: %w", err)
	}
	return response, nil
}

// ReportDeviceResult posts one per-device outcome to a provisioning record.
func (c *Client) ReportDeviceResult(provisioningID string, report DeviceReport) error {
	url := fmt.Sprintf("%s/provisioning/%s/device-result", c.config.BaseURL, provisioningID)
	_, err := c.do(http.MethodPost, url, report)
	return err
}

// GetProvisioning fetches the backend's provisioning record as-is.
func (c *Client) GetProvisioning(provisioningID string) (map[string]any, error) {
	url := fmt.Sprintf("%s/provisioning/%s", c.config.BaseURL, provisioningID)
	body, err := c.do(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode provisioning record: %w", err)
	}
	return record, nil
}

// RetryProvisioning asks the backend to retry the given device links.
func (c *Client) RetryProvisioning(provisioningID string, deviceIDs []string) (map[string]any, error) {
	url := fmt.Sprintf("%s/provisioning/%s/retry", c.config.BaseURL, provisioningID)
	if deviceIDs == nil {
		deviceIDs = []string{}
	}
	body, err := c.do(http.MethodPost, url, map[string]any{"deviceIds": deviceIDs})
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode retry response: %w", err)
	}
	return record, nil
}

// FinalizeProvisioningFailure marks the whole attempt as abandoned. Local
// rollback has already happened by the time this is called.
func (c *Client) FinalizeProvisioningFailure(provisioningID, reason string) (map[string]any, error) {
	url := fmt.Sprintf("%s/provisioning/%s/finalize-failure", c.config.BaseURL, provisioningID)
	body, err := c.do(http.MethodPost, url, map[string]any{"reason": reason})
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode finalize response: %w", err)
	}
	return record, nil
}

// ListStudents fetches one page of a school's roster.
func (c *Client) ListStudents(schoolID string, page int) (StudentPage, error) {
	url := fmt.Sprintf("%s/schools/%s/students?page=%d", c.config.BaseURL, schoolID, page)
	body, err := c.do(http.MethodGet, url, nil)
	if err != nil {
		return StudentPage{}, err
	}
	var result StudentPage
	if err := json.Unmarshal(body, &result); err != nil {
		return StudentPage{}, fmt.Errorf("decode student page: %w", err)
	}
	return result, nil
}

// FetchStudentPhoto downloads a roster photo, resolving backend-relative
// paths against the base URL.
func (c *Client) FetchStudentPhoto(photoURL string) ([]byte, error) {
	full := photoURL
	if !strings.HasPrefix(photoURL, "http://") && !strings.HasPrefix(photoURL, "https://") {
		full = c.config.BaseURL + photoURL
	}
	resp, err := c.httpClient.Get(full)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("photo download failed: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
