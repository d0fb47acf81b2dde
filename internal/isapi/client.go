package isapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/schoolpass/registrator/internal/logging"
	"github.com/schoolpass/registrator/internal/store"
)

const (
	// DefaultTimeout bounds every request to a terminal. Terminals live on
	// the local network; anything slower than this is effectively offline.
	DefaultTimeout = 8 * time.Second

	// maxBodyInError caps how much response text is embedded in error
	// messages before truncation.
	maxBodyInError = 300
)

// Client talks to a single terminal. It is safe for sequential reuse; the
// provisioning flow never shares one client across goroutines.
type Client struct {
	device     store.Device
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a client for the given stored device record.
func NewClient(device store.Device) *Client {
	return &Client{
		device:     device,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logging.GetLogger(),
	}
}

// Device returns the record this client was built from.
func (c *Client) Device() store.Device {
	return c.device
}

// BaseURL returns the http root of the terminal.
func (c *Client) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.device.Host, c.device.Port)
}

// resolveURL turns a protocol path into an absolute URL. Absolute URLs pass
// through untouched (face links in search results are sometimes absolute).
func (c *Client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL() + "/" + strings.TrimPrefix(path, "/")
}

// doOnce performs a single HTTP exchange and drains the response body.
func (c *Client) doOnce(method, rawURL string, body []byte, contentType, authorization string) (int, http.Header, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		return 0, nil, nil, NewValidationError(fmt.Sprintf("Invalid request URL %s: %v", rawURL, err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, ClassifyNetworkError(err, fmt.Sprintf("%s:%d", c.device.Host, c.device.Port))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, ClassifyNetworkError(err, fmt.Sprintf("%s:%d", c.device.Host, c.device.Port))
	}

	c.log.Debug("device exchange",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Bool("authenticated", authorization != ""))

	return resp.StatusCode, resp.Header, payload, nil
}

func successStatus(status int) bool {
	return status >= 200 && status < 300
}

// challengeStatus reports whether a status may carry an auth challenge. Some
// firmware answers 400 or 403 (instead of 401) while still attaching a
// WWW-Authenticate header.
func challengeStatus(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusBadRequest ||
		status == http.StatusForbidden
}

// truncateForError trims response text for inclusion in an error message.
func truncateForError(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= maxBodyInError {
		return trimmed
	}
	return string(runes[:maxBodyInError]) + "..."
}

// responseError builds the terminal error for a non-success response.
func responseError(status int, body []byte) *DeviceError {
	reason := http.StatusText(status)
	if reason == "" {
		reason = "Unknown Status"
	}
	text := truncateForError(string(body))
	if text != "" {
		return NewHTTPError(status, fmt.Sprintf("HTTP %d: %s: %s", status, reason, text))
	}
	return NewHTTPError(status, fmt.Sprintf("HTTP %d: %s", status, reason))
}

func basicAuthorization(username, password string) string {
	req, _ := http.NewRequest(http.MethodGet, "http://placeholder", nil)
	req.SetBasicAuth(username, password)
	return req.Header.Get("Authorization")
}

// send performs one logical request with authentication negotiation:
//
//  1. Try without credentials. Many endpoints (device info on open firmware)
//     answer directly.
//  2. On a challenge status, retry with Digest if the terminal presented a
//     digest challenge.
//  3. Without a digest challenge, fall back to Basic. If Basic itself comes
//     back 401 with a digest challenge (firmware that only reveals the
//     challenge after a failed Basic attempt), retry once more with Digest.
//
// The returned bytes are the response body of the successful exchange.
func (c *Client) send(method, rawURL string, body []byte, contentType string) ([]byte, error) {
	status, header, payload, err := c.doOnce(method, rawURL, body, contentType, "")
	if err != nil {
		return nil, err
	}
	if successStatus(status) {
		return payload, nil
	}
	if !challengeStatus(status) {
		return nil, responseError(status, payload)
	}

	www := header.Get("WWW-Authenticate")
	if challenge := parseDigestChallenge(www); challenge != nil {
		return c.sendDigest(method, rawURL, body, contentType, challenge)
	}

	// No digest challenge revealed; try Basic.
	status, header, payload, err = c.doOnce(method, rawURL, body, contentType,
		basicAuthorization(c.device.Username, c.device.Password))
	if err != nil {
		return nil, err
	}
	if successStatus(status) {
		return payload, nil
	}
	if status == http.StatusUnauthorized {
		www = header.Get("WWW-Authenticate")
		if challenge := parseDigestChallenge(www); challenge != nil {
			return c.sendDigest(method, rawURL, body, contentType, challenge)
		}
		return nil, NewAuthError(fmt.Sprintf("Unauthorized (no digest challenge). WWW-Authenticate: %s", www))
	}
	return nil, responseError(status, payload)
}

// sendDigest retries a request once with a Digest authorization built for the
// given challenge.
func (c *Client) sendDigest(method, rawURL string, body []byte, contentType string, challenge *digestChallenge) ([]byte, error) {
	authorization, err := c.buildDigestAuthorization(method, rawURL, challenge)
	if err != nil {
		return nil, NewAuthError(err.Error())
	}
	status, _, payload, err := c.doOnce(method, rawURL, body, contentType, authorization)
	if err != nil {
		return nil, err
	}
	if successStatus(status) {
		return payload, nil
	}
	return nil, responseError(status, payload)
}

// sendMultipart posts a multipart form with authentication discovered through
// a probe. The form body is built once and replayed from memory, but the
// challenge still has to come from a cheap unauthenticated GET to the same
// URL: posting the form blind would burn an upload on a guaranteed 401.
func (c *Client) sendMultipart(rawURL string, formBody []byte, contentType string) ([]byte, error) {
	probeStatus, probeHeader, _, err := c.doOnce(http.MethodGet, rawURL, nil, "", "")
	if err != nil {
		return nil, err
	}

	authorization := ""
	if challengeStatus(probeStatus) {
		if challenge := parseDigestChallenge(probeHeader.Get("WWW-Authenticate")); challenge != nil {
			authorization, err = c.buildDigestAuthorization(http.MethodPost, rawURL, challenge)
			if err != nil {
				return nil, NewAuthError(err.Error())
			}
		}
	}
	if authorization == "" {
		authorization = basicAuthorization(c.device.Username, c.device.Password)
	}

	status, _, payload, err := c.doOnce(http.MethodPost, rawURL, formBody, contentType, authorization)
	if err != nil {
		return nil, err
	}
	if successStatus(status) {
		return payload, nil
	}
	return nil, responseError(status, payload)
}
