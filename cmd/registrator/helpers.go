package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/schoolpass/registrator/internal/backend"
	"github.com/schoolpass/registrator/internal/config"
	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/store"
)

// Backend override flags, shared by every command that talks to the backend.
var (
	backendURL     string
	backendToken   string
	backendAuthHdr string
	schoolID       string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "", "Backend base URL (overrides saved config)")
	rootCmd.PersistentFlags().StringVar(&backendToken, "backend-token", "", "Backend API token (overrides saved config)")
	rootCmd.PersistentFlags().StringVar(&backendAuthHdr, "auth-header", "", "Custom auth header name (overrides saved config)")
	rootCmd.PersistentFlags().StringVar(&schoolID, "school", "", "School identifier (overrides saved config)")
}

// backendSettings resolves the backend connection values, flags first, then
// the saved configuration file.
func backendSettings() (url, token, authHeader, school string) {
	url, token, authHeader, school = backendURL, backendToken, backendAuthHdr, schoolID

	settings, err := config.Load()
	if err != nil || settings.Backend == nil {
		return url, token, authHeader, school
	}
	if url == "" {
		url = settings.Backend.URL
	}
	if token == "" {
		token = settings.Backend.Token
	}
	if authHeader == "" {
		authHeader = settings.Backend.AuthHeader
	}
	if school == "" {
		school = settings.Backend.SchoolID
	}
	return url, token, authHeader, school
}

// backendClient builds a backend client from the resolved settings.
func backendClient() (*backend.Client, string, error) {
	url, token, authHeader, school := backendSettings()
	client, err := backend.NewClient(backend.Config{
		BaseURL:    url,
		Token:      token,
		AuthHeader: authHeader,
	})
	if err != nil {
		return nil, "", fmt.Errorf("backend is not configured: %w (run 'registrator config set --backend-url ...')", err)
	}
	return client, school, nil
}

// findDevice locates a stored device by record id, backend id, or the
// hardware id the terminal reported.
func findDevice(devices []store.Device, key string) (int, bool) {
	key = strings.TrimSpace(key)
	for i := range devices {
		if devices[i].ID == key {
			return i, true
		}
		if devices[i].BackendID != "" && devices[i].BackendID == key {
			return i, true
		}
		if devices[i].DeviceID != "" && devices[i].DeviceID == key {
			return i, true
		}
	}
	return -1, false
}

// requireDevice opens the store and resolves one device argument.
func requireDevice(key string) (*store.Store, []store.Device, int, error) {
	st, err := store.Open()
	if err != nil {
		return nil, nil, -1, err
	}
	devices := st.Load()
	index, ok := findDevice(devices, key)
	if !ok {
		return nil, nil, -1, fmt.Errorf("Device not found")
	}
	return st, devices, index, nil
}

// readFaceImage loads an image file and returns it base64-encoded the way
// terminals and the backend expect.
func readFaceImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read face image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// actionText picks the most useful message out of a terminal action result.
func actionText(result isapi.ActionResult) string {
	if result.ErrorMsg != "" {
		return result.ErrorMsg
	}
	if result.StatusString != "" {
		return result.StatusString
	}
	if result.OK {
		return "OK"
	}
	return "failed"
}

// decodeJSONObject parses a JSON object, rejecting other value kinds.
func decodeJSONObject(raw string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("payload must be JSON object: %w", err)
	}
	return payload, nil
}

// printJSON renders a value as indented JSON on stdout.
func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
