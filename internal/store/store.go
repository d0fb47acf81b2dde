package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const (
	appName     = "registrator"
	devicesFile = "devices.json"

	// DefaultMaxDevices caps how many credential records the store accepts
	// when no override is configured.
	DefaultMaxDevices = 10

	// MaxDevicesEnvVar overrides the device cap.
	MaxDevicesEnvVar = "DEVICE_CREDENTIALS_LIMIT"
)

// Store reads and writes the local device credential list. The list is a
// single JSON file rewritten whole on every save - there is no incremental
// persistence and no file locking (single-writer desktop tool assumption).
type Store struct {
	path string

	// mutex serializes file operations within one process
	mutex sync.Mutex
}

// GetDataDir returns the OS-appropriate per-user data directory for the
// application:
//   - Linux: $XDG_DATA_HOME/registrator or $HOME/.local/share/registrator
//   - macOS: $HOME/Library/Application Support/registrator
//   - Windows: %LOCALAPPDATA%\registrator
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support", appName)

	default:
		xdgDataHome := os.Getenv("XDG_DATA_HOME")
		if xdgDataHome != "" {
			baseDir = filepath.Join(xdgDataHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".local", "share", appName)
		}
	}

	return baseDir, nil
}

// DefaultPath returns the full path of the device credential file.
func DefaultPath() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, devicesFile), nil
}

// New creates a store backed by the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Open creates a store at the platform-standard location, creating the data
// directory if needed.
func Open() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return New(path), nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the device list, deduplicating records by the precedence key
// (backendId, then deviceId, then host:port:username, case-insensitively).
// When two records collide the later one wins. If deduplication or formatting
// changed the on-disk shape, the canonical form is written back immediately.
func (s *Store) Load() []Device {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var devices []Device
	if err := json.Unmarshal(content, &devices); err != nil {
		return nil
	}

	originalLen := len(devices)
	deduped := dedupeDevices(devices)

	needsCanonicalSave := len(deduped) != originalLen
	if !needsCanonicalSave {
		if canonical, err := json.MarshalIndent(deduped, "", "  "); err == nil {
			needsCanonicalSave = strings.TrimSpace(string(canonical)) != strings.TrimSpace(string(content))
		}
	}
	if needsCanonicalSave {
		_ = s.save(deduped)
	}

	return deduped
}

// Save rewrites the whole device list atomically (single write call).
func (s *Store) Save(devices []Device) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.save(devices)
}

func (s *Store) save(devices []Device) error {
	if devices == nil {
		devices = []Device{}
	}
	content, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode device list: %w", err)
	}
	if err := os.WriteFile(s.path, content, 0600); err != nil {
		return fmt.Errorf("failed to write device list: %w", err)
	}
	return nil
}

// GetByID returns the stored device with the given local id.
func (s *Store) GetByID(id string) (Device, bool) {
	for _, d := range s.Load() {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// MaxDevices returns the configured device cap.
func MaxDevices() int {
	raw := os.Getenv(MaxDevicesEnvVar)
	if raw == "" {
		return DefaultMaxDevices
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultMaxDevices
	}
	return n
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// dedupeKey builds the identity key a device record is deduplicated under.
// Precedence: backend link, then hardware id, then network endpoint.
func dedupeKey(d Device) string {
	if strings.TrimSpace(d.BackendID) != "" {
		return "backend:" + normalize(d.BackendID)
	}
	if strings.TrimSpace(d.DeviceID) != "" {
		return "device:" + normalize(d.DeviceID)
	}
	return fmt.Sprintf("endpoint:%s:%d:%s", normalize(d.Host), d.Port, normalize(d.Username))
}

func dedupeDevices(devices []Device) []Device {
	deduped := make([]Device, 0, len(devices))
	indexByKey := make(map[string]int)

	for _, device := range devices {
		key := dedupeKey(device)
		if index, ok := indexByKey[key]; ok {
			// Lossy merge: the later duplicate wins wholesale
			deduped[index] = device
		} else {
			indexByKey[key] = len(deduped)
			deduped = append(deduped, device)
		}
	}

	return deduped
}
