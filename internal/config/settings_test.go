package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateConfig points every platform's config base at a temp directory.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("LOCALAPPDATA", dir)
	return dir
}

func TestNewSettingsDefaults(t *testing.T) {
	settings := NewSettings()
	if settings.Version != 1 {
		t.Errorf("version = %d, want 1", settings.Version)
	}
	if settings.Preferences.DefaultUsername != "admin" {
		t.Errorf("defaultUsername = %s", settings.Preferences.DefaultUsername)
	}
	if !settings.Preferences.AutoDiscover || settings.Preferences.DiscoverTimeout != 10 {
		t.Errorf("preferences = %+v", settings.Preferences)
	}
	if settings.BackendConfigured() {
		t.Error("fresh settings should not report a configured backend")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	isolateConfig(t)

	settings := NewSettings()
	settings.Backend.URL = "https://backend.test"
	settings.Backend.Token = "tok123"
	settings.Backend.SchoolID = "sch-1"
	settings.Preferences.DiscoverTimeout = 30

	if err := settings.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := loadFromDisk()
	if err != nil {
		t.Fatalf("loadFromDisk() error = %v", err)
	}
	if loaded.Backend.URL != "https://backend.test" || loaded.Backend.SchoolID != "sch-1" {
		t.Errorf("backend = %+v", loaded.Backend)
	}
	if loaded.Preferences.DiscoverTimeout != 30 {
		t.Errorf("discoverTimeout = %d", loaded.Preferences.DiscoverTimeout)
	}
	if !loaded.BackendConfigured() {
		t.Error("BackendConfigured() = false after setting a URL")
	}
}

func TestSettingsFileCarriesHeader(t *testing.T) {
	isolateConfig(t)

	if err := NewSettings().Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.HasPrefix(string(content), "# Registrator Configuration File") {
		t.Errorf("config file lacks header comment:\n%s", content)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	isolateConfig(t)

	settings, err := loadFromDisk()
	if err != nil {
		t.Fatalf("loadFromDisk() error = %v", err)
	}
	if settings.Preferences == nil || settings.Preferences.DefaultUsername != "admin" {
		t.Errorf("settings = %+v, want defaults", settings)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	isolateConfig(t)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, configFile), []byte("version: 7\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadFromDisk(); err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Errorf("error = %v", err)
	}
}
