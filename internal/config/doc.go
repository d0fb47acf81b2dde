// Package config provides user configuration management for the registrator.
//
// This package manages a YAML-based settings file holding the backend
// connection, application preferences and discovery defaults. Device
// credentials are NOT kept here - they live in the device credential store.
//
// # Configuration File Location
//
// The settings file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/registrator/config.yaml or $HOME/.config/registrator/config.yaml
//   - macOS: $HOME/.config/registrator/config.yaml
//   - Windows: %LOCALAPPDATA%\registrator\config.yaml
//
// # Thread Safety
//
// The global settings use sync.Once for safe initialization across
// goroutines. File operations are protected by a mutex to ensure atomic
// writes.
package config
