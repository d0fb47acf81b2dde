package deviceconfig

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/logging"
	"github.com/schoolpass/registrator/internal/store"
)

// ConfigType identifies one updatable configuration document.
type ConfigType string

const (
	ConfigTime              ConfigType = "time"
	ConfigNTPServers        ConfigType = "ntpServers"
	ConfigNetworkInterfaces ConfigType = "networkInterfaces"
)

// configPaths maps each configuration document to its endpoint.
var configPaths = map[ConfigType]string{
	ConfigTime:              "ISAPI/System/time?format=json",
	ConfigNTPServers:        "ISAPI/System/Network/ntpServers?format=json",
	ConfigNetworkInterfaces: "ISAPI/System/Network/interfaces?format=json",
}

// ParseConfigType validates a user-supplied configuration type name.
func ParseConfigType(name string) (ConfigType, error) {
	ct := ConfigType(name)
	if _, ok := configPaths[ct]; !ok {
		return "", fmt.Errorf("unsupported configType")
	}
	return ct, nil
}

// Configuration is a combined read of the terminal's system settings.
// Sections that failed to read carry {"error": "..."} instead of the
// document.
type Configuration struct {
	Time              any `json:"time"`
	NTPServers        any `json:"ntpServers"`
	NetworkInterfaces any `json:"networkInterfaces"`
}

// UpdateResult reports a configuration write, with the document as it was
// before the write for manual restore.
type UpdateResult struct {
	OK         bool       `json:"ok"`
	ConfigType ConfigType `json:"configType"`
	Before     any        `json:"before"`
	After      any        `json:"after"`
}

// clientFor checks the credential window before any terminal traffic.
func clientFor(device store.Device) (*isapi.Client, error) {
	if device.CredentialsExpired() {
		return nil, fmt.Errorf("Device credentials have expired")
	}
	return isapi.NewClient(device), nil
}

// readSection fetches one configuration document, folding read errors into
// the value so a partial read still renders.
func readSection(client *isapi.Client, ct ConfigType) any {
	value, err := client.GetJSON(configPaths[ct])
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return value
}

// Probe runs the capability fingerprint against the terminal.
func Probe(device store.Device) (isapi.Capabilities, error) {
	client, err := clientFor(device)
	if err != nil {
		return isapi.Capabilities{}, err
	}
	return client.ProbeCapabilities(), nil
}

// Get reads the terminal's clock, NTP, and network interface settings.
func Get(device store.Device) (Configuration, error) {
	client, err := clientFor(device)
	if err != nil {
		return Configuration{}, err
	}
	return Configuration{
		Time:              readSection(client, ConfigTime),
		NTPServers:        readSection(client, ConfigNTPServers),
		NetworkInterfaces: readSection(client, ConfigNetworkInterfaces),
	}, nil
}

// Update writes one configuration document. The write is refused when the
// capability probe shows the firmware never answered for that document.
func Update(device store.Device, configType ConfigType, payload map[string]any) (UpdateResult, error) {
	client, err := clientFor(device)
	if err != nil {
		return UpdateResult{}, err
	}
	path, ok := configPaths[configType]
	if !ok {
		return UpdateResult{}, fmt.Errorf("unsupported configType")
	}
	if payload == nil {
		return UpdateResult{}, fmt.Errorf("payload must be JSON object")
	}

	caps := client.ProbeCapabilities()
	if !caps.Supported[string(configType)] {
		return UpdateResult{}, fmt.Errorf("%s not supported on this device", configType)
	}

	// Snapshot before write for safer rollback workflows.
	before := readSection(client, configType)

	after, err := client.PutJSON(path, payload)
	if err != nil {
		return UpdateResult{}, err
	}

	logging.GetLogger().Debug("device configuration updated",
		zap.String("device", device.Label()),
		zap.String("configType", string(configType)))

	return UpdateResult{
		OK:         true,
		ConfigType: configType,
		Before:     before,
		After:      after,
	}, nil
}
