package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/config"
	"github.com/schoolpass/registrator/internal/deviceconfig"
	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/store"
	"github.com/schoolpass/registrator/internal/ui"
)

// Device command flags
var (
	deviceHost       string
	devicePort       int
	deviceUsername   string
	devicePassword   string
	deviceBackendID  string
	deviceHardwareID string
	configPayload    string
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage paired terminal credentials",
	Long: `Manage the local store of paired terminal credentials.

Each paired terminal is stored with its address and login, stamped with a
30-day credential validity window. Expired entries must be re-paired before
any command will talk to the terminal again.`,
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.AddCommand(devicesAddCmd)
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesRemoveCmd)
	devicesCmd.AddCommand(devicesTestCmd)
	devicesCmd.AddCommand(devicesProbeCmd)
	devicesCmd.AddCommand(devicesCapabilitiesCmd)
	devicesCmd.AddCommand(devicesShowConfigCmd)
	devicesCmd.AddCommand(devicesSetConfigCmd)
}

var devicesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Pair a terminal and store its credentials",
	Long: `Pair a terminal by storing its address and login.

The stored credentials get a 30-day validity window. When --backend-id
matches an already-paired terminal the existing entry is updated in place
and its window restarts. The password is prompted for when not given.`,
	Example: `  # Pair a terminal, prompting for the password
  registrator devices add --host 192.168.4.16 --username admin

  # Pair and link to a backend device entity
  registrator devices add --host 192.168.4.16 --backend-id bk-12 --password s3cret`,
	RunE: runDevicesAdd,
}

func init() {
	devicesAddCmd.Flags().StringVar(&deviceHost, "host", "", "Terminal IP address or hostname")
	devicesAddCmd.Flags().IntVar(&devicePort, "port", 80, "Terminal HTTP port")
	devicesAddCmd.Flags().StringVar(&deviceUsername, "username", "", "Terminal login username")
	devicesAddCmd.Flags().StringVar(&devicePassword, "password", "", "Terminal login password (prompted when omitted)")
	devicesAddCmd.Flags().StringVar(&deviceBackendID, "backend-id", "", "Backend device entity to link to")
	devicesAddCmd.Flags().StringVar(&deviceHardwareID, "device-id", "", "Hardware id the terminal reports (learned automatically when omitted)")
	_ = devicesAddCmd.MarkFlagRequired("host")
}

func runDevicesAdd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	username := strings.TrimSpace(deviceUsername)
	if username == "" {
		settings, err := config.Load()
		if err == nil && settings.Preferences != nil {
			username = settings.Preferences.DefaultUsername
		}
	}

	password := devicePassword
	if password == "" {
		var err error
		password, err = ui.PromptPassword("Terminal password")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	st, err := store.Open()
	if err != nil {
		return err
	}
	devices := st.Load()

	backendID := strings.TrimSpace(deviceBackendID)
	now := time.Now()

	if backendID != "" {
		if index, ok := findDevice(devices, backendID); ok && devices[index].BackendID == backendID {
			devices[index].Host = strings.TrimSpace(deviceHost)
			devices[index].Port = devicePort
			devices[index].Username = username
			devices[index].Password = password
			devices[index].DeviceID = strings.TrimSpace(deviceHardwareID)
			devices[index].TouchCredentials(now)
			if err := st.Save(devices); err != nil {
				return err
			}
			fmt.Printf("Updated device %s (%s)\n", devices[index].ID, devices[index].Label())
			return nil
		}
	}

	if len(devices) >= store.MaxDevices() {
		return fmt.Errorf("Maximum %d devices allowed", store.MaxDevices())
	}

	device := store.Device{
		ID:        uuid.NewString(),
		BackendID: backendID,
		Host:      strings.TrimSpace(deviceHost),
		Port:      devicePort,
		Username:  username,
		Password:  password,
		DeviceID:  strings.TrimSpace(deviceHardwareID),
	}
	device.TouchCredentials(now)

	devices = append(devices, device)
	if err := st.Save(devices); err != nil {
		return err
	}

	fmt.Printf("Paired device %s (%s)\n", device.ID, device.Label())
	fmt.Printf("Credentials valid until %s\n", device.CredentialsExpiresAt)
	return nil
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List paired terminals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		st, err := store.Open()
		if err != nil {
			return err
		}
		devices := st.Load()
		if len(devices) == 0 {
			fmt.Println("No devices paired.")
			fmt.Println("\nUse 'registrator devices add --host <ip>' to pair a terminal.")
			return nil
		}

		fmt.Printf("%d paired device(s):\n\n", len(devices))
		for i, device := range devices {
			fmt.Printf("%d. %s\n", i+1, device.Label())
			fmt.Printf("   ID:        %s\n", device.ID)
			if device.BackendID != "" {
				fmt.Printf("   Backend:   %s\n", device.BackendID)
			}
			fmt.Printf("   Address:   %s:%d\n", device.Host, device.Port)
			fmt.Printf("   Username:  %s\n", device.Username)
			if device.DeviceID != "" {
				fmt.Printf("   Hardware:  %s\n", device.DeviceID)
			}
			if device.CredentialsExpiresAt != "" {
				status := device.CredentialsExpiresAt
				if device.CredentialsExpired() {
					status += "  (EXPIRED - re-pair required)"
				}
				fmt.Printf("   Expires:   %s\n", status)
			}
			fmt.Println()
		}
		return nil
	},
}

var devicesRemoveCmd = &cobra.Command{
	Use:   "remove <device>",
	Short: "Remove a paired terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		st, devices, index, err := requireDevice(args[0])
		if err != nil {
			return err
		}
		removed := devices[index]
		devices = append(devices[:index], devices[index+1:]...)
		if err := st.Save(devices); err != nil {
			return err
		}
		fmt.Printf("Removed device %s (%s)\n", removed.ID, removed.Label())
		return nil
	},
}

var devicesTestCmd = &cobra.Command{
	Use:   "test <device>",
	Short: "Test the connection to a paired terminal",
	Long: `Test the connection to a paired terminal using its stored credentials.

A successful test learns the hardware id the terminal reports about itself
and persists it for provisioning lookups.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		st, devices, index, err := requireDevice(args[0])
		if err != nil {
			return err
		}
		device := devices[index]
		if device.CredentialsExpired() {
			return fmt.Errorf("Device credentials have expired")
		}

		result := isapi.NewClient(device).TestConnection()
		if result.OK {
			fmt.Printf("✓ Connected to %s\n", device.Label())
			if result.DeviceID != "" {
				fmt.Printf("  Hardware id: %s\n", result.DeviceID)
				if devices[index].DeviceID != result.DeviceID {
					devices[index].DeviceID = result.DeviceID
					_ = st.Save(devices)
				}
			}
			return nil
		}

		fmt.Printf("✗ Connection failed: %s\n", result.Message)
		return fmt.Errorf("connection test failed")
	},
}

var devicesProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test credentials against a terminal without pairing",
	Long: `Test a login against a terminal without storing anything.

Useful for verifying the address and password before pairing.`,
	Example: `  registrator devices probe --host 192.168.4.16 --username admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		password := devicePassword
		if password == "" {
			var err error
			password, err = ui.PromptPassword("Terminal password")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
		}

		device := store.Device{
			ID:       uuid.NewString(),
			Host:     strings.TrimSpace(deviceHost),
			Port:     devicePort,
			Username: strings.TrimSpace(deviceUsername),
			Password: password,
		}
		device.TouchCredentials(time.Now())

		result := isapi.NewClient(device).TestConnection()
		if !result.OK {
			fmt.Printf("✗ Connection failed: %s\n", result.Message)
			return fmt.Errorf("connection test failed")
		}
		fmt.Printf("✓ Connected to %s:%d\n", device.Host, device.Port)
		if result.DeviceID != "" {
			fmt.Printf("  Hardware id: %s\n", result.DeviceID)
		}
		return nil
	},
}

func init() {
	devicesProbeCmd.Flags().StringVar(&deviceHost, "host", "", "Terminal IP address or hostname")
	devicesProbeCmd.Flags().IntVar(&devicePort, "port", 80, "Terminal HTTP port")
	devicesProbeCmd.Flags().StringVar(&deviceUsername, "username", "admin", "Terminal login username")
	devicesProbeCmd.Flags().StringVar(&devicePassword, "password", "", "Terminal login password (prompted when omitted)")
	_ = devicesProbeCmd.MarkFlagRequired("host")
}

var devicesCapabilitiesCmd = &cobra.Command{
	Use:   "capabilities <device>",
	Short: "Probe what a terminal's firmware supports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		_, devices, index, err := requireDevice(args[0])
		if err != nil {
			return err
		}
		caps, err := deviceconfig.Probe(devices[index])
		if err != nil {
			return err
		}
		return printJSON(caps)
	},
}

var devicesShowConfigCmd = &cobra.Command{
	Use:   "show-config <device>",
	Short: "Show a terminal's clock, NTP, and network settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		_, devices, index, err := requireDevice(args[0])
		if err != nil {
			return err
		}
		configuration, err := deviceconfig.Get(devices[index])
		if err != nil {
			return err
		}
		return printJSON(configuration)
	},
}

var devicesSetConfigCmd = &cobra.Command{
	Use:   "set-config <device> <type>",
	Short: "Update one terminal configuration document",
	Long: `Update one of the terminal's configuration documents.

Supported types: time, ntpServers, networkInterfaces. The payload is a JSON
object read from --payload (inline) or --payload-file. The document as it
was before the write is printed so the previous value can be restored.`,
	Example: `  # Switch the terminal clock to NTP
  registrator devices set-config dev-1 time --payload '{"Time":{"timeMode":"NTP"}}'

  # Update NTP servers from a file
  registrator devices set-config dev-1 ntpServers --payload-file ntp.json`,
	Args: cobra.ExactArgs(2),
	RunE: runDevicesSetConfig,
}

var configPayloadFile string

func init() {
	devicesSetConfigCmd.Flags().StringVar(&configPayload, "payload", "", "Inline JSON object payload")
	devicesSetConfigCmd.Flags().StringVar(&configPayloadFile, "payload-file", "", "Path to a JSON object payload")
}

func runDevicesSetConfig(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	configType, err := deviceconfig.ParseConfigType(args[1])
	if err != nil {
		return err
	}

	raw := configPayload
	if raw == "" && configPayloadFile != "" {
		data, err := os.ReadFile(configPayloadFile)
		if err != nil {
			return fmt.Errorf("read payload file: %w", err)
		}
		raw = string(data)
	}
	if raw == "" {
		return fmt.Errorf("payload must be JSON object (use --payload or --payload-file)")
	}

	payload, err := decodeJSONObject(raw)
	if err != nil {
		return err
	}

	_, devices, index, err := requireDevice(args[0])
	if err != nil {
		return err
	}

	result, err := deviceconfig.Update(devices[index], configType, payload)
	if err != nil {
		return err
	}
	return printJSON(result)
}
