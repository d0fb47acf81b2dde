package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/config"
)

// Config command flags
var (
	setBackendURL   string
	setBackendToken string
	setSchoolID     string
	setAuthHeader   string
	setUsername     string
	setDiscoverWait int
	clearBackend    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage saved backend and preference settings",
	Long: `Manage the saved configuration file.

The file holds the school backend connection and local preferences. Terminal
credentials are NOT stored here; they live in the device store managed by
'registrator devices'.`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		settings, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Println("Backend:")
		if settings.Backend == nil || !settings.BackendConfigured() {
			fmt.Println("  not configured")
		} else {
			fmt.Printf("  URL:    %s\n", settings.Backend.URL)
			fmt.Printf("  Token:  %s\n", maskToken(settings.Backend.Token))
			fmt.Printf("  School: %s\n", settings.Backend.SchoolID)
			if settings.Backend.AuthHeader != "" {
				fmt.Printf("  Header: %s\n", settings.Backend.AuthHeader)
			}
		}

		if settings.Preferences != nil {
			fmt.Println("\nPreferences:")
			fmt.Printf("  Default username: %s\n", settings.Preferences.DefaultUsername)
			fmt.Printf("  Auto discover:    %v\n", settings.Preferences.AutoDiscover)
			fmt.Printf("  Discover timeout: %ds\n", settings.Preferences.DiscoverTimeout)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update saved configuration values",
	Example: `  # Point the tool at the school backend
  registrator config set --backend-url https://api.school.example \
    --backend-token tok123 --school-id sch-1

  # Change the default terminal username
  registrator config set --default-username operator`,
	RunE: runConfigSet,
}

func init() {
	configSetCmd.Flags().StringVar(&setBackendURL, "backend-url", "", "Backend base URL")
	configSetCmd.Flags().StringVar(&setBackendToken, "backend-token", "", "Backend API token")
	configSetCmd.Flags().StringVar(&setSchoolID, "school-id", "", "School identifier")
	configSetCmd.Flags().StringVar(&setAuthHeader, "auth-header", "", "Custom auth header name")
	configSetCmd.Flags().StringVar(&setUsername, "default-username", "", "Default terminal username for pairing")
	configSetCmd.Flags().IntVar(&setDiscoverWait, "discover-timeout", 0, "Discovery timeout in seconds")
	configSetCmd.Flags().BoolVar(&clearBackend, "clear-backend", false, "Forget the saved backend connection")
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	settings, err := config.Load()
	if err != nil {
		return err
	}

	if clearBackend {
		settings.Backend = &config.Backend{}
	}
	if setBackendURL != "" {
		settings.Backend.URL = strings.TrimSpace(setBackendURL)
	}
	if setBackendToken != "" {
		settings.Backend.Token = setBackendToken
	}
	if setSchoolID != "" {
		settings.Backend.SchoolID = strings.TrimSpace(setSchoolID)
	}
	if setAuthHeader != "" {
		settings.Backend.AuthHeader = strings.TrimSpace(setAuthHeader)
	}
	if setUsername != "" {
		settings.Preferences.DefaultUsername = strings.TrimSpace(setUsername)
	}
	if setDiscoverWait > 0 {
		settings.Preferences.DiscoverTimeout = setDiscoverWait
	}

	if err := settings.Save(); err != nil {
		return err
	}
	fmt.Println("✓ Configuration saved")
	return nil
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

// maskToken hides all but the first characters of a secret for display.
func maskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + strings.Repeat("*", len(token)-4)
}
