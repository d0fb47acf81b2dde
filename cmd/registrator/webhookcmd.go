package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/webhook"
)

// Webhook command flags
var (
	webhookDirection string
	webhookURL       string
	webhookJSON      bool
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Read and rewrite terminal event webhook URLs",
	Long: `Read and rewrite the HTTP host notification (webhook) configuration
terminals use to push entry/exit events.

Terminals answer this configuration as JSON or XML depending on firmware;
both are handled. The direction selects which listener the terminal is
wired to (in = entry, out = exit).`,
}

func init() {
	rootCmd.AddCommand(webhookCmd)

	webhookCmd.AddCommand(webhookReadCmd)
	webhookCmd.AddCommand(webhookSyncCmd)

	webhookCmd.PersistentFlags().StringVar(&webhookDirection, "direction", "in", "Event direction (in or out)")
	webhookReadCmd.Flags().BoolVar(&webhookJSON, "json", false, "Print the raw result as JSON")
}

// webhookClient resolves the device argument, refusing expired credentials.
func webhookClient(key string) (*isapi.Client, error) {
	_, devices, index, err := requireDevice(key)
	if err != nil {
		return nil, err
	}
	if devices[index].CredentialsExpired() {
		return nil, fmt.Errorf("Device credentials have expired")
	}
	return isapi.NewClient(devices[index]), nil
}

var webhookReadCmd = &cobra.Command{
	Use:   "read <device>",
	Short: "Show the webhook URLs configured on a terminal",
	Example: `  registrator webhook read dev-1
  registrator webhook read dev-1 --direction out --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		client, err := webhookClient(args[0])
		if err != nil {
			return err
		}

		result, err := webhook.ReadConfig(client, webhookDirection)
		if err != nil {
			return err
		}
		if webhookJSON {
			return printJSON(result)
		}

		fmt.Printf("Webhook configuration (%s, %s):\n", result.Direction, result.Format)
		fmt.Printf("  Path: %s\n", result.Path)
		if result.PrimaryURL != "" {
			fmt.Printf("  Primary URL: %s\n", result.PrimaryURL)
		}
		if len(result.URLs) == 0 {
			fmt.Println("  No URLs configured")
		}
		for _, url := range result.URLs {
			fmt.Printf("  - %s\n", url)
		}
		return nil
	},
}

var webhookSyncCmd = &cobra.Command{
	Use:   "sync <device>",
	Short: "Point a terminal's webhook at a new URL",
	Long: `Rewrite every URL field in the terminal's webhook configuration to the
given target and verify the write by reading the configuration back.`,
	Example: `  registrator webhook sync dev-1 --url http://10.0.0.2:8080/events
  registrator webhook sync dev-1 --direction out --url http://10.0.0.2:8080/exit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if webhookURL == "" {
			return fmt.Errorf("--url is required")
		}

		client, err := webhookClient(args[0])
		if err != nil {
			return err
		}

		result, err := webhook.Sync(client, webhookDirection, webhookURL)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Webhook updated (%s, %s)\n", result.Direction, result.Format)
		fmt.Printf("  Path: %s\n", result.Path)
		fmt.Printf("  Replaced fields: %d\n", result.ReplacedFields)
		if len(result.BeforeURLs) > 0 {
			fmt.Printf("  Before: %v\n", result.BeforeURLs)
		}
		fmt.Printf("  After:  %v\n", result.AfterURLs)
		return nil
	},
}

func init() {
	webhookSyncCmd.Flags().StringVar(&webhookURL, "url", "", "Target webhook URL")
}
