package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/register"
	"github.com/schoolpass/registrator/internal/store"
)

var retryTargets []string

var provisioningCmd = &cobra.Command{
	Use:   "provisioning",
	Short: "Inspect and retry backend provisioning records",
}

func init() {
	rootCmd.AddCommand(provisioningCmd)

	provisioningCmd.AddCommand(provisioningGetCmd)
	provisioningCmd.AddCommand(provisioningRetryCmd)
}

var provisioningGetCmd = &cobra.Command{
	Use:   "get <provisioningId>",
	Short: "Show a provisioning record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		api, _, err := backendClient()
		if err != nil {
			return err
		}
		record, err := api.GetProvisioning(args[0])
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

var provisioningRetryCmd = &cobra.Command{
	Use:   "retry <provisioningId>",
	Short: "Retry the failed device links of a provisioning record",
	Long: `Ask the backend to reset the failed device links of a provisioning
record, then re-check local connectivity for each target so the record
reflects what the terminals currently answer.

Without --target the backend decides which links to retry; passing --target
restricts the retry to those backend device ids.`,
	Example: `  # Retry everything the backend considers failed
  registrator provisioning retry prov-42

  # Retry one specific device link
  registrator provisioning retry prov-42 --target bk-12`,
	Args: cobra.ExactArgs(1),
	RunE: runProvisioningRetry,
}

func init() {
	provisioningRetryCmd.Flags().StringArrayVar(&retryTargets, "target", nil, "Backend device id to retry (repeatable)")
}

func runProvisioningRetry(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	api, _, err := backendClient()
	if err != nil {
		return err
	}
	st, err := store.Open()
	if err != nil {
		return err
	}

	summary, err := register.Retry(st, api, args[0], retryTargets)
	if err != nil {
		return err
	}

	fmt.Printf("Retried %d device link(s)\n", len(summary.TargetDeviceIDs))
	fmt.Printf("Connectivity: %d checked, %d failed, %d without local credentials\n\n",
		summary.ConnectionCheck.Checked,
		summary.ConnectionCheck.Failed,
		summary.ConnectionCheck.MissingCredentials)

	for _, device := range summary.PerDeviceResults {
		name := device.DeviceName
		if name == "" {
			name = device.BackendDeviceID
		}
		fmt.Printf("  %-30s %s\n", name, device.Status)
		if device.LastError != "" {
			fmt.Printf("      %s\n", device.LastError)
		}
	}
	return nil
}
