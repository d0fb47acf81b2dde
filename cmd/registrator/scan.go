package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/discovery"
)

var scanTimeout int

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for terminals on the network",
	Long: `Scan for access-control terminals using mDNS/DNS-SD discovery.

This command listens for mDNS broadcasts and displays every terminal-looking
host with its model, IP address, and metadata.`,
	Example: `  # Scan for 10 seconds (default)
  registrator scan

  # Quick 3-second scan
  registrator scan --timeout 3

  # Longer scan for networks with many terminals
  registrator scan --timeout 30`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	fmt.Printf("Scanning for terminals (timeout: %ds)...\n\n", scanTimeout)

	terminals, err := discovery.ScanForTerminals(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(terminals) == 0 {
		fmt.Println("No terminals found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the terminal is powered on and connected to the network")
		fmt.Println("  - Check that your computer is on the same network segment")
		fmt.Println("  - Verify the firewall allows mDNS (UDP port 5353)")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use 'registrator devices add --host <ip>' if discovery fails")
		return nil
	}

	fmt.Printf("Found %d terminal(s):\n\n", len(terminals))

	for i, terminal := range terminals {
		fmt.Printf("%d. %s\n", i+1, terminal.Hostname)
		fmt.Printf("   Model:   %s\n", terminal.Model)
		fmt.Printf("   IP:      %s:%d\n", terminal.IP, terminal.Port)
		if len(terminal.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", terminal.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'registrator devices add --host <ip>' to pair a terminal")

	return nil
}
