package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/clone"
	"github.com/schoolpass/registrator/internal/store"
	"github.com/schoolpass/registrator/internal/ui"
)

var cloneLimit int

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Copy user records onto a terminal in bulk",
}

func init() {
	rootCmd.AddCommand(cloneCmd)

	cloneCmd.AddCommand(cloneDeviceCmd)
	cloneCmd.AddCommand(cloneStudentsCmd)

	cloneDeviceCmd.Flags().IntVar(&cloneLimit, "limit", 0, "Maximum records to copy (0 = default cap)")
	cloneStudentsCmd.Flags().IntVar(&cloneLimit, "limit", 0, "Maximum students to copy (0 = default cap)")
}

var cloneDeviceCmd = &cobra.Command{
	Use:   "device <source> <target>",
	Short: "Copy user records from one terminal to another",
	Long: `Copy every user record and face image from one paired terminal to
another.

Records already present on the target get their face re-uploaded without a
duplicate create; records with incomplete data are skipped. The copy is
forgiving: individual failures are collected and reported, never fatal.`,
	Example: `  # Mirror a terminal onto a replacement unit
  registrator clone device dev-old dev-new

  # Copy only the first 500 records
  registrator clone device dev-old dev-new --limit 500`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		st, err := store.Open()
		if err != nil {
			return err
		}
		devices := st.Load()

		sourceIndex, ok := findDevice(devices, args[0])
		if !ok {
			return fmt.Errorf("Device not found: %s", args[0])
		}
		targetIndex, ok := findDevice(devices, args[1])
		if !ok {
			return fmt.Errorf("Device not found: %s", args[1])
		}

		summary, err := clone.DeviceToDevice(devices[sourceIndex], devices[targetIndex], cloneLimit)
		if err != nil {
			return err
		}
		printCloneSummary(summary)
		return nil
	},
}

var cloneStudentsCmd = &cobra.Command{
	Use:   "students <device>",
	Short: "Copy the backend student roster onto a terminal",
	Long: `Copy the school backend's student roster onto a paired terminal.

Students are read page by page from the backend; each one is created on the
terminal with its photo. Students without a device number or photo are
skipped. The device argument is the backend device id the terminal is
linked to.`,
	Example: `  # Load the roster onto a freshly paired terminal
  registrator clone students bk-12

  # Limit to the first 200 students
  registrator clone students bk-12 --limit 200`,
	Args: cobra.ExactArgs(1),
	RunE: runCloneStudents,
}

func runCloneStudents(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	api, school, err := backendClient()
	if err != nil {
		return err
	}
	st, err := store.Open()
	if err != nil {
		return err
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   "Roster Clone",
		Command: "registrator clone students",
		Params: map[string]string{
			"Backend": api.BaseURL(),
			"Device":  args[0],
		},
		TotalSteps: 2,
		StepNames:  []string{"Resolve backend roster", "Copy records to terminal"},
	})

	var summary clone.Summary
	_, err = runner.RunWithResult(cmd.Context(), func(onStep ui.StepCallback) (map[string]string, error) {
		onStep(1, "", ui.StepRunning, "")
		onStep(1, "", ui.StepComplete, "")

		onStep(2, "", ui.StepRunning, "")
		var cloneErr error
		summary, cloneErr = clone.StudentsToDevice(st, api, school, args[0], cloneLimit)
		if cloneErr != nil {
			onStep(2, "", ui.StepFailed, "")
			return nil, cloneErr
		}
		onStep(2, "", ui.StepComplete, fmt.Sprintf("%d copied", summary.Success))

		return map[string]string{
			"Processed": fmt.Sprintf("%d", summary.Processed),
			"Success":   fmt.Sprintf("%d", summary.Success),
			"Skipped":   fmt.Sprintf("%d", summary.Skipped),
			"Failed":    fmt.Sprintf("%d", summary.Failed),
		}, nil
	})
	if err != nil {
		return err
	}

	if len(summary.Errors) > 0 {
		fmt.Println("\nFailures:")
		for _, item := range summary.Errors {
			id := item.EmployeeNo
			if id == "" {
				id = item.StudentID
			}
			fmt.Printf("  - %s (%s): %s\n", item.Name, id, item.Reason)
		}
	}
	return nil
}

func printCloneSummary(summary clone.Summary) {
	if summary.Source != "" {
		fmt.Printf("Clone %s → %s\n", summary.Source, summary.Target)
	} else {
		fmt.Printf("Clone → %s\n", summary.Target)
	}
	fmt.Printf("  Processed: %d\n", summary.Processed)
	fmt.Printf("  Success:   %d\n", summary.Success)
	fmt.Printf("  Skipped:   %d\n", summary.Skipped)
	fmt.Printf("  Failed:    %d\n", summary.Failed)

	if len(summary.Errors) > 0 {
		fmt.Println("\nFailures:")
		for _, item := range summary.Errors {
			id := item.EmployeeNo
			if id == "" {
				id = item.StudentID
			}
			fmt.Printf("  - %s (%s): %s\n", item.Name, id, item.Reason)
		}
	}
}
