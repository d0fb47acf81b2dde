package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/backend"
	"github.com/schoolpass/registrator/internal/register"
	"github.com/schoolpass/registrator/internal/store"
	"github.com/schoolpass/registrator/internal/ui"
)

// Register command flags
var (
	regName        string
	regFirstName   string
	regLastName    string
	regFatherName  string
	regGender      string
	regImagePath   string
	regParentPhone string
	regClassID     string
	regTargets     []string
	regDBOnly      bool
	regJSON        bool
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a student across paired terminals",
	Long: `Register a student with a face image across the paired terminals.

The student is first announced to the school backend, which resolves the
target device set and assigns the student number used on the terminals.
Devices are then provisioned one at a time; the first failure stops the walk,
rolls back every terminal that already accepted the student, and marks the
provisioning record failed.

Without --target the backend targets every active device. Passing --target
restricts provisioning to those backend device ids; --db-only creates the
backend record without touching any terminal.`,
	Example: `  # Register across all active devices
  registrator register --first-name Alice --last-name Smith --image face.jpg

  # Register onto two specific backend devices
  registrator register --name "Alice Smith" --image face.jpg \
    --target bk-12 --target bk-14

  # Create the backend record only
  registrator register --name "Alice Smith" --image face.jpg --db-only`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().StringVar(&regName, "name", "", "Full name (used when first/last name are not given)")
	registerCmd.Flags().StringVar(&regFirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&regLastName, "last-name", "", "Last name")
	registerCmd.Flags().StringVar(&regFatherName, "father-name", "", "Father's name")
	registerCmd.Flags().StringVar(&regGender, "gender", "male", "Gender (male or female)")
	registerCmd.Flags().StringVar(&regImagePath, "image", "", "Path to the face image (JPEG)")
	registerCmd.Flags().StringVar(&regParentPhone, "parent-phone", "", "Parent phone number")
	registerCmd.Flags().StringVar(&regClassID, "class", "", "Class identifier")
	registerCmd.Flags().StringArrayVar(&regTargets, "target", nil, "Backend device id to provision (repeatable)")
	registerCmd.Flags().BoolVar(&regDBOnly, "db-only", false, "Create the backend record without touching terminals")
	registerCmd.Flags().BoolVar(&regJSON, "json", false, "Print the raw result as JSON")
	_ = registerCmd.MarkFlagRequired("image")
}

func runRegister(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	faceImage, err := readFaceImage(regImagePath)
	if err != nil {
		return err
	}

	var targets backend.TargetSelection
	switch {
	case regDBOnly:
		targets = backend.ExplicitTargets(nil)
	case len(regTargets) > 0:
		targets = backend.ExplicitTargets(regTargets)
	default:
		targets = backend.AllActiveTargets()
	}

	url, token, authHeader, school := backendSettings()

	st, err := store.Open()
	if err != nil {
		return err
	}

	displayName := regName
	if regFirstName != "" || regLastName != "" {
		displayName = fmt.Sprintf("%s %s", regLastName, regFirstName)
	}
	if !regJSON {
		ui.PrintCommandHeader(
			"Student Registration",
			"registrator register",
			map[string]string{
				"Student": displayName,
				"Devices": describeTargets(targets),
			},
		)
	}

	result, err := register.Register(st, register.Options{
		Name:              regName,
		FirstName:         regFirstName,
		LastName:          regLastName,
		FatherName:        regFatherName,
		Gender:            regGender,
		FaceImageBase64:   faceImage,
		ParentPhone:       regParentPhone,
		ClassID:           regClassID,
		Targets:           targets,
		BackendURL:        url,
		BackendToken:      token,
		BackendAuthHeader: authHeader,
		SchoolID:          school,
	})

	if regJSON {
		if printErr := printJSON(result); printErr != nil {
			return printErr
		}
		return err
	}

	printDeviceResults(result.Results)

	if err != nil {
		ui.PrintFailure("Student registration failed", err, []string{
			"Check the per-device results above for the failing terminal",
			"Re-pair the device if its credentials expired",
			"Retry with: registrator provisioning retry " + result.ProvisioningID,
		})
		return err
	}

	details := map[string]string{
		"Student number": result.EmployeeNo,
	}
	if result.ProvisioningID != "" {
		details["Provisioning"] = result.ProvisioningID
	}
	ui.PrintSuccess("Student registration complete", details)
	return nil
}

func describeTargets(targets backend.TargetSelection) string {
	if !targets.Explicit {
		return "all active"
	}
	if len(targets.DeviceIDs) == 0 {
		return "backend only"
	}
	return fmt.Sprintf("%d selected", len(targets.DeviceIDs))
}

func printDeviceResults(results []register.DeviceResult) {
	if len(results) == 0 {
		return
	}
	fmt.Println("Per-device results:")
	for _, result := range results {
		marker := ui.StepMarkerComplete
		if !deviceResultOK(result) {
			marker = ui.FailureMarker
		}
		name := result.DeviceName
		if name == "" {
			name = result.DeviceID
		}
		fmt.Printf("  %s %s\n", marker, name)
		if !result.Connection.OK && result.Connection.Message != "" {
			fmt.Printf("      connection: %s\n", result.Connection.Message)
		}
		if result.UserCreate != nil && !result.UserCreate.OK {
			fmt.Printf("      create: %s\n", actionText(*result.UserCreate))
		}
		if result.FaceUpload != nil && !result.FaceUpload.OK {
			fmt.Printf("      face: %s\n", actionText(*result.FaceUpload))
		}
	}
	fmt.Println()
}

func deviceResultOK(result register.DeviceResult) bool {
	if !result.Connection.OK {
		return false
	}
	if result.UserCreate != nil && !result.UserCreate.OK {
		return false
	}
	if result.FaceUpload != nil && !result.FaceUpload.OK {
		return false
	}
	return true
}
