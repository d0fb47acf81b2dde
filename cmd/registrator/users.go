package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schoolpass/registrator/internal/isapi"
	"github.com/schoolpass/registrator/internal/register"
	"github.com/schoolpass/registrator/internal/ui"
)

// User command flags
var (
	usersLimit     int
	usersYes       bool
	faceOutput     string
	faceURL        string
	recreateName   string
	recreateGender string
	recreateImage  string
	recreateFresh  bool
	recreateReuse  bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect and manage user records on a terminal",
}

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCheckCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	usersCmd.AddCommand(usersGetFaceCmd)
	usersCmd.AddCommand(usersRecreateCmd)
}

// userClient resolves a device argument into a connected client, refusing
// expired credentials.
func userClient(key string) (*isapi.Client, string, error) {
	_, devices, index, err := requireDevice(key)
	if err != nil {
		return nil, "", err
	}
	device := devices[index]
	if device.CredentialsExpired() {
		return nil, "", fmt.Errorf("Device credentials have expired")
	}
	return isapi.NewClient(device), device.Label(), nil
}

var usersListCmd = &cobra.Command{
	Use:   "list <device>",
	Short: "List user records stored on a terminal",
	Example: `  # List the first 100 records
  registrator users list dev-1

  # List everything
  registrator users list dev-1 --limit 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		client, label, err := userClient(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Users on %s:\n\n", label)

		const pageSize = 30
		listed := 0
		for offset := 0; ; offset += pageSize {
			page := client.SearchUsers(offset, pageSize)
			for _, user := range page.Users {
				fmt.Printf("  %-12s %-30s %-8s faces:%d\n", user.EmployeeNo, user.Name, user.Gender, user.NumOfFace)
				listed++
				if usersLimit > 0 && listed >= usersLimit {
					fmt.Printf("\n(limit reached, %d of %d shown)\n", listed, page.TotalMatches)
					return nil
				}
			}
			if page.NumOfMatches < pageSize {
				break
			}
		}

		fmt.Printf("\n%d record(s)\n", listed)
		return nil
	},
}

func init() {
	usersListCmd.Flags().IntVar(&usersLimit, "limit", 100, "Maximum records to list (0 = all)")
}

var usersCheckCmd = &cobra.Command{
	Use:   "check <device> <employeeNo>",
	Short: "Check whether a student exists on a terminal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		client, label, err := userClient(args[0])
		if err != nil {
			return err
		}

		user, found := client.GetUserByEmployeeNo(args[1])
		if !found {
			fmt.Printf("✗ User %s not found on %s\n", args[1], label)
			return nil
		}

		fmt.Printf("✓ User %s found on %s\n", user.EmployeeNo, label)
		fmt.Printf("  Name:   %s\n", user.Name)
		fmt.Printf("  Gender: %s\n", user.Gender)
		fmt.Printf("  Faces:  %d\n", user.NumOfFace)
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <device> <employeeNo>",
	Short: "Delete a user record from a terminal",
	Long: `Delete a user record from a terminal.

The enrolled face is removed with the record. This cannot be undone from
this tool; a confirmation is required unless --yes is passed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		client, label, err := userClient(args[0])
		if err != nil {
			return err
		}

		if !usersYes && !ui.DeleteUserConfirmation(args[1], label) {
			return nil
		}

		result := client.DeleteUser(args[1])
		if !result.OK {
			return fmt.Errorf("Delete failed: %s", actionText(result))
		}
		fmt.Printf("✓ Deleted user %s from %s\n", args[1], label)
		return nil
	},
}

func init() {
	usersDeleteCmd.Flags().BoolVarP(&usersYes, "yes", "y", false, "Skip the confirmation prompt")
}

var usersGetFaceCmd = &cobra.Command{
	Use:   "get-face <device> <employeeNo>",
	Short: "Download the enrolled face image for a user",
	Long: `Download the face image enrolled for a user on a terminal.

The image URL is resolved through the user record; pass --url to fetch a
known face URL directly instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		client, _, err := userClient(args[0])
		if err != nil {
			return err
		}

		imageURL := faceURL
		if imageURL == "" {
			user, found := client.GetUserByEmployeeNo(args[1])
			if !found {
				return fmt.Errorf("User not found on device")
			}
			if user.FaceURL == "" {
				return fmt.Errorf("User has no enrolled face")
			}
			imageURL = user.FaceURL
		}

		data, err := client.FetchFaceImage(imageURL)
		if err != nil {
			return err
		}

		output := faceOutput
		if output == "" {
			output = fmt.Sprintf("face-%s.jpg", args[1])
		}
		if err := os.WriteFile(output, data, 0600); err != nil {
			return fmt.Errorf("write face image: %w", err)
		}
		fmt.Printf("✓ Saved face image to %s (%d bytes)\n", output, len(data))
		return nil
	},
}

func init() {
	usersGetFaceCmd.Flags().StringVarP(&faceOutput, "output", "o", "", "Output file (default: face-<employeeNo>.jpg)")
	usersGetFaceCmd.Flags().StringVar(&faceURL, "url", "", "Fetch this face URL directly instead of resolving the user record")
}

var usersRecreateCmd = &cobra.Command{
	Use:   "recreate <device> <employeeNo>",
	Short: "Delete and recreate a user record on a terminal",
	Long: `Delete a user record and create it again with a fresh validity window.

Used to repair records a terminal refuses to update in place. The face image
is secured before the delete: either reuse the one already enrolled with
--reuse-face, or provide a fresh one with --image.`,
	Example: `  # Recreate keeping the enrolled face and number
  registrator users recreate dev-1 7770001111 --name "Alice Smith" --reuse-face

  # Recreate with a fresh face image and a newly generated number
  registrator users recreate dev-1 7770001111 --name "Alice Smith" \
    --image face.jpg --new-number`,
	Args: cobra.ExactArgs(2),
	RunE: runUsersRecreate,
}

func init() {
	usersRecreateCmd.Flags().StringVar(&recreateName, "name", "", "User display name")
	usersRecreateCmd.Flags().StringVar(&recreateGender, "gender", "male", "Gender (male or female)")
	usersRecreateCmd.Flags().StringVar(&recreateImage, "image", "", "Path to a fresh face image")
	usersRecreateCmd.Flags().BoolVar(&recreateReuse, "reuse-face", false, "Reuse the face already enrolled on the terminal")
	usersRecreateCmd.Flags().BoolVar(&recreateFresh, "new-number", false, "Assign a freshly generated student number")
	usersRecreateCmd.Flags().BoolVarP(&usersYes, "yes", "y", false, "Skip the confirmation prompt")
	_ = usersRecreateCmd.MarkFlagRequired("name")
}

func runUsersRecreate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	_, devices, index, err := requireDevice(args[0])
	if err != nil {
		return err
	}
	device := devices[index]
	if device.CredentialsExpired() {
		return fmt.Errorf("Device credentials have expired")
	}

	faceImage := ""
	if recreateImage != "" {
		faceImage, err = readFaceImage(recreateImage)
		if err != nil {
			return err
		}
	}

	if !usersYes && !ui.RecreateUserConfirmation(args[1], device.Label()) {
		return nil
	}

	result, err := register.RecreateUser(device, register.RecreateOptions{
		EmployeeNo:        args[1],
		Name:              recreateName,
		Gender:            recreateGender,
		NewEmployeeNo:     recreateFresh,
		ReuseExistingFace: recreateReuse,
		FaceImageBase64:   faceImage,
	})
	if err != nil {
		return err
	}

	fmt.Printf("✓ Recreated user %s on %s\n", result.EmployeeNo, device.Label())
	if !result.FaceUpload.OK {
		fmt.Printf("  ⚠ Face upload failed: %s\n", actionText(result.FaceUpload))
	}
	return nil
}
