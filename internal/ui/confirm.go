package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmDangerousOperation displays a warning box and prompts the user to type
// "I AGREE" to proceed with a dangerous operation. Returns true if the user
// confirmed, false otherwise.
func ConfirmDangerousOperation(title string, warnings []string, disclaimer string) bool {
	width := GetTerminalWidth()
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string

	// Title with warning marker
	titleLine := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render(fmt.Sprintf("   ⚠  WARNING  ─  %s", title))
	lines = append(lines, "")
	lines = append(lines, titleLine)
	lines = append(lines, "")

	// Warning bullet points
	for _, warning := range warnings {
		bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	// Disclaimer in muted text, word-wrapped
	if disclaimer != "" {
		disclaimerStyle := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, disclaimerStyle.Render(disclaimer))
		lines = append(lines, "")
	}

	content := strings.Join(lines, "\n")

	// Double border in orange/warning color
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(content)

	fmt.Println(box)
	fmt.Println()

	// Prompt for confirmation
	promptStyle := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true)
	fmt.Print(promptStyle.Render("To proceed, type \"I AGREE\" and press Enter: "))

	// Read user input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return false
	}

	// Check if user typed "I AGREE"
	input = strings.TrimSpace(input)
	if input == "I AGREE" {
		fmt.Println()
		return true
	}

	// User did not agree
	fmt.Println()
	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	fmt.Println(cancelStyle.Render("  Operation cancelled."))
	fmt.Println()
	return false
}

// DeleteUserConfirmation is a pre-configured confirmation for deleting a user
// record from a terminal. Deletion removes the enrolled face along with the
// record and cannot be undone from this tool.
func DeleteUserConfirmation(employeeNo, deviceLabel string) bool {
	return ConfirmDangerousOperation(
		"DELETE USER FROM TERMINAL",
		[]string{
			fmt.Sprintf("User %s will be removed from %s", employeeNo, deviceLabel),
			"The enrolled face image on the terminal is deleted with the record",
			"The student will no longer be recognised at this terminal",
			"This tool cannot restore a deleted record",
		},
		"If the student was provisioned through the school backend, re-register "+
			"them to restore access. Records created directly on the terminal have "+
			"no other copy.",
	)
}

// RecreateUserConfirmation is a pre-configured confirmation for the
// delete-then-create flow used to repair a corrupted user record.
func RecreateUserConfirmation(employeeNo, deviceLabel string) bool {
	return ConfirmDangerousOperation(
		"RECREATE USER ON TERMINAL",
		[]string{
			fmt.Sprintf("User %s on %s will be deleted and created again", employeeNo, deviceLabel),
			"The terminal briefly loses the record between delete and create",
			"If the create step fails, the user stays deleted",
			"Do not power off the terminal while the operation runs",
		},
		"Keep a copy of the face image at hand. If recreation fails midway, the "+
			"user can be registered again from the saved image.",
	)
}
