package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// PromptLine prints a styled prompt and reads a single line from stdin.
// The returned value is trimmed of surrounding whitespace.
func PromptLine(label string) (string, error) {
	promptStyle := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true)
	fmt.Print(promptStyle.Render(label + ": "))

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// PromptPassword prints a styled prompt and reads a password without echoing
// it to the terminal. Falls back to a plain line read when stdin is not a
// terminal (e.g., piped input in scripts).
func PromptPassword(label string) (string, error) {
	promptStyle := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true)
	fmt.Print(promptStyle.Render(label + ": "))

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimRight(input, "\r\n"), nil
	}

	password, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}
