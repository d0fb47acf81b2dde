package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DeviceLog represents a box for displaying the raw exchange with a terminal.
// Used in verbose mode to show the requests sent and what the device answered.
type DeviceLog struct {
	Title    string   // e.g., "Device Log"
	Content  string   // The raw exchange log
	Lines    []string // Parsed log lines (for filtering)
	Width    int      // Terminal width
	MaxLines int      // Maximum lines to display (0 = unlimited)
}

// NewDeviceLog creates a new device log box
func NewDeviceLog(content string) *DeviceLog {
	return &DeviceLog{
		Title:    "Device Log",
		Content:  content,
		Lines:    strings.Split(content, "\n"),
		Width:    GetTerminalWidth(),
		MaxLines: 0,
	}
}

// SetWidth sets the terminal width for responsive rendering
func (d *DeviceLog) SetWidth(width int) *DeviceLog {
	d.Width = width
	return d
}

// SetTitle sets a custom title for the box
func (d *DeviceLog) SetTitle(title string) *DeviceLog {
	d.Title = title
	return d
}

// SetMaxLines limits the number of lines displayed
func (d *DeviceLog) SetMaxLines(max int) *DeviceLog {
	d.MaxLines = max
	return d
}

// FilterLines filters the log to only show lines matching the given patterns.
// Useful for extracting specific responses (e.g., statusString, errorMsg).
func (d *DeviceLog) FilterLines(patterns ...string) *DeviceLog {
	var filtered []string
	for _, line := range d.Lines {
		for _, pattern := range patterns {
			if strings.Contains(line, pattern) {
				filtered = append(filtered, line)
				break
			}
		}
	}
	d.Lines = filtered
	d.Content = strings.Join(filtered, "\n")
	return d
}

// FilterPrefix filters to only lines starting with given prefixes
func (d *DeviceLog) FilterPrefix(prefixes ...string) *DeviceLog {
	var filtered []string
	for _, line := range d.Lines {
		for _, prefix := range prefixes {
			if strings.HasPrefix(strings.TrimSpace(line), prefix) {
				filtered = append(filtered, line)
				break
			}
		}
	}
	d.Lines = filtered
	d.Content = strings.Join(filtered, "\n")
	return d
}

// ExtractResults extracts "name: value" pairs from the log lines.
// Returns a map of field names to their values.
func (d *DeviceLog) ExtractResults() map[string]string {
	results := make(map[string]string)

	for _, line := range d.Lines {
		line = strings.TrimSpace(line)

		// Pattern: "name: value"
		if idx := strings.Index(line, ": "); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			value := strings.TrimSpace(line[idx+2:])
			// Only capture if key looks like a field name (no spaces, reasonable length)
			if !strings.Contains(key, " ") && len(key) < 30 {
				results[key] = value
			}
		}
	}

	return results
}

// Render returns the styled device log box as a string
func (d *DeviceLog) Render() string {
	width := d.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	// Apply max lines limit
	lines := d.Lines
	if d.MaxLines > 0 && len(lines) > d.MaxLines {
		lines = lines[:d.MaxLines]
		lines = append(lines, "... (output truncated)")
	}

	// Title styled
	titleStyled := DeviceLogTitleStyle.Render(d.Title)

	// Content styled (preserve monospace formatting)
	contentStyled := DeviceLogContentStyle.Render(strings.Join(lines, "\n"))

	// Combine title and content
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStyled, "", contentStyled)

	// Box with muted border
	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// RenderCompact renders a more compact version showing only key results
func (d *DeviceLog) RenderCompact() string {
	width := d.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	// Extract results
	results := d.ExtractResults()

	if len(results) == 0 {
		// Fallback to normal render if no results found
		return d.Render()
	}

	// Build compact output
	var lines []string
	for key, value := range results {
		line := DeviceLogContentStyle.Render(key + ": " + value)
		lines = append(lines, "  "+line)
	}

	// Title styled
	titleStyled := DeviceLogTitleStyle.Render(d.Title + " (summary)")

	// Combine
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStyled, "", strings.Join(lines, "\n"))

	// Box
	boxWidth := width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(boxWidth).
		Padding(0, 1).
		MarginLeft(2).
		Render(inner)
}

// String implements fmt.Stringer
func (d *DeviceLog) String() string {
	return d.Render()
}

// --- Convenience functions ---

// RenderDeviceLog renders a device log box with the given content
func RenderDeviceLog(content string) string {
	return NewDeviceLog(content).Render()
}

// RenderDeviceLogSummary renders a compact device log summary
func RenderDeviceLogSummary(content string) string {
	return NewDeviceLog(content).RenderCompact()
}
