// Package ui provides terminal UI components for the registrator CLI.
//
// This package uses Bubble Tea and Lipgloss to render polished terminal output
// for device commands. These components follow a "run once and exit" pattern -
// they render output compellingly but don't require user interaction.
//
// # Architecture
//
// The UI package provides four main component types:
//
//   - Header: Command banner showing operation name and parameters
//   - Progress: Progress bar with step list showing real-time status
//   - Result: Success/failure boxes with styled information
//   - DeviceLog: Raw device exchange log box for verbose mode
//
// These components are orchestrated by the Runner, which manages the
// header → progress → result flow for device command execution.
//
// # Usage Pattern
//
// Device commands use this package by:
//
//  1. Creating a Runner with command metadata
//  2. Calling Run() with their operation function
//  3. The operation reports progress via a step callback
//  4. Runner handles all UI rendering automatically
//
// Example:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:      "Student Registration",
//	    Command:    "registrator register",
//	    Params:     map[string]string{"Devices": "3"},
//	    TotalSteps: 4,
//	    Verbose:    verbose,
//	})
//
//	err := runner.Run(ctx, func(onStep ui.StepCallback) error {
//	    onStep(1, "Checking device connectivity", ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, "Checking device connectivity", ui.StepComplete, "")
//	    return nil
//	})
//
// # Logging Integration
//
// This package expects logging to be controlled via the REGISTRATOR_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly. Set REGISTRATOR_LOG_LEVEL to
// "debug", "info", "warn", or "error" to enable logging output.
//
// # Verbose Mode
//
// When --verbose is passed to device commands, the DeviceLog component
// displays the raw exchange with the terminal in a styled box after the
// result. This is useful for debugging and seeing exactly which requests the
// device accepted or rejected.
package ui
