// Package logging provides structured logging for the registrator CLI.
//
// This package wraps zap with convenience functions for the logging patterns
// used throughout the tool. CLI commands are silent by default; verbosity is
// opted into through the REGISTRATOR_LOG_LEVEL environment variable so that
// normal command output stays clean while device protocol debugging remains
// one environment variable away.
package logging
