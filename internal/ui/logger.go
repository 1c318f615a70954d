// Package ui provides terminal output helpers and styling for lfind.
package ui

import (
	"os"

	"github.com/charmbracelet/log"
)

// InitLogger initializes the charm logger with default settings. Logs go to
// stderr so stdout stays clean for results and the MCP protocol.
func InitLogger() {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.InfoLevel)
	log.SetReportCaller(false)
	log.SetReportTimestamp(false)
}

// SetDebug enables debug logging.
func SetDebug(enabled bool) {
	if enabled {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// SetQuiet limits logging to errors, for JSON output.
func SetQuiet() {
	log.SetLevel(log.ErrorLevel)
}
