package core

import (
	"io"
	"os"
	"strings"
)

// IsLoggingDisabled checks if MCP protocol logging should be disabled
func IsLoggingDisabled() bool {
	val := os.Getenv("MCP_DISABLE_LOGGING")
	return strings.EqualFold(val, "true") || val == "1"
}

// GetLogWriter returns the writer for the MCP server's own log. It is never
// stdout, which carries the stdio protocol.
func GetLogWriter() io.Writer {
	if IsLoggingDisabled() {
		return io.Discard
	}
	return os.Stderr
}
