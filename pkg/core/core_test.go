package core

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	assert.Equal(t, "nl2sql-mcp-server", Name())
	assert.NotEmpty(t, Version())
}

func TestGetLogWriter(t *testing.T) {
	t.Setenv("MCP_DISABLE_LOGGING", "")
	assert.False(t, IsLoggingDisabled())
	assert.Equal(t, os.Stderr, GetLogWriter())

	for _, v := range []string{"true", "TRUE", "1"} {
		t.Setenv("MCP_DISABLE_LOGGING", v)
		assert.True(t, IsLoggingDisabled(), v)
		assert.Equal(t, io.Discard, GetLogWriter())
	}
}
