// Package core provides the identity of the NL2SQL MCP server.
package core

// Version returns the current version of the server.
func Version() string {
	return "1.0.0"
}

// Name returns the name the server announces to MCP clients.
func Name() string {
	return "nl2sql-mcp-server"
}
