package mcp

import (
	"context"
	"fmt"

	"github.com/FreePeak/cortex/pkg/server"
	"github.com/FreePeak/cortex/pkg/types"

	"github.com/FreePeak/nl2sql-mcp-server/internal/logger"
)

// ToolHandler answers one tool call.
type ToolHandler func(ctx context.Context, request server.ToolCallRequest) (interface{}, error)

// ToolAdder accepts tool registrations. *ServerWrapper implements it.
type ToolAdder interface {
	AddTool(ctx context.Context, tool interface{}, handler ToolHandler) error
}

// ServerWrapper adapts server.MCPServer to ToolAdder
type ServerWrapper struct {
	mcpServer *server.MCPServer
}

// NewServerWrapper creates a new ServerWrapper
func NewServerWrapper(mcpServer *server.MCPServer) *ServerWrapper {
	return &ServerWrapper{
		mcpServer: mcpServer,
	}
}

// AddTool adds a tool to the server
func (sw *ServerWrapper) AddTool(ctx context.Context, tool interface{}, handler ToolHandler) error {
	typedTool, ok := tool.(*types.Tool)
	if !ok {
		return fmt.Errorf("tool is not a *types.Tool: %T", tool)
	}
	logger.Debug("Adding tool: %s", typedTool.Name)

	return sw.mcpServer.AddTool(ctx, typedTool, func(ctx context.Context, request server.ToolCallRequest) (interface{}, error) {
		return handler(ctx, request)
	})
}
