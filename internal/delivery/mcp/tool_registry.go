package mcp

import (
	"context"
	"fmt"

	"github.com/FreePeak/cortex/pkg/server"

	"github.com/FreePeak/nl2sql-mcp-server/internal/logger"
)

// ToolRegistry registers the tool types with an MCP server
type ToolRegistry struct {
	server  ToolAdder
	useCase UseCaseProvider
	factory *ToolTypeFactory
	prefix  string
}

// NewToolRegistry creates a registry for mcpServer. Tool names get prefix
// prepended, which may be empty.
func NewToolRegistry(mcpServer *server.MCPServer, prefix string) *ToolRegistry {
	return newToolRegistry(NewServerWrapper(mcpServer), prefix)
}

func newToolRegistry(adder ToolAdder, prefix string) *ToolRegistry {
	return &ToolRegistry{
		server:  adder,
		factory: NewToolTypeFactory(),
		prefix:  prefix,
	}
}

// RegisterAllTools registers every tool type backed by useCase.
func (tr *ToolRegistry) RegisterAllTools(ctx context.Context, useCase UseCaseProvider) error {
	tr.useCase = useCase

	registrationErrors := 0
	for _, toolType := range tr.factory.GetAllToolTypes() {
		name := tr.prefix + toolType.GetName()
		if err := tr.registerTool(ctx, toolType, name); err != nil {
			logger.Error("Error registering tool %s: %v", name, err)
			registrationErrors++
			continue
		}
		logger.Info("Registered tool %s", name)
	}

	if registrationErrors > 0 {
		return fmt.Errorf("errors occurred while registering %d tools", registrationErrors)
	}
	return nil
}

func (tr *ToolRegistry) registerTool(ctx context.Context, toolType ToolType, name string) error {
	tool := toolType.CreateTool(name)

	return tr.server.AddTool(ctx, tool, func(ctx context.Context, request server.ToolCallRequest) (interface{}, error) {
		response, err := toolType.HandleRequest(ctx, request, tr.useCase)
		if err != nil {
			logger.Warn("Tool %s failed: %v", name, err)
		}
		return EnsureValidResponse(response, err)
	})
}
