package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/FreePeak/cortex/pkg/server"
	"github.com/FreePeak/cortex/pkg/tools"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dbtools"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
)

// ToolType describes one tool: its schema and how it answers calls.
type ToolType interface {
	GetName() string
	GetDescription() string

	// CreateTool returns a value accepted by server.MCPServer.AddTool.
	CreateTool(name string) interface{}

	HandleRequest(ctx context.Context, request server.ToolCallRequest, useCase UseCaseProvider) (interface{}, error)
}

// UseCaseProvider runs the entry operations. *dbtools.Service implements it.
type UseCaseProvider interface {
	Generate(ctx context.Context, req dbtools.GenerateRequest) (*dbtools.GenerateResult, error)
	Execute(ctx context.Context, req dbtools.ExecuteRequest) (*dbtools.ExecuteResult, error)
}

// BaseToolType provides common functionality for tool types
type BaseToolType struct {
	name        string
	description string
}

func (b *BaseToolType) GetName() string {
	return b.name
}

func (b *BaseToolType) GetDescription() string {
	return b.description
}

const connectionHelp = "Supported db_type values: mysql, postgresql, oracle, sqlserver, gaussdb, kingbase, dm."

//------------------------------------------------------------------------------
// GenerateSQLTool
//------------------------------------------------------------------------------

// GenerateSQLTool turns a question into SQL for a live database.
type GenerateSQLTool struct {
	BaseToolType
}

func NewGenerateSQLTool() *GenerateSQLTool {
	return &GenerateSQLTool{
		BaseToolType: BaseToolType{
			name:        "generate_sql",
			description: "Generate a read-only SQL query from a natural language question, using the live schema of the target database. " + connectionHelp,
		},
	}
}

func (t *GenerateSQLTool) CreateTool(name string) interface{} {
	return tools.NewTool(
		name,
		tools.WithDescription(t.GetDescription()),
		tools.WithString("db_type", tools.Description("Database type"), tools.Required()),
		tools.WithString("host", tools.Description("Database host"), tools.Required()),
		tools.WithNumber("port", tools.Description("Database port (defaults to the engine's standard port)")),
		tools.WithString("database", tools.Description("Database name (service name for Oracle and DM)"), tools.Required()),
		tools.WithString("username", tools.Description("Database user"), tools.Required()),
		tools.WithString("password", tools.Description("Database password")),
		tools.WithString("schema", tools.Description("Schema to read; defaults per engine (public, dbo, the upper-cased user or the database)")),
		tools.WithString("query", tools.Description("Natural language question"), tools.Required()),
		tools.WithArray("tables",
			tools.Description("Only describe these tables to the model"),
			tools.Items(map[string]interface{}{"type": "string"}),
		),
		tools.WithBoolean("with_comment", tools.Description("Include table and column comments in the schema description")),
		tools.WithString("custom_prompt", tools.Description("Extra instructions for the model")),
		tools.WithNumber("limit", tools.Description("Row limit the query should carry (default 100, max 100000)")),
		tools.WithString("result_format", tools.Description("Result format for a later execute_sql call: json, csv or text")),
	)
}

func (t *GenerateSQLTool) HandleRequest(ctx context.Context, request server.ToolCallRequest, useCase UseCaseProvider) (interface{}, error) {
	spec, err := connectionSpec(request.Parameters)
	if err != nil {
		return nil, err
	}
	question, ok := getStringParam(request.Parameters, "query")
	if !ok {
		return nil, fmt.Errorf("%w: query parameter must be a string", dbtools.ErrInvalidRequest)
	}
	withComments, _ := getBoolParam(request.Parameters, "with_comment")
	limit, _ := getIntParam(request.Parameters, "limit")
	customPrompt, _ := getStringParam(request.Parameters, "custom_prompt")
	format, _ := getStringParam(request.Parameters, "result_format")

	res, err := useCase.Generate(ctx, dbtools.GenerateRequest{
		Connection:   spec,
		Tables:       getStringListParam(request.Parameters, "tables"),
		WithComments: withComments,
		Question:     question,
		CustomPrompt: customPrompt,
		Limit:        limit,
		Format:       format,
	})
	if err != nil {
		return nil, err
	}

	return FromString(res.SQL).
		WithMetadata("dialect", res.Dialect).
		WithMetadata("format", res.Format).
		WithMetadata("tables", res.Tables).
		WithMetadata("schema_dsl", res.SchemaDSL).
		WithMetadata("risk", res.Risk), nil
}

//------------------------------------------------------------------------------
// ExecuteSQLTool
//------------------------------------------------------------------------------

// ExecuteSQLTool validates and runs a read-only statement.
type ExecuteSQLTool struct {
	BaseToolType
}

func NewExecuteSQLTool() *ExecuteSQLTool {
	return &ExecuteSQLTool{
		BaseToolType: BaseToolType{
			name:        "execute_sql",
			description: "Run a read-only SELECT statement and return its rows. Statements that could modify data are rejected. " + connectionHelp,
		},
	}
}

func (t *ExecuteSQLTool) CreateTool(name string) interface{} {
	return tools.NewTool(
		name,
		tools.WithDescription(t.GetDescription()),
		tools.WithString("db_type", tools.Description("Database type"), tools.Required()),
		tools.WithString("host", tools.Description("Database host"), tools.Required()),
		tools.WithNumber("port", tools.Description("Database port (defaults to the engine's standard port)")),
		tools.WithString("database", tools.Description("Database name (service name for Oracle and DM)"), tools.Required()),
		tools.WithString("username", tools.Description("Database user"), tools.Required()),
		tools.WithString("password", tools.Description("Database password")),
		tools.WithString("schema", tools.Description("Schema unqualified names resolve against")),
		tools.WithString("sql", tools.Description("SELECT statement to run"), tools.Required()),
		tools.WithNumber("limit", tools.Description("Maximum rows to return (default 100, max 100000)")),
		tools.WithString("result_format", tools.Description("json, csv or text (default json)")),
	)
}

func (t *ExecuteSQLTool) HandleRequest(ctx context.Context, request server.ToolCallRequest, useCase UseCaseProvider) (interface{}, error) {
	spec, err := connectionSpec(request.Parameters)
	if err != nil {
		return nil, err
	}
	sqlText, ok := getStringParam(request.Parameters, "sql")
	if !ok {
		return nil, fmt.Errorf("%w: sql parameter must be a string", dbtools.ErrInvalidRequest)
	}
	limit, _ := getIntParam(request.Parameters, "limit")
	format, _ := getStringParam(request.Parameters, "result_format")

	res, err := useCase.Execute(ctx, dbtools.ExecuteRequest{
		Connection: spec,
		SQL:        sqlText,
		Limit:      limit,
		Format:     format,
	})
	if err != nil {
		return nil, err
	}

	return FromString(res.Rendered).
		WithMetadata("format", res.Format).
		WithMetadata("columns", res.Columns).
		WithMetadata("row_count", res.RowCount()).
		WithMetadata("truncated", res.Truncated), nil
}

//------------------------------------------------------------------------------
// ToolTypeFactory
//------------------------------------------------------------------------------

// ToolTypeFactory holds the available tool types by name.
type ToolTypeFactory struct {
	toolTypes map[string]ToolType
	order     []string
}

func NewToolTypeFactory() *ToolTypeFactory {
	f := &ToolTypeFactory{toolTypes: make(map[string]ToolType)}
	f.Register(NewGenerateSQLTool())
	f.Register(NewExecuteSQLTool())
	return f
}

func (f *ToolTypeFactory) Register(toolType ToolType) {
	if _, ok := f.toolTypes[toolType.GetName()]; !ok {
		f.order = append(f.order, toolType.GetName())
	}
	f.toolTypes[toolType.GetName()] = toolType
}

func (f *ToolTypeFactory) GetToolType(name string) (ToolType, bool) {
	toolType, ok := f.toolTypes[name]
	return toolType, ok
}

// GetAllToolTypes returns the tool types in registration order.
func (f *ToolTypeFactory) GetAllToolTypes() []ToolType {
	out := make([]ToolType, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.toolTypes[name])
	}
	return out
}

//------------------------------------------------------------------------------
// parameters
//------------------------------------------------------------------------------

func connectionSpec(params map[string]interface{}) (dialect.ConnectionSpec, error) {
	raw, ok := getStringParam(params, "db_type")
	if !ok {
		return dialect.ConnectionSpec{}, fmt.Errorf("%w: db_type parameter must be a string", dbtools.ErrInvalidRequest)
	}
	tag, err := dialect.Parse(raw)
	if err != nil {
		return dialect.ConnectionSpec{}, err
	}

	spec := dialect.ConnectionSpec{Dialect: tag}
	required := []struct {
		key string
		dst *string
	}{
		{"host", &spec.Host},
		{"database", &spec.Database},
		{"username", &spec.Username},
	}
	for _, r := range required {
		v, ok := getStringParam(params, r.key)
		if !ok || strings.TrimSpace(v) == "" {
			return dialect.ConnectionSpec{}, fmt.Errorf("%w: %s parameter is required", dbtools.ErrInvalidRequest, r.key)
		}
		*r.dst = v
	}
	spec.Password, _ = getStringParam(params, "password")
	spec.Schema, _ = getStringParam(params, "schema")
	spec.Port, _ = getIntParam(params, "port")
	return spec, nil
}

func getStringParam(params map[string]interface{}, key string) (string, bool) {
	value, ok := params[key].(string)
	return value, ok
}

func getBoolParam(params map[string]interface{}, key string) (bool, bool) {
	switch v := params[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

// getIntParam accepts JSON numbers and numeric strings.
func getIntParam(params map[string]interface{}, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// getStringListParam accepts an array of strings or a comma separated string.
func getStringListParam(params map[string]interface{}, key string) []string {
	var raw []string
	switch v := params[key].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
