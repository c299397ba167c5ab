package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/FreePeak/cortex/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dbtools"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/risk"
)

// MockUseCase is a mock implementation of UseCaseProvider
type MockUseCase struct {
	mock.Mock
}

func (m *MockUseCase) Generate(ctx context.Context, req dbtools.GenerateRequest) (*dbtools.GenerateResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*dbtools.GenerateResult)
	return res, args.Error(1)
}

func (m *MockUseCase) Execute(ctx context.Context, req dbtools.ExecuteRequest) (*dbtools.ExecuteResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*dbtools.ExecuteResult)
	return res, args.Error(1)
}

func connectionParams() map[string]interface{} {
	return map[string]interface{}{
		"db_type":  "PostgreSQL",
		"host":     "pg",
		"port":     float64(6432),
		"database": "crm",
		"username": "reader",
		"password": "p@ss",
	}
}

func TestGenerateSQLTool(t *testing.T) {
	useCase := new(MockUseCase)
	tool := NewGenerateSQLTool()
	assert.Equal(t, "generate_sql", tool.GetName())
	assert.NotNil(t, tool.CreateTool("generate_sql"))

	params := connectionParams()
	params["query"] = "top accounts"
	params["tables"] = []interface{}{"accounts", " deals "}
	params["with_comment"] = true
	params["limit"] = float64(20)
	params["result_format"] = "csv"

	want := dbtools.GenerateRequest{
		Connection: dialect.ConnectionSpec{
			Dialect: dialect.PostgreSQL, Host: "pg", Port: 6432,
			Database: "crm", Username: "reader", Password: "p@ss",
		},
		Tables:       []string{"accounts", "deals"},
		WithComments: true,
		Question:     "top accounts",
		Limit:        20,
		Format:       "csv",
	}
	useCase.On("Generate", mock.Anything, want).Return(&dbtools.GenerateResult{
		SQL:       "SELECT name FROM accounts LIMIT 20",
		Format:    dbtools.FormatCSV,
		SchemaDSL: "T:accounts(name:s)",
		Dialect:   dialect.PostgreSQL,
		Tables:    1,
		Risk:      risk.RiskDecision{IsSafe: true},
	}, nil).Once()

	out, err := tool.HandleRequest(context.Background(), server.ToolCallRequest{Name: "generate_sql", Parameters: params}, useCase)
	require.NoError(t, err)

	resp := out.(*Response)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "SELECT name FROM accounts LIMIT 20", resp.Content[0].Text)
	assert.Equal(t, "T:accounts(name:s)", resp.Metadata["schema_dsl"])
	useCase.AssertExpectations(t)
}

func TestExecuteSQLTool(t *testing.T) {
	useCase := new(MockUseCase)
	tool := NewExecuteSQLTool()

	params := connectionParams()
	params["sql"] = "SELECT 1"
	params["result_format"] = "text"

	useCase.On("Execute", mock.Anything, mock.MatchedBy(func(req dbtools.ExecuteRequest) bool {
		return req.SQL == "SELECT 1" && req.Format == "text" && req.Connection.Dialect == dialect.PostgreSQL
	})).Return(&dbtools.ExecuteResult{
		QueryResult: &dbtools.QueryResult{Columns: []string{"?column?"}, Rows: [][]interface{}{{int64(1)}}},
		Format:      dbtools.FormatText,
		Rendered:    "?column?\n--------\n1\n(1 rows)\n",
	}, nil).Once()

	out, err := tool.HandleRequest(context.Background(), server.ToolCallRequest{Name: "execute_sql", Parameters: params}, useCase)
	require.NoError(t, err)

	resp := out.(*Response)
	assert.Equal(t, "?column?\n--------\n1\n(1 rows)\n", resp.Content[0].Text)
	assert.Equal(t, 1, resp.Metadata["row_count"])
	assert.Equal(t, false, resp.Metadata["truncated"])
	useCase.AssertExpectations(t)
}

func TestConnectionSpecErrors(t *testing.T) {
	params := connectionParams()
	delete(params, "db_type")
	_, err := connectionSpec(params)
	assert.True(t, errors.Is(err, dbtools.ErrInvalidRequest))

	params = connectionParams()
	params["db_type"] = "db2"
	_, err = connectionSpec(params)
	var unsupported *dberr.UnsupportedDialectError
	assert.True(t, errors.As(err, &unsupported))

	params = connectionParams()
	params["username"] = " "
	_, err = connectionSpec(params)
	assert.ErrorContains(t, err, "username")
}

func TestParamHelpers(t *testing.T) {
	params := map[string]interface{}{
		"a": "x, y,,z",
		"b": []interface{}{"p", 3, "q"},
		"n": "42",
		"f": true,
		"s": "false",
	}
	assert.Equal(t, []string{"x", "y", "z"}, getStringListParam(params, "a"))
	assert.Equal(t, []string{"p", "q"}, getStringListParam(params, "b"))
	assert.Nil(t, getStringListParam(params, "missing"))

	n, ok := getIntParam(params, "n")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	_, ok = getIntParam(params, "missing")
	assert.False(t, ok)

	f, _ := getBoolParam(params, "f")
	assert.True(t, f)
	s, ok := getBoolParam(params, "s")
	assert.True(t, ok)
	assert.False(t, s)
}

// recordingAdder captures registrations instead of talking to a server.
type recordingAdder struct {
	names    []string
	handlers map[string]ToolHandler
}

func (r *recordingAdder) AddTool(ctx context.Context, tool interface{}, handler ToolHandler) error {
	name := "generate_sql"
	if len(r.names) == 1 {
		name = "execute_sql"
	}
	r.names = append(r.names, name)
	if r.handlers == nil {
		r.handlers = make(map[string]ToolHandler)
	}
	r.handlers[name] = handler
	return nil
}

func TestRegisterAllTools(t *testing.T) {
	adder := &recordingAdder{}
	registry := newToolRegistry(adder, "")
	useCase := new(MockUseCase)

	require.NoError(t, registry.RegisterAllTools(context.Background(), useCase))
	assert.Equal(t, []string{"generate_sql", "execute_sql"}, adder.names)

	useCase.On("Execute", mock.Anything, mock.Anything).
		Return(nil, &dberr.RiskRejectedError{Dialect: "postgresql", Pattern: "DROP"}).Once()

	params := connectionParams()
	params["sql"] = "DROP TABLE accounts"
	out, err := adder.handlers["execute_sql"](context.Background(), server.ToolCallRequest{Name: "execute_sql", Parameters: params})
	require.NoError(t, err)

	resp := out.(*Response)
	assert.True(t, resp.IsError)
	assert.Equal(t, map[string]interface{}{"type": dberr.KindRiskRejected, "pattern": "DROP"}, resp.Metadata["error"])
}
