package dbtools

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/db"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/nl2sql"
)

func expectUsersSchema(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TABLES")).
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("users"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE")).
		WithArgs("sales", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE"}).
			AddRow("id", "int(11)", "NO").
			AddRow("name", "varchar(64)", "NO"))
}

func TestGenerate(t *testing.T) {
	engines, mock, _ := newMockEngines(t)
	expectUsersSchema(mock)

	var got nl2sql.Request
	translator := nl2sql.TranslatorFunc(func(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error) {
		got = req
		return nl2sql.Result{SQL: "SELECT id, name FROM users LIMIT 20", Model: "m"}, nil
	})

	svc := NewService(engines, translator)
	res, err := svc.Generate(context.Background(), GenerateRequest{
		Connection:   specFor(dialect.MySQL),
		Question:     "list users",
		CustomPrompt: "be brief",
		Limit:        20,
		Format:       "csv",
	})
	require.NoError(t, err)

	assert.Equal(t, "T:users(id:i,name:s)", got.SchemaDSL)
	assert.Equal(t, "list users", got.Question)
	assert.Equal(t, "be brief", got.CustomPrompt)
	assert.Equal(t, dialect.MySQL, got.Dialect)
	assert.Equal(t, "LIMIT 20", got.LimitHint)

	assert.Equal(t, "SELECT id, name FROM users LIMIT 20", res.SQL)
	assert.Equal(t, FormatCSV, res.Format)
	assert.Equal(t, "T:users(id:i,name:s)", res.SchemaDSL)
	assert.True(t, res.Risk.IsSafe)
	assert.Equal(t, 1, res.Tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateFlagsUnsafeSQL(t *testing.T) {
	engines, mock, _ := newMockEngines(t)
	expectUsersSchema(mock)

	translator := nl2sql.TranslatorFunc(func(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error) {
		return nl2sql.Result{SQL: "DELETE FROM users"}, nil
	})

	res, err := NewService(engines, translator).Generate(context.Background(), GenerateRequest{
		Connection: specFor(dialect.MySQL), Question: "remove everyone",
	})
	require.NoError(t, err)
	assert.False(t, res.Risk.IsSafe)
	assert.Equal(t, "DELETE", res.Risk.MatchedPattern)
}

func TestGenerateValidation(t *testing.T) {
	engines, _, opened := newMockEngines(t)
	svc := NewService(engines, nil)

	_, err := svc.Generate(context.Background(), GenerateRequest{Connection: specFor(dialect.MySQL)})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.Generate(context.Background(), GenerateRequest{Connection: specFor("db2"), Question: "q"})
	var unsupported *dberr.UnsupportedDialectError
	assert.True(t, errors.As(err, &unsupported))

	withParams := specFor(dialect.MySQL)
	withParams.Params = map[string]string{"multiStatements": "true"}
	_, err = svc.Generate(context.Background(), GenerateRequest{Connection: withParams, Question: "q"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.True(t, errors.Is(err, dialect.ErrUnsupportedParam))

	_, err = svc.Generate(context.Background(), GenerateRequest{Connection: specFor(dialect.MySQL), Question: "q"})
	assert.True(t, errors.Is(err, ErrNoTranslator))

	assert.Equal(t, int32(0), opened.Load())
}

func TestGenerateTimeout(t *testing.T) {
	engines, mock, _ := newMockEngines(t)
	expectUsersSchema(mock)

	translator := nl2sql.TranslatorFunc(func(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error) {
		<-ctx.Done()
		return nl2sql.Result{}, errors.New("request aborted")
	})

	svc := NewService(engines, translator, WithTimeout(50*time.Millisecond))
	_, err := svc.Generate(context.Background(), GenerateRequest{Connection: specFor(dialect.MySQL), Question: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecute(t *testing.T) {
	engines, mock, _ := newMockEngines(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectRollback()

	res, err := NewService(engines, nil).Execute(context.Background(), ExecuteRequest{
		Connection: specFor(dialect.MySQL),
		SQL:        "SELECT id FROM users",
		Format:     "json",
	})
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, res.Format)
	assert.Equal(t, [][]interface{}{{int64(7)}}, res.Rows)
	assert.JSONEq(t, `{"columns":["id"],"rows":[[7]],"truncated":false,"row_count":1}`, res.Rendered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRejectsWithoutAcquiring(t *testing.T) {
	engines, mock, opened := newMockEngines(t)
	spec := specFor(dialect.MySQL)

	_, err := NewService(engines, nil).Execute(context.Background(), ExecuteRequest{
		Connection: spec,
		SQL:        "DELETE FROM users",
	})
	var rejected *dberr.RiskRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "DELETE", rejected.Pattern)

	assert.Equal(t, int32(0), opened.Load())
	_, ok := engines.Lookup(spec)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteValidation(t *testing.T) {
	engines, _, opened := newMockEngines(t)
	svc := NewService(engines, nil)

	_, err := svc.Execute(context.Background(), ExecuteRequest{Connection: specFor(dialect.MySQL), SQL: "  "})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.Execute(context.Background(), ExecuteRequest{Connection: specFor(dialect.MySQL), SQL: "SELECT 1", Format: "xml"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	withParams := specFor(dialect.MySQL)
	withParams.Params = map[string]string{"multiStatements": "true"}
	_, err = svc.Execute(context.Background(), ExecuteRequest{Connection: withParams, SQL: "SELECT 1"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.True(t, errors.Is(err, dialect.ErrUnsupportedParam))

	assert.Equal(t, int32(0), opened.Load())
}

func TestExecuteInvalidatesAfterConnectionError(t *testing.T) {
	calls := 0
	engines := db.NewManager(db.Config{}, db.WithOpener(func(driverName, dsn string) (*sql.DB, error) {
		calls++
		mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			return nil, err
		}
		mock.ExpectPing().WillReturnError(errors.New("password authentication failed"))
		mock.ExpectClose()
		return mockDB, nil
	}))
	spec := specFor(dialect.SQLServer)

	_, err := NewService(engines, nil).Execute(context.Background(), ExecuteRequest{Connection: spec, SQL: "SELECT 1"})
	var connErr *dberr.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "ping", connErr.Op)

	_, ok := engines.Lookup(spec)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}
