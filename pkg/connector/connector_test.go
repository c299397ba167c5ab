package connector

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/db"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dsl"
)

func newAssembler(t *testing.T) (*Assembler, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	engines := db.NewManager(db.Config{}, db.WithOpener(func(driverName, dsn string) (*sql.DB, error) {
		return mockDB, nil
	}))
	return NewAssembler(engines), mock
}

func mysqlSpec() dialect.ConnectionSpec {
	return dialect.ConnectionSpec{
		Dialect: dialect.MySQL, Host: "mysql", Port: 3306,
		Database: "shop", Username: "app", Password: "pw",
	}
}

func TestBuildSchemaWithComments(t *testing.T) {
	a, mock := newAssembler(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT TABLE_NAME FROM information_schema.TABLES")).
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("users").AddRow("audit"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE")).
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE"}).
			AddRow("id", "int(11)", "NO").
			AddRow("name", "varchar(64)", "NO"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TABLE_COMMENT")).
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_COMMENT"}).AddRow("app users"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_COMMENT")).
		WithArgs("shop", "users").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_COMMENT"}).
			AddRow("id", "").
			AddRow("name", "display name"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE")).
		WithArgs("shop", "audit").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE"}))

	model, err := a.BuildSchema(context.Background(), mysqlSpec(), nil, true)
	require.NoError(t, err)

	assert.Equal(t, dialect.MySQL, model.Dialect)
	assert.Equal(t, "shop", model.Name)
	assert.Equal(t, []string{"users"}, model.TableNames())
	assert.Equal(t, "app users", model.Tables[0].Comment)
	assert.Equal(t, "T:users(id:i,name:s) # app users; name: display name", dsl.Encode(model))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildSchemaCommentFailureKeepsTable(t *testing.T) {
	a, mock := newAssembler(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("users"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE")).
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE"}).AddRow("id", "bigint", "NO"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TABLE_COMMENT")).
		WillReturnError(errors.New("denied"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_COMMENT")).
		WillReturnError(errors.New("denied"))

	model, err := a.BuildSchema(context.Background(), mysqlSpec(), nil, true)
	require.NoError(t, err)
	require.Len(t, model.Tables, 1)
	assert.Empty(t, model.Tables[0].Comment)
	assert.Equal(t, "T:users(id:i)", dsl.Encode(model))
}

func TestBuildSchemaFilterWithoutComments(t *testing.T) {
	a, mock := newAssembler(t)
	spec := dialect.ConnectionSpec{
		Dialect: dialect.PostgreSQL, Host: "pg", Database: "crm", Username: "u", Password: "p",
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("accounts").AddRow("contacts").AddRow("deals"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", "deals").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).AddRow("amount", "numeric", "YES"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("public", "accounts").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).AddRow("id", "uuid", "NO"))

	model, err := a.BuildSchema(context.Background(), spec, []string{"Deals", "accounts"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"deals", "accounts"}, model.TableNames())
	assert.Equal(t, "T:deals(amount:f)\nT:accounts(id:s)", dsl.Encode(model))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildSchemaEmpty(t *testing.T) {
	a, mock := newAssembler(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}))

	model, err := a.BuildSchema(context.Background(), mysqlSpec(), nil, true)
	require.NoError(t, err)
	assert.Empty(t, model.Tables)
	assert.Empty(t, dsl.Encode(model))
}

func TestBuildSchemaCatalogError(t *testing.T) {
	a, mock := newAssembler(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("users"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE")).
		WillReturnError(errors.New("lost connection"))

	_, err := a.BuildSchema(context.Background(), mysqlSpec(), nil, false)
	var extraction *dberr.SchemaExtractionError
	require.True(t, errors.As(err, &extraction))
	assert.Equal(t, "mysql", extraction.Dialect)
	assert.Equal(t, "column_metadata", extraction.Op)
	assert.Equal(t, "users", extraction.Table)
}

func TestBuildSchemaConnectionError(t *testing.T) {
	engines := db.NewManager(db.Config{}, db.WithOpener(func(driverName, dsn string) (*sql.DB, error) {
		return nil, errors.New("no route to host")
	}))
	a := NewAssembler(engines)

	_, err := a.BuildSchema(context.Background(), mysqlSpec(), nil, false)
	var connErr *dberr.ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestBuildSchemaUnsupportedDialect(t *testing.T) {
	a, _ := newAssembler(t)
	spec := mysqlSpec()
	spec.Dialect = "db2"

	_, err := a.BuildSchema(context.Background(), spec, nil, false)
	var unsupported *dberr.UnsupportedDialectError
	assert.True(t, errors.As(err, &unsupported))
}
