// Package dbtools runs the two entry operations: Generate turns a question
// into SQL against a live schema, Execute validates and runs SQL.
package dbtools

import (
	"context"
	"database/sql"
	"time"

	"github.com/FreePeak/nl2sql-mcp-server/internal/observability"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/connector"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/logger"
)

// Row limits applied by the executor.
const (
	DefaultLimit = 100
	MaxLimit     = 100000
)

// ClampLimit maps a requested row limit into [1, MaxLimit]; zero or negative
// means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// QueryResult holds the rows of one statement in column order.
type QueryResult struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	// Truncated is set when the statement had more rows than the limit.
	Truncated bool `json:"truncated"`
}

// RowCount returns the number of fetched rows.
func (r *QueryResult) RowCount() int { return len(r.Rows) }

type statementRunner interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Executor runs already validated SQL on a pooled connection.
type Executor struct {
	engines connector.Acquirer
}

func NewExecutor(engines connector.Acquirer) *Executor {
	return &Executor{engines: engines}
}

// Run executes sqlText and fetches at most limit rows. The SQL is sent as
// given: a missing limiting clause is logged, never added. Where the driver
// supports it the statement runs inside a read-only transaction that is
// always rolled back.
func (e *Executor) Run(ctx context.Context, spec dialect.ConnectionSpec, sqlText string, limit int) (*QueryResult, error) {
	spec, err := spec.Resolved()
	if err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)

	conn, err := e.engines.Acquire(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Release(); err != nil {
			logger.Warn("Failed to release connection: %v", err)
		}
	}()

	desc := conn.Descriptor()
	start := time.Now()
	defer func() {
		observability.ObserveStatement(string(desc.Tag), "execute", time.Since(start))
	}()

	if !desc.HasLimit(sqlText) {
		logger.Debug("Statement has no %s limiting clause, fetching at most %d rows", desc.Tag, limit)
	}

	var runner statementRunner = conn.Conn
	if desc.ReadOnlyTx {
		tx, err := conn.BeginReadOnly(ctx)
		if err != nil {
			return nil, executionError(ctx, spec, "begin", err)
		}
		defer func() {
			if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
				logger.Warn("Failed to roll back read-only transaction: %v", err)
			}
		}()
		runner = tx
	}

	if stmt := desc.SessionSchemaStatement(spec.Schema); stmt != "" {
		if _, err := runner.ExecContext(ctx, stmt); err != nil {
			return nil, executionError(ctx, spec, "set_schema", err)
		}
	}

	rows, err := runner.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, executionError(ctx, spec, "query", err)
	}
	defer rows.Close()

	result, err := collectRows(rows, limit)
	if err != nil {
		return nil, executionError(ctx, spec, "fetch", err)
	}

	logger.WithFields(map[string]interface{}{
		"dialect":   desc.Tag,
		"rows":      result.RowCount(),
		"truncated": result.Truncated,
		"elapsed":   time.Since(start).String(),
	}).Debug("statement executed")
	return result, nil
}

// collectRows reads up to limit rows. []byte values become strings and
// time.Time values RFC 3339 strings.
func collectRows(rows *sql.Rows, limit int) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{
		Columns: append(make([]string, 0, len(columns)), columns...),
		Rows:    make([][]interface{}, 0),
	}

	values := make([]interface{}, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) == limit {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}

		row := make([]interface{}, len(columns))
		for i, val := range values {
			switch v := val.(type) {
			case []byte:
				row[i] = string(v)
			case time.Time:
				row[i] = v.Format(time.RFC3339)
			default:
				row[i] = v
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func executionError(ctx context.Context, spec dialect.ConnectionSpec, op string, err error) error {
	return &dberr.ExecutionError{
		Dialect: string(spec.Dialect),
		Host:    spec.Address(),
		Op:      op,
		Err:     dberr.WithContext(ctx, dberr.Scrub(err, spec.Password)),
	}
}
