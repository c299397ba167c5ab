// Package inspector reads table, column and comment metadata from each
// engine's catalog. Variants differ only in their catalog queries and type
// tables.
package inspector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/schema"
)

// Querier is the subset of a connection the inspectors need. *sql.DB,
// *sql.Conn and *sql.Tx all satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Inspector extracts metadata for one dialect. Identifiers are returned in
// the dialect's canonical case.
type Inspector interface {
	Descriptor() dialect.Descriptor
	BuildConnectionString(spec dialect.ConnectionSpec) string
	// ListTables returns the tables of schemaName. With a non-empty filter
	// only matching tables are returned, in filter order.
	ListTables(ctx context.Context, q Querier, schemaName string, filter []string) ([]string, error)
	TableComment(ctx context.Context, q Querier, schemaName, table string) (string, error)
	// ColumnMetadata returns the columns of table in ordinal order, without
	// comments.
	ColumnMetadata(ctx context.Context, q Querier, schemaName, table string) ([]schema.ColumnMetadata, error)
	// ColumnComments maps column name to comment. Columns without a comment
	// are absent.
	ColumnComments(ctx context.Context, q Querier, schemaName, table string) (map[string]string, error)
	NormalizeType(raw string) dialect.NormalizedType
}

// Resolve returns the Inspector for tag.
func Resolve(tag dialect.Tag) (Inspector, error) {
	desc, err := dialect.Lookup(tag)
	if err != nil {
		return nil, err
	}

	switch {
	case tag == dialect.MySQL:
		return &mysqlInspector{catalog{desc: desc, queries: mysqlQueries}}, nil
	case tag.PostgresFamily():
		return &postgresInspector{catalog{desc: desc, queries: postgresQueries}}, nil
	case tag == dialect.SQLServer:
		return &sqlserverInspector{catalog{desc: desc, queries: sqlserverQueries}}, nil
	case tag.OracleFamily():
		return &oracleInspector{catalog{desc: desc, queries: oracleQueries}}, nil
	default:
		return nil, fmt.Errorf("no inspector for dialect %s", tag)
	}
}

// catalogQueries are the four catalog lookups. Every query takes the schema
// as its first bind and, except tables, the table name as its second.
type catalogQueries struct {
	tables         string
	tableComment   string
	columns        string
	columnComments string
}

// catalog implements the parts of Inspector shared by every variant.
type catalog struct {
	desc    dialect.Descriptor
	queries catalogQueries
}

func (c *catalog) Descriptor() dialect.Descriptor { return c.desc }

func (c *catalog) BuildConnectionString(spec dialect.ConnectionSpec) string {
	return c.desc.ConnectionString(spec)
}

func (c *catalog) NormalizeType(raw string) dialect.NormalizedType {
	return c.desc.NormalizeType(raw)
}

func (c *catalog) ListTables(ctx context.Context, q Querier, schemaName string, filter []string) ([]string, error) {
	rows, err := q.QueryContext(ctx, c.queries.tables, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		all = append(all, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return all, nil
	}
	return c.applyFilter(all, filter), nil
}

// applyFilter keeps the tables named in filter, in filter order. A filter
// entry matches verbatim first and after case folding second.
func (c *catalog) applyFilter(all, filter []string) []string {
	present := make(map[string]struct{}, len(all))
	for _, name := range all {
		present[name] = struct{}{}
	}

	out := make([]string, 0, len(filter))
	seen := make(map[string]struct{}, len(filter))
	for _, f := range filter {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		name := f
		if _, ok := present[name]; !ok {
			name = c.desc.FoldIdentifier(f)
			if _, ok := present[name]; !ok {
				continue
			}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (c *catalog) TableComment(ctx context.Context, q Querier, schemaName, table string) (string, error) {
	var comment sql.NullString
	err := q.QueryRowContext(ctx, c.queries.tableComment, schemaName, table).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(comment.String), nil
}

func (c *catalog) ColumnMetadata(ctx context.Context, q Querier, schemaName, table string) ([]schema.ColumnMetadata, error) {
	rows, err := q.QueryContext(ctx, c.queries.columns, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.ColumnMetadata
	for rows.Next() {
		var name, rawType, nullable string
		if err := rows.Scan(&name, &rawType, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, c.column(name, rawType, nullable))
	}
	return cols, rows.Err()
}

func (c *catalog) column(name, rawType, nullable string) schema.ColumnMetadata {
	return schema.ColumnMetadata{
		Name:     name,
		RawType:  rawType,
		Type:     c.desc.NormalizeType(rawType),
		Nullable: isNullable(nullable),
	}
}

func (c *catalog) ColumnComments(ctx context.Context, q Querier, schemaName, table string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, c.queries.columnComments, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make(map[string]string)
	for rows.Next() {
		var name string
		var comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, err
		}
		if s := strings.TrimSpace(comment.String); s != "" {
			comments[name] = s
		}
	}
	return comments, rows.Err()
}

// isNullable accepts the catalogs' YES/NO and Y/N spellings.
func isNullable(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES", "Y", "1", "TRUE":
		return true
	default:
		return false
	}
}
