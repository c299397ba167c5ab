// Package connector assembles a schema model from a live database: it picks
// the dialect's inspector, checks a connection out of the engine cache and
// walks the catalog.
package connector

import (
	"context"
	"time"

	"github.com/FreePeak/nl2sql-mcp-server/internal/observability"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/db"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/inspector"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/logger"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/schema"
)

// Acquirer hands out pooled connections. *db.Manager implements it.
type Acquirer interface {
	Acquire(ctx context.Context, spec dialect.ConnectionSpec) (*db.PooledConn, error)
}

// Assembler builds schema models.
type Assembler struct {
	engines Acquirer
}

func NewAssembler(engines Acquirer) *Assembler {
	return &Assembler{engines: engines}
}

// BuildSchema reads the tables of spec's effective schema. With a filter only
// the named tables are read, in filter order. withComments adds a second
// catalog round-trip per table for table and column comments; a failure there
// drops the comments, not the table.
//
// Tables with no visible columns are omitted. An empty schema is a valid,
// empty model.
func (a *Assembler) BuildSchema(ctx context.Context, spec dialect.ConnectionSpec, filter []string, withComments bool) (*schema.SchemaModel, error) {
	spec, err := spec.Resolved()
	if err != nil {
		return nil, err
	}
	insp, err := inspector.Resolve(spec.Dialect)
	if err != nil {
		return nil, err
	}

	conn, err := a.engines.Acquire(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Release(); err != nil {
			logger.Warn("Failed to release connection: %v", err)
		}
	}()

	start := time.Now()
	defer func() {
		observability.ObserveStatement(string(spec.Dialect), "schema", time.Since(start))
	}()

	tables, err := insp.ListTables(ctx, conn, spec.Schema, filter)
	if err != nil {
		return nil, extractionError(ctx, spec, "list_tables", "", err)
	}

	model := &schema.SchemaModel{
		Dialect:      spec.Dialect,
		Name:         spec.Schema,
		Tables:       make([]schema.TableMetadata, 0, len(tables)),
		WithComments: withComments,
	}
	for _, name := range tables {
		cols, err := insp.ColumnMetadata(ctx, conn, spec.Schema, name)
		if err != nil {
			return nil, extractionError(ctx, spec, "column_metadata", name, err)
		}
		if len(cols) == 0 {
			logger.Debug("Skipping %s.%s: no visible columns", spec.Schema, name)
			continue
		}

		table := schema.TableMetadata{Name: name, Columns: cols}
		if withComments {
			attachComments(ctx, insp, conn, spec, &table)
		}
		model.Tables = append(model.Tables, table)
	}

	logger.Debug("Built %s schema %s: %d tables", spec.Dialect, spec.Schema, len(model.Tables))
	return model, nil
}

func attachComments(ctx context.Context, insp inspector.Inspector, q inspector.Querier, spec dialect.ConnectionSpec, table *schema.TableMetadata) {
	comment, err := insp.TableComment(ctx, q, spec.Schema, table.Name)
	if err != nil {
		logger.Warn("Failed to read comment of %s.%s: %v", spec.Schema, table.Name, err)
	} else {
		table.Comment = comment
	}

	comments, err := insp.ColumnComments(ctx, q, spec.Schema, table.Name)
	if err != nil {
		logger.Warn("Failed to read column comments of %s.%s: %v", spec.Schema, table.Name, err)
		return
	}
	for i := range table.Columns {
		table.Columns[i].Comment = comments[table.Columns[i].Name]
	}
}

func extractionError(ctx context.Context, spec dialect.ConnectionSpec, op, table string, err error) error {
	return &dberr.SchemaExtractionError{
		Dialect: string(spec.Dialect),
		Op:      op,
		Table:   table,
		Err:     dberr.WithContext(ctx, dberr.Scrub(err, spec.Password)),
	}
}
