package inspector

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/schema"
)

// oracleInspector serves Oracle and DM through the ALL_* dictionary views.
// Owners and table names are stored uppercase.
type oracleInspector struct {
	catalog
}

var oracleQueries = catalogQueries{
	tables: `SELECT TABLE_NAME FROM ALL_TABLES
		WHERE OWNER = :1
		ORDER BY TABLE_NAME`,
	tableComment: `SELECT COMMENTS FROM ALL_TAB_COMMENTS
		WHERE OWNER = :1 AND TABLE_NAME = :2`,
	columns: `SELECT COLUMN_NAME, DATA_TYPE, DATA_PRECISION, DATA_SCALE, NULLABLE FROM ALL_TAB_COLUMNS
		WHERE OWNER = :1 AND TABLE_NAME = :2
		ORDER BY COLUMN_ID`,
	columnComments: `SELECT COLUMN_NAME, COMMENTS FROM ALL_COL_COMMENTS
		WHERE OWNER = :1 AND TABLE_NAME = :2`,
}

// ColumnMetadata rebuilds NUMBER(p,s) from the precision and scale columns so
// integer-valued NUMBERs normalize to int.
func (o *oracleInspector) ColumnMetadata(ctx context.Context, q Querier, schemaName, table string) ([]schema.ColumnMetadata, error) {
	rows, err := q.QueryContext(ctx, o.queries.columns, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.ColumnMetadata
	for rows.Next() {
		var (
			name, dataType, nullable string
			precision, scale         sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &precision, &scale, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, o.column(name, oracleRawType(dataType, precision, scale), nullable))
	}
	return cols, rows.Err()
}

func oracleRawType(dataType string, precision, scale sql.NullInt64) string {
	if !strings.EqualFold(dataType, "NUMBER") || !precision.Valid {
		return dataType
	}
	s := int64(0)
	if scale.Valid {
		s = scale.Int64
	}
	return dataType + "(" + strconv.FormatInt(precision.Int64, 10) + "," + strconv.FormatInt(s, 10) + ")"
}
