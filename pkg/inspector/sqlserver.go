package inspector

// sqlserverInspector reads INFORMATION_SCHEMA for structure and the
// MS_Description extended property for comments.
type sqlserverInspector struct {
	catalog
}

var sqlserverQueries = catalogQueries{
	tables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`,
	tableComment: `SELECT CAST(ep.value AS NVARCHAR(4000))
		FROM sys.extended_properties ep
		JOIN sys.tables t ON ep.major_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		WHERE ep.name = 'MS_Description' AND ep.minor_id = 0
		AND s.name = @p1 AND t.name = @p2`,
	columns: `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`,
	columnComments: `SELECT c.name, CAST(ep.value AS NVARCHAR(4000))
		FROM sys.columns c
		JOIN sys.tables t ON c.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
		WHERE s.name = @p1 AND t.name = @p2`,
}
