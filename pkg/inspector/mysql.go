package inspector

// mysqlInspector reads information_schema. The schema is the database name.
type mysqlInspector struct {
	catalog
}

var mysqlQueries = catalogQueries{
	tables: `SELECT TABLE_NAME FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`,
	tableComment: `SELECT TABLE_COMMENT FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`,
	// COLUMN_TYPE keeps unsigned and the display width, DATA_TYPE does not.
	columns: `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`,
	columnComments: `SELECT COLUMN_NAME, COLUMN_COMMENT FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`,
}
