// Package schema holds the engine-independent metadata model built by the
// connector and consumed by the DSL encoder.
package schema

import "github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"

// ColumnMetadata describes one column.
type ColumnMetadata struct {
	Name string `json:"name"`
	// RawType is the engine-native type name as reported by the catalog.
	RawType  string                 `json:"raw_type"`
	Type     dialect.NormalizedType `json:"type"`
	Comment  string                 `json:"comment,omitempty"`
	Nullable bool                   `json:"nullable"`
}

// TableMetadata describes one table. Columns are in catalog ordinal order.
type TableMetadata struct {
	Name    string           `json:"name"`
	Comment string           `json:"comment,omitempty"`
	Columns []ColumnMetadata `json:"columns"`
}

// Column returns the column called name.
func (t TableMetadata) Column(name string) (ColumnMetadata, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}

// SchemaModel is the metadata of one database schema. It is built per request
// and never cached.
type SchemaModel struct {
	Dialect dialect.Tag     `json:"dialect"`
	Name    string          `json:"schema_name"`
	Tables  []TableMetadata `json:"tables"`
	// WithComments records whether comments were fetched.
	WithComments bool `json:"with_comments"`
}

// TableNames returns the table names in model order.
func (m *SchemaModel) TableNames() []string {
	names := make([]string, len(m.Tables))
	for i, t := range m.Tables {
		names[i] = t.Name
	}
	return names
}
