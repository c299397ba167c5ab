// Package dsl encodes a schema model into the compact one-line-per-table
// text handed to the SQL generator:
//
//	T:users(id:i,name:s)
//
// Raw types and nullability are dropped. Comments, when the model carries
// them, follow the column tuple as a " # " annotation a parser can ignore.
package dsl

import (
	"fmt"
	"strings"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/schema"
)

// Version identifies the grammar. Bump it on any change to the output.
const Version = "1"

var abbreviations = map[dialect.NormalizedType]string{
	dialect.TypeInt:      "i",
	dialect.TypeString:   "s",
	dialect.TypeDatetime: "dt",
	dialect.TypeFloat:    "f",
	dialect.TypeBool:     "b",
	dialect.TypeJSON:     "j",
}

// Abbreviation returns the DSL code for t. Unknown types encode as strings.
func Abbreviation(t dialect.NormalizedType) string {
	if a, ok := abbreviations[t]; ok {
		return a
	}
	return abbreviations[dialect.TypeString]
}

// Encode renders m, one line per table in model order. Output is
// byte-identical for equal models.
func Encode(m *schema.SchemaModel) string {
	if m == nil || len(m.Tables) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range m.Tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		encodeTable(&b, t, m.WithComments)
	}
	return b.String()
}

// EncodeTable renders a single table line.
func EncodeTable(t schema.TableMetadata, withComments bool) string {
	var b strings.Builder
	encodeTable(&b, t, withComments)
	return b.String()
}

func encodeTable(b *strings.Builder, t schema.TableMetadata, withComments bool) {
	b.WriteString("T:")
	b.WriteString(t.Name)
	b.WriteByte('(')
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(Abbreviation(c.Type))
	}
	b.WriteByte(')')

	if withComments {
		if note := annotation(t); note != "" {
			b.WriteString(" # ")
			b.WriteString(note)
		}
	}
}

// annotation joins the table comment and column comments, in column order:
// "<table comment>; <col>: <comment>; ...".
func annotation(t schema.TableMetadata) string {
	var parts []string
	if c := flatten(t.Comment); c != "" {
		parts = append(parts, c)
	}
	for _, col := range t.Columns {
		if c := flatten(col.Comment); c != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", col.Name, c))
		}
	}
	return strings.Join(parts, "; ")
}

// flatten keeps an annotation on its table's line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
