// Package nl2sql turns a compact schema description and a question into SQL.
package nl2sql

import (
	"context"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
)

type Request struct {
	// SchemaDSL is the encoded schema, one T:table(col:abbr,...) line per table.
	SchemaDSL    string      `json:"schema_dsl"`
	Question     string      `json:"question"`
	CustomPrompt string      `json:"custom_prompt,omitempty"`
	Dialect      dialect.Tag `json:"dialect"`
	// LimitHint is the dialect's row-limiting clause the query should carry,
	// e.g. "LIMIT 100" or "FETCH FIRST 100 ROWS ONLY".
	LimitHint string `json:"limit_hint,omitempty"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, req Request) (Result, error)

func (f TranslatorFunc) Translate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
