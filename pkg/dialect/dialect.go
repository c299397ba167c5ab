// Package dialect holds the per-engine constants every other component keys
// off: connection string templates, default schema rules, result limiting
// syntax, identifier case and the raw-type normalization tables.
package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
)

// Tag identifies a target database engine.
type Tag string

const (
	MySQL      Tag = "mysql"
	PostgreSQL Tag = "postgresql"
	Oracle     Tag = "oracle"
	SQLServer  Tag = "sqlserver"
	GaussDB    Tag = "gaussdb"
	Kingbase   Tag = "kingbase"
	DM         Tag = "dm"
)

// All lists every supported tag in a stable order.
var All = []Tag{MySQL, PostgreSQL, Oracle, SQLServer, GaussDB, Kingbase, DM}

// aliases accepted by Parse besides the canonical tag names.
var aliases = map[string]Tag{
	"postgres":   PostgreSQL,
	"pg":         PostgreSQL,
	"mssql":      SQLServer,
	"kingbasees": Kingbase,
	"opengauss":  GaussDB,
	"dameng":     DM,
}

// Parse resolves a user supplied tag, case-insensitively.
func Parse(s string) (Tag, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if _, ok := descriptors[Tag(name)]; ok {
		return Tag(name), nil
	}
	if tag, ok := aliases[name]; ok {
		return tag, nil
	}
	return "", &dberr.UnsupportedDialectError{Tag: s}
}

// SchemaRule decides the effective schema when a spec leaves it empty.
type SchemaRule int

const (
	// SchemaPublic defaults to "public".
	SchemaPublic SchemaRule = iota
	// SchemaUpperUser defaults to the uppercased username.
	SchemaUpperUser
	// SchemaDBO defaults to "dbo".
	SchemaDBO
	// SchemaDatabase defaults to the database name.
	SchemaDatabase
)

// LimitStyle is the syntax an engine uses to bound a result set.
type LimitStyle int

const (
	LimitClause LimitStyle = iota
	TopClause
	FetchFirst
)

// IdentCase is the case an engine folds unquoted identifiers to.
type IdentCase int

const (
	CasePreserve IdentCase = iota
	CaseLower
	CaseUpper
)

// SessionSchema says how an engine scopes name resolution to a schema.
type SessionSchema int

const (
	SessionNone SessionSchema = iota
	SessionSearchPath
	SessionCurrentSchema
)

// Descriptor is the constant description of one dialect.
type Descriptor struct {
	Tag Tag
	// Scheme is the URI scheme of the canonical connection string.
	Scheme string
	// DriverName is the database/sql driver registered for this dialect.
	DriverName  string
	DefaultPort int
	// URIParams are appended to the canonical connection string.
	URIParams     string
	Schema        SchemaRule
	Limit         LimitStyle
	Ident         IdentCase
	SessionSchema SessionSchema
	// ReadOnlyTx is set when the driver honours sql.TxOptions.ReadOnly.
	ReadOnlyTx bool
	// NumberScale maps NUMBER(p) and NUMBER(p,0) to int.
	NumberScale bool
	Types       map[string]NormalizedType
	// Params lists the connection parameters a caller may set, spelled as
	// the driver expects them.
	Params []string
}

var (
	mysqlParams     = []string{"charset", "collation", "loc", "tls", "timeout", "readTimeout", "writeTimeout"}
	postgresParams  = []string{"sslmode", "sslrootcert", "sslcert", "sslkey", "connect_timeout", "application_name"}
	sqlserverParams = []string{"encrypt", "TrustServerCertificate", "certificate", "hostNameInCertificate", "connection timeout", "dial timeout", "app name"}
	oracleParams    = []string{"SSL", "SSL VERIFY", "WALLET", "CONNECTION TIMEOUT"}
)

var descriptors = map[Tag]Descriptor{
	MySQL: {
		Tag: MySQL, Scheme: "mysql", DriverName: "mysql", DefaultPort: 3306,
		URIParams: "charset=utf8mb4",
		Schema:    SchemaDatabase, Limit: LimitClause, Ident: CasePreserve,
		ReadOnlyTx: true,
		Types:      mysqlTypes,
		Params:     mysqlParams,
	},
	PostgreSQL: {
		Tag: PostgreSQL, Scheme: "postgresql", DriverName: "postgres", DefaultPort: 5432,
		Schema: SchemaPublic, Limit: LimitClause, Ident: CaseLower,
		SessionSchema: SessionSearchPath, ReadOnlyTx: true,
		Types:  postgresTypes,
		Params: postgresParams,
	},
	GaussDB: {
		Tag: GaussDB, Scheme: "postgresql", DriverName: "pgx", DefaultPort: 5432,
		URIParams: "sslmode=disable",
		Schema:    SchemaPublic, Limit: LimitClause, Ident: CaseLower,
		SessionSchema: SessionSearchPath, ReadOnlyTx: true,
		Types:  gaussTypes,
		Params: postgresParams,
	},
	Kingbase: {
		Tag: Kingbase, Scheme: "postgresql", DriverName: "postgres", DefaultPort: 54321,
		Schema: SchemaPublic, Limit: LimitClause, Ident: CaseLower,
		SessionSchema: SessionSearchPath, ReadOnlyTx: true,
		Types:  kingbaseTypes,
		Params: postgresParams,
	},
	SQLServer: {
		Tag: SQLServer, Scheme: "mssql", DriverName: "sqlserver", DefaultPort: 1433,
		Schema: SchemaDBO, Limit: TopClause, Ident: CasePreserve,
		Types:  sqlserverTypes,
		Params: sqlserverParams,
	},
	Oracle: {
		Tag: Oracle, Scheme: "oracle", DriverName: "oracle", DefaultPort: 1521,
		Schema: SchemaUpperUser, Limit: FetchFirst, Ident: CaseUpper,
		SessionSchema: SessionCurrentSchema, NumberScale: true,
		Types:  oracleTypes,
		Params: oracleParams,
	},
	DM: {
		Tag: DM, Scheme: "oracle", DriverName: "oracle", DefaultPort: 5236,
		Schema: SchemaUpperUser, Limit: FetchFirst, Ident: CaseUpper,
		SessionSchema: SessionCurrentSchema, NumberScale: true,
		Types:  dmTypes,
		Params: oracleParams,
	},
}

// Lookup returns the descriptor for tag.
func Lookup(tag Tag) (Descriptor, error) {
	d, ok := descriptors[tag]
	if !ok {
		return Descriptor{}, &dberr.UnsupportedDialectError{Tag: string(tag)}
	}
	return d, nil
}

// ErrUnsupportedParam is returned for connection parameters outside a
// dialect's allowlist.
var ErrUnsupportedParam = errors.New("unsupported connection parameter")

// CheckParams rejects any parameter the dialect does not allow. Unknown
// parameters can change driver behaviour, such as MySQL's multiStatements
// or session variables.
func (d Descriptor) CheckParams(params map[string]string) error {
	for k := range params {
		allowed := false
		for _, p := range d.Params {
			if k == p {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w %q for %s", ErrUnsupportedParam, k, d.Tag)
		}
	}
	return nil
}

// PostgresFamily reports whether tag speaks the PostgreSQL catalog.
func (t Tag) PostgresFamily() bool {
	return t == PostgreSQL || t == GaussDB || t == Kingbase
}

// OracleFamily reports whether tag speaks the Oracle catalog.
func (t Tag) OracleFamily() bool {
	return t == Oracle || t == DM
}

// ResolveSchema applies the default schema rule to an empty schema.
func (d Descriptor) ResolveSchema(spec ConnectionSpec) string {
	if s := strings.TrimSpace(spec.Schema); s != "" {
		if d.Ident == CaseUpper {
			return strings.ToUpper(s)
		}
		return s
	}
	switch d.Schema {
	case SchemaUpperUser:
		return strings.ToUpper(spec.Username)
	case SchemaDBO:
		return "dbo"
	case SchemaDatabase:
		return spec.Database
	default:
		return "public"
	}
}

// FoldIdentifier folds an unquoted identifier to the engine's canonical case.
func (d Descriptor) FoldIdentifier(name string) string {
	switch d.Ident {
	case CaseUpper:
		return strings.ToUpper(name)
	case CaseLower:
		return strings.ToLower(name)
	default:
		return name
	}
}

// LimitClause renders the syntax bounding a result to n rows.
func (d Descriptor) LimitClause(n int) string {
	switch d.Limit {
	case TopClause:
		return "TOP " + strconv.Itoa(n)
	case FetchFirst:
		return "FETCH FIRST " + strconv.Itoa(n) + " ROWS ONLY"
	default:
		return "LIMIT " + strconv.Itoa(n)
	}
}

var limitPatterns = map[LimitStyle]*regexp.Regexp{
	LimitClause: regexp.MustCompile(`(?i)\blimit\s+\d+`),
	TopClause:   regexp.MustCompile(`(?i)\bselect\s+(distinct\s+)?top\s*\(?\s*\d+`),
	FetchFirst:  regexp.MustCompile(`(?i)\bfetch\s+(first|next)\s+\d+\s+rows?\b|\brownum\s*<=?\s*\d+`),
}

// HasLimit reports whether sql already carries this dialect's limiting syntax.
func (d Descriptor) HasLimit(sql string) bool {
	return limitPatterns[d.Limit].MatchString(sql)
}

// SessionSchemaStatement returns the statement that scopes unqualified names
// to schema, or "" when the dialect needs none.
func (d Descriptor) SessionSchemaStatement(schema string) string {
	if schema == "" {
		return ""
	}
	switch d.SessionSchema {
	case SessionSearchPath:
		return "SET search_path TO " + pq.QuoteIdentifier(schema)
	case SessionCurrentSchema:
		return fmt.Sprintf(`ALTER SESSION SET CURRENT_SCHEMA = "%s"`, strings.ReplaceAll(schema, `"`, `""`))
	default:
		return ""
	}
}
