// Package risk is a conservative textual gate in front of query execution.
// It does not parse SQL: it rejects anything that is not a SELECT or a
// WITH ... SELECT, and any statement mentioning a denylisted keyword as a
// whole word. Literals and comments are recognised with the quoting rules of
// the target engine.
package risk

import (
	"regexp"
	"strings"

	"github.com/FreePeak/nl2sql-mcp-server/internal/observability"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
)

// Denylist holds keywords rejected anywhere in a statement, comments
// included, but not inside string literals.
var Denylist = []string{
	"DROP", "DELETE", "TRUNCATE", "ALTER", "UPDATE", "INSERT",
	"GRANT", "REVOKE", "EXEC", "EXECUTE", "MERGE", "CREATE",
}

// Patterns reported for statements that have no keyword to name.
const (
	PatternEmpty     = "EMPTY"
	PatternNonSelect = "NON_SELECT"
	// PatternUnterminated marks text ending inside a literal, quoted
	// identifier or comment, where the engine's reading cannot be predicted.
	PatternUnterminated = "UNTERMINATED"
)

var (
	denied = func() map[string]struct{} {
		m := make(map[string]struct{}, len(Denylist))
		for _, kw := range Denylist {
			m[kw] = struct{}{}
		}
		return m
	}()
	allowedLeaders = map[string]struct{}{"SELECT": {}, "WITH": {}}

	wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_$#]*`)
)

// RiskDecision is the verdict for one SQL string.
type RiskDecision struct {
	IsSafe         bool   `json:"is_safe"`
	MatchedPattern string `json:"matched_pattern,omitempty"`
}

func safe() RiskDecision { return RiskDecision{IsSafe: true} }

func unsafe(pattern string) RiskDecision {
	return RiskDecision{IsSafe: false, MatchedPattern: pattern}
}

// Classify decides whether sql may be executed on an engine whose dialect is
// not known. The input is never modified. The text is lexed under every
// dialect's quoting and comment rules and must pass all of them.
func Classify(sql string) RiskDecision {
	return classifyModes(sql, allModes)
}

// ClassifyFor decides whether sql may be executed against tag, lexing it the
// way that engine does. Unknown tags fall back to Classify.
func ClassifyFor(tag dialect.Tag, sql string) RiskDecision {
	return classifyModes(sql, modesFor(tag))
}

func classifyModes(sql string, modes []lexMode) RiskDecision {
	for _, m := range modes {
		if d := classify(sql, m); !d.IsSafe {
			return d
		}
	}
	return safe()
}

func classify(sql string, m lexMode) RiskDecision {
	withComments, code, terminated := scan(sql, m)

	for _, word := range wordPattern.FindAllString(withComments, -1) {
		upper := strings.ToUpper(word)
		if _, ok := denied[upper]; ok {
			return unsafe(upper)
		}
	}
	if !terminated {
		return unsafe(PatternUnterminated)
	}

	statements := 0
	for _, stmt := range strings.Split(code, ";") {
		if strings.TrimSpace(strings.Trim(stmt, "() \t\r\n")) == "" {
			continue
		}
		statements++
		lead := leadingWord(stmt)
		if lead == "" {
			return unsafe(PatternNonSelect)
		}
		if _, ok := allowedLeaders[lead]; !ok {
			return unsafe(lead)
		}
	}
	if statements == 0 {
		return unsafe(PatternEmpty)
	}
	return safe()
}

// Validate returns a *dberr.RiskRejectedError when sql is not safe to run
// against tag.
func Validate(tag dialect.Tag, sql string) error {
	decision := ClassifyFor(tag, sql)
	if decision.IsSafe {
		return nil
	}
	observability.IncrementRiskRejections(decision.MatchedPattern)
	return &dberr.RiskRejectedError{Dialect: string(tag), Pattern: decision.MatchedPattern}
}

// leadingWord returns the first keyword of stmt, uppercased, skipping
// opening parentheses.
func leadingWord(stmt string) string {
	s := strings.TrimLeft(stmt, "( \t\r\n")
	loc := wordPattern.FindStringIndex(s)
	if loc == nil || loc[0] != 0 {
		return ""
	}
	return strings.ToUpper(s[loc[0]:loc[1]])
}

// lexMode selects the quoting and comment rules of one engine.
type lexMode struct {
	backslashEscapes   bool // backslash escapes inside '...' and "..."
	hashComments       bool // # starts a line comment
	dashNeedsSpace     bool // -- starts a comment only when followed by whitespace
	executableComments bool // /*!...*/ is code
	backtickIdents     bool
	escapeStrings      bool // E'...' takes backslash escapes
	dollarQuotes       bool // $tag$...$tag$
	nestedComments     bool
	bracketIdents      bool // [...]
	qQuotes            bool // q'[...]'
}

var (
	// MySQL decides backslash handling per session, so both readings must pass.
	mysqlModes = []lexMode{
		{hashComments: true, dashNeedsSpace: true, executableComments: true, backtickIdents: true},
		{backslashEscapes: true, hashComments: true, dashNeedsSpace: true, executableComments: true, backtickIdents: true},
	}
	postgresModes  = []lexMode{{escapeStrings: true, dollarQuotes: true, nestedComments: true}}
	sqlserverModes = []lexMode{{bracketIdents: true, nestedComments: true}}
	oracleModes    = []lexMode{{qQuotes: true}}

	allModes = concatModes(mysqlModes, postgresModes, sqlserverModes, oracleModes)
)

func concatModes(sets ...[]lexMode) []lexMode {
	var out []lexMode
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

func modesFor(tag dialect.Tag) []lexMode {
	switch {
	case tag == dialect.MySQL:
		return mysqlModes
	case tag.PostgresFamily():
		return postgresModes
	case tag == dialect.SQLServer:
		return sqlserverModes
	case tag.OracleFamily():
		return oracleModes
	default:
		return allModes
	}
}

const (
	stateCode = iota
	stateLiteral
	stateQuotedIdent
	stateLineComment
	stateBlockComment
	stateDollarQuote
	stateQQuote
)

// scan lexes sql once under m. withComments has the contents of string
// literals blanked; code additionally has comments blanked. Offsets are kept.
// terminated is false when the input ends inside a literal, quoted
// identifier or block comment.
func scan(sql string, m lexMode) (withComments, code string, terminated bool) {
	wc := []byte(sql)
	cd := []byte(sql)
	blank := func(i int) { wc[i], cd[i] = ' ', ' ' }
	wordBefore := func(i int) bool { return i > 0 && isWordByte(sql[i-1]) }

	state := stateCode
	var (
		closer    byte
		escapes   bool
		dollarTag string
		depth     int
		inExec    bool
	)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		next := byte(0)
		if i+1 < len(sql) {
			next = sql[i+1]
		}

		switch state {
		case stateCode:
			switch {
			case inExec && c == '*' && next == '/':
				cd[i], cd[i+1] = ' ', ' '
				i++
				inExec = false
			case c == '\'':
				state = stateLiteral
				escapes = m.backslashEscapes ||
					(m.escapeStrings && i > 0 && (sql[i-1] == 'e' || sql[i-1] == 'E') && !wordBefore(i-1))
			case m.qQuotes && (c == 'q' || c == 'Q') && next == '\'' && qPrefixed(sql, i):
				if i+2 >= len(sql) {
					return string(wc), string(cd), false
				}
				closer = qCloser(sql[i+2])
				state = stateQQuote
				i += 2
			case m.dollarQuotes && c == '$' && !wordBefore(i):
				if tag := dollarTagAt(sql, i); tag != "" {
					state, dollarTag = stateDollarQuote, tag
					i += len(tag) - 1
				}
			case c == '"':
				state, closer = stateQuotedIdent, c
			case m.backtickIdents && c == '`':
				state, closer = stateQuotedIdent, c
			case m.bracketIdents && c == '[':
				state, closer = stateQuotedIdent, ']'
			case c == '-' && next == '-' && (!m.dashNeedsSpace || i+2 >= len(sql) || sql[i+2] <= ' '):
				state = stateLineComment
				cd[i], cd[i+1] = ' ', ' '
				i++
			case m.hashComments && c == '#':
				state = stateLineComment
				cd[i] = ' '
			case m.executableComments && !inExec && c == '/' && next == '*' && i+2 < len(sql) && sql[i+2] == '!':
				inExec = true
				j := i + 3
				for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
					j++
				}
				for k := i; k < j; k++ {
					cd[k] = ' '
				}
				i = j - 1
			case c == '/' && next == '*':
				state, depth = stateBlockComment, 1
				cd[i], cd[i+1] = ' ', ' '
				i++
			}
		case stateLiteral:
			switch {
			case escapes && c == '\\' && next != 0:
				blank(i)
				blank(i + 1)
				i++
			case c == '\'' && next == '\'':
				blank(i)
				blank(i + 1)
				i++
			case c == '\'':
				state = stateCode
			default:
				blank(i)
			}
		case stateQuotedIdent:
			switch {
			case m.backslashEscapes && c == '\\' && next != 0 && closer == '"':
				i++
			case c == closer && next == closer:
				i++
			case c == closer:
				state = stateCode
			}
		case stateDollarQuote:
			if strings.HasPrefix(sql[i:], dollarTag) {
				i += len(dollarTag) - 1
				state = stateCode
			} else {
				blank(i)
			}
		case stateQQuote:
			if c == closer && next == '\'' {
				i++
				state = stateCode
			} else {
				blank(i)
			}
		case stateLineComment:
			if c == '\n' {
				state = stateCode
			} else {
				cd[i] = ' '
			}
		case stateBlockComment:
			switch {
			case m.nestedComments && c == '/' && next == '*':
				cd[i], cd[i+1] = ' ', ' '
				i++
				depth++
			case c == '*' && next == '/':
				cd[i], cd[i+1] = ' ', ' '
				i++
				depth--
				if depth == 0 {
					state = stateCode
				}
			default:
				cd[i] = ' '
			}
		}
	}
	terminated = !inExec && (state == stateCode || state == stateLineComment)
	return string(wc), string(cd), terminated
}

// qPrefixed reports whether the q at i opens an Oracle alternative-quote
// literal, optionally behind an N prefix.
func qPrefixed(sql string, i int) bool {
	if i == 0 || !isWordByte(sql[i-1]) {
		return true
	}
	p := sql[i-1]
	return (p == 'n' || p == 'N') && (i == 1 || !isWordByte(sql[i-2]))
}

func qCloser(open byte) byte {
	switch open {
	case '[':
		return ']'
	case '{':
		return '}'
	case '(':
		return ')'
	case '<':
		return '>'
	}
	return open
}

// dollarTagAt returns the $tag$ opening at i, or "" when the $ starts
// something else such as a positional parameter.
func dollarTagAt(sql string, i int) string {
	j := i + 1
	for j < len(sql) && sql[j] != '$' {
		c := sql[j]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (j > i+1 && c >= '0' && c <= '9')) {
			return ""
		}
		j++
	}
	if j >= len(sql) {
		return ""
	}
	return sql[i : j+1]
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c == '#' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
