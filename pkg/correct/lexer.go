package correct

import (
	"sort"
	"strings"
)

// The engine does not parse SQL into a full syntax tree; it tokenizes just
// enough to locate identifiers, string literals, function calls and
// statement boundaries, and rewrites by splicing replacements back into the
// original text.

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind   tokenKind
	text   string // raw text, quotes included for strings and quoted identifiers
	start  int
	end    int // byte offset past the token
	quoted bool
}

// fold returns the lowercased token text for case-insensitive comparison.
func (t token) fold() string {
	return strings.ToLower(t.text)
}

func (t token) is(word string) bool {
	return t.kind == tokIdent && !t.quoted && strings.EqualFold(t.text, word)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// lex tokenizes sql, skipping whitespace and comments. String literals and
// double-quoted identifiers are kept as single tokens so later passes never
// rewrite inside them.
func lex(sql string) []token {
	var toks []token
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}

		case c == '\'':
			start := i
			i++
			for i < n {
				if sql[i] == '\'' {
					// '' is an escaped quote inside the literal
					if i+1 < n && sql[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, token{kind: tokString, text: sql[start:i], start: start, end: i})

		case c == '"':
			start := i
			i++
			for i < n {
				if sql[i] == '"' {
					if i+1 < n && sql[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: sql[start:i], start: start, end: i, quoted: true})

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(sql[i+1])):
			start := i
			for i < n && (isDigit(sql[i]) || sql[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: sql[start:i], start: start, end: i})

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(sql[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: sql[start:i], start: start, end: i})

		default:
			toks = append(toks, token{kind: tokPunct, text: sql[i : i+1], start: i, end: i + 1})
			i++
		}
	}
	return toks
}

// edit is a pending replacement of sql[start:end] with text.
type edit struct {
	start, end int
	text       string
}

// applyEdits splices non-overlapping edits into sql. Overlapping edits are
// a programming error; the later one is dropped.
func applyEdits(sql string, edits []edit) string {
	if len(edits) == 0 {
		return sql
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(sql) + 64)
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		b.WriteString(sql[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(sql[pos:])
	return b.String()
}

// sqlKeywords are words never treated as column references.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "as": true, "on": true, "join": true, "inner": true,
	"outer": true, "left": true, "right": true, "full": true, "cross": true,
	"group": true, "by": true, "order": true, "limit": true, "offset": true,
	"having": true, "distinct": true, "union": true, "all": true, "any": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"null": true, "true": true, "false": true, "like": true, "ilike": true,
	"in": true, "is": true, "between": true, "exists": true, "asc": true,
	"desc": true, "with": true, "recursive": true, "using": true,
	"natural": true, "cast": true, "interval": true, "extract": true,
	"explain": true, "analyze": true, "verbose": true, "format": true,
	"nulls": true, "first": true, "last": true, "over": true,
	"partition": true, "filter": true, "lateral": true, "values": true,
	"integer": true, "bigint": true,
	"numeric": true, "text": true, "varchar": true, "boolean": true,
	"double": true, "precision": true, "date": true, "timestamp": true,
	"time": true, "real": true, "float": true,
}

func isKeyword(word string) bool {
	return sqlKeywords[strings.ToLower(word)]
}
