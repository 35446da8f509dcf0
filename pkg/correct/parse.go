package correct

import (
	"strings"

	"github.com/terralinea/geosql-engine/pkg/catalog"
)

// tableRef is a table mentioned in FROM or JOIN.
type tableRef struct {
	schema string
	name   string
	alias  string

	table     *catalog.Table // nil when unknown or opaque
	ambiguous bool           // bare name matches tables in several schemas
	opaque    bool           // subquery or CTE reference; not judged against the catalog
}

// refName returns how the relation is addressed in column qualifiers.
func (r *tableRef) refName() string {
	if r.alias != "" {
		return r.alias
	}
	return r.name
}

// columnRef is a column mention: bare, alias-qualified or fully qualified.
type columnRef struct {
	qualifier string // "" for bare references
	ref       *tableRef
	column    string
	colTok    token
	opaque    bool // qualifier points at a subquery/CTE; left alone
}

// statement is the lightly parsed view of one SQL string.
type statement struct {
	sql      string
	toks     []token
	refs     []*tableRef
	colRefs  []columnRef
	consumed map[int]bool    // token indexes belonging to FROM/JOIN clauses or CTE declarations
	declared map[string]bool // SELECT-list aliases; not judged against the catalog
}

// parseStatement tokenizes sql and resolves its table and column references
// against the snapshot.
func parseStatement(sql string, snap *catalog.Snapshot) *statement {
	st := &statement{
		sql:      sql,
		toks:     lex(sql),
		consumed: map[int]bool{},
		declared: map[string]bool{},
	}
	ctes := st.collectCTENames()
	st.parseTableRefs(snap, ctes)
	st.collectDeclaredAliases()
	st.parseColumnRefs()
	return st
}

// collectDeclaredAliases records "expr AS name" aliases so that a later
// ORDER BY or HAVING on the alias is not mistaken for a table column.
func (st *statement) collectDeclaredAliases() {
	for i := 0; i+1 < len(st.toks); i++ {
		if st.toks[i].is("as") && !st.consumed[i] && st.toks[i+1].kind == tokIdent {
			st.declared[strings.ToLower(unquote(st.toks[i+1]))] = true
		}
	}
}

// collectCTENames returns the names declared in a leading WITH clause and
// marks the declaration tokens consumed, so neither the CTE name nor its
// column list is mistaken for a catalog column reference. CTE references
// cannot be judged against the catalog.
func (st *statement) collectCTENames() map[string]bool {
	toks := st.toks
	names := map[string]bool{}
	if len(toks) == 0 || !toks[0].is("with") {
		return names
	}
	i := 1
	if i < len(toks) && toks[i].is("recursive") {
		i++
	}
	for i < len(toks) {
		if toks[i].kind != tokIdent {
			break
		}
		names[strings.ToLower(toks[i].text)] = true
		st.consumed[i] = true
		i++
		// optional column list: name (a, b) AS (...)
		if i < len(toks) && toks[i].text == "(" {
			next := skipParens(toks, i)
			for k := i; k < next; k++ {
				st.consumed[k] = true
			}
			i = next
		}
		if i >= len(toks) || !toks[i].is("as") {
			break
		}
		i++
		if i >= len(toks) || toks[i].text != "(" {
			break
		}
		i = skipParens(toks, i)
		if i < len(toks) && toks[i].text == "," {
			i++
			continue
		}
		break
	}
	return names
}

// skipParens advances past a balanced parenthesis group starting at open.
// Returns the index after the matching close paren.
func skipParens(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(toks)
}

// parseTableRefs scans FROM and JOIN clauses. FROM lists separated by
// commas produce one ref each.
func (st *statement) parseTableRefs(snap *catalog.Snapshot, ctes map[string]bool) {
	toks := st.toks
	for i := 0; i < len(toks); i++ {
		if !toks[i].is("from") && !toks[i].is("join") {
			continue
		}
		j := i + 1
		for j < len(toks) {
			j = st.parseOneRef(toks, j, snap, ctes)
			// comma-separated FROM list
			if toks[i].is("from") && j < len(toks) && toks[j].text == "," {
				j++
				continue
			}
			break
		}
		i = j - 1
	}
}

// parseOneRef parses a single relation reference starting at index j and
// returns the index after it (including any alias).
func (st *statement) parseOneRef(toks []token, j int, snap *catalog.Snapshot, ctes map[string]bool) int {
	if j >= len(toks) {
		return j
	}

	// Derived table: FROM ( SELECT ... ) alias
	if toks[j].text == "(" {
		j = skipParens(toks, j)
		ref := &tableRef{opaque: true}
		j = st.parseAlias(toks, j, ref)
		if ref.alias != "" {
			st.refs = append(st.refs, ref)
		}
		return j
	}

	if toks[j].kind != tokIdent || isKeyword(toks[j].text) {
		return j
	}

	ref := &tableRef{}
	st.consumed[j] = true
	first := unquote(toks[j])
	j++
	if j+1 < len(toks) && toks[j].text == "." && toks[j+1].kind == tokIdent {
		st.consumed[j] = true
		st.consumed[j+1] = true
		ref.schema = first
		ref.name = unquote(toks[j+1])
		j += 2
	} else {
		ref.name = first
	}

	// Table-valued function in FROM: unnest(...), generate_series(...)
	if j < len(toks) && toks[j].text == "(" {
		j = skipParens(toks, j)
		ref.opaque = true
		j = st.parseAlias(toks, j, ref)
		if ref.alias != "" {
			st.refs = append(st.refs, ref)
		}
		return j
	}

	j = st.parseAlias(toks, j, ref)

	switch {
	case ref.schema == "" && ctes[strings.ToLower(ref.name)]:
		ref.opaque = true
	case ref.schema != "":
		ref.table, _ = snap.Table(ref.schema, ref.name)
	default:
		candidates := snap.TablesNamed(ref.name)
		if len(candidates) == 1 {
			ref.table = candidates[0]
		} else if len(candidates) > 1 {
			ref.ambiguous = true
		}
	}

	st.refs = append(st.refs, ref)
	return j
}

// parseAlias consumes an optional "AS alias" or bare alias after a relation.
func (st *statement) parseAlias(toks []token, j int, ref *tableRef) int {
	if j < len(toks) && toks[j].is("as") {
		st.consumed[j] = true
		j++
		if j < len(toks) && toks[j].kind == tokIdent {
			ref.alias = unquote(toks[j])
			st.consumed[j] = true
			j++
		}
		return j
	}
	if j < len(toks) && toks[j].kind == tokIdent && !isKeyword(toks[j].text) {
		ref.alias = unquote(toks[j])
		st.consumed[j] = true
		j++
	}
	return j
}

// lookupRef resolves a column qualifier (alias, bare table name or
// schema-qualified name) to a parsed relation reference.
func (st *statement) lookupRef(qualifier string) *tableRef {
	for _, r := range st.refs {
		if strings.EqualFold(r.refName(), qualifier) {
			return r
		}
	}
	// schema.table qualifier matching a ref declared with the same schema
	for _, r := range st.refs {
		if r.schema != "" && strings.EqualFold(r.schema+"."+r.name, qualifier) {
			return r
		}
		if strings.EqualFold(r.name, qualifier) {
			return r
		}
	}
	return nil
}

// parseColumnRefs finds bare and qualified column references outside
// FROM/JOIN clauses and function names.
func (st *statement) parseColumnRefs() {
	toks := st.toks
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokIdent || t.quoted || st.consumed[i] {
			continue
		}
		// part of a chain processed at its start
		if i > 0 && toks[i-1].text == "." {
			continue
		}
		// cast target (:: or CAST(x AS t)) or select alias
		if i > 0 && (toks[i-1].text == ":" || toks[i-1].is("as")) {
			continue
		}

		// chain length
		parts := []int{i}
		j := i
		for j+2 < len(toks) && toks[j+1].text == "." && toks[j+2].kind == tokIdent {
			parts = append(parts, j+2)
			j += 2
			if len(parts) == 3 {
				break
			}
		}
		last := parts[len(parts)-1]

		// function call, or x.* projection
		if last+1 < len(toks) && toks[last+1].text == "(" {
			continue
		}
		if len(parts) > 1 && toks[last].quoted {
			continue
		}

		switch len(parts) {
		case 1:
			if isKeyword(t.text) || st.declared[strings.ToLower(t.text)] {
				continue
			}
			// bare ident addressing a referenced relation, by alias or by
			// name, is not a column
			if st.lookupRef(t.text) != nil {
				continue
			}
			st.colRefs = append(st.colRefs, columnRef{column: unquote(t), colTok: t})
		case 2:
			ref := st.lookupRef(unquote(toks[parts[0]]))
			st.colRefs = append(st.colRefs, columnRef{
				qualifier: unquote(toks[parts[0]]),
				ref:       ref,
				column:    unquote(toks[parts[1]]),
				colTok:    toks[parts[1]],
				opaque:    ref != nil && ref.opaque,
			})
		case 3:
			qualifier := unquote(toks[parts[0]]) + "." + unquote(toks[parts[1]])
			ref := st.lookupRef(qualifier)
			st.colRefs = append(st.colRefs, columnRef{
				qualifier: qualifier,
				ref:       ref,
				column:    unquote(toks[parts[2]]),
				colTok:    toks[parts[2]],
				opaque:    ref != nil && ref.opaque,
			})
		}
		i = last
	}
}

func unquote(t token) string {
	if t.quoted && len(t.text) >= 2 {
		return strings.ReplaceAll(t.text[1:len(t.text)-1], `""`, `"`)
	}
	return t.text
}

// funcCall is a function invocation with its top-level argument spans.
type funcCall struct {
	name     string
	nameTok  token
	nameIdx  int
	closeTok token
	closeIdx int
	args     []argSpan
}

// argSpan is one top-level argument: token range plus trimmed byte span.
type argSpan struct {
	startTok, endTok int // token index range, end exclusive
	start, end       int // byte span in the original SQL
}

// findCalls returns every function call in the token stream, nested calls
// included.
func findCalls(toks []token) []funcCall {
	var calls []funcCall
	for i := 0; i+1 < len(toks); i++ {
		if toks[i].kind != tokIdent || toks[i+1].text != "(" {
			continue
		}
		call := funcCall{name: toks[i].text, nameTok: toks[i], nameIdx: i}
		depth := 0
		argStart := i + 2
		closed := false
		for j := i + 1; j < len(toks) && !closed; j++ {
			switch toks[j].text {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					if argStart < j {
						call.args = append(call.args, spanOf(toks, argStart, j))
					}
					call.closeTok = toks[j]
					call.closeIdx = j
					closed = true
				}
			case ",":
				if depth == 1 {
					call.args = append(call.args, spanOf(toks, argStart, j))
					argStart = j + 1
				}
			}
		}
		if closed {
			calls = append(calls, call)
		}
	}
	return calls
}

func spanOf(toks []token, startTok, endTok int) argSpan {
	return argSpan{
		startTok: startTok,
		endTok:   endTok,
		start:    toks[startTok].start,
		end:      toks[endTok-1].end,
	}
}

// argColumn interprets an argument as a plain column reference
// (col, qualifier.col or schema.table.col). Returns false for anything else.
func argColumn(toks []token, span argSpan) (qualifier, column string, colTok token, ok bool) {
	n := span.endTok - span.startTok
	t := toks[span.startTok:span.endTok]
	switch n {
	case 1:
		if t[0].kind == tokIdent && !isKeyword(t[0].text) {
			return "", unquote(t[0]), t[0], true
		}
	case 3:
		if t[0].kind == tokIdent && t[1].text == "." && t[2].kind == tokIdent {
			return unquote(t[0]), unquote(t[2]), t[2], true
		}
	case 5:
		if t[0].kind == tokIdent && t[1].text == "." && t[2].kind == tokIdent &&
			t[3].text == "." && t[4].kind == tokIdent {
			return unquote(t[0]) + "." + unquote(t[2]), unquote(t[4]), t[4], true
		}
	}
	return "", "", token{}, false
}

// argIsCall reports whether the argument is an invocation of the named
// function (used to detect existing ST_Transform wrappers).
func argIsCall(toks []token, span argSpan, name string) bool {
	if span.endTok-span.startTok < 2 {
		return false
	}
	return toks[span.startTok].is(name) && toks[span.startTok+1].text == "("
}
