package correct

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/catalog"
)

// spatialGeomArgs maps spatial functions to the positions of their geometry
// arguments.
var spatialGeomArgs = map[string][]int{
	"st_intersects":    {0, 1},
	"st_dwithin":       {0, 1},
	"st_distance":      {0, 1},
	"st_contains":      {0, 1},
	"st_within":        {0, 1},
	"st_touches":       {0, 1},
	"st_crosses":       {0, 1},
	"st_overlaps":      {0, 1},
	"st_buffer":        {0},
	"st_area":          {0},
	"st_centroid":      {0},
	"st_transform":     {0},
	"st_clusterkmeans": {0},
	"st_length":        {0},
	"st_srid":          {0},
	"st_x":             {0},
	"st_y":             {0},
	"st_makevalid":     {0},
	"st_envelope":      {0},
}

// metricDistanceFuncs measure or construct in linear units and need a
// projected SRID when the intent is metric.
var metricDistanceFuncs = map[string][]int{
	"st_dwithin":  {0, 1},
	"st_distance": {0, 1},
	"st_buffer":   {0},
	"st_length":   {0},
}

// sridPredicateFuncs compare two geometries and fail or lie when the SRIDs
// differ; their arguments are harmonized.
var sridPredicateFuncs = map[string]bool{
	"st_intersects": true,
	"st_contains":   true,
	"st_within":     true,
	"st_touches":    true,
	"st_crosses":    true,
	"st_overlaps":   true,
}

// Engine applies the correction pipeline. It is stateless and safe for
// concurrent use; the logger only emits debug traces.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine. If logger is nil, a no-op logger is used.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger.Named("correct")}
}

// Correct rewrites a model-drafted SQL statement against the catalog in ctx
// and gates the result through the safety validator. Given the same draft
// and snapshot it always produces the same result.
//
// Stage order is a documented policy choice: functional rewrites (geometry
// canonicalization, SRID normalization) run before the literal alias pass so
// that operator renames cannot disturb argument positions mid-flight.
func (e *Engine) Correct(draft string, ctx *Context) Result {
	sql := strings.TrimSpace(draft)
	if sql == "" {
		return rejected(ReasonEmptyStatement, "", "empty SQL draft")
	}

	var applied []string
	var findings []Finding

	sql, fixes, fnd := e.resolveIdentifiers(sql, ctx)
	applied = append(applied, fixes...)
	findings = append(findings, fnd...)

	sql, fixes = e.canonicalizeGeometry(sql, ctx)
	applied = append(applied, fixes...)

	sql, fixes = e.normalizeSRID(sql, ctx)
	applied = append(applied, fixes...)

	sql, fixes = e.applyLiteralAliases(sql, ctx)
	applied = append(applied, fixes...)

	sql, rej := Validate(sql, findings)
	if rej != nil {
		e.logger.Debug("draft rejected",
			zap.String("reason", string(rej.Reason)),
			zap.String("identifier", rej.Identifier))
		return Result{Rejection: rej}
	}

	return Result{SQL: sql, Applied: applied}
}

// resolveIdentifiers is stage 1: map every identifier that does not exist in
// the catalog to a real one via the alias tables, then via accent- and
// number-insensitive matching. Unresolved and ambiguous identifiers become
// findings for the validator; the stage itself never fails.
func (e *Engine) resolveIdentifiers(sql string, ctx *Context) (string, []string, []Finding) {
	st := parseStatement(sql, ctx.Snapshot)
	var edits []edit
	var fixes []string
	var findings []Finding

	for _, r := range st.refs {
		if r.opaque {
			continue
		}
		if r.ambiguous {
			findings = append(findings, Finding{
				Reason:     ReasonAmbiguousIdentifier,
				Identifier: r.name,
				Detail:     "table name exists in more than one schema; qualify it",
			})
			continue
		}
		if r.table == nil {
			name := r.name
			if r.schema != "" {
				name = r.schema + "." + r.name
			}
			findings = append(findings, Finding{
				Reason:     ReasonUnknownTable,
				Identifier: name,
				Detail:     "table is not in the catalog",
			})
		}
	}

	known := knownTables(st)

	for _, cr := range st.colRefs {
		if cr.opaque {
			continue
		}
		if cr.qualifier != "" {
			if cr.ref == nil {
				findings = append(findings, Finding{
					Reason:     ReasonUnresolvedIdentifier,
					Identifier: cr.qualifier + "." + cr.column,
					Detail:     "qualifier does not match any referenced table",
				})
				continue
			}
			if cr.ref.table == nil {
				continue // table itself already flagged
			}
			tbl := cr.ref.table
			if tbl.HasColumn(cr.column) {
				continue
			}
			name, n := resolveColumn(tbl, cr.column, ctx)
			switch n {
			case 1:
				edits = append(edits, edit{cr.colTok.start, cr.colTok.end, name})
				fixes = append(fixes, fmt.Sprintf("%s.%s -> %s.%s", cr.qualifier, cr.column, cr.qualifier, name))
			case 0:
				findings = append(findings, Finding{
					Reason:     ReasonUnresolvedIdentifier,
					Identifier: cr.qualifier + "." + cr.column,
					Detail:     "column not found in " + tbl.QualifiedName(),
				})
			default:
				findings = append(findings, Finding{
					Reason:     ReasonAmbiguousIdentifier,
					Identifier: cr.qualifier + "." + cr.column,
					Detail:     "several columns of " + tbl.QualifiedName() + " match",
				})
			}
			continue
		}

		// Bare column: judged against every referenced catalog table.
		if len(known) == 0 {
			continue
		}
		var exact []*catalog.Table
		for _, tbl := range known {
			if tbl.HasColumn(cr.column) {
				exact = append(exact, tbl)
			}
		}
		if len(exact) == 1 {
			continue
		}
		if len(exact) > 1 {
			findings = append(findings, Finding{
				Reason:     ReasonAmbiguousIdentifier,
				Identifier: cr.column,
				Detail:     "column exists in several referenced tables; qualify it",
			})
			continue
		}

		type candidate struct {
			tbl  *catalog.Table
			name string
		}
		var candidates []candidate
		for _, tbl := range known {
			if name, n := resolveColumn(tbl, cr.column, ctx); n == 1 {
				candidates = append(candidates, candidate{tbl, name})
			} else if n > 1 {
				candidates = append(candidates, candidate{tbl, ""}, candidate{tbl, ""})
			}
		}
		switch len(candidates) {
		case 1:
			edits = append(edits, edit{cr.colTok.start, cr.colTok.end, candidates[0].name})
			fixes = append(fixes, fmt.Sprintf("%s -> %s", cr.column, candidates[0].name))
		case 0:
			findings = append(findings, Finding{
				Reason:     ReasonUnresolvedIdentifier,
				Identifier: cr.column,
				Detail:     "column not found in any referenced table",
			})
		default:
			findings = append(findings, Finding{
				Reason:     ReasonAmbiguousIdentifier,
				Identifier: cr.column,
				Detail:     "column resolves in several referenced tables; qualify it",
			})
		}
	}

	return applyEdits(sql, edits), fixes, findings
}

// knownTables returns the distinct catalog tables referenced by the statement.
func knownTables(st *statement) []*catalog.Table {
	var out []*catalog.Table
	seen := map[*catalog.Table]bool{}
	for _, r := range st.refs {
		if r.table != nil && !seen[r.table] {
			seen[r.table] = true
			out = append(out, r.table)
		}
	}
	return out
}

// resolveColumn maps a column name that does not exist in tbl to a real
// column: alias tables first, then accent-insensitive and singular/plural
// matching. Returns the resolved name and the number of distinct matches.
func resolveColumn(tbl *catalog.Table, name string, ctx *Context) (string, int) {
	if ctx.isGeometryAlias(name) && tbl.GeometryColumn != "" {
		return tbl.GeometryColumn, 1
	}
	if ctx.isIdentifierAlias(name) {
		if id := tbl.IdentifierColumn(); id != "" {
			return id, 1
		}
	}
	if target, ok := lookupAlias(ctx.LiteralAliases, tbl.Name, name); ok && tbl.HasColumn(target) {
		return target, 1
	}

	// Accent-insensitive and singular/plural match ("región" -> "region",
	// "comuna" -> "comunas").
	folded := foldAccents(name)
	forms := map[string]bool{
		folded: true,
		foldAccents(inflection.Singular(folded)): true,
		foldAccents(inflection.Plural(folded)):   true,
	}

	var matches []string
	for i := range tbl.Columns {
		cn := foldAccents(tbl.Columns[i].Name)
		if forms[cn] || forms[foldAccents(inflection.Singular(cn))] || forms[foldAccents(inflection.Plural(cn))] {
			matches = append(matches, tbl.Columns[i].Name)
		}
	}
	if len(matches) == 0 {
		return "", 0
	}
	return matches[0], len(matches)
}

// lookupAlias consults the literal alias table, table-scoped key first.
func lookupAlias(aliases map[string]string, table, name string) (string, bool) {
	if len(aliases) == 0 {
		return "", false
	}
	for _, key := range []string{table + "." + name, name} {
		if v, ok := aliases[key]; ok {
			return v, true
		}
		if v, ok := aliases[strings.ToLower(key)]; ok {
			return v, true
		}
	}
	return "", false
}

// canonicalizeGeometry is stage 2: inside spatial function calls, a column
// argument that is not a geometry column in the catalog is replaced by the
// table's declared default geometry column.
func (e *Engine) canonicalizeGeometry(sql string, ctx *Context) (string, []string) {
	st := parseStatement(sql, ctx.Snapshot)
	var edits []edit
	var fixes []string

	for _, call := range findCalls(st.toks) {
		positions, ok := spatialGeomArgs[strings.ToLower(call.name)]
		if !ok {
			continue
		}
		for _, pos := range positions {
			if pos >= len(call.args) {
				continue
			}
			qualifier, column, colTok, isCol := argColumn(st.toks, call.args[pos])
			if !isCol {
				continue
			}
			tbl := resolveArgTable(st, qualifier)
			if tbl == nil || tbl.GeometryColumn == "" {
				continue
			}
			col := tbl.Column(column)
			if col != nil && col.IsGeometry {
				continue
			}
			if strings.EqualFold(column, tbl.GeometryColumn) {
				continue
			}
			edits = append(edits, edit{colTok.start, colTok.end, tbl.GeometryColumn})
			fixes = append(fixes, fmt.Sprintf("%s: %s -> %s (geometry column of %s)",
				call.name, column, tbl.GeometryColumn, tbl.QualifiedName()))
		}
	}

	return applyEdits(sql, edits), fixes
}

// resolveArgTable maps a function-argument qualifier to its catalog table.
// A bare argument resolves only when the statement references exactly one
// catalog table.
func resolveArgTable(st *statement, qualifier string) *catalog.Table {
	if qualifier != "" {
		if r := st.lookupRef(qualifier); r != nil {
			return r.table
		}
		return nil
	}
	known := knownTables(st)
	if len(known) == 1 {
		return known[0]
	}
	return nil
}

// normalizeSRID is stage 3: wrap geometry arguments in ST_Transform where
// the operation's unit domain demands a different SRID. Wrapping is
// additive; existing ST_Transform calls are never touched or stripped.
func (e *Engine) normalizeSRID(sql string, ctx *Context) (string, []string) {
	units := ctx.units()
	st := parseStatement(sql, ctx.Snapshot)
	toks := st.toks
	var edits []edit
	var fixes []string

	wrapArg := func(span argSpan, srid int) {
		expr := sql[span.start:span.end]
		edits = append(edits, edit{span.start, span.end, fmt.Sprintf("ST_Transform(%s, %d)", expr, srid)})
	}

	// geometryArgSRID resolves an argument span to the SRID of the geometry
	// column it references; ok is false for anything but a geometry column.
	geometryArgSRID := func(span argSpan) (int, bool) {
		qualifier, column, _, isCol := argColumn(toks, span)
		if !isCol {
			return 0, false
		}
		tbl := resolveArgTable(st, qualifier)
		if tbl == nil {
			return 0, false
		}
		col := tbl.Column(column)
		if col == nil || !col.IsGeometry {
			return 0, false
		}
		return col.SRID, true
	}

	for _, call := range findCalls(toks) {
		name := strings.ToLower(call.name)

		// Metric distance/buffer/length operations. An unspecified unit
		// domain defaults to metric: a numeric distance against geographic
		// degrees is almost never what the user meant.
		if positions, ok := metricDistanceFuncs[name]; ok && units != UnitsGeographic {
			for _, pos := range positions {
				if pos >= len(call.args) {
					continue
				}
				span := call.args[pos]
				if argIsCall(toks, span, "st_transform") {
					continue // additive only: leave existing transforms alone
				}
				srid, ok := geometryArgSRID(span)
				if !ok || srid == ctx.MetricSRID {
					continue
				}
				wrapArg(span, ctx.MetricSRID)
				fixes = append(fixes, fmt.Sprintf("%s: transformed to EPSG:%d for metric units", call.name, ctx.MetricSRID))
			}
			continue
		}

		// Areas in hectares: project to the metric SRID and divide by 10000.
		if name == "st_area" && len(call.args) >= 1 {
			span := call.args[0]
			switch units {
			case UnitsHectares, UnitsMetric:
				if !argIsCall(toks, span, "st_transform") {
					if srid, ok := geometryArgSRID(span); ok && srid != ctx.MetricSRID {
						wrapArg(span, ctx.MetricSRID)
						fixes = append(fixes, fmt.Sprintf("ST_Area: transformed to EPSG:%d for metric units", ctx.MetricSRID))
					}
				}
			}
			if units == UnitsHectares && !followedByHectareDivision(toks, call.closeIdx) {
				edits = append(edits, edit{call.closeTok.end, call.closeTok.end, "/10000.0"})
				fixes = append(fixes, "ST_Area: divided by 10000 for hectares")
			}
			continue
		}

		// Predicates over two geometries: harmonize differing SRIDs by
		// transforming the second argument to the first one's SRID.
		if sridPredicateFuncs[name] && len(call.args) >= 2 {
			a, b := call.args[0], call.args[1]
			if argIsCall(toks, a, "st_transform") || argIsCall(toks, b, "st_transform") {
				continue
			}
			srid1, ok1 := geometryArgSRID(a)
			srid2, ok2 := geometryArgSRID(b)
			if !ok1 || !ok2 || srid1 == srid2 {
				continue
			}
			wrapArg(b, srid1)
			fixes = append(fixes, fmt.Sprintf("%s: harmonized SRIDs (EPSG:%d)", call.name, srid1))
		}
	}

	return applyEdits(sql, edits), fixes
}

// followedByHectareDivision reports whether the tokens after a call already
// divide by 10000, so the hectare rewrite is not applied twice.
func followedByHectareDivision(toks []token, closeIdx int) bool {
	if closeIdx+2 >= len(toks) {
		return false
	}
	return toks[closeIdx+1].text == "/" &&
		toks[closeIdx+2].kind == tokNumber &&
		strings.HasPrefix(toks[closeIdx+2].text, "10000")
}

// applyLiteralAliases is stage 4: operator-configured renames applied as a
// final literal pass over column references, after the functional rewrites.
func (e *Engine) applyLiteralAliases(sql string, ctx *Context) (string, []string) {
	if len(ctx.LiteralAliases) == 0 {
		return sql, nil
	}
	st := parseStatement(sql, ctx.Snapshot)
	var edits []edit
	var fixes []string

	for _, cr := range st.colRefs {
		if cr.opaque {
			continue
		}
		tableName := ""
		if cr.ref != nil && cr.ref.table != nil {
			tableName = cr.ref.table.Name
		}
		target, ok := lookupAlias(ctx.LiteralAliases, tableName, cr.column)
		if !ok || target == cr.column {
			continue
		}
		edits = append(edits, edit{cr.colTok.start, cr.colTok.end, target})
		fixes = append(fixes, fmt.Sprintf("alias: %s -> %s", cr.column, target))
	}

	return applyEdits(sql, edits), fixes
}
