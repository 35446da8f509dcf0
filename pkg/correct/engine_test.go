package correct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralinea/geosql-engine/pkg/catalog"
)

func testSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot([]*catalog.Table{
		{
			Schema: "datos_maestros",
			Name:   "parcelas",
			Columns: []catalog.Column{
				{Name: "gid", DataType: "integer", IsIdentifier: true},
				{Name: "nombre", DataType: "character varying", IsNullable: true},
				{Name: "superficie_m2", DataType: "numeric", IsNullable: true},
				{Name: "geometria", DataType: "geometry", IsGeometry: true, SRID: 4326, SRIDVerified: true},
			},
			PKColumns: []string{"gid"},
		},
		{
			Schema: "datos_maestros",
			Name:   "comunas",
			Columns: []catalog.Column{
				{Name: "id_comuna", DataType: "integer", IsIdentifier: true},
				{Name: "región", DataType: "character varying", IsNullable: true},
				{Name: "geom", DataType: "geometry", IsGeometry: true, SRID: 32719, SRIDVerified: true},
			},
			PKColumns: []string{"id_comuna"},
		},
		{Schema: "public", Name: "zonas", Columns: []catalog.Column{
			{Name: "id", DataType: "integer"},
		}},
		{Schema: "datos_crudos", Name: "zonas", Columns: []catalog.Column{
			{Name: "id", DataType: "integer"},
		}},
	})
}

func testContext(question string) *Context {
	return &Context{
		Snapshot:          testSnapshot(),
		Question:          question,
		MetricSRID:        32719,
		GeographicSRID:    4326,
		GeometryAliases:   []string{"geom", "geometry", "the_geom"},
		IdentifierAliases: []string{"id", "objectid", "gid"},
	}
}

func TestCorrectResolvesGeometryAlias(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT geom FROM parcelas", testContext(""))
	require.True(t, res.OK(), "rejection: %+v", res.Rejection)
	assert.Equal(t, "SELECT geometria FROM parcelas", res.SQL)
	assert.NotEmpty(t, res.Applied)
}

func TestCorrectResolvesIdentifierAlias(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT id FROM parcelas", testContext(""))
	require.True(t, res.OK())
	assert.Equal(t, "SELECT gid FROM parcelas", res.SQL)
}

func TestCorrectResolvesAccentedColumn(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT region FROM comunas", testContext(""))
	require.True(t, res.OK())
	assert.Equal(t, "SELECT región FROM comunas", res.SQL)
}

func TestCorrectWrapsMetricDistance(t *testing.T) {
	e := NewEngine(nil)

	draft := "SELECT gid FROM parcelas WHERE ST_DWithin(geometria, ST_MakePoint(1, 2), 500)"
	res := e.Correct(draft, testContext("parcelas a menos de 500 metros"))
	require.True(t, res.OK())
	assert.Contains(t, res.SQL, "ST_DWithin(ST_Transform(geometria, 32719), ST_MakePoint(1, 2), 500)")
}

func TestCorrectDefaultsDistanceToMetric(t *testing.T) {
	e := NewEngine(nil)

	// No unit hint in the question still projects: a numeric distance over
	// degrees is almost never intended.
	draft := "SELECT gid FROM parcelas WHERE ST_DWithin(geometria, ST_MakePoint(1, 2), 500)"
	res := e.Correct(draft, testContext(""))
	require.True(t, res.OK())
	assert.Contains(t, res.SQL, "ST_Transform(geometria, 32719)")
}

func TestCorrectHectares(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT ST_Area(geometria) FROM parcelas",
		testContext("superficie en hectáreas"))
	require.True(t, res.OK())
	assert.Equal(t, "SELECT ST_Area(ST_Transform(geometria, 32719))/10000.0 FROM parcelas", res.SQL)
}

func TestCorrectHarmonizesPredicateSRIDs(t *testing.T) {
	e := NewEngine(nil)

	draft := "SELECT a.gid FROM parcelas a JOIN comunas b ON ST_Intersects(a.geometria, b.geom)"
	res := e.Correct(draft, testContext(""))
	require.True(t, res.OK())
	assert.Contains(t, res.SQL, "ST_Intersects(a.geometria, ST_Transform(b.geom, 4326))")
}

func TestCorrectIsIdempotent(t *testing.T) {
	e := NewEngine(nil)

	drafts := []string{
		"SELECT geom FROM parcelas",
		"SELECT gid FROM parcelas WHERE ST_DWithin(geometria, ST_MakePoint(1, 2), 500)",
		"SELECT ST_Area(geometria) FROM parcelas",
		"SELECT a.gid FROM parcelas a JOIN comunas b ON ST_Intersects(a.geometria, b.geom)",
	}
	questions := []string{"", "a 500 metros", "superficie en hectáreas", ""}

	for i, draft := range drafts {
		ctx := testContext(questions[i])
		first := e.Correct(draft, ctx)
		require.True(t, first.OK(), "draft %d rejected: %+v", i, first.Rejection)

		second := e.Correct(first.SQL, ctx)
		require.True(t, second.OK())
		assert.Equal(t, first.SQL, second.SQL, "draft %d not idempotent", i)
		assert.Empty(t, second.Applied, "draft %d re-applied fixes", i)
	}
}

func TestCorrectLeavesExistingTransforms(t *testing.T) {
	e := NewEngine(nil)

	draft := "SELECT gid FROM parcelas WHERE ST_DWithin(ST_Transform(geometria, 3857), ST_MakePoint(1, 2), 500)"
	res := e.Correct(draft, testContext("a 500 metros"))
	require.True(t, res.OK())
	assert.Equal(t, draft, res.SQL)
}

func TestCorrectRejectsUnknownTable(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT nombre FROM predios", testContext(""))
	require.False(t, res.OK())
	assert.Equal(t, ReasonUnknownTable, res.Rejection.Reason)
	assert.Equal(t, "predios", res.Rejection.Identifier)
}

func TestCorrectRejectsAmbiguousTable(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT id FROM zonas", testContext(""))
	require.False(t, res.OK())
	assert.Equal(t, ReasonAmbiguousIdentifier, res.Rejection.Reason)
}

func TestCorrectRejectsUnresolvedColumn(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT poblacion FROM parcelas", testContext(""))
	require.False(t, res.OK())
	assert.Equal(t, ReasonUnresolvedIdentifier, res.Rejection.Reason)
	assert.Equal(t, "poblacion", res.Rejection.Identifier)
}

func TestCorrectRejectsWrites(t *testing.T) {
	e := NewEngine(nil)

	for _, draft := range []string{
		"DELETE FROM parcelas",
		"UPDATE parcelas SET nombre = 'x'",
		"DROP TABLE parcelas",
		"WITH x AS (SELECT 1) INSERT INTO parcelas SELECT * FROM x",
	} {
		res := e.Correct(draft, testContext(""))
		require.False(t, res.OK(), "accepted: %s", draft)
		assert.Equal(t, ReasonNotReadOnly, res.Rejection.Reason)
	}
}

func TestCorrectRejectsMultipleStatements(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT gid FROM parcelas; SELECT 1", testContext(""))
	require.False(t, res.OK())
	assert.Equal(t, ReasonMultipleStatements, res.Rejection.Reason)
}

func TestCorrectStripsTrailingSemicolon(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT gid FROM parcelas;", testContext(""))
	require.True(t, res.OK())
	assert.Equal(t, "SELECT gid FROM parcelas", res.SQL)
}

func TestCorrectRejectsEmptyDraft(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("   ", testContext(""))
	require.False(t, res.OK())
	assert.Equal(t, ReasonEmptyStatement, res.Rejection.Reason)
}

func TestCorrectAllowsSelectListAliases(t *testing.T) {
	e := NewEngine(nil)

	draft := "SELECT ST_Area(geometria) AS area FROM parcelas ORDER BY area DESC"
	res := e.Correct(draft, testContext(""))
	require.True(t, res.OK(), "rejection: %+v", res.Rejection)
}

func TestCorrectAllowsCTEs(t *testing.T) {
	e := NewEngine(nil)

	draft := "WITH grandes AS (SELECT gid, geometria FROM parcelas WHERE superficie_m2 > 100) " +
		"SELECT g.gid FROM grandes g"
	res := e.Correct(draft, testContext(""))
	require.True(t, res.OK(), "rejection: %+v", res.Rejection)
	assert.Equal(t, draft, res.SQL)
}

func TestCorrectAllowsCTEColumnLists(t *testing.T) {
	e := NewEngine(nil)

	// Neither the CTE name nor its declared output columns exist in the
	// catalog; none of them may be judged as column references.
	draft := "WITH medidas (pid, ha) AS (SELECT gid, superficie_m2 / 10000.0 FROM parcelas) " +
		"SELECT m.ha FROM medidas m"
	res := e.Correct(draft, testContext(""))
	require.True(t, res.OK(), "rejection: %+v", res.Rejection)
	assert.Equal(t, draft, res.SQL)
}

func TestCorrectAllowsOrdinaryStringLiterals(t *testing.T) {
	e := NewEngine(nil)

	res := e.Correct("SELECT gid FROM parcelas WHERE nombre = 'San Pedro de Atacama'", testContext(""))
	require.True(t, res.OK(), "rejection: %+v", res.Rejection)
}

func TestCorrectAppliesLiteralAliases(t *testing.T) {
	e := NewEngine(nil)

	ctx := testContext("")
	ctx.LiteralAliases = map[string]string{"superficie": "superficie_m2"}

	res := e.Correct("SELECT superficie FROM parcelas", ctx)
	require.True(t, res.OK(), "rejection: %+v", res.Rejection)
	assert.Equal(t, "SELECT superficie_m2 FROM parcelas", res.SQL)
}

func TestCorrectCanonicalizesGeometryInSpatialCall(t *testing.T) {
	e := NewEngine(nil)

	// "nombre" is a real column but not a geometry; inside a spatial call it
	// is replaced by the table's geometry column.
	res := e.Correct("SELECT ST_Centroid(nombre) FROM parcelas", testContext(""))
	require.True(t, res.OK(), "rejection: %+v", res.Rejection)
	assert.Equal(t, "SELECT ST_Centroid(geometria) FROM parcelas", res.SQL)
}
