package correct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token) []tokenKind {
	out := make([]tokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.kind
	}
	return out
}

func TestLexBasicStatement(t *testing.T) {
	toks := lex("SELECT gid, nombre FROM parcelas WHERE superficie_m2 > 10.5")

	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.text)
	}
	assert.Equal(t, []string{
		"SELECT", "gid", ",", "nombre", "FROM", "parcelas",
		"WHERE", "superficie_m2", ">", "10.5",
	}, texts)
}

func TestLexOffsetsMatchSource(t *testing.T) {
	sql := "SELECT geom FROM parcelas"
	for _, tok := range lex(sql) {
		assert.Equal(t, tok.text, sql[tok.start:tok.end])
	}
}

func TestLexSkipsComments(t *testing.T) {
	toks := lex("SELECT 1 -- comentario\n/* bloque */ + 2")
	assert.Equal(t, []tokenKind{tokIdent, tokNumber, tokPunct, tokNumber}, kinds(toks))
}

func TestLexStringLiterals(t *testing.T) {
	toks := lex("SELECT 'it''s' FROM t")
	require.Len(t, toks, 4)
	assert.Equal(t, tokString, toks[1].kind)
	assert.Equal(t, "'it''s'", toks[1].text)
}

func TestLexQuotedIdentifiers(t *testing.T) {
	toks := lex(`SELECT "Región" FROM t`)
	require.Len(t, toks, 4)
	assert.True(t, toks[1].quoted)
	assert.Equal(t, `"Región"`, toks[1].text)
}

func TestLexAccentedIdentifiers(t *testing.T) {
	toks := lex("SELECT región FROM comunas")
	require.Len(t, toks, 4)
	assert.Equal(t, "región", toks[1].text)
	assert.Equal(t, tokIdent, toks[1].kind)
}

func TestApplyEditsSplices(t *testing.T) {
	sql := "SELECT geom FROM parcelas"
	out := applyEdits(sql, []edit{{7, 11, "geometria"}})
	assert.Equal(t, "SELECT geometria FROM parcelas", out)
}

func TestApplyEditsMultipleOutOfOrder(t *testing.T) {
	sql := "a b c"
	out := applyEdits(sql, []edit{{4, 5, "Z"}, {0, 1, "X"}})
	assert.Equal(t, "X b Z", out)
}

func TestApplyEditsDropsOverlaps(t *testing.T) {
	sql := "abcdef"
	out := applyEdits(sql, []edit{{0, 4, "X"}, {2, 6, "Y"}})
	assert.Equal(t, "Xef", out)
}
