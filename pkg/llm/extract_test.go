package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSQLFencedBlock(t *testing.T) {
	raw := "Aquí tienes la consulta:\n```sql\nSELECT gid FROM parcelas\n```\nEspero que sirva."
	assert.Equal(t, "SELECT gid FROM parcelas", ExtractSQL(raw))
}

func TestExtractSQLPlainFence(t *testing.T) {
	raw := "```\nSELECT 1\n```"
	assert.Equal(t, "SELECT 1", ExtractSQL(raw))
}

func TestExtractSQLBareStatement(t *testing.T) {
	assert.Equal(t, "SELECT nombre FROM comunas", ExtractSQL("SELECT nombre FROM comunas"))
}

func TestExtractSQLStripsThinkBlocks(t *testing.T) {
	raw := "<think>primero reviso el esquema...</think>\n```sql\nSELECT 1\n```"
	assert.Equal(t, "SELECT 1", ExtractSQL(raw))
}

func TestExtractSQLSkipsLeadingProse(t *testing.T) {
	raw := "La consulta que necesitas es: SELECT gid FROM parcelas LIMIT 10"
	assert.Equal(t, "SELECT gid FROM parcelas LIMIT 10", ExtractSQL(raw))
}

func TestExtractSQLWithCTE(t *testing.T) {
	raw := "```sql\nWITH x AS (SELECT 1) SELECT * FROM x\n```"
	assert.Equal(t, "WITH x AS (SELECT 1) SELECT * FROM x", ExtractSQL(raw))
}

func TestExtractSQLNoStatement(t *testing.T) {
	assert.Equal(t, "", ExtractSQL("no puedo responder a eso"))
	assert.Equal(t, "", ExtractSQL(""))
}
