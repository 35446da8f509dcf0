package correct

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindTableRefsDotted(t *testing.T) {
	refs := FindTableRefs("SELECT * FROM datos_maestros.dpa_region WHERE region = 'RM'")
	assert.Contains(t, refs, TableRef{Schema: "datos_maestros", Name: "dpa_region"})
}

func TestFindTableRefsSpanishPhrase(t *testing.T) {
	refs := FindTableRefs("usa el esquema medio_fisico y la tabla hidrografia para el cruce")
	assert.Contains(t, refs, TableRef{Schema: "medio_fisico", Name: "hidrografia"})
}

func TestFindTableRefsEnglishPhrase(t *testing.T) {
	refs := FindTableRefs("join against schema public using table sensors")
	assert.Contains(t, refs, TableRef{Schema: "public", Name: "sensors"})
}

func TestFindTableRefsDeduplicates(t *testing.T) {
	refs := FindTableRefs("datos_maestros.comunas y de nuevo datos_maestros.comunas")
	assert.Equal(t, []TableRef{{Schema: "datos_maestros", Name: "comunas"}}, refs)
}

func TestFindTableRefsEmpty(t *testing.T) {
	assert.Nil(t, FindTableRefs(""))
	assert.Empty(t, FindTableRefs("cuántas parcelas hay en total"))
}
