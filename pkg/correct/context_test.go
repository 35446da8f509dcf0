package correct

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectUnits(t *testing.T) {
	tests := []struct {
		question string
		want     UnitDomain
	}{
		{"", UnitsUnspecified},
		{"lista las parcelas", UnitsUnspecified},
		{"parcelas a menos de 500 metros del río", UnitsMetric},
		{"comunas a 3 km de la costa", UnitsMetric},
		{"within 2 kilometers of the coast", UnitsMetric},
		{"superficie en hectáreas por comuna", UnitsHectares},
		{"area in hectares", UnitsHectares},
		{"superficie en ha por región", UnitsHectares},
		{"desplazamiento en grados de latitud", UnitsGeographic},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectUnits(tt.question), "question: %q", tt.question)
	}
}

func TestDetectUnitsHectaresWinOverMetric(t *testing.T) {
	// Area questions usually mention both families; the area unit drives the
	// rewrite.
	got := DetectUnits("superficie en hectáreas a menos de 500 metros del camino")
	assert.Equal(t, UnitsHectares, got)
}

func TestContextUnitsExplicitOverride(t *testing.T) {
	ctx := &Context{Question: "a 500 metros", Units: UnitsGeographic}
	assert.Equal(t, UnitsGeographic, ctx.units())

	ctx = &Context{Question: "a 500 metros"}
	assert.Equal(t, UnitsMetric, ctx.units())
}

func TestUnitDomainString(t *testing.T) {
	assert.Equal(t, "unspecified", UnitsUnspecified.String())
	assert.Equal(t, "metric", UnitsMetric.String())
	assert.Equal(t, "hectares", UnitsHectares.String())
	assert.Equal(t, "geographic", UnitsGeographic.String())
}

func TestFoldAccents(t *testing.T) {
	assert.Equal(t, "region", foldAccents("Región"))
	assert.Equal(t, "comunas", foldAccents("comunas"))
	assert.Equal(t, "nunoa", foldAccents("Ñuñoa"))
}
