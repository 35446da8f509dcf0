package correct

import (
	"strings"

	"github.com/terralinea/geosql-engine/pkg/catalog"
)

// UnitDomain is the unit family a spatial operation is expected to work in,
// derived from the natural-language question carried alongside the draft.
type UnitDomain int

const (
	// UnitsUnspecified means the question gave no hint. Distance and buffer
	// operations default to metric in that case; area operations are left
	// alone.
	UnitsUnspecified UnitDomain = iota
	UnitsMetric
	UnitsHectares
	UnitsGeographic
)

func (u UnitDomain) String() string {
	switch u {
	case UnitsMetric:
		return "metric"
	case UnitsHectares:
		return "hectares"
	case UnitsGeographic:
		return "geographic"
	default:
		return "unspecified"
	}
}

// metricHints and hectareHints match the Spanish and English unit words users
// actually write. Matched against the lowercased question with spaces padded
// so that short tokens (" m ", " ha") do not fire inside words.
var metricHints = []string{
	" metro", " metros", " m ", " m.", " km", "kilometro", "kilómetro", "kilometros", "kilómetros",
	" meter", " meters", " kilometer", " kilometers",
}

var hectareHints = []string{
	"hectarea", "hectárea", "hectareas", "hectáreas", " ha ", " ha.", " en ha", "hectare", "hectares",
}

var geographicHints = []string{
	" grado", " grados", " degree", " degrees", " lat/lon", " lat-lon",
}

// DetectUnits infers the unit domain from the question text. Hectares win
// over metric because area questions usually mention both ("superficie en
// hectáreas a menos de 500 metros").
func DetectUnits(question string) UnitDomain {
	q := " " + strings.ToLower(strings.TrimSpace(question)) + " "
	if q == "  " {
		return UnitsUnspecified
	}
	for _, h := range hectareHints {
		if strings.Contains(q, h) {
			return UnitsHectares
		}
	}
	for _, h := range metricHints {
		if strings.Contains(q, h) {
			return UnitsMetric
		}
	}
	for _, h := range geographicHints {
		if strings.Contains(q, h) {
			return UnitsGeographic
		}
	}
	return UnitsUnspecified
}

// Context is the per-request correction context: the catalog snapshot plus
// the configured aliases and canonical SRIDs. It owns no long-lived
// resources and is discarded after use.
type Context struct {
	Snapshot *catalog.Snapshot

	// Question is the original natural-language intent; used only for unit
	// detection when Units is UnitsUnspecified.
	Question string
	Units    UnitDomain

	// MetricSRID is the projected SRID used for metric and hectare
	// operations; GeographicSRID is the canonical degree-based SRID.
	MetricSRID     int
	GeographicSRID int

	// GeometryAliases and IdentifierAliases are generic names resolved to
	// each table's declared geometry/identifier column.
	GeometryAliases   []string
	IdentifierAliases []string

	// LiteralAliases are operator-configured renames applied as the final
	// rewrite pass. Keys may be bare or table-scoped ("parcelas.superficie").
	LiteralAliases map[string]string
}

// units resolves the effective unit domain, deriving it from the question
// when not set explicitly.
func (c *Context) units() UnitDomain {
	if c.Units != UnitsUnspecified {
		return c.Units
	}
	return DetectUnits(c.Question)
}

func (c *Context) isGeometryAlias(name string) bool {
	for _, a := range c.GeometryAliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

func (c *Context) isIdentifierAlias(name string) bool {
	for _, a := range c.IdentifierAliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
