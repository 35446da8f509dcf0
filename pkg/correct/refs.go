package correct

import "regexp"

// TableRef is a (schema, table) pair mentioned in free text or SQL. Schema
// may be empty when only a bare table name was found.
type TableRef struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
}

var (
	// "schema.tabla" form
	dottedRefPattern = regexp.MustCompile(`\b([a-zA-Z0-9_]+)\.([a-zA-Z0-9_]+)\b`)

	// "... del esquema datos_maestros ... tabla dpa_region ..." phrasing,
	// Spanish or English
	phraseRefPattern = regexp.MustCompile(
		`(?is)(?:\besquema\b|\bschema\b)\s+([a-zA-Z0-9_]+).*?(?:\btabla\b|\btable\b)\s+([a-zA-Z0-9_]+)`)
)

// FindTableRefs extracts (schema, table) pairs from a question or SQL
// fragment, in both dotted and phrase form, deduplicated preserving order.
func FindTableRefs(text string) []TableRef {
	if text == "" {
		return nil
	}

	var refs []TableRef
	seen := map[TableRef]bool{}
	add := func(r TableRef) {
		if !seen[r] {
			seen[r] = true
			refs = append(refs, r)
		}
	}

	for _, m := range dottedRefPattern.FindAllStringSubmatch(text, -1) {
		add(TableRef{Schema: m[1], Name: m[2]})
	}
	for _, m := range phraseRefPattern.FindAllStringSubmatch(text, -1) {
		add(TableRef{Schema: m[1], Name: m[2]})
	}
	return refs
}
