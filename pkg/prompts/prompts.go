// Package prompts builds the system and user prompts for SQL drafting and
// query explanation.
package prompts

import (
	"fmt"
	"strings"

	"github.com/terralinea/geosql-engine/pkg/catalog"
	"github.com/terralinea/geosql-engine/pkg/correct"
)

// maxSchemaContext caps the schema lines injected into the prompt so a
// question touching many tables cannot blow up the context window.
const maxSchemaContext = 5000

// maxColumnsPerTable bounds the per-table column preview.
const maxColumnsPerTable = 30

const sqlSystemTemplate = `Eres un asistente experto en PostgreSQL y PostGIS.
Convierte instrucciones en español a UNA sola sentencia SQL segura (SELECT o WITH).
No alteres datos ni estructuras. Devuelve SOLO SQL entre ` + "```sql ... ```" + `.
Reglas:
- Usa exclusivamente nombres de columnas y tablas del Contexto.
- Si hay columna geométrica (geom=), úsala siempre para operaciones espaciales.
- Si se menciona metros/km o hectáreas: normaliza a EPSG:%d o usa ::geography para cálculos en metros.
- Si menciona hectáreas: usa ST_Area con EPSG:%d y divide por 10000.
- Si las capas tienen SRIDs distintos, transforma el resto de las tablas al SRID %d.
- Prefiere funciones index-friendly como ST_DWithin en vez de ST_Buffer+ST_Intersects.
- Nunca inventes columnas como id, nombre, geom; usa las provistas en el Contexto.`

// SQLSystem renders the SQL-drafting system prompt with the configured
// metric and geographic SRIDs.
func SQLSystem(metricSRID, geographicSRID int) string {
	return fmt.Sprintf(sqlSystemTemplate, metricSRID, metricSRID, geographicSRID)
}

// BuildSQLPrompt assembles the user prompt: schema context lines for the
// tables the question mentions, then the question itself.
func BuildSQLPrompt(question, schemaContext string) string {
	var b strings.Builder
	b.WriteString("Contexto:\n")
	b.WriteString(schemaContext)
	b.WriteString("\n\nUsuario:\n")
	b.WriteString(question)
	b.WriteString("\n\nResponde SOLO:\n")
	return b.String()
}

// ExplainPrompt asks for a short Spanish explanation of a SQL statement.
func ExplainPrompt(sql string) string {
	return "Explica en español, de forma breve y usando terminología de PostgreSQL/PostGIS, " +
		"qué hace esta consulta SQL:\n" + sql
}

// BuildSchemaContext renders one compact line per referenced table:
//
//	schema.table (cols: a, b, ...) | pk=<col> | geom=<col> | srid=<n>
//
// Tables with a spatial index carry an extra "| idx=<method>" marker.
// Unknown tables still get a line so the model sees the name it used. The
// result is capped at maxSchemaContext bytes.
func BuildSchemaContext(snap *catalog.Snapshot, refs []correct.TableRef) string {
	if snap == nil || len(refs) == 0 {
		return ""
	}

	var lines []string
	for _, ref := range refs {
		tbl, ok := snap.Resolve(ref.Schema, ref.Name)
		if !ok {
			name := ref.Name
			if ref.Schema != "" {
				name = ref.Schema + "." + ref.Name
			}
			lines = append(lines, name+" | pk=unk | geom=unk | srid=unk")
			continue
		}
		lines = append(lines, tableLine(tbl))
	}

	ctx := strings.Join(lines, "\n")
	if len(ctx) > maxSchemaContext {
		ctx = ctx[:maxSchemaContext]
	}
	return ctx
}

func tableLine(tbl *catalog.Table) string {
	var names []string
	for i := range tbl.Columns {
		if i == maxColumnsPerTable {
			break
		}
		names = append(names, tbl.Columns[i].Name)
	}

	colsTxt := ""
	if len(names) > 0 {
		colsTxt = "(cols: " + strings.Join(names, ", ") + ") "
	}

	pk := tbl.IdentifierColumn()
	if pk == "" {
		pk = "unk"
	}
	geom := tbl.GeometryColumn
	if geom == "" {
		geom = "unk"
	}
	srid := "unk"
	if tbl.SRID > 0 {
		srid = fmt.Sprintf("%d", tbl.SRID)
	}

	line := fmt.Sprintf("%s %s| pk=%s | geom=%s | srid=%s", tbl.QualifiedName(), colsTxt, pk, geom, srid)
	if idxs := tbl.SpatialIndexes(); len(idxs) > 0 {
		line += " | idx=" + idxs[0].Method
	}
	return line
}
