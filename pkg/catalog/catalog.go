// Package catalog models the database schema snapshot the correction engine
// works against: tables, columns, geometry registrations and SRIDs.
package catalog

import (
	"sort"
	"strings"
	"time"
)

// preferredGeometryOrder ranks geometry column names when a table declares
// more than one. Matches the naming conventions of the target datasets.
var preferredGeometryOrder = []string{"geometria", "geometry", "geom", "the_geom"}

// preferredIdentifierOrder ranks identifier column names when a table has no
// primary key.
var preferredIdentifierOrder = []string{"objectid", "gid", "id", "pk", "codigo", "cod", "cod_id"}

// Column describes a single table column. Immutable once read.
type Column struct {
	Name            string
	DataType        string
	IsNullable      bool
	OrdinalPosition int

	// Geometry metadata. SRID is meaningful only when IsGeometry is true.
	// SRIDVerified is false when the database reported no SRID and the
	// configured fallback was assumed.
	IsGeometry   bool
	GeometryType string
	SRID         int
	SRIDVerified bool

	// IsIdentifier marks primary key columns.
	IsIdentifier bool
}

// Index describes a table index; Method is the access method (gist, brin, btree).
type Index struct {
	Name    string
	Method  string
	Columns []string
}

// ForeignKey describes a foreign key constraint to another table.
type ForeignKey struct {
	Columns    []string
	RefTable   string // qualified "schema.table"
	RefColumns []string
}

// Table describes one table: its ordered columns plus the derived defaults
// the rewrite rules rely on.
type Table struct {
	Schema  string
	Name    string
	Columns []Column

	// GeometryColumn is the default geometry column ("" for non-spatial
	// tables); SRID is that column's SRID.
	GeometryColumn string
	SRID           int
	SRIDVerified   bool

	PKColumns   []string
	Indexes     []Index
	ForeignKeys []ForeignKey
}

// QualifiedName returns "schema.table".
func (t *Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// Column returns the column with the given name (case-insensitive), or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table declares a column with that name.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// IdentifierColumn suggests the column that identifies rows: the primary key
// first, then conventional identifier names, then the first non-nullable
// integer column. Returns "" when nothing qualifies.
func (t *Table) IdentifierColumn() string {
	if len(t.PKColumns) > 0 {
		return t.PKColumns[0]
	}
	for _, name := range preferredIdentifierOrder {
		for i := range t.Columns {
			if strings.EqualFold(t.Columns[i].Name, name) {
				return t.Columns[i].Name
			}
		}
	}
	for i := range t.Columns {
		c := &t.Columns[i]
		if strings.Contains(c.DataType, "int") && !c.IsNullable {
			return c.Name
		}
	}
	return ""
}

// SpatialIndexes returns the gist/brin indexes of the table.
func (t *Table) SpatialIndexes() []Index {
	var out []Index
	for _, idx := range t.Indexes {
		if idx.Method == "gist" || idx.Method == "brin" {
			out = append(out, idx)
		}
	}
	return out
}

// defaultGeometry picks the table's default geometry column by preference
// order, falling back to the first geometry column by ordinal position.
func (t *Table) defaultGeometry() *Column {
	for _, pref := range preferredGeometryOrder {
		for i := range t.Columns {
			if t.Columns[i].IsGeometry && strings.EqualFold(t.Columns[i].Name, pref) {
				return &t.Columns[i]
			}
		}
	}
	for i := range t.Columns {
		if t.Columns[i].IsGeometry {
			return &t.Columns[i]
		}
	}
	return nil
}

// Snapshot is an immutable catalog built from a single introspection pass.
// It is never mutated after construction; the cache swaps whole snapshots.
type Snapshot struct {
	tables   map[string]*Table   // key: lowercased "schema.table"
	byName   map[string][]*Table // key: lowercased bare table name
	LoadedAt time.Time
}

// NewSnapshot builds a snapshot from introspected tables, deriving each
// table's default geometry column and SRID.
func NewSnapshot(tables []*Table) *Snapshot {
	s := &Snapshot{
		tables:   make(map[string]*Table, len(tables)),
		byName:   make(map[string][]*Table),
		LoadedAt: time.Now(),
	}
	for _, t := range tables {
		if g := t.defaultGeometry(); g != nil {
			t.GeometryColumn = g.Name
			t.SRID = g.SRID
			t.SRIDVerified = g.SRIDVerified
		}
		s.tables[strings.ToLower(t.QualifiedName())] = t
		key := strings.ToLower(t.Name)
		s.byName[key] = append(s.byName[key], t)
	}
	return s
}

// Table returns the table with the given schema and name.
func (s *Snapshot) Table(schema, name string) (*Table, bool) {
	t, ok := s.tables[strings.ToLower(schema+"."+name)]
	return t, ok
}

// TablesNamed returns every table with the given bare name, across schemas.
func (s *Snapshot) TablesNamed(name string) []*Table {
	return s.byName[strings.ToLower(name)]
}

// Resolve looks a table up by (schema, name); with an empty schema the bare
// name must be unambiguous across schemas. The second return reports whether
// the lookup found exactly one table.
func (s *Snapshot) Resolve(schema, name string) (*Table, bool) {
	if schema != "" {
		return s.Table(schema, name)
	}
	candidates := s.TablesNamed(name)
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return nil, false
}

// Len returns the number of tables in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.tables)
}

// Tables returns all tables sorted by qualified name.
func (s *Snapshot) Tables() []*Table {
	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}
