package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/apperrors"
)

// Introspector produces a catalog snapshot from database metadata.
type Introspector interface {
	Introspect(ctx context.Context) (*Snapshot, error)
}

// PGIntrospector reads table, column, geometry and index metadata from
// information_schema, pg_catalog and the PostGIS geometry_columns view.
// All queries are read-only.
type PGIntrospector struct {
	pool         *pgxpool.Pool
	schemas      []string
	fallbackSRID int
	timeout      time.Duration
	logger       *zap.Logger
}

// NewPGIntrospector creates an introspector restricted to the given schemas.
// fallbackSRID is assumed for geometry columns whose registered SRID is
// 0/unknown. If logger is nil, a no-op logger is used.
func NewPGIntrospector(pool *pgxpool.Pool, schemas []string, fallbackSRID int, timeout time.Duration, logger *zap.Logger) *PGIntrospector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGIntrospector{
		pool:         pool,
		schemas:      schemas,
		fallbackSRID: fallbackSRID,
		timeout:      timeout,
		logger:       logger.Named("introspect"),
	}
}

// Introspect builds a full snapshot in one pass. Tables with zero geometry
// columns still enter the catalog; a query may join spatial and non-spatial
// tables.
func (in *PGIntrospector) Introspect(ctx context.Context) (*Snapshot, error) {
	if in.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.timeout)
		defer cancel()
	}

	start := time.Now()

	if err := in.checkPostGIS(ctx); err != nil {
		return nil, err
	}

	tables, err := in.loadTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}

	byName := make(map[string]*Table, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(t.QualifiedName())] = t
	}

	if err := in.loadColumns(ctx, byName); err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	if err := in.loadPrimaryKeys(ctx, byName); err != nil {
		return nil, fmt.Errorf("introspect primary keys: %w", err)
	}
	if err := in.loadGeometryColumns(ctx, byName); err != nil {
		return nil, fmt.Errorf("introspect geometry columns: %w", err)
	}
	if err := in.loadIndexes(ctx, byName); err != nil {
		return nil, fmt.Errorf("introspect indexes: %w", err)
	}
	if err := in.loadForeignKeys(ctx, byName); err != nil {
		return nil, fmt.Errorf("introspect foreign keys: %w", err)
	}

	snap := NewSnapshot(tables)
	in.logger.Info("catalog introspected",
		zap.Int("tables", snap.Len()),
		zap.Strings("schemas", in.schemas),
		zap.Duration("elapsed", time.Since(start)))
	return snap, nil
}

// checkPostGIS verifies the PostGIS extension is installed; without it the
// geometry_columns view does not exist and SRID correction is impossible.
func (in *PGIntrospector) checkPostGIS(ctx context.Context) error {
	const query = `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'postgis')`

	var installed bool
	if err := in.pool.QueryRow(ctx, query).Scan(&installed); err != nil {
		return fmt.Errorf("check postgis: %w", err)
	}
	if !installed {
		return apperrors.ErrPostGISMissing
	}
	return nil
}

func (in *PGIntrospector) loadTables(ctx context.Context) ([]*Table, error) {
	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema = ANY($1)
		ORDER BY table_schema, table_name
	`

	rows, err := in.pool.Query(ctx, query, in.schemas)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []*Table
	for rows.Next() {
		t := &Table{}
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (in *PGIntrospector) loadColumns(ctx context.Context, byName map[string]*Table) error {
	// udt_name identifies PostGIS types even when geometry_columns is not
	// populated for a table (views, generated columns).
	const query = `
		SELECT table_schema, table_name, column_name, data_type, udt_name,
		       is_nullable = 'YES', ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ANY($1)
		ORDER BY table_schema, table_name, ordinal_position
	`

	rows, err := in.pool.Query(ctx, query, in.schemas)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table, udtName string
		var col Column
		if err := rows.Scan(&schema, &table, &col.Name, &col.DataType, &udtName, &col.IsNullable, &col.OrdinalPosition); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		if udtName == "geometry" || udtName == "geography" {
			col.IsGeometry = true
			col.SRID = in.fallbackSRID
			col.SRIDVerified = false
		}
		if t, ok := byName[strings.ToLower(schema+"."+table)]; ok {
			t.Columns = append(t.Columns, col)
		}
	}
	return rows.Err()
}

func (in *PGIntrospector) loadPrimaryKeys(ctx context.Context, byName map[string]*Table) error {
	// pg_index.indisprimary detects primary keys even when created as
	// unique indexes by ORMs.
	const query = `
		SELECT n.nspname, c.relname, a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		WHERE i.indisprimary
		  AND n.nspname = ANY($1)
		ORDER BY n.nspname, c.relname, a.attnum
	`

	rows, err := in.pool.Query(ctx, query, in.schemas)
	if err != nil {
		return fmt.Errorf("query primary keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table, column string
		if err := rows.Scan(&schema, &table, &column); err != nil {
			return fmt.Errorf("scan primary key: %w", err)
		}
		t, ok := byName[strings.ToLower(schema+"."+table)]
		if !ok {
			continue
		}
		t.PKColumns = append(t.PKColumns, column)
		if c := t.Column(column); c != nil {
			c.IsIdentifier = true
		}
	}
	return rows.Err()
}

func (in *PGIntrospector) loadGeometryColumns(ctx context.Context, byName map[string]*Table) error {
	const query = `
		SELECT f_table_schema, f_table_name, f_geometry_column, srid, type
		FROM public.geometry_columns
		WHERE f_table_schema = ANY($1)
	`

	rows, err := in.pool.Query(ctx, query, in.schemas)
	if err != nil {
		return fmt.Errorf("query geometry_columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table, column, gtype string
		var srid int
		if err := rows.Scan(&schema, &table, &column, &srid, &gtype); err != nil {
			return fmt.Errorf("scan geometry column: %w", err)
		}
		t, ok := byName[strings.ToLower(schema+"."+table)]
		if !ok {
			continue
		}
		c := t.Column(column)
		if c == nil {
			continue
		}
		c.IsGeometry = true
		c.GeometryType = gtype
		if srid > 0 {
			c.SRID = srid
			c.SRIDVerified = true
		} else {
			c.SRID = in.fallbackSRID
			c.SRIDVerified = false
		}
	}
	return rows.Err()
}

func (in *PGIntrospector) loadIndexes(ctx context.Context, byName map[string]*Table) error {
	const query = `
		SELECT n.nspname, t.relname, i.relname AS index_name, am.amname AS method,
		       array_agg(a.attname ORDER BY a.attnum) AS cols
		FROM pg_index idx
		JOIN pg_class t ON t.oid = idx.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class i ON i.oid = idx.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(idx.indkey)
		WHERE n.nspname = ANY($1)
		GROUP BY n.nspname, t.relname, i.relname, am.amname
	`

	rows, err := in.pool.Query(ctx, query, in.schemas)
	if err != nil {
		return fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table string
		var idx Index
		if err := rows.Scan(&schema, &table, &idx.Name, &idx.Method, &idx.Columns); err != nil {
			return fmt.Errorf("scan index: %w", err)
		}
		if t, ok := byName[strings.ToLower(schema+"."+table)]; ok {
			t.Indexes = append(t.Indexes, idx)
		}
	}
	return rows.Err()
}

func (in *PGIntrospector) loadForeignKeys(ctx context.Context, byName map[string]*Table) error {
	const query = `
		SELECT ln.nspname, lt.relname,
		       array_agg(la.attname ORDER BY l.ord) AS local_cols,
		       rn.nspname || '.' || rt.relname AS ref_table,
		       array_agg(ra.attname ORDER BY r.ord) AS ref_cols
		FROM pg_constraint c
		JOIN pg_class lt ON lt.oid = c.conrelid
		JOIN pg_namespace ln ON ln.oid = lt.relnamespace
		JOIN pg_class rt ON rt.oid = c.confrelid
		JOIN pg_namespace rn ON rn.oid = rt.relnamespace
		JOIN unnest(c.conkey) WITH ORDINALITY AS l(attnum, ord) ON TRUE
		JOIN unnest(c.confkey) WITH ORDINALITY AS r(attnum, ord) ON r.ord = l.ord
		JOIN pg_attribute la ON la.attrelid = lt.oid AND la.attnum = l.attnum
		JOIN pg_attribute ra ON ra.attrelid = rt.oid AND ra.attnum = r.attnum
		WHERE c.contype = 'f' AND ln.nspname = ANY($1)
		GROUP BY ln.nspname, lt.relname, c.oid, rn.nspname, rt.relname
	`

	rows, err := in.pool.Query(ctx, query, in.schemas)
	if err != nil {
		return fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var schema, table string
		var fk ForeignKey
		if err := rows.Scan(&schema, &table, &fk.Columns, &fk.RefTable, &fk.RefColumns); err != nil {
			return fmt.Errorf("scan foreign key: %w", err)
		}
		if t, ok := byName[strings.ToLower(schema+"."+table)]; ok {
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
	return rows.Err()
}
