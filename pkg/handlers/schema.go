package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/catalog"
)

// SnapshotRefresher extends SnapshotProvider with a forced reload.
type SnapshotRefresher interface {
	SnapshotProvider
	Refresh(ctx context.Context) (*catalog.Snapshot, error)
}

// DBPinger reports database connectivity and server version.
type DBPinger interface {
	PingVersion(ctx context.Context) (string, error)
}

// TableSummary is one catalog table in the schema listing.
type TableSummary struct {
	Schema         string   `json:"schema"`
	Name           string   `json:"name"`
	Columns        int      `json:"columns"`
	PKColumns      []string `json:"pk_columns,omitempty"`
	GeometryColumn string   `json:"geometry_column,omitempty"`
	SRID           int      `json:"srid,omitempty"`
}

// SchemaHandler serves the schema catalog endpoints.
type SchemaHandler struct {
	cache  SnapshotRefresher
	pinger DBPinger
	logger *zap.Logger
}

// NewSchemaHandler creates a SchemaHandler.
func NewSchemaHandler(cache SnapshotRefresher, pinger DBPinger, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{cache: cache, pinger: pinger, logger: logger.Named("schema")}
}

// RegisterRoutes registers the schema routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema", h.List)
	mux.HandleFunc("POST /api/schema/refresh", h.Refresh)
	mux.HandleFunc("GET /api/db/ping", h.DBPing)
}

// List handles GET /api/schema with a summary of every cached table.
func (h *SchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cache.Get(r.Context())
	if err != nil {
		h.logger.Error("catalog unavailable", zap.Error(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "catalog_unavailable",
			"schema catalog is not available")
		return
	}
	h.writeSnapshot(w, snap)
}

// Refresh handles POST /api/schema/refresh, forcing a re-introspection.
func (h *SchemaHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.cache.Refresh(r.Context())
	if err != nil {
		h.logger.Error("refresh failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "refresh_failed",
			"schema refresh failed")
		return
	}
	h.writeSnapshot(w, snap)
}

// DBPing handles GET /api/db/ping, returning the server version.
func (h *SchemaHandler) DBPing(w http.ResponseWriter, r *http.Request) {
	version, err := h.pinger.PingVersion(r.Context())
	if err != nil {
		h.logger.Error("db ping failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "db_unreachable",
			"database is not reachable")
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}

func (h *SchemaHandler) writeSnapshot(w http.ResponseWriter, snap *catalog.Snapshot) {
	tables := snap.Tables()
	summaries := make([]TableSummary, 0, len(tables))
	for _, tbl := range tables {
		summaries = append(summaries, TableSummary{
			Schema:         tbl.Schema,
			Name:           tbl.Name,
			Columns:        len(tbl.Columns),
			PKColumns:      tbl.PKColumns,
			GeometryColumn: tbl.GeometryColumn,
			SRID:           tbl.SRID,
		})
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"loaded_at": snap.LoadedAt,
		"tables":    summaries,
	})
}
