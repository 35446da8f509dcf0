package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaList(t *testing.T) {
	h := NewSchemaHandler(&stubSnapshots{snap: testSnapshot()}, &stubPinger{}, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tables []TableSummary `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tables, 1)
	assert.Equal(t, "parcelas", resp.Tables[0].Name)
	assert.Equal(t, "geometria", resp.Tables[0].GeometryColumn)
	assert.Equal(t, 4326, resp.Tables[0].SRID)
	assert.Equal(t, []string{"gid"}, resp.Tables[0].PKColumns)
}

func TestSchemaListUnavailable(t *testing.T) {
	h := NewSchemaHandler(&stubSnapshots{err: errBoom}, &stubPinger{}, testLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSchemaRefresh(t *testing.T) {
	snaps := &stubSnapshots{snap: testSnapshot()}
	h := NewSchemaHandler(snaps, &stubPinger{}, testLogger())

	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/schema/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, snaps.refreshed)
}

func TestDBPing(t *testing.T) {
	h := NewSchemaHandler(&stubSnapshots{snap: testSnapshot()},
		&stubPinger{version: "PostgreSQL 16.2"}, testLogger())

	rec := httptest.NewRecorder()
	h.DBPing(rec, httptest.NewRequest(http.MethodGet, "/api/db/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "PostgreSQL 16.2", resp["version"])
}

func TestDBPingFailure(t *testing.T) {
	h := NewSchemaHandler(&stubSnapshots{snap: testSnapshot()},
		&stubPinger{err: errBoom}, testLogger())

	rec := httptest.NewRecorder()
	h.DBPing(rec, httptest.NewRequest(http.MethodGet, "/api/db/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
