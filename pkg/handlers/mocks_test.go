package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/catalog"
	"github.com/terralinea/geosql-engine/pkg/config"
	"github.com/terralinea/geosql-engine/pkg/correct"
	"github.com/terralinea/geosql-engine/pkg/database"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:     "local",
		Version: "test",
		Corrections: config.CorrectionsConfig{
			MetricSRID:        32719,
			GeographicSRID:    4326,
			FallbackSRID:      4326,
			GeometryAliases:   []string{"geom", "geometry", "the_geom"},
			IdentifierAliases: []string{"id", "objectid", "gid"},
		},
		LLM: config.LLMConfig{
			Provider:       "openai",
			SQLModel:       "sqlcoder",
			TimeoutSeconds: 5,
		},
		Executor: config.ExecutorConfig{
			RowLimit:    500,
			MaxPlanCost: 5_000_000,
		},
	}
}

func testSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot([]*catalog.Table{
		{
			Schema: "datos_maestros",
			Name:   "parcelas",
			Columns: []catalog.Column{
				{Name: "gid", DataType: "integer", IsIdentifier: true},
				{Name: "nombre", DataType: "character varying", IsNullable: true},
				{Name: "geometria", DataType: "geometry", IsGeometry: true, SRID: 4326, SRIDVerified: true},
			},
			PKColumns: []string{"gid"},
		},
	})
}

type stubSnapshots struct {
	snap *catalog.Snapshot
	err  error

	refreshed bool
}

func (s *stubSnapshots) Get(_ context.Context) (*catalog.Snapshot, error) {
	return s.snap, s.err
}

func (s *stubSnapshots) Refresh(_ context.Context) (*catalog.Snapshot, error) {
	s.refreshed = true
	return s.snap, s.err
}

type stubRunner struct {
	rows    []map[string]any
	rowsErr error

	plan       *database.PlanSummary
	planErr    error
	lastSQL    string
	queryCalls int
}

func (r *stubRunner) Query(_ context.Context, sql string) ([]map[string]any, error) {
	r.lastSQL = sql
	r.queryCalls++
	return r.rows, r.rowsErr
}

func (r *stubRunner) Explain(_ context.Context, _ string) (*database.PlanSummary, error) {
	if r.planErr != nil {
		return nil, r.planErr
	}
	if r.plan == nil {
		return &database.PlanSummary{Node: "Seq Scan", TotalCost: 100}, nil
	}
	return r.plan, nil
}

type stubPinger struct {
	version string
	err     error
}

func (p *stubPinger) PingVersion(_ context.Context) (string, error) {
	return p.version, p.err
}

var errBoom = errors.New("boom")

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// engineCorrector runs the real correction engine in handler tests so the
// full pipeline is exercised end to end.
func engineCorrector() Corrector {
	return correct.NewEngine(nil)
}
