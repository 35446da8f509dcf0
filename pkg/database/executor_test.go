package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terralinea/geosql-engine/pkg/apperrors"
)

func TestEnforceLimitAppendsWhenMissing(t *testing.T) {
	assert.Equal(t, "SELECT gid FROM parcelas LIMIT 500",
		enforceLimit("SELECT gid FROM parcelas", 500))
}

func TestEnforceLimitStripsTrailingSemicolon(t *testing.T) {
	assert.Equal(t, "SELECT 1 LIMIT 100", enforceLimit("SELECT 1;", 100))
}

func TestEnforceLimitKeepsExistingLimit(t *testing.T) {
	sql := "SELECT gid FROM parcelas LIMIT 10"
	assert.Equal(t, sql, enforceLimit(sql, 500))

	sql = "SELECT gid FROM parcelas limit 10 offset 5"
	assert.Equal(t, sql, enforceLimit(sql, 500))
}

func TestEnforceLimitLeavesExplainAlone(t *testing.T) {
	sql := "EXPLAIN SELECT gid FROM parcelas"
	assert.Equal(t, sql, enforceLimit(sql, 500))
}

func TestCheckCostBlocksExpensivePlans(t *testing.T) {
	err := CheckCost(&PlanSummary{TotalCost: 6_000_000}, 5_000_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPlanTooExpensive)
}

func TestCheckCostAllowsCheapPlans(t *testing.T) {
	assert.NoError(t, CheckCost(&PlanSummary{TotalCost: 1234}, 5_000_000))
}

func TestCheckCostDisabled(t *testing.T) {
	assert.NoError(t, CheckCost(&PlanSummary{TotalCost: 9e12}, 0))
	assert.NoError(t, CheckCost(nil, 5_000_000))
}
