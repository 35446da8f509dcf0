package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/terralinea/geosql-engine/pkg/apperrors"
)

// PlanSummary is the cost-relevant slice of an EXPLAIN (FORMAT JSON) root
// plan node.
type PlanSummary struct {
	Node        string  `json:"node"`
	StartupCost float64 `json:"startup_cost"`
	TotalCost   float64 `json:"total_cost"`
	PlanRows    int64   `json:"plan_rows"`
	PlanWidth   int     `json:"plan_width"`
}

type explainNode struct {
	Plan struct {
		NodeType    string  `json:"Node Type"`
		StartupCost float64 `json:"Startup Cost"`
		TotalCost   float64 `json:"Total Cost"`
		PlanRows    int64   `json:"Plan Rows"`
		PlanWidth   int     `json:"Plan Width"`
	} `json:"Plan"`
}

// Explain runs EXPLAIN (FORMAT JSON) over sql and summarizes the root node.
// It runs inside the same hardened session as regular queries, with a short
// timeout of its own.
func (e *Executor) Explain(ctx context.Context, sql string) (*PlanSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.ExplainTimeout)
	defer cancel()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := e.hardenSession(ctx, tx); err != nil {
		return nil, err
	}

	var raw []byte
	if err := tx.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+sql).Scan(&raw); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	var nodes []explainNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("empty plan")
	}

	p := nodes[0].Plan
	return &PlanSummary{
		Node:        p.NodeType,
		StartupCost: p.StartupCost,
		TotalCost:   p.TotalCost,
		PlanRows:    p.PlanRows,
		PlanWidth:   p.PlanWidth,
	}, nil
}

// CheckCost rejects plans whose estimated total cost exceeds maxCost. A
// zero or negative maxCost disables the gate.
func CheckCost(plan *PlanSummary, maxCost float64) error {
	if plan == nil || maxCost <= 0 {
		return nil
	}
	if plan.TotalCost > maxCost {
		return fmt.Errorf("%w: total_cost=%.0f exceeds %.0f",
			apperrors.ErrPlanTooExpensive, plan.TotalCost, maxCost)
	}
	return nil
}
