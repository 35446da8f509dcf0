package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/apperrors"
	"github.com/terralinea/geosql-engine/pkg/catalog"
	"github.com/terralinea/geosql-engine/pkg/config"
	"github.com/terralinea/geosql-engine/pkg/correct"
	"github.com/terralinea/geosql-engine/pkg/database"
	"github.com/terralinea/geosql-engine/pkg/llm"
	"github.com/terralinea/geosql-engine/pkg/prompts"
	"github.com/terralinea/geosql-engine/pkg/retry"
)

// SnapshotProvider yields the current schema snapshot.
type SnapshotProvider interface {
	Get(ctx context.Context) (*catalog.Snapshot, error)
}

// Corrector rewrites a drafted statement against the catalog.
type Corrector interface {
	Correct(draft string, cctx *correct.Context) correct.Result
}

// QueryRunner executes gated statements and their EXPLAIN plans.
type QueryRunner interface {
	Query(ctx context.Context, sql string) ([]map[string]any, error)
	Explain(ctx context.Context, sql string) (*database.PlanSummary, error)
}

// ChatRequest is the POST /api/chat payload. Either a natural-language
// question or a ready-made SQL draft must be present.
type ChatRequest struct {
	Question string `json:"question,omitempty"`
	SQL      string `json:"sql,omitempty"`
	Execute  *bool  `json:"execute,omitempty"` // default true
}

// ChatResponse reports the corrected statement, what was done to it, the
// plan summary and the rows.
type ChatResponse struct {
	Question string                 `json:"question,omitempty"`
	Refs     []correct.TableRef     `json:"refs,omitempty"`
	SQL      string                 `json:"sql"`
	Fixes    []string               `json:"fixes,omitempty"`
	Executed bool                   `json:"executed"`
	Plan     *database.PlanSummary  `json:"plan,omitempty"`
	Rows     []map[string]any       `json:"rows,omitempty"`
	Explain  string                 `json:"explain,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// ChatHandler wires the NL-to-SQL pipeline: draft, correct, gate, execute,
// explain.
type ChatHandler struct {
	cfg       *config.Config
	snapshots SnapshotProvider
	corrector Corrector
	runner    QueryRunner
	sqlLLM    llm.Client
	chatLLM   llm.Client
	logger    *zap.Logger
}

// NewChatHandler creates a ChatHandler. chatClient may equal sqlClient when
// one model serves both roles.
func NewChatHandler(
	cfg *config.Config,
	snapshots SnapshotProvider,
	corrector Corrector,
	runner QueryRunner,
	sqlClient llm.Client,
	chatClient llm.Client,
	logger *zap.Logger,
) *ChatHandler {
	if chatClient == nil {
		chatClient = sqlClient
	}
	return &ChatHandler{
		cfg:       cfg,
		snapshots: snapshots,
		corrector: corrector,
		runner:    runner,
		sqlLLM:    sqlClient,
		chatLLM:   chatClient,
		logger:    logger.Named("chat"),
	}
}

// RegisterRoutes registers the chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Question == "" && req.SQL == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "provide 'question' or 'sql'")
		return
	}

	ctx := r.Context()

	snap, err := h.snapshots.Get(ctx)
	if err != nil {
		h.logger.Error("catalog unavailable", zap.Error(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "catalog_unavailable",
			"schema catalog is not available")
		return
	}

	userText := req.Question
	if userText == "" {
		userText = req.SQL
	}
	refs := correct.FindTableRefs(userText)

	// Draft SQL from the question, or take the caller's statement as-is.
	draft := req.SQL
	if req.Question != "" {
		draft, err = h.draftSQL(ctx, snap, req.Question, refs)
		if err != nil {
			h.logger.Error("SQL drafting failed", zap.Error(err))
			_ = ErrorResponse(w, http.StatusBadGateway, "llm_error", "could not draft SQL")
			return
		}
		if draft == "" {
			_ = ErrorResponse(w, http.StatusBadRequest, "no_sql",
				"could not derive SQL from the question; try being more specific")
			return
		}
	}

	cctx := &correct.Context{
		Snapshot:          snap,
		Question:          req.Question,
		MetricSRID:        h.cfg.Corrections.MetricSRID,
		GeographicSRID:    h.cfg.Corrections.GeographicSRID,
		GeometryAliases:   h.cfg.Corrections.GeometryAliases,
		IdentifierAliases: h.cfg.Corrections.IdentifierAliases,
		LiteralAliases:    h.cfg.Corrections.Aliases,
	}

	result := h.corrector.Correct(draft, cctx)
	if !result.OK() {
		_ = WriteRejection(w, req.Question, draft, result.Rejection)
		return
	}

	resp := ChatResponse{
		Question: req.Question,
		Refs:     refs,
		SQL:      result.SQL,
		Fixes:    result.Applied,
	}

	// Plan gate before touching any data.
	plan, err := h.runner.Explain(ctx, result.SQL)
	if err != nil {
		resp.Error = "EXPLAIN failed; check columns, joins or the schema context"
		h.logger.Warn("explain failed", zap.Error(err))
		_ = WriteJSON(w, http.StatusOK, resp)
		return
	}
	resp.Plan = plan

	if err := database.CheckCost(plan, h.cfg.Executor.MaxPlanCost); err != nil {
		if errors.Is(err, apperrors.ErrPlanTooExpensive) {
			resp.Error = err.Error()
			_ = WriteJSON(w, http.StatusOK, resp)
			return
		}
		_ = ErrorResponse(w, http.StatusInternalServerError, "plan_check", err.Error())
		return
	}

	execute := req.Execute == nil || *req.Execute
	if execute {
		rows, err := h.runner.Query(ctx, result.SQL)
		if err != nil {
			resp.Error = "query execution failed"
			h.logger.Warn("execution failed", zap.Error(err))
			_ = WriteJSON(w, http.StatusOK, resp)
			return
		}
		resp.Rows = rows
		resp.Executed = true
	}

	// A short natural-language explanation; failure here never fails the
	// request.
	explainCtx, cancel := context.WithTimeout(ctx, h.cfg.LLM.Timeout())
	defer cancel()
	if explanation, err := h.chatLLM.Complete(explainCtx, "", prompts.ExplainPrompt(result.SQL)); err == nil {
		resp.Explain = explanation
	} else {
		h.logger.Debug("explanation skipped", zap.Error(err))
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}

// draftSQL builds the schema context for the referenced tables and asks the
// model for a single statement.
func (h *ChatHandler) draftSQL(ctx context.Context, snap *catalog.Snapshot, question string, refs []correct.TableRef) (string, error) {
	schemaCtx := prompts.BuildSchemaContext(snap, refs)
	system := prompts.SQLSystem(h.cfg.Corrections.MetricSRID, h.cfg.Corrections.GeographicSRID)
	prompt := prompts.BuildSQLPrompt(question, schemaCtx)

	ctx, cancel := context.WithTimeout(ctx, h.cfg.LLM.Timeout())
	defer cancel()

	// Transient transport errors are retried; model refusals are not.
	var raw string
	err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		var cerr error
		raw, cerr = h.sqlLLM.Complete(ctx, system, prompt)
		return cerr
	})
	if err != nil {
		return "", err
	}
	return llm.ExtractSQL(raw), nil
}
