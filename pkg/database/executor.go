package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/logging"
)

// ExecutorOptions bound every query the executor runs.
type ExecutorOptions struct {
	RowLimit         int
	StatementTimeout time.Duration
	IdleTimeout      time.Duration
	ExplainTimeout   time.Duration
	SearchPath       []string
}

// Executor runs read-only statements inside a session hardened with
// statement timeouts, a fixed search_path and a forced row limit. It never
// checks safety itself; callers gate statements through the correction
// pipeline first.
type Executor struct {
	db     *DB
	opts   ExecutorOptions
	logger *zap.Logger
}

// NewExecutor creates an executor over db.
func NewExecutor(db *DB, opts ExecutorOptions, logger *zap.Logger) *Executor {
	if opts.RowLimit <= 0 {
		opts.RowLimit = 500
	}
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = 15 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Second
	}
	if opts.ExplainTimeout <= 0 {
		opts.ExplainTimeout = 5 * time.Second
	}
	if len(opts.SearchPath) == 0 {
		opts.SearchPath = []string{"public"}
	}
	return &Executor{db: db, opts: opts, logger: logger.Named("executor")}
}

var limitPattern = regexp.MustCompile(`(?i)\blimit\b`)

// enforceLimit appends a LIMIT clause when the statement has none. EXPLAIN
// statements produce plan rows, not data rows, and are left untouched.
func enforceLimit(sql string, limit int) string {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if limitPattern.MatchString(trimmed) {
		return trimmed
	}
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "explain") {
		return trimmed
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// Query executes sql in a hardened read-only transaction and returns the
// rows as column-name keyed maps.
func (e *Executor) Query(ctx context.Context, sql string) ([]map[string]any, error) {
	sql = enforceLimit(sql, e.opts.RowLimit)

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := e.hardenSession(ctx, tx); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := tx.Query(ctx, sql)
	if err != nil {
		e.logger.Warn("query failed",
			zap.String("query", logging.SanitizeQuery(sql)),
			zap.Error(err))
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	e.logger.Debug("query executed",
		zap.Int("rows", len(out)),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}

// PingVersion returns the PostgreSQL version string, proving basic
// connectivity and permissions.
func (e *Executor) PingVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var version string
	if err := e.db.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("select version: %w", err)
	}
	return version, nil
}

// hardenSession applies per-transaction timeouts and the fixed search_path.
// SET LOCAL scopes everything to this transaction, so pooled connections are
// returned clean. Timeouts and schema names come from configuration, never
// from user input.
func (e *Executor) hardenSession(ctx context.Context, tx pgx.Tx) error {
	statements := []string{
		fmt.Sprintf("SET LOCAL statement_timeout TO '%dms'", e.opts.StatementTimeout.Milliseconds()),
		fmt.Sprintf("SET LOCAL idle_in_transaction_session_timeout TO '%dms'", e.opts.IdleTimeout.Milliseconds()),
		fmt.Sprintf("SET LOCAL search_path TO %s", strings.Join(e.opts.SearchPath, ", ")),
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("harden session: %w", err)
		}
	}
	return nil
}
