package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipts-redactor/constants"
	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
)

const outcomesTable = "redaction_outcomes"

var outcomeColumns = []string{
	"run_id",
	"path",
	"rel",
	"person",
	"bank",
	"state",
	"template",
	"confidence",
	"reason",
	"leaked",
	"output_path",
	"error",
	"started_at",
	"duration_ms",
}

// Ledger stores one row per processed file.
type Ledger struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	RunID string
	State constants.FileState
	Limit int
}

func (l *Ledger) Dialect() string { return l.dialect }

func (l *Ledger) migrate(ctx context.Context) error {
	idType, floatType := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if l.dialect == dialect.Postgres {
		idType, floatType = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + outcomesTable + ` (
	id ` + idType + `,
	run_id TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	rel TEXT NOT NULL DEFAULT '',
	person TEXT NOT NULL DEFAULT '',
	bank TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	template TEXT NOT NULL DEFAULT '',
	confidence ` + floatType + ` NOT NULL DEFAULT 0,
	reason TEXT NOT NULL DEFAULT '',
	leaked TEXT NOT NULL DEFAULT '[]',
	output_path TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	started_at BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS ` + outcomesTable + `_run_id ON ` + outcomesTable + ` (run_id)`,
	}
	for _, s := range stmts {
		if err := l.drv.Exec(ctx, s, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts one outcome. It satisfies pipeline.Recorder.
func (l *Ledger) Record(ctx context.Context, o pipeline.Outcome) error {
	leaked, err := json.Marshal(nonNil(o.Leaked))
	if err != nil {
		return err
	}
	query, args := entsql.Dialect(l.dialect).
		Insert(outcomesTable).
		Columns(outcomeColumns...).
		Values(
			o.RunID, o.Path, o.Rel, o.Person, o.Bank, string(o.State), o.Template,
			o.Confidence, o.Reason, string(leaked), o.OutputPath, o.Err,
			o.StartedAt.UnixMilli(), o.Duration.Milliseconds(),
		).
		Query()
	if err := l.drv.Exec(ctx, query, args, nil); err != nil {
		common.LoggerWith(ctx, l.logger).Error("ledger.record.failed", "path", o.Path, "error", err)
		return err
	}
	return nil
}

// List returns recorded outcomes, newest first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]pipeline.Outcome, error) {
	b := entsql.Dialect(l.dialect)
	sel := b.Select(outcomeColumns...).From(b.Table(outcomesTable)).OrderBy(entsql.Desc("id"))
	if f.RunID != "" {
		sel.Where(entsql.EQ("run_id", f.RunID))
	}
	if f.State != "" {
		sel.Where(entsql.EQ("state", string(f.State)))
	}
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := l.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []pipeline.Outcome
	for rows.Next() {
		var (
			o                pipeline.Outcome
			state, leaked    string
			startedMs, durMs int64
		)
		if err := rows.Scan(
			&o.RunID, &o.Path, &o.Rel, &o.Person, &o.Bank, &state, &o.Template,
			&o.Confidence, &o.Reason, &leaked, &o.OutputPath, &o.Err,
			&startedMs, &durMs,
		); err != nil {
			return nil, err
		}
		o.State = constants.FileState(state)
		if err := json.Unmarshal([]byte(leaked), &o.Leaked); err != nil {
			return nil, common.WrapError(err, "decode leaked fields")
		}
		o.StartedAt = time.UnixMilli(startedMs)
		o.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

// Stats aggregates recorded outcomes into batch counters. An empty runID
// covers the whole ledger.
func (l *Ledger) Stats(ctx context.Context, runID string) (pipeline.StatsSnapshot, error) {
	b := entsql.Dialect(l.dialect)
	sel := b.Select("state", entsql.Count("*")).From(b.Table(outcomesTable)).GroupBy("state")
	if runID != "" {
		sel.Where(entsql.EQ("run_id", runID))
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := l.drv.Query(ctx, query, args, &rows); err != nil {
		return pipeline.StatsSnapshot{}, err
	}
	defer func() { _ = rows.Close() }()

	stats := &pipeline.Stats{}
	for rows.Next() {
		var (
			state string
			n     int64
		)
		if err := rows.Scan(&state, &n); err != nil {
			return pipeline.StatsSnapshot{}, err
		}
		stats.Add(constants.FileState(state), n)
	}
	if err := rows.Err(); err != nil {
		return pipeline.StatsSnapshot{}, err
	}
	return stats.Snapshot(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
