package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/joss/looper/internal/usage"
)

// Index is the per-user run index in ~/.looper/looper.db. It mirrors
// what the markdown ledger records so past runs can be listed and
// inspected without walking session directories. The markdown ledger
// stays the source of truth; every index write is best-effort from the
// loop's point of view.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex opens (creating if needed) the run index under dataDir.
func OpenIndex(dataDir string) (*Index, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "looper.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	idx := &Index{db: db, path: dbPath}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return idx, nil
}

func (i *Index) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		session TEXT NOT NULL,
		dir TEXT NOT NULL,
		tool TEXT NOT NULL,
		model TEXT,
		resumed INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		stop_reason TEXT,
		total_iterations INTEGER,
		elapsed_ms INTEGER,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS iterations (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		files_changed INTEGER,
		input_tokens INTEGER,
		output_tokens INTEGER,
		total_tokens INTEGER,
		cache_read_tokens INTEGER,
		cache_write_tokens INTEGER,
		cost_usd REAL,
		commit_hash TEXT,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, iteration),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (i *Index) Close() error {
	return i.db.Close()
}

// RecordRunStart inserts the run row when the loop starts.
func (i *Index) RecordRunStart(ctx context.Context, s *Session, tool, model string, startedAt time.Time) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO runs (id, session, dir, tool, model, resumed, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.RunID, s.Name, s.Dir, tool, model, boolInt(s.Resumed), startedAt.UTC(), time.Now().UTC())
	return err
}

// RecordIteration inserts one iteration row.
func (i *Index) RecordIteration(ctx context.Context, runID string, rec IterationRecord) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT INTO iterations (run_id, iteration, status, exit_code, duration_ms,
			files_changed, input_tokens, output_tokens, total_tokens,
			cache_read_tokens, cache_write_tokens, cost_usd, commit_hash, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, rec.Iteration, string(rec.Status), rec.ExitCode, rec.Duration.Milliseconds(),
		nullInt(rec.FilesChanged),
		nullInt(rec.Usage.InputTokens), nullInt(rec.Usage.OutputTokens), nullInt(rec.Usage.TotalTokens),
		nullInt(rec.Usage.CacheReadTokens), nullInt(rec.Usage.CacheWriteTokens),
		nullFloat(rec.Usage.CostUSD), nullStr(rec.CommitHash), rec.Timestamp.UTC())
	return err
}

// RecordRunEnd fills in the run's terminal fields.
func (i *Index) RecordRunEnd(ctx context.Context, runID string, s Summary) error {
	_, err := i.db.ExecContext(ctx, `
		UPDATE runs SET stop_reason = ?, total_iterations = ?, elapsed_ms = ?, updated_at = ?
		WHERE id = ?
	`, s.StopReason, s.TotalIterations, s.Elapsed.Milliseconds(), time.Now().UTC(), runID)
	return err
}

// RunRow is one row of the runs table.
type RunRow struct {
	ID              string
	Session         string
	Dir             string
	Tool            string
	Model           string
	Resumed         bool
	StartedAt       time.Time
	StopReason      string
	TotalIterations int
	Elapsed         time.Duration
}

// ListRuns returns the most recent runs, newest first.
func (i *Index) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, session, dir, tool, COALESCE(model, ''), resumed, started_at,
		       COALESCE(stop_reason, ''), COALESCE(total_iterations, 0), COALESCE(elapsed_ms, 0)
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var resumed int
		var elapsedMs int64
		if err := rows.Scan(&r.ID, &r.Session, &r.Dir, &r.Tool, &r.Model, &resumed,
			&r.StartedAt, &r.StopReason, &r.TotalIterations, &elapsedMs); err != nil {
			return nil, err
		}
		r.Resumed = resumed != 0
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// IterationRow is one row of the iterations table.
type IterationRow struct {
	Iteration  int
	Status     IterationStatus
	ExitCode   int
	Duration   time.Duration
	Usage      usage.TokenUsage
	CommitHash string
	RecordedAt time.Time
}

// IterationsForSession returns all iterations recorded for a session
// name across runs, oldest first.
func (i *Index) IterationsForSession(ctx context.Context, sessionName string) ([]IterationRow, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT it.iteration, it.status, it.exit_code, it.duration_ms,
		       it.input_tokens, it.output_tokens, it.total_tokens,
		       it.cache_read_tokens, it.cache_write_tokens, it.cost_usd,
		       COALESCE(it.commit_hash, ''), it.recorded_at
		FROM iterations it
		JOIN runs r ON r.id = it.run_id
		WHERE r.session = ?
		ORDER BY it.recorded_at ASC, it.iteration ASC
	`, sessionName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IterationRow
	for rows.Next() {
		var row IterationRow
		var status string
		var durMs int64
		var in, outTok, total, cr, cw sql.NullInt64
		var cost sql.NullFloat64
		if err := rows.Scan(&row.Iteration, &status, &row.ExitCode, &durMs,
			&in, &outTok, &total, &cr, &cw, &cost, &row.CommitHash, &row.RecordedAt); err != nil {
			return nil, err
		}
		row.Status = IterationStatus(status)
		row.Duration = time.Duration(durMs) * time.Millisecond
		row.Usage.InputTokens = fromNullInt(in)
		row.Usage.OutputTokens = fromNullInt(outTok)
		row.Usage.TotalTokens = fromNullInt(total)
		row.Usage.CacheReadTokens = fromNullInt(cr)
		row.Usage.CacheWriteTokens = fromNullInt(cw)
		row.Usage.CostUSD = fromNullFloat(cost)
		out = append(out, row)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
