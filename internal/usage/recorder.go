// Package usage persists per-step token consumption for billing audit.
// Writes are best-effort: a failed insert is logged and counted, never
// surfaced to the run that produced it.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/resumeforge/orchestrator/internal/metrics"
)

// Record is one token usage audit row.
type Record struct {
	ID         string        `db:"id"`
	RunID      string        `db:"run_id"`
	SessionID  string        `db:"session_id"`
	UserID     string        `db:"user_id"`
	StepID     string        `db:"step_id"`
	StepType   string        `db:"step_type"`
	ModelTier  string        `db:"model_tier"`
	TokensUsed int           `db:"tokens_used"`
	Duration   time.Duration `db:"duration_ms"`
	CreatedAt  time.Time     `db:"created_at"`
}

const insertQuery = `
	INSERT INTO workflow_token_usage
		(id, run_id, session_id, user_id, step_id, step_type, model_tier, tokens_used, duration_ms, created_at)
	VALUES
		(:id, :run_id, :session_id, :user_id, :step_id, :step_type, :model_tier, :tokens_used, :duration_ms, :created_at)`

// Recorder writes usage rows to Postgres.
type Recorder struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRecorder connects to the database and verifies the connection.
func NewRecorder(dsn string, logger *zap.Logger) (*Recorder, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Recorder{db: db, logger: logger}, nil
}

// NewRecorderWithDB wraps an existing connection (tests use this with
// sqlmock).
func NewRecorderWithDB(db *sqlx.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// RecordStep inserts one audit row. Failures are logged and swallowed.
func (r *Recorder) RecordStep(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Duration = rec.Duration / time.Millisecond

	if _, err := r.db.NamedExecContext(ctx, insertQuery, rec); err != nil {
		metrics.UsageRecordErrors.Inc()
		r.logger.Warn("Failed to record token usage",
			zap.String("run_id", rec.RunID),
			zap.String("step_id", rec.StepID),
			zap.Error(err),
		)
		return
	}
	metrics.UsageRecordsWritten.Inc()
}

// Close releases the underlying connection pool.
func (r *Recorder) Close() error {
	return r.db.Close()
}
