package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"agentic_diligence/pkg/core/state"
)

// JobRepo handles the storage of completed diligence job states.
type JobRepo struct{}

// NewJobRepo creates a new repository instance.
func NewJobRepo() *JobRepo {
	return &JobRepo{}
}

// Save persists a sealed job state as a single JSONB document.
// It uses an upsert strategy based on the job id.
//
// Schema assumption:
// CREATE TABLE IF NOT EXISTS diligence_jobs (
//
//	job_id UUID PRIMARY KEY,
//	ticker TEXT,
//	state_json JSONB,
//	completed_at TIMESTAMPTZ
//
// );
func (r *JobRepo) Save(ctx context.Context, jobID string, st *state.Store) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	doc, err := st.MarshalDocument()
	if err != nil {
		return fmt.Errorf("failed to marshal job state: %w", err)
	}

	query := `
		INSERT INTO diligence_jobs (job_id, ticker, state_json, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id)
		DO UPDATE SET
			ticker = EXCLUDED.ticker,
			state_json = EXCLUDED.state_json,
			completed_at = EXCLUDED.completed_at;
	`

	snap := st.Snapshot()
	_, err = pool.Exec(ctx, query, jobID, snap.Target.Ticker, doc, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save job state: %w", err)
	}

	return nil
}

// Load retrieves a persisted job state by id. The returned store is sealed;
// it supports reads but no further merges.
func (r *JobRepo) Load(ctx context.Context, jobID string) (*state.Store, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `SELECT state_json FROM diligence_jobs WHERE job_id = $1`

	var doc []byte
	err := pool.QueryRow(ctx, query, jobID).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("no job state found for id %s", jobID)
		}
		return nil, fmt.Errorf("failed to load job state: %w", err)
	}

	st, err := state.LoadDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job state: %w", err)
	}
	return st, nil
}

// ListRecent returns the most recent job ids for a ticker, newest first.
func (r *JobRepo) ListRecent(ctx context.Context, ticker string, limit int) ([]string, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT job_id FROM diligence_jobs WHERE ticker = $1 ORDER BY completed_at DESC LIMIT $2`
	rows, err := pool.Query(ctx, query, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveAnomalies stores the anomaly log rows individually so they can be
// queried across jobs without unpacking the full state document.
//
// Schema assumption:
// CREATE TABLE IF NOT EXISTS diligence_anomalies (
//
//	anomaly_id UUID PRIMARY KEY,
//	job_id UUID,
//	severity TEXT,
//	source_agent TEXT,
//	detail_json JSONB
//
// );
func (r *JobRepo) SaveAnomalies(ctx context.Context, jobID string, anomalies []state.Anomaly) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	query := `
		INSERT INTO diligence_anomalies (anomaly_id, job_id, severity, source_agent, detail_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (anomaly_id) DO NOTHING;
	`
	for _, a := range anomalies {
		detail, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal anomaly %s: %w", a.ID, err)
		}
		if _, err := pool.Exec(ctx, query, a.ID, jobID, string(a.Severity), a.Agent, detail); err != nil {
			return fmt.Errorf("failed to save anomaly %s: %w", a.ID, err)
		}
	}
	return nil
}
