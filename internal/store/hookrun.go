package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// HookRun records one execution of a hook.
type HookRun struct {
	ID           int64           `json:"id"`
	HookName     string          `json:"hook"`
	Event        string          `json:"event"`
	RecordingKey string          `json:"recording_key"`
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	Duration     time.Duration   `json:"duration"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HookRunRepository provides access to the hook run log.
type HookRunRepository struct {
	db *sql.DB
}

// HookRuns returns the hook run repository for this store.
func (s *Store) HookRuns() *HookRunRepository {
	return &HookRunRepository{db: s.db}
}

// Create appends a hook run to the log.
func (r *HookRunRepository) Create(ctx context.Context, run *HookRun) error {
	run.CreatedAt = time.Now()

	output := run.Output
	if output == nil {
		output = json.RawMessage("{}")
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO hook_runs (hook_name, event, recording_key, success, error, output, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.HookName, run.Event, run.RecordingKey, run.Success, run.Error, string(output),
		run.Duration.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return err
	}

	run.ID, err = result.LastInsertId()
	return err
}

// ListByRecording returns the runs triggered by the given recording, oldest first.
func (r *HookRunRepository) ListByRecording(ctx context.Context, key string) ([]*HookRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, hook_name, event, recording_key, success, error, output, duration_ms, created_at
		 FROM hook_runs WHERE recording_key = ? ORDER BY id`,
		key,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*HookRun
	for rows.Next() {
		run := &HookRun{}
		var success int
		var output string
		var durationMs int64

		err := rows.Scan(&run.ID, &run.HookName, &run.Event, &run.RecordingKey,
			&success, &run.Error, &output, &durationMs, &run.CreatedAt)
		if err != nil {
			return nil, err
		}

		run.Success = success != 0
		run.Output = json.RawMessage(output)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
