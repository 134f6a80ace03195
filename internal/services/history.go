package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/pandeptwidyaop/instance-remote/internal/database"
	"github.com/pandeptwidyaop/instance-remote/internal/models"
)

// ErrBatchNotFound indicates no persisted batch exists with the given ID.
var ErrBatchNotFound = errors.New("batch not found")

// HistoryService persists batches and per-instance launch results.
type HistoryService struct {
	db *database.DB
}

// NewHistoryService creates a new HistoryService instance.
func NewHistoryService(db *database.DB) *HistoryService {
	return &HistoryService{db: db}
}

// StartBatch records a new running batch.
func (s *HistoryService) StartBatch(id string, requested int) error {
	_, err := s.db.Exec(
		"INSERT INTO batches (id, requested, status) VALUES (?, ?, 'running')",
		id, requested,
	)
	return err
}

// FinishBatch records the final status of a batch.
func (s *HistoryService) FinishBatch(id, status string, rolledBack bool) error {
	_, err := s.db.Exec(
		"UPDATE batches SET status = ?, rolled_back = ?, finished_at = ? WHERE id = ?",
		status, rolledBack, time.Now(), id,
	)
	return err
}

// RecordResult persists one instance's launch result.
func (s *HistoryService) RecordResult(batchID string, res models.LaunchResult) error {
	_, err := s.db.Exec(
		`INSERT INTO launch_results (batch_id, instance, success, timed_out, port, pid, elapsed_ms, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, res.Name, res.Success, res.TimedOut, res.Port, res.PID,
		res.Elapsed.Milliseconds(), res.Detail,
	)
	return err
}

// RecordRollbackError persists a per-file restore failure.
func (s *HistoryService) RecordRollbackError(batchID string, re models.RollbackError) error {
	_, err := s.db.Exec(
		"INSERT INTO rollback_errors (batch_id, config_path, backup_path, detail) VALUES (?, ?, ?, ?)",
		batchID, re.ConfigPath, re.BackupPath, re.Detail,
	)
	return err
}

// ListBatches returns recent batches, newest first.
func (s *HistoryService) ListBatches(limit, offset int) ([]models.Batch, error) {
	if limit == 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, requested, status, rolled_back, started_at, finished_at
		 FROM batches ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// GetBatch returns one batch with its launch results.
func (s *HistoryService) GetBatch(id string) (*models.BatchWithResults, error) {
	row := s.db.QueryRow(
		`SELECT id, requested, status, rolled_back, started_at, finished_at
		 FROM batches WHERE id = ?`,
		id,
	)

	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT instance, success, timed_out, port, pid, elapsed_ms, detail
		 FROM launch_results WHERE batch_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &models.BatchWithResults{Batch: *b}
	for rows.Next() {
		var res models.LaunchResult
		var pid sql.NullInt64
		var elapsedMS int64
		var detail sql.NullString
		if err := rows.Scan(&res.Name, &res.Success, &res.TimedOut, &res.Port, &pid, &elapsedMS, &detail); err != nil {
			return nil, err
		}
		if pid.Valid {
			res.PID = int(pid.Int64)
		}
		if detail.Valid {
			res.Detail = detail.String
		}
		res.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out.Results = append(out.Results, res)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row rowScanner) (*models.Batch, error) {
	var b models.Batch
	var finishedAt sql.NullTime
	if err := row.Scan(&b.ID, &b.Requested, &b.Status, &b.RolledBack, &b.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		b.FinishedAt = &finishedAt.Time
	}
	return &b, nil
}
