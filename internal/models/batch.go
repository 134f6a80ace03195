package models

import "time"

// LaunchResult records the outcome of one instance's launch attempt.
type LaunchResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	TimedOut bool          `json:"timed_out"`
	Port     int           `json:"port"`
	PID      int           `json:"pid,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Detail   string        `json:"detail,omitempty"`
}

// RollbackError records a restore failure for a single config file.
type RollbackError struct {
	ConfigPath string `json:"config_path"`
	BackupPath string `json:"backup_path"`
	Detail     string `json:"detail"`
}

// BatchReport is the final report of a launch_batch call. The coordinator
// always returns a complete report; launch failures never surface as errors.
type BatchReport struct {
	BatchID        string          `json:"batch_id"`
	Succeeded      []string        `json:"succeeded"`
	Failed         []string        `json:"failed"`
	RolledBack     bool            `json:"rolled_back"`
	RolledBackList []string        `json:"rolled_back_instances,omitempty"`
	Results        []LaunchResult  `json:"results"`
	RollbackErrors []RollbackError `json:"rollback_errors,omitempty"`
}

// RollbackReport is the result of an explicit rollback_all call.
type RollbackReport struct {
	Restored []string        `json:"restored"`
	Errors   []RollbackError `json:"errors,omitempty"`
}

// RollbackStatus describes the live backup state between launch and cleanup.
type RollbackStatus struct {
	ModifiedConfigs []string          `json:"modified_configs"`
	Backups         map[string]string `json:"backups"`
}

// LaunchBatchRequest contains the instance names to launch together.
type LaunchBatchRequest struct {
	Names []string `json:"names" binding:"required"`
}

// LaunchEvent is published to stream subscribers as a batch progresses.
type LaunchEvent struct {
	Time    time.Time      `json:"time"`
	BatchID string         `json:"batch_id"`
	Name    string         `json:"name,omitempty"`
	Status  InstanceStatus `json:"status,omitempty"`
	Phase   string         `json:"phase"`
	Detail  string         `json:"detail,omitempty"`
}

// Batch is a persisted record of a launch_batch invocation.
type Batch struct {
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	RolledBack bool       `json:"rolled_back"`
	Requested  int        `json:"requested"`
}

// BatchWithResults extends Batch with its per-instance results.
type BatchWithResults struct {
	Batch
	Results []LaunchResult `json:"results"`
}
