// Package models defines data models for instances, batches, and launch results.
package models

import "time"

// InstanceStatus represents the lifecycle state of a registered instance.
type InstanceStatus string

const (
	// StatusPending indicates the instance is registered but untouched.
	StatusPending InstanceStatus = "pending"
	// StatusBackedUp indicates the config has been backed up and mutated.
	StatusBackedUp InstanceStatus = "backed_up"
	// StatusLaunching indicates the launch worker has started.
	StatusLaunching InstanceStatus = "launching"
	// StatusSucceeded indicates the process started and survived the grace window.
	StatusSucceeded InstanceStatus = "succeeded"
	// StatusFailed indicates the process failed to start or exited early.
	StatusFailed InstanceStatus = "failed"
	// StatusTimedOut indicates the launch exceeded the per-instance timeout.
	StatusTimedOut InstanceStatus = "timed_out"
	// StatusRollingBack indicates the instance's config is being restored.
	StatusRollingBack InstanceStatus = "rolling_back"
	// StatusRolledBack indicates the original config has been restored.
	StatusRolledBack InstanceStatus = "rolled_back"
)

// Terminal reports whether the status is an end state for a batch.
func (s InstanceStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusRolledBack:
		return true
	}
	return false
}

// Instance represents one external program managed by the coordinator.
type Instance struct {
	RegisteredAt time.Time      `json:"registered_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Port         *int           `json:"port"`
	PID          *int           `json:"pid"`
	Name         string         `json:"name"`
	Path         string         `json:"path"`
	ConfigPath   string         `json:"config_path"`
	Format       string         `json:"format"`
	Command      string         `json:"command"`
	Status       InstanceStatus `json:"status"`
	Detail       string         `json:"detail,omitempty"`
	BasePort     int            `json:"base_port"`
}

// RegisterInstanceRequest contains the data for registering an instance.
type RegisterInstanceRequest struct {
	Name       string `json:"name" binding:"required"`
	Path       string `json:"path" binding:"required"`
	ConfigPath string `json:"config_path" binding:"required"`
	Command    string `json:"command" binding:"required"`
	Format     string `json:"format"`
	BasePort   int    `json:"base_port"`
}
