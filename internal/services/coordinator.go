package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pandeptwidyaop/instance-remote/internal/config"
	"github.com/pandeptwidyaop/instance-remote/internal/configfile"
	"github.com/pandeptwidyaop/instance-remote/internal/models"
	"github.com/pandeptwidyaop/instance-remote/internal/ports"
)

// backupRecord tracks one live config backup, in creation order.
type backupRecord struct {
	instance   string
	configPath string
	backupPath string
	createdAt  time.Time
}

// Coordinator orchestrates batch launches: port allocation, sequential
// backup and mutation, concurrent launch, and all-or-nothing rollback of
// every touched config when any instance fails.
type Coordinator struct {
	cfg       *config.Config
	registry  *Registry
	allocator *ports.Allocator
	spawner   Spawner
	history   *HistoryService

	// mu serializes batches and guards backups. Concurrent batches over the
	// same config file are undefined; one coordinator never interleaves two.
	mu      sync.Mutex
	backups []backupRecord

	subMu       sync.Mutex
	subscribers map[chan models.LaunchEvent]struct{}
}

// NewCoordinator creates a Coordinator. history may be nil when persistence
// is not wanted (tests).
func NewCoordinator(cfg *config.Config, registry *Registry, allocator *ports.Allocator, spawner Spawner, history *HistoryService) *Coordinator {
	allocator.Reserve(cfg.Launch.ReservedPorts...)
	return &Coordinator{
		cfg:         cfg,
		registry:    registry,
		allocator:   allocator,
		spawner:     spawner,
		history:     history,
		subscribers: make(map[chan models.LaunchEvent]struct{}),
	}
}

// RegisterInstance registers a new instance, detecting the config format
// from the file extension when none is given.
func (c *Coordinator) RegisterInstance(req *models.RegisterInstanceRequest) (*models.Instance, error) {
	format := configfile.Format(req.Format)
	if req.Format == "" {
		format = configfile.DetectFormat(req.ConfigPath)
	}

	basePort := req.BasePort
	if basePort == 0 {
		basePort = c.cfg.Launch.BasePort
	}

	inst := &models.Instance{
		Name:       req.Name,
		Path:       req.Path,
		ConfigPath: req.ConfigPath,
		Command:    req.Command,
		Format:     string(format),
		BasePort:   basePort,
		Status:     models.StatusPending,
	}
	if err := c.registry.Register(inst); err != nil {
		return nil, err
	}

	log.Printf("[Coordinator] Registered instance %s (config %s, format %s)", inst.Name, inst.ConfigPath, inst.Format)
	return c.registry.Get(inst.Name)
}

// UnregisterInstance removes an instance from the registry.
func (c *Coordinator) UnregisterInstance(name string) error {
	return c.registry.Unregister(name)
}

// Instance returns a snapshot of one instance.
func (c *Coordinator) Instance(name string) (*models.Instance, error) {
	return c.registry.Get(name)
}

// Instances returns snapshots of all instances in registration order.
func (c *Coordinator) Instances() []*models.Instance {
	return c.registry.All()
}

// PrepareInstance performs allocation, backup, and mutation for a single
// instance outside a full batch.
func (c *Coordinator) PrepareInstance(name string) (*models.Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inst, err := c.registry.Get(name)
	if err != nil {
		return nil, err
	}

	if err := c.allocator.Refresh(); err != nil {
		log.Printf("[Coordinator] Port snapshot failed, using previous: %v", err)
	}

	port, err := c.allocator.Allocate(inst.BasePort, nil)
	if err != nil {
		return nil, err
	}
	c.registry.SetPort(name, port)

	if err := c.backupAndMutate(inst, port); err != nil {
		c.allocator.Release(port)
		c.registry.Mark(name, models.StatusFailed, err.Error())
		return nil, err
	}

	c.registry.Mark(name, models.StatusBackedUp, "")
	return c.registry.Get(name)
}

// LaunchBatch launches the named instances together with an all-or-nothing
// guarantee over their config files. Structural errors (unknown instance,
// port exhaustion) abort before any side effect; launch failures are
// captured in the report and trigger rollback, never returned as an error.
func (c *Coordinator) LaunchBatch(ctx context.Context, names []string) (*models.BatchReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(names) == 0 {
		return nil, fmt.Errorf("no instances given")
	}

	instances := make([]*models.Instance, 0, len(names))
	for _, name := range names {
		inst, err := c.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, name)
		}
		instances = append(instances, inst)
	}

	batchID := uuid.New().String()
	report := &models.BatchReport{BatchID: batchID}

	if c.history != nil {
		if err := c.history.StartBatch(batchID, len(names)); err != nil {
			log.Printf("[Coordinator] Failed to persist batch %s: %v", batchID, err)
		}
	}
	c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Phase: "allocation"})

	// Phase 1: allocation. Exhaustion aborts before any file is touched.
	if err := c.allocator.Refresh(); err != nil {
		log.Printf("[Coordinator] Port snapshot failed, using previous: %v", err)
	}
	allocated, err := c.allocator.AllocateBatch(len(instances), c.cfg.Launch.BasePort, c.cfg.Launch.PortOffset)
	if err != nil {
		c.finishBatch(batchID, "aborted", false)
		return nil, err
	}
	for i, inst := range instances {
		inst.Port = &allocated[i]
		c.registry.SetPort(inst.Name, allocated[i])
	}

	// Phase 2: backup and mutate, sequential by design. All mutations must
	// be complete (or known failed) before anything launches, otherwise
	// rollback cannot tell which files are safe to restore.
	c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Phase: "prepare"})
	eligible := make([]*models.Instance, 0, len(instances))
	for _, inst := range instances {
		if err := c.backupAndMutate(inst, *inst.Port); err != nil {
			log.Printf("[Coordinator] Prepare failed for %s: %v", inst.Name, err)
			c.registry.Mark(inst.Name, models.StatusFailed, err.Error())
			c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Name: inst.Name, Status: models.StatusFailed, Phase: "prepare", Detail: err.Error()})
			report.Results = append(report.Results, models.LaunchResult{
				Name: inst.Name, Port: *inst.Port, Detail: err.Error(),
			})
			continue
		}
		c.registry.Mark(inst.Name, models.StatusBackedUp, "")
		c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Name: inst.Name, Status: models.StatusBackedUp, Phase: "prepare"})
		eligible = append(eligible, inst)
	}

	// Phase 3: concurrent launch. Every worker starts before any is
	// awaited; resultMu covers the result list and status marks.
	c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Phase: "launch"})
	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
	)
	timeout := c.cfg.Launch.Timeout()

	for _, inst := range eligible {
		wg.Add(1)
		go func(inst *models.Instance) {
			defer wg.Done()

			c.registry.Mark(inst.Name, models.StatusLaunching, "")
			c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Name: inst.Name, Status: models.StatusLaunching, Phase: "launch"})

			start := time.Now()
			res := c.spawner.SpawnAndWait(ctx, inst.Path, LaunchSpec{
				Command: inst.Command,
				Port:    *inst.Port,
			}, timeout)
			elapsed := time.Since(start)

			status := models.StatusFailed
			switch {
			case res.Success:
				status = models.StatusSucceeded
			case res.TimedOut:
				status = models.StatusTimedOut
			}

			resultMu.Lock()
			defer resultMu.Unlock()

			c.registry.Mark(inst.Name, status, res.Detail)
			if res.PID != 0 {
				c.registry.SetPID(inst.Name, res.PID)
			}
			report.Results = append(report.Results, models.LaunchResult{
				Name:     inst.Name,
				Success:  res.Success,
				TimedOut: res.TimedOut,
				Port:     *inst.Port,
				PID:      res.PID,
				Elapsed:  elapsed,
				Detail:   res.Detail,
			})
			c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Name: inst.Name, Status: status, Phase: "launch", Detail: res.Detail})
			log.Printf("[Coordinator] Instance %s finished launch: %s (%v)", inst.Name, status, elapsed.Round(time.Millisecond))
		}(inst)
	}
	wg.Wait()

	// Phase 4: aggregation. Timeouts count as failures.
	for _, res := range report.Results {
		if res.Success {
			report.Succeeded = append(report.Succeeded, res.Name)
		} else {
			report.Failed = append(report.Failed, res.Name)
		}
	}

	// Phase 5: outcome.
	if len(report.Failed) == 0 {
		c.discardBackups()
		c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Phase: "complete"})
		c.persistResults(batchID, report)
		c.finishBatch(batchID, "succeeded", false)
		log.Printf("[Coordinator] Batch %s succeeded (%d instances)", batchID, len(report.Succeeded))
		return report, nil
	}

	c.publish(models.LaunchEvent{Time: time.Now(), BatchID: batchID, Phase: "rollback"})
	report.RolledBack = true
	report.RolledBackList, report.RollbackErrors = c.rollbackLocked(batchID)
	c.persistResults(batchID, report)
	c.finishBatch(batchID, "failed", true)
	log.Printf("[Coordinator] Batch %s failed (%d failed, %d rolled back)", batchID, len(report.Failed), len(report.RolledBackList))
	return report, nil
}

// RollbackAll restores every live backup. Calling it again after a complete
// rollback is a no-op.
func (c *Coordinator) RollbackAll() *models.RollbackReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := &models.RollbackReport{Restored: []string{}}
	restored, errs := c.rollbackLocked("")
	report.Restored = append(report.Restored, restored...)
	report.Errors = errs
	return report
}

// RollbackStatus reports live backups and the configs they cover.
func (c *Coordinator) RollbackStatus() models.RollbackStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := models.RollbackStatus{
		ModifiedConfigs: make([]string, 0, len(c.backups)),
		Backups:         make(map[string]string, len(c.backups)),
	}
	for _, rec := range c.backups {
		status.ModifiedConfigs = append(status.ModifiedConfigs, rec.configPath)
		status.Backups[rec.configPath] = rec.backupPath
	}
	return status
}

// backupAndMutate backs up one instance's config and writes its port in.
// The backup record is kept even when mutation fails: the write is atomic,
// so restoring the untouched original is harmless, and the file still
// participates in rollback accounting.
func (c *Coordinator) backupAndMutate(inst *models.Instance, port int) error {
	for _, rec := range c.backups {
		if rec.configPath != inst.ConfigPath {
			continue
		}
		if rec.instance == inst.Name {
			// Already prepared (PrepareInstance); mutate against the
			// existing backup instead of stacking a second one.
			return configfile.SetPortFields(inst.ConfigPath, configfile.Format(inst.Format), port)
		}
		// At most one live backup per config path.
		return fmt.Errorf("config %s already has a live backup (instance %s)", inst.ConfigPath, rec.instance)
	}

	backupPath, err := configfile.Backup(inst.ConfigPath)
	if err != nil {
		return err
	}
	c.backups = append(c.backups, backupRecord{
		instance:   inst.Name,
		configPath: inst.ConfigPath,
		backupPath: backupPath,
		createdAt:  time.Now(),
	})

	if err := configfile.SetPortFields(inst.ConfigPath, configfile.Format(inst.Format), port); err != nil {
		return err
	}
	return nil
}

// rollbackLocked restores every live backup sequentially, continuing past
// individual failures so one broken restore never hides the rest. Succeeded
// instances transition to rolled_back; failed ones keep their failure status.
func (c *Coordinator) rollbackLocked(batchID string) (rolledBack []string, errs []models.RollbackError) {
	if c.cfg.Launch.KillOnRollback {
		c.killSurvivors()
	}

	for _, rec := range c.backups {
		if inst, err := c.registry.Get(rec.instance); err == nil && inst.Status == models.StatusSucceeded {
			c.registry.Mark(rec.instance, models.StatusRollingBack, "")
		}

		if err := configfile.Restore(rec.configPath, rec.backupPath); err != nil {
			log.Printf("[Coordinator] Restore failed for %s: %v", rec.configPath, err)
			re := models.RollbackError{
				ConfigPath: rec.configPath,
				BackupPath: rec.backupPath,
				Detail:     err.Error(),
			}
			errs = append(errs, re)
			if c.history != nil && batchID != "" {
				c.history.RecordRollbackError(batchID, re)
			}
			continue
		}

		if inst, err := c.registry.Get(rec.instance); err == nil {
			switch inst.Status {
			case models.StatusRollingBack, models.StatusSucceeded, models.StatusBackedUp:
				c.registry.Mark(rec.instance, models.StatusRolledBack, "")
				rolledBack = append(rolledBack, rec.instance)
			}
		}
	}

	c.backups = nil
	return rolledBack, errs
}

// killSurvivors signals processes of this batch's instances that launched
// successfully. Instances from earlier batches are never touched.
func (c *Coordinator) killSurvivors() {
	killer, ok := c.spawner.(ProcessKiller)
	if !ok {
		log.Printf("[Coordinator] kill_on_rollback set but spawner cannot kill; skipping")
		return
	}
	for _, rec := range c.backups {
		inst, err := c.registry.Get(rec.instance)
		if err != nil {
			continue
		}
		if inst.Status == models.StatusSucceeded && inst.PID != nil {
			if err := killer.Kill(*inst.PID); err != nil {
				log.Printf("[Coordinator] Failed to kill %s (pid %d): %v", inst.Name, *inst.PID, err)
			}
		}
	}
}

// discardBackups deletes every backup file after a fully successful batch.
func (c *Coordinator) discardBackups() {
	for _, rec := range c.backups {
		if err := os.Remove(rec.backupPath); err != nil {
			log.Printf("[Coordinator] Failed to remove backup %s: %v", rec.backupPath, err)
		}
	}
	c.backups = nil
}

func (c *Coordinator) persistResults(batchID string, report *models.BatchReport) {
	if c.history == nil {
		return
	}
	for _, res := range report.Results {
		if err := c.history.RecordResult(batchID, res); err != nil {
			log.Printf("[Coordinator] Failed to persist result for %s: %v", res.Name, err)
		}
	}
}

func (c *Coordinator) finishBatch(batchID, status string, rolledBack bool) {
	if c.history == nil {
		return
	}
	if err := c.history.FinishBatch(batchID, status, rolledBack); err != nil {
		log.Printf("[Coordinator] Failed to finish batch %s: %v", batchID, err)
	}
}

// Subscribe returns a channel receiving launch events. Slow subscribers
// drop events rather than stalling a batch.
func (c *Coordinator) Subscribe() chan models.LaunchEvent {
	ch := make(chan models.LaunchEvent, 64)
	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (c *Coordinator) Unsubscribe(ch chan models.LaunchEvent) {
	c.subMu.Lock()
	if _, ok := c.subscribers[ch]; ok {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.subMu.Unlock()
}

func (c *Coordinator) publish(event models.LaunchEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
