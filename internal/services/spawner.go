package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/shirou/gopsutil/v3/process"
)

// LaunchSpec describes what to run for one instance.
type LaunchSpec struct {
	Command string
	Port    int
	Env     []string
}

// SpawnResult is the structured outcome of a spawn attempt. Ordinary process
// failure is reported here, never as a Go error.
type SpawnResult struct {
	Success  bool
	TimedOut bool
	PID      int
	ExitCode int
	Detail   string
}

// Spawner launches one instance and waits for its startup outcome.
type Spawner interface {
	SpawnAndWait(ctx context.Context, workingDir string, spec LaunchSpec, timeout time.Duration) SpawnResult
}

// ProcessKiller is implemented by spawners that can terminate a process they
// started. Used when kill_on_rollback is enabled.
type ProcessKiller interface {
	Kill(pid int) error
}

// ExecSpawner runs instance commands through the shell. A long-running
// program counts as started once it survives the grace window; exiting
// before that is a launch failure with the exit info attached.
type ExecSpawner struct {
	// Grace is how long the process must stay alive to count as started.
	Grace time.Duration
	// UsePTY attaches a pseudo-terminal; some console programs buffer or
	// refuse to run without one.
	UsePTY bool
}

const spawnOutputLimit = 4096

// SpawnAndWait starts the command in workingDir and waits for a startup
// outcome, bounded by timeout and ctx.
func (s *ExecSpawner) SpawnAndWait(ctx context.Context, workingDir string, spec LaunchSpec, timeout time.Duration) SpawnResult {
	grace := s.Grace
	if grace <= 0 {
		grace = 3 * time.Second
	}

	cmd := exec.Command("sh", "-c", spec.Command)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(), fmt.Sprintf("INSTANCE_PORT=%d", spec.Port))
	cmd.Env = append(cmd.Env, spec.Env...)

	var buf headBuffer

	if s.UsePTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return SpawnResult{ExitCode: -1, Detail: "spawn failed: " + err.Error()}
		}
		go func() {
			defer ptmx.Close()
			io.Copy(&buf, ptmx)
		}()
	} else {
		// Process group so a kill reaches the shell's children too.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		if err := cmd.Start(); err != nil {
			return SpawnResult{ExitCode: -1, Detail: "spawn failed: " + err.Error()}
		}
	}

	pid := cmd.Process.Pid

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timeoutCh = time.After(timeout)
	}

	select {
	case err := <-waitCh:
		// Exited during startup: a launch failure whatever the exit code,
		// since the instance is supposed to keep running.
		exitCode := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if err != nil {
			exitCode = -1
		}
		return SpawnResult{
			PID:      pid,
			ExitCode: exitCode,
			Detail:   fmt.Sprintf("exited during startup (code %d): %s", exitCode, buf.String()),
		}

	case <-time.After(grace):
		alive, err := process.PidExists(int32(pid))
		if err != nil {
			log.Printf("[Spawner] PID %d liveness check failed: %v", pid, err)
			alive = true
		}
		if !alive {
			return SpawnResult{PID: pid, ExitCode: -1, Detail: "process vanished during startup"}
		}
		return SpawnResult{Success: true, PID: pid}

	case <-timeoutCh:
		s.Kill(pid)
		<-waitCh
		return SpawnResult{PID: pid, TimedOut: true, ExitCode: -1, Detail: "timed out waiting for startup"}

	case <-ctx.Done():
		s.Kill(pid)
		<-waitCh
		return SpawnResult{PID: pid, TimedOut: true, ExitCode: -1, Detail: ctx.Err().Error()}
	}
}

// Kill signals the process group of a spawned instance.
func (s *ExecSpawner) Kill(pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		// No process group (pty path): fall back to the single process.
		return syscall.Kill(pid, syscall.SIGTERM)
	}
	return nil
}

// headBuffer keeps the first spawnOutputLimit bytes written to it.
type headBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *headBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remaining := spawnOutputLimit - len(b.data); remaining > 0 {
		if len(p) > remaining {
			b.data = append(b.data, p[:remaining]...)
		} else {
			b.data = append(b.data, p...)
		}
	}
	return len(p), nil
}

func (b *headBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
