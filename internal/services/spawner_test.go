package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pandeptwidyaop/instance-remote/internal/services"
)

func TestExecSpawner_SurvivesGrace(t *testing.T) {
	s := &services.ExecSpawner{Grace: 200 * time.Millisecond}

	res := s.SpawnAndWait(context.Background(), t.TempDir(), services.LaunchSpec{
		Command: "sleep 10",
		Port:    8000,
	}, 5*time.Second)

	if res.PID != 0 {
		defer s.Kill(res.PID)
	}
	if !res.Success {
		t.Fatalf("long-running command failed: %+v", res)
	}
	if res.PID == 0 {
		t.Error("no PID recorded")
	}
}

func TestExecSpawner_EarlyExitIsFailure(t *testing.T) {
	s := &services.ExecSpawner{Grace: time.Second}

	res := s.SpawnAndWait(context.Background(), t.TempDir(), services.LaunchSpec{
		Command: "exit 3",
		Port:    8000,
	}, 5*time.Second)

	if res.Success {
		t.Fatal("exiting command reported success")
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if res.TimedOut {
		t.Error("early exit marked as timeout")
	}
}

func TestExecSpawner_CleanExitStillFails(t *testing.T) {
	// Instances are supposed to keep running; exit 0 during startup is
	// still a launch failure.
	s := &services.ExecSpawner{Grace: time.Second}

	res := s.SpawnAndWait(context.Background(), t.TempDir(), services.LaunchSpec{
		Command: "true",
		Port:    8000,
	}, 5*time.Second)

	if res.Success {
		t.Fatal("clean exit reported success")
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestExecSpawner_CapturesOutput(t *testing.T) {
	s := &services.ExecSpawner{Grace: time.Second}

	res := s.SpawnAndWait(context.Background(), t.TempDir(), services.LaunchSpec{
		Command: "echo boom; exit 1",
		Port:    8000,
	}, 5*time.Second)

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Detail, "boom") {
		t.Errorf("detail missing process output: %q", res.Detail)
	}
}

func TestExecSpawner_PortInEnvironment(t *testing.T) {
	s := &services.ExecSpawner{Grace: time.Second}

	res := s.SpawnAndWait(context.Background(), t.TempDir(), services.LaunchSpec{
		Command: "echo got $INSTANCE_PORT; exit 1",
		Port:    8123,
	}, 5*time.Second)

	if !strings.Contains(res.Detail, "got 8123") {
		t.Errorf("INSTANCE_PORT not exported: %q", res.Detail)
	}
}

func TestExecSpawner_ContextCancel(t *testing.T) {
	s := &services.ExecSpawner{Grace: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := s.SpawnAndWait(ctx, t.TempDir(), services.LaunchSpec{
		Command: "sleep 10",
		Port:    8000,
	}, time.Minute)

	if res.Success {
		t.Fatal("cancelled launch reported success")
	}
	if !res.TimedOut {
		t.Errorf("cancelled launch not marked timed out: %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancel took %v, process not killed promptly", elapsed)
	}
}
