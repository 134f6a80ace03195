package services_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/pandeptwidyaop/instance-remote/internal/models"
	"github.com/pandeptwidyaop/instance-remote/internal/services"
)

func newInstance(name string) *models.Instance {
	return &models.Instance{
		Name:       name,
		Path:       "/opt/bots/" + name,
		ConfigPath: "/opt/bots/" + name + "/config.toml",
		Format:     "toml",
		Command:    "./run.sh",
		BasePort:   8000,
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := services.NewRegistry()

	if err := r.Register(newInstance("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	inst, err := r.Get("alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inst.Status != models.StatusPending {
		t.Errorf("new instance status = %s, want pending", inst.Status)
	}
	if inst.RegisteredAt.IsZero() {
		t.Error("RegisteredAt not set")
	}

	// Get returns a snapshot: mutating it must not affect the registry.
	inst.Status = models.StatusFailed
	again, _ := r.Get("alpha")
	if again.Status != models.StatusPending {
		t.Error("Get returned a live pointer instead of a snapshot")
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := services.NewRegistry()
	if err := r.Register(newInstance("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(newInstance("alpha")); !errors.Is(err, services.ErrInstanceExists) {
		t.Fatalf("expected ErrInstanceExists, got %v", err)
	}
}

func TestRegistry_NotFound(t *testing.T) {
	r := services.NewRegistry()
	if _, err := r.Get("ghost"); !errors.Is(err, services.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
	if err := r.Mark("ghost", models.StatusFailed, ""); !errors.Is(err, services.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestRegistry_AllPreservesOrder(t *testing.T) {
	r := services.NewRegistry()
	names := []string{"charlie", "alpha", "bravo"}
	for _, n := range names {
		if err := r.Register(newInstance(n)); err != nil {
			t.Fatalf("Register(%s): %v", n, err)
		}
	}

	all := r.All()
	if len(all) != len(names) {
		t.Fatalf("All() returned %d instances", len(all))
	}
	for i, inst := range all {
		if inst.Name != names[i] {
			t.Errorf("All()[%d] = %s, want %s", i, inst.Name, names[i])
		}
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := services.NewRegistry()
	r.Register(newInstance("alpha"))
	r.Register(newInstance("bravo"))

	if err := r.Unregister("alpha"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, err := r.Get("alpha"); !errors.Is(err, services.ErrInstanceNotFound) {
		t.Fatal("alpha still present after Unregister")
	}
	if len(r.All()) != 1 {
		t.Errorf("expected 1 instance left, got %d", len(r.All()))
	}
	if err := r.Unregister("alpha"); !errors.Is(err, services.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestRegistry_ConcurrentMarks(t *testing.T) {
	r := services.NewRegistry()
	const n = 20
	for i := 0; i < n; i++ {
		r.Register(newInstance(fmt.Sprintf("inst-%d", i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("inst-%d", i)
			r.Mark(name, models.StatusLaunching, "")
			r.SetPort(name, 8000+i)
			r.Mark(name, models.StatusSucceeded, "")
		}(i)
	}
	wg.Wait()

	for _, inst := range r.All() {
		if inst.Status != models.StatusSucceeded {
			t.Errorf("%s status = %s, want succeeded", inst.Name, inst.Status)
		}
		if inst.Port == nil {
			t.Errorf("%s has no port", inst.Name)
		}
	}
}
