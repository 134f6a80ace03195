package ports

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPortExhausted indicates no candidate port remains in the configured range.
var ErrPortExhausted = errors.New("no available port in range")

// reservedPorts are well-known service ports the allocator never hands out,
// regardless of caller input.
var reservedPorts = map[int]struct{}{
	22:    {}, // SSH
	80:    {}, // HTTP
	443:   {}, // HTTPS
	3306:  {}, // MySQL
	5432:  {}, // PostgreSQL
	6379:  {}, // Redis
	8080:  {}, // common web services
	27017: {}, // MongoDB
}

// Allocator hands out unique, unused ports based on a host usage snapshot.
// Ports observed in use, reserved ports, and ports already allocated by this
// Allocator are all excluded from future grants.
type Allocator struct {
	inspector Inspector
	mu        sync.Mutex
	used      map[int]struct{}
	granted   map[int]struct{}
	extra     map[int]struct{}
	rangeLo   int
	rangeHi   int
}

// NewAllocator creates an Allocator over the given inspector and port range.
func NewAllocator(inspector Inspector, rangeLo, rangeHi int) (*Allocator, error) {
	if rangeLo <= 0 || rangeHi <= 0 || rangeLo > rangeHi {
		return nil, fmt.Errorf("invalid port range: %d-%d", rangeLo, rangeHi)
	}
	return &Allocator{
		inspector: inspector,
		used:      make(map[int]struct{}),
		granted:   make(map[int]struct{}),
		extra:     make(map[int]struct{}),
		rangeLo:   rangeLo,
		rangeHi:   rangeHi,
	}, nil
}

// Reserve permanently adds ports to this allocator's reserved set.
func (a *Allocator) Reserve(ports ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range ports {
		a.extra[p] = struct{}{}
	}
}

// Refresh rebuilds the host usage snapshot. A snapshot failure is not fatal:
// the previous snapshot is kept and the error returned for logging.
func (a *Allocator) Refresh() error {
	used, err := a.inspector.UsedPorts()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.used = used
	a.mu.Unlock()
	return nil
}

// Allocate returns preferred if it is free, otherwise the first free port
// scanning the range in ascending order. Caller-supplied reserved ports are
// unioned with the built-in reserved set, never subtracted from it.
func (a *Allocator) Allocate(preferred int, reserved map[int]struct{}) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateLocked(preferred, reserved)
}

// AllocateBatch returns count distinct ports, preferring basePort + i*offset
// for slot i and falling back to a range scan per slot. Ports granted earlier
// in the batch are excluded from later slots; the usage snapshot cannot see
// them because nothing has bound them yet.
func (a *Allocator) AllocateBatch(count, basePort, offset int) ([]int, error) {
	if count <= 0 {
		return nil, nil
	}
	if offset <= 0 {
		offset = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	granted := make([]int, 0, count)
	for i := 0; i < count; i++ {
		port, err := a.allocateLocked(basePort+i*offset, nil)
		if err != nil {
			// Release this batch's grants so a failed batch leaves no trace.
			for _, p := range granted {
				delete(a.granted, p)
			}
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		granted = append(granted, port)
	}

	return granted, nil
}

// Release returns previously granted ports to the pool.
func (a *Allocator) Release(ports ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range ports {
		delete(a.granted, p)
	}
}

func (a *Allocator) allocateLocked(preferred int, reserved map[int]struct{}) (int, error) {
	if preferred > 0 && a.availableLocked(preferred, reserved) {
		a.granted[preferred] = struct{}{}
		return preferred, nil
	}

	for port := a.rangeLo; port <= a.rangeHi; port++ {
		if a.availableLocked(port, reserved) {
			a.granted[port] = struct{}{}
			return port, nil
		}
	}

	return 0, fmt.Errorf("%w %d-%d", ErrPortExhausted, a.rangeLo, a.rangeHi)
}

func (a *Allocator) availableLocked(port int, reserved map[int]struct{}) bool {
	if _, ok := reservedPorts[port]; ok {
		return false
	}
	if _, ok := reserved[port]; ok {
		return false
	}
	if _, ok := a.extra[port]; ok {
		return false
	}
	if _, ok := a.used[port]; ok {
		return false
	}
	if _, ok := a.granted[port]; ok {
		return false
	}
	return true
}
