package scheduler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/seantiz/mori/internal/config"
)

// Factory creates a fresh scheduler.
type Factory func() Scheduler

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a scheduler available under name. It panics when the name
// is taken, so duplicate registrations surface at init time.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("scheduler: Register called twice for %q", name))
	}
	factories[name] = f
}

// New creates the scheduler registered under name. An unknown name is a
// configuration error on the scheduler key.
func New(name string) (Scheduler, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, config.InvalidError(config.KeyScheduler, fmt.Sprintf("unknown scheduler %q", name))
	}
	return f(), nil
}

// FromSettings creates the scheduler named by the scheduler key.
func FromSettings(s *config.Settings) (Scheduler, error) {
	name, err := s.Get(config.KeyScheduler)
	if err != nil {
		return nil, err
	}
	return New(name)
}

// Names returns the registered scheduler names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
