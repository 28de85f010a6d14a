package health

import (
	"context"
	"sort"
	"sync"
)

// Check reports readiness of one dependency.
type Check func(ctx context.Context) error

// Service aggregates named readiness checks.
type Service struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewService constructs a health service with no checks registered.
func NewService() *Service {
	return &Service{checks: make(map[string]Check)}
}

// Register adds or replaces the check called name.
func (s *Service) Register(name string, check Check) {
	if check == nil {
		return
	}
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Names lists registered checks in order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status runs every check and reports "ok" or the error text per check.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.RUnlock()

	results := make(map[string]string, len(checks))
	ok := true
	for name, check := range checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			ok = false
			continue
		}
		results[name] = "ok"
	}
	return results, ok
}
