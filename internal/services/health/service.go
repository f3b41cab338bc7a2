package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultProbeTimeout = 2 * time.Second

// Probe reports whether one backing dependency is reachable.
type Probe func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{probes: make(map[string]Probe), timeout: defaultProbeTimeout}
}

// Register adds a named probe. A nil probe is ignored.
func (s *Service) Register(name string, probe Probe) {
	if probe == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = probe
}

// Status runs every probe and returns per-dependency results plus the overall verdict.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	s.mu.RLock()
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	out := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		s.mu.RLock()
		probe := s.probes[name]
		s.mu.RUnlock()

		probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			out[name] = "down"
			ok = false
			continue
		}
		out[name] = "up"
	}
	return out, ok
}
