package gate

import (
	"log/slog"
	"sync"

	"github.com/samber/do"
	"github.com/yizucodes/interview-agent/app/config"
)

// Service limits the number of interview sessions running in this process.
// The counter is only reachable through TryAcquire and Release so it can
// never exceed the configured maximum or drop below zero.
type Service struct {
	max int

	mu     sync.Mutex
	active int
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		max: cfg.Interview.MaxConcurrentSessions,
	}, nil
}

// TryAcquire claims a session slot. It never blocks waiting for capacity:
// callers that lose the race are rejected, not queued.
func (s *Service) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active >= s.max {
		slog.Warn("Session limit reached",
			"active", s.active,
			"max", s.max)
		return false
	}

	s.active++
	slog.Info("Session started",
		"active", s.active,
		"max", s.max)

	return true
}

// Release returns a session slot. The counter is floor-clamped at zero to
// survive a double release.
func (s *Service) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active > 0 {
		s.active--
	}

	slog.Info("Session ended",
		"active", s.active,
		"max", s.max)
}

func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

func (s *Service) Max() int {
	return s.max
}
