package studio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moriwaka/gemini-podcat-generator/internal/metrics"
)

// ErrNotFound is returned for an unknown studio id.
var ErrNotFound = errors.New("studio not found")

const cleanupInterval = 30 * time.Second

// Manager owns every live studio and drops the ones left idle.
type Manager struct {
	studios map[string]*Studio
	mu      sync.RWMutex
	logger  *slog.Logger
	timeout time.Duration
	deps    Dependencies
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a studio manager. Studios idle for longer than timeout are
// removed by Run.
func NewManager(logger *slog.Logger, timeout time.Duration, deps Dependencies, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		studios: make(map[string]*Studio),
		logger:  logger,
		timeout: timeout,
		deps:    deps,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Create starts a new studio in the input step
func (m *Manager) Create() *Studio {
	id := uuid.NewString()
	s := newStudio(m.ctx, id, m.deps, m.logger)

	m.mu.Lock()
	m.studios[id] = s
	count := len(m.studios)
	m.mu.Unlock()

	m.metrics.RecordStudioCreated()
	m.metrics.SetActiveStudios(count)
	m.logger.Info("Created studio", slog.String("studio_id", id))
	return s
}

// Get returns the studio with id and marks it active
func (m *Manager) Get(id string) (*Studio, error) {
	m.mu.RLock()
	s, ok := m.studios[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	s.Touch()
	return s, nil
}

// Remove closes and forgets a studio. It reports whether the studio existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.studios[id]
	if ok {
		delete(m.studios, id)
	}
	count := len(m.studios)
	m.mu.Unlock()

	if !ok {
		return false
	}

	s.Close()
	lifetime := time.Since(s.CreatedAt)
	m.metrics.RecordStudioDestroyed(lifetime.Seconds())
	m.metrics.SetActiveStudios(count)
	m.logger.Info("Studio removed",
		slog.String("studio_id", id),
		slog.Duration("lifetime", lifetime),
	)
	return true
}

// Count returns the number of live studios
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.studios)
}

// All returns a snapshot of the live studios
func (m *Manager) All() []*Studio {
	m.mu.RLock()
	defer m.mu.RUnlock()

	studios := make([]*Studio, 0, len(m.studios))
	for _, s := range m.studios {
		studios = append(studios, s)
	}
	return studios
}

// Run removes expired studios until ctx is done, then stops every studio.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	m.logger.Info("Studio cleanup routine started",
		slog.Duration("timeout", m.timeout),
		slog.Duration("check_interval", cleanupInterval),
	)

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return nil
		case <-ticker.C:
			m.cleanupExpired(time.Now())
		}
	}
}

// Stop cancels background generation and removes all studios
func (m *Manager) Stop() {
	m.logger.Info("Stopping studio manager...")
	m.cancel()

	for _, s := range m.All() {
		m.Remove(s.ID)
	}
	m.logger.Info("Studio manager stopped")
}

// cleanupExpired removes studios idle past the timeout. Studios that are
// generating or have a live stream are kept.
func (m *Manager) cleanupExpired(now time.Time) int {
	var expired []string

	m.mu.RLock()
	for id, s := range m.studios {
		if s.Busy() || s.SubscriberCount() > 0 {
			continue
		}
		if now.Sub(s.LastActivity()) > m.timeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.logger.Info("Cleaning up expired studios", slog.Int("expired_count", len(expired)))
		for _, id := range expired {
			m.Remove(id)
		}
	}
	return len(expired)
}
