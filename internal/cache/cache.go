package cache

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is anything holding entries that can expire: caches, session stores.
type Cleaner interface {
	CleanExpired() int
}

// CleanerFunc adapts a function to Cleaner.
type CleanerFunc func() int

func (f CleanerFunc) CleanExpired() int { return f() }

// Manager sweeps registered Cleaners on a cron schedule.
type Manager struct {
	mu       sync.Mutex
	cleaners map[string]Cleaner
	order    []string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewManager creates a new cache manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cleaners: make(map[string]Cleaner),
		cron:     cron.New(),
		logger:   logger,
	}
}

// Register adds a named Cleaner; registering a name twice replaces it.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cleaners[name]; !ok {
		m.order = append(m.order, name)
	}
	m.cleaners[name] = c
}

// Sweep runs every Cleaner once and returns removed entries per name.
func (m *Manager) Sweep() map[string]int {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	cleaners := make([]Cleaner, len(names))
	for i, n := range names {
		cleaners[i] = m.cleaners[n]
	}
	m.mu.Unlock()

	removed := make(map[string]int, len(names))
	for i, c := range cleaners {
		removed[names[i]] = c.CleanExpired()
	}
	return removed
}

// Start schedules Sweep with a cron spec such as "@every 5m" or "*/10 * * * *".
func (m *Manager) Start(schedule string) error {
	_, err := m.cron.AddFunc(schedule, func() {
		total := 0
		removed := m.Sweep()
		for _, n := range removed {
			total += n
		}
		if total > 0 {
			m.logger.Debug("Expired entries cleaned", "component", "cache", "removed", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("cleanup schedule %q: %w", schedule, err)
	}
	m.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
}
