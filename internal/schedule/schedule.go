// Package schedule runs named crawl tasks on cron expressions. A task that is
// still running when its next slot arrives is skipped rather than overlapped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vivbliss/catalogcrawl/internal/logger"
)

var (
	// ErrTaskExists is returned when registering a task name twice.
	ErrTaskExists = errors.New("task already registered")

	// ErrTaskNotFound is returned for operations on an unknown task.
	ErrTaskNotFound = errors.New("task not found")
)

// TaskFunc is the work a scheduled task performs.
type TaskFunc func(ctx context.Context) error

// TaskStats is a snapshot of one task's run history.
type TaskStats struct {
	Name      string     `json:"name"`
	Spec      string     `json:"spec"`
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	Skips     int64      `json:"skips"`
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type task struct {
	name string
	spec string
	fn   TaskFunc

	running  atomic.Bool
	runs     atomic.Int64
	failures atomic.Int64
	skips    atomic.Int64

	mu        sync.Mutex
	lastRun   time.Time
	lastError error
}

// Manager owns the cron runner and its registered tasks.
type Manager struct {
	cron   *cron.Cron
	logger logger.Interface

	mu      sync.Mutex
	tasks   map[string]*task
	entries map[string]cron.EntryID

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewManager creates a stopped manager. Cron specs use the standard
// five-field format; @every and the other descriptors also work.
func NewManager(log logger.Interface) *Manager {
	if log == nil {
		log = logger.NewNoOp()
	}

	return &Manager{
		cron:    cron.New(),
		logger:  log.WithComponent("schedule"),
		tasks:   make(map[string]*task),
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a named task on the given cron spec. Names are unique.
func (m *Manager) Register(name, spec string, fn TaskFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[name]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, name)
	}

	t := &task{name: name, spec: spec, fn: fn}
	entryID, err := m.cron.AddFunc(spec, func() { m.runTask(t) })
	if err != nil {
		return fmt.Errorf("add task %s (%s): %w", name, spec, err)
	}

	m.tasks[name] = t
	m.entries[name] = entryID
	m.logger.Info("task registered", "task", name, "spec", spec)
	return nil
}

// Remove unregisters a task. A run already in flight finishes.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryID, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}

	m.cron.Remove(entryID)
	delete(m.entries, name)
	delete(m.tasks, name)
	return nil
}

// Start begins firing tasks. Tasks launched after ctx is cancelled receive a
// cancelled context.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.cron.Start()
	m.logger.Info("scheduler started", "tasks", len(m.tasks))
}

// Stop halts firing and waits for in-flight runs up to the given timeout.
func (m *Manager) Stop(timeout time.Duration) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
		m.logger.Info("scheduler stopped")
	case <-time.After(timeout):
		m.logger.Warn("scheduler stop timed out", "timeout", timeout.String())
	}
}

// RunNow fires a task immediately, outside its cron slot. The overlap rule
// still applies.
func (m *Manager) RunNow(name string) error {
	m.mu.Lock()
	t, ok := m.tasks[name]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}

	m.runTask(t)
	return nil
}

// Stats returns a snapshot for every registered task.
func (m *Manager) Stats() []TaskStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]TaskStats, 0, len(m.tasks))
	for _, t := range m.tasks {
		stats = append(stats, t.snapshot())
	}
	return stats
}

func (m *Manager) runTask(t *task) {
	if !t.running.CompareAndSwap(false, true) {
		t.skips.Add(1)
		m.logger.Warn("task still running, skipping slot", "task", t.name)
		return
	}
	defer t.running.Store(false)

	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	err := t.fn(ctx)

	t.runs.Add(1)
	t.mu.Lock()
	t.lastRun = start
	t.lastError = err
	t.mu.Unlock()

	if err != nil {
		t.failures.Add(1)
		m.logger.Error("task failed",
			"task", t.name,
			"elapsed", time.Since(start).String(),
			"error", err.Error(),
		)
		return
	}

	m.logger.Info("task finished",
		"task", t.name,
		"elapsed", time.Since(start).String(),
	)
}

func (t *task) snapshot() TaskStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := TaskStats{
		Name:     t.name,
		Spec:     t.spec,
		Runs:     t.runs.Load(),
		Failures: t.failures.Load(),
		Skips:    t.skips.Load(),
		Running:  t.running.Load(),
	}
	if !t.lastRun.IsZero() {
		lastRun := t.lastRun
		stats.LastRun = &lastRun
	}
	if t.lastError != nil {
		stats.LastError = t.lastError.Error()
	}
	return stats
}
