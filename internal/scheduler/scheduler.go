package scheduler

import (
	"sort"
	"strings"
	"sync"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/logger"
)

// Scheduler composes the directory tracker and the priority request queue and
// is the only scheduling object the crawl engine talks to. On each pull it
// asks the tracker for the current priority directory and the queue for the
// next request honoring it; on each discovery or outcome report it updates
// both.
//
// All exported methods are safe for concurrent use: one mutex guards tracker
// and queue together, so completion checks and priority queries can never
// observe each other half-applied. Every call is a fast in-memory transition;
// the scheduler performs no I/O.
type Scheduler struct {
	mu      sync.Mutex
	tracker *DirectoryTracker
	queue   *PriorityRequestQueue
	log     logger.Interface

	enabled                  bool
	currentPriorityDirectory string
}

// Stats merges tracker and queue statistics.
type Stats struct {
	Enabled                  bool         `json:"enabled"`
	CurrentPriorityDirectory string       `json:"current_priority_directory,omitempty"`
	Tracker                  TrackerStats `json:"tracker"`
	Queue                    QueueStats   `json:"queue"`
}

// New creates a scheduler with priority pinning enabled. One scheduler value
// is constructed per crawl session and passed into the crawl loop; there is
// no process-wide instance.
func New(log logger.Interface) *Scheduler {
	if log == nil {
		log = logger.NewNoOp()
	}

	return &Scheduler{
		tracker: NewDirectoryTracker(),
		queue:   NewPriorityRequestQueue(),
		log:     log.WithComponent("scheduler"),
		enabled: true,
	}
}

// SetEnabled toggles priority pinning. Disabling does not clear pending
// requests; subsequent pulls simply use the structural FIFO order.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	if !enabled {
		s.currentPriorityDirectory = ""
	}
	s.log.Info("priority scheduling toggled", "enabled", enabled)
}

// Enabled reports whether priority pinning is on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enabled
}

// RegisterDirectory registers a discovered directory. Idempotent; level and
// parent are immutable after the first registration.
func (s *Scheduler) RegisterDirectory(path string, level int, parentPath *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tracker.RegisterDirectory(path, level, parentPath)
}

// AddCategoryRequest enqueues a category discovery request. Returns false
// when the fingerprint was already seen; callers must skip their own
// enqueue-side effects in that case.
func (s *Scheduler) AddCategoryRequest(req domain.Request) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.AddCategoryRequest(req)
}

// AddProductRequest records the product discovery with the tracker and
// enqueues the fetch. The owning directory is registered on the fly when the
// extraction collaborator discovered the product before the directory itself.
func (s *Scheduler) AddProductRequest(req domain.Request, directoryPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracker.IsKnownDirectory(directoryPath) {
		if err := s.tracker.RegisterDirectory(directoryPath, levelOf(directoryPath), nil); err != nil {
			return false, err
		}
	}

	accepted, err := s.queue.AddProductRequest(req, directoryPath)
	if err != nil || !accepted {
		return accepted, err
	}

	if err := s.tracker.RecordProductDiscovered(req.URL, directoryPath); err != nil {
		// The directory was ensured above, so this path is unreachable today.
		// If it ever fires, the queue holds a request the tracker will never
		// close and its outcome report would be dropped as stray.
		s.log.Error("accepted product request is untracked", "url", req.URL, "directory", directoryPath, "error", err)
		return true, err
	}

	return true, nil
}

// AddOtherRequest enqueues a request that is neither category nor product.
func (s *Scheduler) AddOtherRequest(req domain.Request) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.AddOtherRequest(req)
}

// NextRequest returns the next request the crawl engine should execute, or
// ok false when no work is pending right now.
//
// With pinning enabled the tracker selects the priority directory first; any
// panic inside that path is logged and degraded to the unpinned pull for this
// single call, so a scheduling fault can never abort the crawl loop.
func (s *Scheduler) NextRequest() (req domain.Request, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return s.queue.NextRequest("")
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("priority selection fault, degrading to FIFO pull", "panic", r)
			s.currentPriorityDirectory = ""
			req, ok = s.queue.NextRequest("")
		}
	}()

	s.updatePriorityDirectory()

	return s.queue.NextRequest(s.currentPriorityDirectory)
}

// updatePriorityDirectory refreshes the cached priority target. Caller holds
// the mutex.
func (s *Scheduler) updatePriorityDirectory() {
	if s.currentPriorityDirectory != "" &&
		s.tracker.IsDirectoryCompleted(s.currentPriorityDirectory) {
		s.currentPriorityDirectory = ""
	}

	if s.currentPriorityDirectory == "" {
		if path, ok := s.tracker.NextPriorityDirectory(); ok {
			s.currentPriorityDirectory = path
			s.log.Info("switched priority directory", "path", path)
		}
	}
}

// ReportSuccess records a successful product fetch. Outcomes for unknown
// products are logged and dropped rather than propagated: a late or stray
// report must not abort the crawl.
func (s *Scheduler) ReportSuccess(url string) {
	s.report(url, true)
}

// ReportFailure records a product fetch that exhausted the engine's retry
// policy. Failures are first-class outcomes and count toward directory
// completion exactly like successes.
func (s *Scheduler) ReportFailure(url string) {
	s.report(url, false)
}

func (s *Scheduler) report(url string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if success {
		err = s.tracker.MarkProductCompleted(url)
	} else {
		err = s.tracker.MarkProductFailed(url)
	}
	if err != nil {
		s.log.Warn("dropping outcome report", "url", url, "success", success, "error", err)
	}
}

// IsDirectoryCompleted reports whether the directory has completed.
func (s *Scheduler) IsDirectoryCompleted(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tracker.IsDirectoryCompleted(path)
}

// PendingRequests returns the total number of queued requests.
func (s *Scheduler) PendingRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.Len()
}

// Stats returns merged tracker and queue statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Enabled:                  s.enabled,
		CurrentPriorityDirectory: s.currentPriorityDirectory,
		Tracker:                  s.tracker.Stats(),
		Queue:                    s.queue.Stats(),
	}
}

// ProgressReport returns per-directory progress sorted by level ascending,
// then completion rate descending, then path.
func (s *Scheduler) ProgressReport() []domain.DirectoryProgress {
	s.mu.Lock()
	byPath := s.tracker.ProgressReport()
	s.mu.Unlock()

	report := make([]domain.DirectoryProgress, 0, len(byPath))
	for _, progress := range byPath {
		report = append(report, progress)
	}

	sort.Slice(report, func(i, j int) bool {
		if report[i].Level != report[j].Level {
			return report[i].Level < report[j].Level
		}
		if report[i].CompletionRate != report[j].CompletionRate {
			return report[i].CompletionRate > report[j].CompletionRate
		}

		return report[i].Path < report[j].Path
	})

	return report
}

// levelOf derives a hierarchy level from the number of path segments,
// matching how category levels are derived from URLs.
func levelOf(directoryPath string) int {
	trimmed := strings.Trim(directoryPath, "/")
	if trimmed == "" {
		return 1
	}

	return strings.Count(trimmed, "/") + 1
}
