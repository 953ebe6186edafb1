package schedule

import (
	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/scheduler"
)

// emptySource backs the status server in scheduled mode, where no scheduler
// outlives a single run.
type emptySource struct{}

func (emptySource) Stats() scheduler.Stats { return scheduler.Stats{} }

func (emptySource) ProgressReport() []domain.DirectoryProgress { return nil }
