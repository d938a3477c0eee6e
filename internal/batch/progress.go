package batch

import (
	"sync"
	"time"
)

const percentMultiplier = 100

// Progress tracks completed items and batches. Thread-safe.
type Progress struct {
	mu               sync.Mutex
	totalItems       int
	totalBatches     int
	processedItems   int
	processedBatches int
	start            time.Time
}

// Snapshot is a point-in-time copy of Progress.
type Snapshot struct {
	TotalItems       int
	TotalBatches     int
	ProcessedItems   int
	ProcessedBatches int
	Elapsed          time.Duration
}

// NewProgress starts tracking a run of totalItems split into totalBatches.
func NewProgress(totalItems, totalBatches int) *Progress {
	return &Progress{
		totalItems:   totalItems,
		totalBatches: totalBatches,
		start:        time.Now(),
	}
}

// Add records a completed batch of n items and returns the new snapshot.
func (p *Progress) Add(n int) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processedItems += n
	p.processedBatches++
	return p.snapshotLocked()
}

// Snapshot returns the current progress.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() Snapshot {
	return Snapshot{
		TotalItems:       p.totalItems,
		TotalBatches:     p.totalBatches,
		ProcessedItems:   p.processedItems,
		ProcessedBatches: p.processedBatches,
		Elapsed:          time.Since(p.start),
	}
}

// PercentComplete returns completion in the range 0-100.
func (s Snapshot) PercentComplete() float64 {
	if s.TotalItems == 0 {
		return 0
	}
	return float64(s.ProcessedItems) / float64(s.TotalItems) * percentMultiplier
}

// IsComplete reports whether every item has been processed.
func (s Snapshot) IsComplete() bool {
	return s.ProcessedItems >= s.TotalItems
}
