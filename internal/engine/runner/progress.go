package runner

import (
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress tracks rows and bundles completed by a run.
// It provides thread-safe access for workers and progress observers.
type Progress struct {
	// TotalRows is the number of rows the source reported.
	TotalRows int64

	// ProcessedRows is the number of rows handed to the row callback.
	ProcessedRows int64

	// TotalBundles is the number of bundles the split produced.
	TotalBundles int

	// ProcessedBundles is the number of bundles fully read.
	ProcessedBundles int

	// StartTime is when the run started.
	StartTime time.Time

	// LastUpdateTime is when a bundle last completed.
	LastUpdateTime time.Time

	mu sync.RWMutex
}

// NewProgress creates a progress tracker for a run over totalRows rows split
// into totalBundles bundles.
func NewProgress(totalRows int64, totalBundles int) *Progress {
	now := time.Now()
	return &Progress{
		TotalRows:      totalRows,
		TotalBundles:   totalBundles,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddBundle records one completed bundle that produced rows rows.
func (p *Progress) AddBundle(rows int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ProcessedRows += rows
	p.ProcessedBundles++
	p.LastUpdateTime = time.Now()
}

// PercentComplete returns the completion percentage (0-100) by rows.
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percentCompleteUnsafe()
}

// IsComplete returns true once every bundle has been read.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ProcessedBundles >= p.TotalBundles
}

// ElapsedTime returns the time elapsed since the run started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.StartTime)
}

// EstimatedTimeRemaining extrapolates from the average time per row so far.
// Returns 0 if no rows have been processed yet.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ProcessedRows == 0 {
		return 0
	}
	avgPerRow := time.Since(p.StartTime) / time.Duration(p.ProcessedRows)
	return avgPerRow * time.Duration(p.TotalRows-p.ProcessedRows)
}

// RowsPerSecond returns the read rate.
func (p *Progress) RowsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rowsPerSecondUnsafe()
}

// Snapshot returns a consistent copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalRows:        p.TotalRows,
		ProcessedRows:    p.ProcessedRows,
		TotalBundles:     p.TotalBundles,
		ProcessedBundles: p.ProcessedBundles,
		StartTime:        p.StartTime,
		LastUpdateTime:   p.LastUpdateTime,
		PercentComplete:  p.percentCompleteUnsafe(),
		ElapsedTime:      time.Since(p.StartTime),
		RowsPerSecond:    p.rowsPerSecondUnsafe(),
	}
}

// ProgressSnapshot is an immutable snapshot of progress state.
type ProgressSnapshot struct {
	TotalRows        int64
	ProcessedRows    int64
	TotalBundles     int
	ProcessedBundles int
	StartTime        time.Time
	LastUpdateTime   time.Time
	PercentComplete  float64
	ElapsedTime      time.Duration
	RowsPerSecond    float64
}

// Caller must hold p.mu.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalRows == 0 {
		if p.ProcessedBundles >= p.TotalBundles {
			return percentMultiplier
		}
		return 0
	}
	return (float64(p.ProcessedRows) / float64(p.TotalRows)) * percentMultiplier
}

// Caller must hold p.mu.
func (p *Progress) rowsPerSecondUnsafe() float64 {
	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.ProcessedRows) / elapsed
}
