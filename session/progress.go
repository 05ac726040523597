package session

import (
	"context"
	"math"
	"sync"
	"time"
)

// Pacing selects how simulated progress advances
type Pacing int

const (
	// PacingSmall slows down as it approaches SmallCap
	PacingSmall Pacing = iota

	// PacingLarge advances linearly to 100 while the upload is in flight
	PacingLarge
)

const (
	// SmallCap is where small-file progress waits for the real result
	SmallCap = 95.0

	// DefaultProgressInterval is the time between simulated steps
	DefaultProgressInterval = 100 * time.Millisecond
)

// PacingFor returns the pacing for a size class
func PacingFor(c SizeClass) Pacing {
	if c.IsLarge() {
		return PacingLarge
	}
	return PacingSmall
}

// nextPercent returns the percentage after one tick. It never decreases.
func nextPercent(p Pacing, cur float64) float64 {
	if p == PacingLarge {
		return math.Min(cur+1, 100)
	}
	if cur >= SmallCap {
		return cur
	}
	step := 1.0
	switch {
	case cur >= 80:
		step = 0.1
	case cur >= 50:
		step = 0.5
	}
	return math.Min(cur+step, SmallCap)
}

// StatusText returns the status line shown next to the progress bar
func StatusText(p Pacing, percent float64) string {
	if p == PacingLarge {
		return "Uploading file..."
	}
	switch {
	case percent < 30:
		return "Removing silence..."
	case percent < 60:
		return "Processing audio..."
	default:
		return "Transcribing..."
	}
}

// ProgressFunc receives progress updates
type ProgressFunc func(percent float64, status string)

// ProgressSimulator shows plausible progress while a request is in flight
type ProgressSimulator struct {
	interval time.Duration
	render   ProgressFunc

	mu      sync.Mutex
	percent float64
	pacing  Pacing
	task    *Task
}

// NewProgressSimulator creates a simulator that reports through render
func NewProgressSimulator(interval time.Duration, render ProgressFunc) *ProgressSimulator {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressSimulator{interval: interval, render: render}
}

// Start resets progress to zero and begins advancing it.
// A simulation already running is stopped first.
func (p *ProgressSimulator) Start(ctx context.Context, pacing Pacing) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.percent = 0
	p.pacing = pacing

	first := true
	p.task = Every(ctx, p.interval, func(ctx context.Context) bool {
		p.mu.Lock()
		cur := p.percent
		next := cur
		if !first {
			next = nextPercent(p.pacing, cur)
		}
		p.percent = next
		pacing := p.pacing
		p.mu.Unlock()

		if !first && next == cur {
			return false
		}
		first = false
		p.render(next, StatusText(pacing, next))
		return true
	})
}

// Stop halts the simulation. No update is reported after Stop returns.
func (p *ProgressSimulator) Stop() {
	p.mu.Lock()
	task := p.task
	p.task = nil
	p.mu.Unlock()

	if task != nil {
		task.Stop()
	}
}

// Complete stops the simulation and reports 100%
func (p *ProgressSimulator) Complete(status string) {
	p.Stop()

	p.mu.Lock()
	p.percent = 100
	p.mu.Unlock()

	p.render(100, status)
}

// Percent returns the last reported percentage
func (p *ProgressSimulator) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}
