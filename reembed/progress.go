package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints a single carriage-return line of batch progress,
// e.g. "Embedding: 128/512 (25.0%) - 41.3 questions/s". Calls made before
// Start are ignored. Safe for concurrent use.
type ProgressTracker struct {
	mu sync.Mutex

	out   io.Writer
	label string
	total int
	every int

	done    int
	printed int
	began   time.Time
	running bool
}

// NewProgressTracker returns a tracker for total questions. A line is printed
// once at least every questions have completed since the previous one. A nil
// out discards the output.
func NewProgressTracker(out io.Writer, label string, total, every int) *ProgressTracker {
	if out == nil {
		out = io.Discard
	}
	return &ProgressTracker{out: out, label: label, total: total, every: every}
}

// Start zeroes the count and starts the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.began = time.Now()
	p.running = true
	p.done, p.printed = 0, 0
}

// Update records done questions in absolute terms.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.set(done)
	}
}

// Increment records delta more completed questions.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.set(p.done + delta)
	}
}

// set clamps done to total. Caller holds mu.
func (p *ProgressTracker) set(done int) {
	p.done = min(done, p.total)
	if p.done-p.printed < p.every {
		return
	}
	p.print()
	p.printed = p.done
}

// Finish prints the completed line and ends it with a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = p.total
	p.print()
	fmt.Fprintln(p.out)
}

// Current is the clamped completed count.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Elapsed is the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return 0
	}
	return time.Since(p.began)
}

// print writes the progress line. Caller holds mu.
func (p *ProgressTracker) print() {
	var rate, pct float64
	if secs := time.Since(p.began).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}
	if p.total > 0 {
		pct = 100 * float64(p.done) / float64(p.total)
	}
	fmt.Fprintf(p.out, "\r%s: %d/%d (%.1f%%) - %.1f questions/s", p.label, p.done, p.total, pct, rate)
}
