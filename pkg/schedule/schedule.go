// Package schedule provides a lightweight interval scheduler for
// background jobs such as the order email retry sweep.
//
// Usage:
//
//	s := schedule.New()
//	s.Every(15 * time.Minute).Name("sweep-order-emails").WithoutOverlapping().Run(sweep)
//	s.Start(ctx)
package schedule

import (
	"fmt"
	"sync"
	"time"

	"context"

	"github.com/driftmarket/driftmarket/pkg/logger"
)

// Task is the function signature for a scheduled job.
type Task func()

type entry struct {
	id        string
	interval  time.Duration
	task      Task
	lastRun   time.Time
	running   bool // overlap guard
	noOverlap bool
	mu        sync.Mutex
}

// Scheduler dispatches registered entries on their intervals. The zero
// value is not usable; construct with New.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
}

// New returns an empty scheduler.
func New() *Scheduler { return &Scheduler{} }

// Entry is a fluent builder for one job before it is registered.
type Entry struct {
	s *Scheduler
	e *entry
}

// Every starts a builder for a job that runs once per interval.
func (s *Scheduler) Every(d time.Duration) *Entry {
	return &Entry{s: s, e: &entry{interval: d}}
}

// Name gives the entry a human-readable identifier for logging.
func (en *Entry) Name(id string) *Entry {
	en.e.id = id
	return en
}

// WithoutOverlapping prevents a new run while the previous one is still
// executing.
func (en *Entry) WithoutOverlapping() *Entry {
	en.e.noOverlap = true
	return en
}

// Run registers the task. Start begins dispatching.
func (en *Entry) Run(fn Task) {
	en.e.task = fn
	en.s.mu.Lock()
	if en.e.id == "" {
		en.e.id = fmt.Sprintf("task-%d", len(en.s.entries)+1)
	}
	en.s.entries = append(en.s.entries, en.e)
	en.s.mu.Unlock()
}

// Start begins the scheduler loop in the background. It ticks every
// second and dispatches due entries until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
	logger.Info("schedule: scheduler started")
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: scheduler stopped")
			return
		case now := <-ticker.C:
			s.mu.Lock()
			current := make([]*entry, len(s.entries))
			copy(current, s.entries)
			s.mu.Unlock()

			for _, e := range current {
				if e.due(now) {
					e.dispatch()
				}
			}
		}
	}
}

func (e *entry) due(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastRun.IsZero() {
		return true // first run
	}
	return now.Sub(e.lastRun) >= e.interval
}

func (e *entry) dispatch() {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = time.Now()
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
		}()

		logger.Info("schedule: running task", "id", e.id)
		e.task()
	}()
}

// List returns the registered entries for CLI display.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, e.interval))
	}
	return out
}
