package batch

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one bulk build. It is called from the scheduler
// goroutine whenever a bulk's cron expression fires.
type RunFunc func(cfg BulkConfig)

// Scheduler runs bulk builds on cron schedules
type Scheduler struct {
	configs  map[string]BulkConfig
	parser   cron.Parser
	lastRun  map[string]time.Time
	running  map[string]bool
	mu       sync.Mutex
	stopChan chan struct{}
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron validates a standard 5-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// NewScheduler creates a scheduler from schedule configuration
func NewScheduler(cfg *ScheduleConfig) *Scheduler {
	configs := make(map[string]BulkConfig)
	for _, b := range cfg.Bulks {
		configs[b.Name] = b
	}
	return &Scheduler{
		configs:  configs,
		parser:   cronParser,
		lastRun:  make(map[string]time.Time),
		running:  make(map[string]bool),
		stopChan: make(chan struct{}),
	}
}

// NextRun returns the next scheduled run time for a bulk
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[name]
	if !ok {
		return time.Time{}, false
	}
	sched, err := s.parser.Parse(cfg.Cron)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(time.Now()), true
}

// ShouldRun reports whether a bulk is due and not already running
func (s *Scheduler) ShouldRun(name string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[name]
	if !ok {
		return false
	}
	if s.running[name] {
		return false
	}

	sched, err := s.parser.Parse(cfg.Cron)
	if err != nil {
		return false
	}

	last := s.lastRun[name]
	if last.IsZero() {
		// never ran: only fire if a scheduled time fell in the last day
		last = now.Add(-24 * time.Hour)
	}
	next := sched.Next(last)
	return !next.After(now)
}

// MarkRunning marks a bulk as in progress
func (s *Scheduler) MarkRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
	s.lastRun[name] = time.Now()
}

// MarkComplete marks a bulk as finished
func (s *Scheduler) MarkComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
}

// Start runs the scheduler loop until Stop is called. Due bulks are
// executed one at a time via runFunc.
func (s *Scheduler) Start(runFunc RunFunc) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	log.Printf("[batch] scheduler started with %d bulk(s)", len(s.configs))

	for {
		select {
		case <-s.stopChan:
			log.Printf("[batch] scheduler stopped")
			return
		case now := <-ticker.C:
			for name, cfg := range s.configs {
				if !s.ShouldRun(name, now) {
					continue
				}
				log.Printf("[batch] bulk %q due, starting", name)
				s.MarkRunning(name)
				runFunc(cfg)
				s.MarkComplete(name)
			}
		}
	}
}

// Stop signals the scheduler loop to exit
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
