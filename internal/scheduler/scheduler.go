// Package scheduler drives the periodic allocation and completion cycles
// that move service requests from PENDING through ASSIGNED to COMPLETED.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/audit"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/notify"
	"github.com/support-allocation/backend/internal/store"
)

type Config struct {
	AllocationInterval time.Duration
	CompletionInterval time.Duration
	MinCompletionTime  time.Duration
	MaxCompletionTime  time.Duration
}

func DefaultConfig() Config {
	return Config{
		AllocationInterval: time.Second,
		CompletionInterval: 500 * time.Millisecond,
		MinCompletionTime:  10 * time.Second,
		MaxCompletionTime:  15 * time.Second,
	}
}

// Scheduler owns the two periodic cycles plus start/stop lifecycle. Cycles
// never overlap: every allocation, completion, and backfill pass runs under
// passMu, which is what upholds the single-assignment and capacity
// guarantees against concurrent ticks.
type Scheduler struct {
	store    store.Store
	matcher  *Matcher
	bus      events.Bus
	trail    *audit.Trail
	notifier notify.Notifier
	cfg      Config
	logger   zerolog.Logger

	// now is swapped in tests to pin the clock.
	now func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	passMu sync.Mutex

	allocationCycles atomic.Int64
	completionCycles atomic.Int64
}

type Status struct {
	Running          bool  `json:"running"`
	AllocationCycles int64 `json:"allocation_cycles"`
	CompletionCycles int64 `json:"completion_cycles"`
}

func New(st store.Store, bus events.Bus, trail *audit.Trail, notifier notify.Notifier, cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.AllocationInterval <= 0 {
		cfg.AllocationInterval = DefaultConfig().AllocationInterval
	}
	if cfg.CompletionInterval <= 0 {
		cfg.CompletionInterval = DefaultConfig().CompletionInterval
	}
	if cfg.MinCompletionTime <= 0 {
		cfg.MinCompletionTime = DefaultConfig().MinCompletionTime
	}
	if cfg.MaxCompletionTime < cfg.MinCompletionTime {
		cfg.MaxCompletionTime = cfg.MinCompletionTime
	}
	return &Scheduler{
		store:    st,
		matcher:  &Matcher{Resources: st},
		bus:      bus,
		trail:    trail,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start clears transient state from any previous run, resets all resources
// to AVAILABLE, and launches both timer loops. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := s.store.ClearTransient(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.allocationCycles.Store(0)
	s.completionCycles.Store(0)

	s.wg.Add(2)
	go s.loop(runCtx, "allocation", s.cfg.AllocationInterval, s.RunAllocationCycle)
	go s.loop(runCtx, "completion", s.cfg.CompletionInterval, s.RunCompletionCycle)

	s.logger.Info().
		Dur("allocation_interval", s.cfg.AllocationInterval).
		Dur("completion_interval", s.cfg.CompletionInterval).
		Msg("scheduler started")
	if err := s.trail.SchedulerStarted(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to audit scheduler start")
	}
	s.bus.Publish(ctx, events.Event{Kind: events.KindSchedulerStarted})
	return nil
}

// Stop cancels both timers and waits for any in-flight cycle to finish.
// Safe to call at any time, including mid-cycle.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
	if err := s.trail.SchedulerStopped(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to audit scheduler stop")
	}
	s.bus.Publish(ctx, events.Event{Kind: events.KindSchedulerStopped})
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return Status{
		Running:          running,
		AllocationCycles: s.allocationCycles.Load(),
		CompletionCycles: s.completionCycles.Load(),
	}
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(ctx, name, run)
		}
	}
}

// safeRun keeps a panicking or failing cycle from killing the loop.
func (s *Scheduler) safeRun(ctx context.Context, name string, run func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("cycle", name).Msg("cycle panicked")
		}
	}()
	run(ctx)
}

func (s *Scheduler) completionDuration() time.Duration {
	span := s.cfg.MaxCompletionTime - s.cfg.MinCompletionTime
	if span <= 0 {
		return s.cfg.MinCompletionTime
	}
	return s.cfg.MinCompletionTime + time.Duration(rand.Int63n(int64(span)+1))
}
