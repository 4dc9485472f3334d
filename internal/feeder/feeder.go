// Package feeder generates synthetic service requests on a timer so the
// allocation pipeline has traffic to work with in demo deployments.
package feeder

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/audit"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

const DefaultInterval = 2 * time.Second

type Feeder struct {
	store    store.Store
	bus      events.Bus
	trail    *audit.Trail
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	generated atomic.Int64
}

type Status struct {
	Running   bool  `json:"running"`
	Generated int64 `json:"generated"`
}

func New(st store.Store, bus events.Bus, trail *audit.Trail, interval time.Duration, logger zerolog.Logger) *Feeder {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Feeder{
		store:    st,
		bus:      bus,
		trail:    trail,
		interval: interval,
		logger:   logger,
	}
}

func (f *Feeder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.running = true

	f.wg.Add(1)
	go f.loop(runCtx)

	f.logger.Info().Dur("interval", f.interval).Msg("feeder started")
	return nil
}

func (f *Feeder) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil
	}
	f.cancel()
	f.wg.Wait()
	f.running = false

	f.logger.Info().Int64("generated", f.generated.Load()).Msg("feeder stopped")
	return nil
}

func (f *Feeder) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{Running: f.running, Generated: f.generated.Load()}
}

func (f *Feeder) loop(ctx context.Context) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.GenerateOne(ctx); err != nil {
				f.logger.Error().Err(err).Msg("feeder tick failed")
			}
		}
	}
}

// GenerateOne creates a single random request for a random known requester.
// The service category always matches the request type so generated traffic
// satisfies the same shape the public API enforces.
func (f *Feeder) GenerateOne(ctx context.Context) error {
	requesters, err := f.store.ListRequesters(ctx)
	if err != nil {
		return err
	}
	if len(requesters) == 0 {
		return nil
	}
	requester := requesters[rand.Intn(len(requesters))]

	requestType := models.RequestTypes[rand.Intn(len(models.RequestTypes))]
	req, err := f.store.CreateRequest(ctx, models.ServiceRequest{
		RequesterID:     requester.ID,
		ServiceCategory: models.RequestTypeCategory[requestType],
		RequestType:     requestType,
		UrgencyLevel:    randomUrgency(),
	})
	if err != nil {
		return err
	}
	f.generated.Add(1)

	if auditErr := f.trail.RequestCreated(ctx, req); auditErr != nil {
		f.logger.Warn().Err(auditErr).Str("request_id", req.ID).Msg("audit write failed")
	}
	f.bus.Publish(ctx, events.Event{Kind: events.KindRequestCreated, EntityID: req.ID, Payload: req, At: req.SubmittedAt})
	return nil
}

// randomUrgency draws HIGH and LOW a quarter of the time each, MEDIUM the
// remaining half.
func randomUrgency() string {
	switch n := rand.Intn(100); {
	case n < 25:
		return models.UrgencyHigh
	case n < 75:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}
