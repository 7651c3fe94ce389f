// Package scanner drives the periodic radio scan: it deduplicates
// discoveries within a window, persists devices and sightings, and
// degrades with backoff when the radio fails instead of exiting.
package scanner

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"

	"bluehood/internal/domain"
	"bluehood/internal/infra/tracer"
)

// State is the scan loop's current phase.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateProcessing
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateProcessing:
		return "processing"
	case StateDegraded:
		return "degraded"
	default:
		return "idle"
	}
}

// Degraded-state backoff bounds. The first retry waits the scan interval;
// repeated failures stretch toward the cap.
const (
	backoffMultiplier = 1.6
	backoffJitter     = 0.2
	maxBackoff        = 5 * time.Minute
	// scanGrace is added to the radio deadline beyond the scan window.
	scanGrace = 2 * time.Second
)

// Config holds the loop's schedule.
type Config struct {
	Interval      time.Duration
	Window        time.Duration
	RetentionDays int    // 0 disables pruning
	PruneSchedule string // cron expression
}

// Loop owns the scan cycle state machine. One cycle runs at a time; a new
// cycle never starts before the previous one's processing completes.
type Loop struct {
	radio   domain.Radio
	store   domain.Store
	vendors domain.VendorLookup
	bus     domain.EventBus
	log     *slog.Logger
	cfg     Config

	bo   *backoff.ExponentialBackOff
	cron *cron.Cron
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
}

// New creates a scan loop. vendors may be nil to skip vendor resolution.
func New(radio domain.Radio, store domain.Store, vendors domain.VendorLookup,
	bus domain.EventBus, cfg Config, log *slog.Logger) *Loop {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Interval
	bo.MaxInterval = maxBackoff
	bo.Multiplier = backoffMultiplier
	bo.RandomizationFactor = backoffJitter

	return &Loop{
		radio:   radio,
		store:   store,
		vendors: vendors,
		bus:     bus,
		log:     log,
		cfg:     cfg,
		bo:      bo,
		now:     time.Now,
	}
}

// State reports the loop's current phase.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run executes scan cycles until ctx is cancelled. Radio failures switch
// the loop into a degraded state with exponential backoff; they never end
// the loop. Returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("scan loop started",
		"interval", l.cfg.Interval,
		"window", l.cfg.Window,
		"retention_days", l.cfg.RetentionDays,
	)
	l.startPruneJob(ctx)
	defer l.stopPruneJob()

	for {
		delay := l.cfg.Interval
		if err := l.cycle(ctx); err != nil && ctx.Err() == nil {
			delay = l.bo.NextBackOff()
			l.log.Warn("scan cycle failed, backing off",
				"error", err,
				"retry_in", delay,
			)
		}

		select {
		case <-ctx.Done():
			l.log.Info("scan loop stopped")
			return nil
		case <-time.After(delay):
		}
	}
}

// cycle runs one scan: radio, dedup, persist, events.
func (l *Loop) cycle(ctx context.Context) error {
	ctx, span := tracer.StartSpan(ctx, "scanner.cycle")
	defer span.End()

	l.setState(StateScanning)

	scanCtx, cancel := context.WithTimeout(ctx, l.cfg.Window+scanGrace)
	events, err := l.radio.Scan(scanCtx, l.cfg.Window)
	cancel()
	if err != nil {
		tracer.RecordError(span, err)
		l.setState(StateDegraded)
		l.mu.Lock()
		l.failures++
		failures := l.failures
		l.mu.Unlock()
		l.bus.Publish(ctx, domain.Event{
			Type:      domain.EventScanDegraded,
			Timestamp: l.now(),
			Count:     failures,
			Detail:    err.Error(),
		})
		return domain.WrapOp("scanner.cycle", err)
	}

	l.mu.Lock()
	if l.failures > 0 {
		l.log.Info("radio recovered", "failed_cycles", l.failures)
		l.failures = 0
		l.bo.Reset()
	}
	l.mu.Unlock()

	l.setState(StateProcessing)
	defer l.setState(StateIdle)

	span.SetAttributes(tracer.IntAttr("scan.events", len(events)))
	l.process(ctx, events)
	tracer.SetOK(span)
	return nil
}

// process persists one scan window's discoveries. Multiple events for the
// same address collapse to a single sighting (first seen in the window
// wins) so one cycle never inflates the counts the pattern engine reads.
// Storage failures skip the device and keep the cycle going.
func (l *Loop) process(ctx context.Context, events []domain.DiscoveryEvent) {
	seen := make(map[string]struct{}, len(events))
	count := 0

	for _, ev := range events {
		addr := strings.ToUpper(ev.Address)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		ev.Address = addr
		if ev.Timestamp.IsZero() {
			ev.Timestamp = l.now()
		}

		vendor := ""
		if l.vendors != nil {
			vendor = l.vendors.Lookup(ctx, addr)
		}

		dev, err := l.store.UpsertDevice(ctx, ev, vendor)
		if err != nil {
			l.log.Error("device upsert failed, skipping", "address", addr, "error", err)
			continue
		}
		if err := l.store.RecordSighting(ctx, addr, ev.Timestamp, ev.RSSI); err != nil {
			l.log.Error("sighting write failed, skipping", "address", addr, "error", err)
			continue
		}
		count++

		l.bus.Publish(ctx, domain.Event{
			Type:      domain.EventDeviceDiscovered,
			Timestamp: ev.Timestamp,
			Address:   addr,
			Name:      dev.DisplayName(),
		})
		if dev.TotalSightings == 1 {
			l.log.Info("new device", "address", addr, "name", dev.DisplayName(), "vendor", dev.Vendor)
			l.bus.Publish(ctx, domain.Event{
				Type:      domain.EventDeviceNew,
				Timestamp: ev.Timestamp,
				Address:   addr,
				Name:      dev.DisplayName(),
			})
		}
	}

	l.bus.Publish(ctx, domain.Event{
		Type:      domain.EventScanCompleted,
		Timestamp: l.now(),
		Count:     count,
	})
	l.log.Debug("scan cycle complete", "devices", count)
}

func (l *Loop) startPruneJob(ctx context.Context) {
	if l.cfg.RetentionDays <= 0 {
		return
	}
	l.cron = cron.New()
	_, err := l.cron.AddFunc(l.cfg.PruneSchedule, func() {
		if err := l.Prune(ctx); err != nil {
			l.log.Error("retention pruning failed", "error", err)
		}
	})
	if err != nil {
		l.log.Error("invalid prune schedule, retention disabled",
			"schedule", l.cfg.PruneSchedule, "error", err)
		l.cron = nil
		return
	}
	l.cron.Start()
}

func (l *Loop) stopPruneJob() {
	if l.cron != nil {
		l.cron.Stop()
	}
}

// Prune deletes sightings older than the retention horizon. The store
// guarantees each device's newest sighting survives.
func (l *Loop) Prune(ctx context.Context) error {
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays)
	n, err := l.store.PruneSightings(ctx, cutoff)
	if err != nil {
		return domain.WrapOp("scanner.Prune", err)
	}
	l.log.Info("retention pruning complete", "deleted", n, "cutoff", cutoff)
	l.bus.Publish(ctx, domain.Event{
		Type:      domain.EventPruneCompleted,
		Timestamp: l.now(),
		Count:     int(n),
	})
	return nil
}
