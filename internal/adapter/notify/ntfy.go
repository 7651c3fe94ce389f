// Package notify pushes presence alerts to an ntfy.sh topic: new devices,
// and watched devices returning after an absence.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"bluehood/internal/domain"
)

// Config holds ntfy settings.
type Config struct {
	Server string // e.g. "https://ntfy.sh"
	Topic  string
	// AbsenceGap is the minimum time a watched device must have been
	// unseen before its return is announced.
	AbsenceGap time.Duration
}

// Notifier subscribes to daemon events and posts push notifications.
// Delivery is best effort: failures are logged and never affect scanning.
type Notifier struct {
	store  domain.Store
	cfg    Config
	client *http.Client
	log    *slog.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
	unsubs   []func()
}

// New creates a notifier backed by store for watch-state lookups.
func New(store domain.Store, cfg Config, log *slog.Logger) *Notifier {
	return &Notifier{
		store:    store,
		cfg:      cfg,
		client:   &http.Client{Timeout: 5 * time.Second},
		log:      log,
		lastSeen: make(map[string]time.Time),
	}
}

// Start subscribes to the bus. Call Stop to unsubscribe.
func (n *Notifier) Start(bus domain.EventBus) {
	n.unsubs = append(n.unsubs,
		bus.Subscribe(domain.EventDeviceNew, n.onNewDevice),
		bus.Subscribe(domain.EventDeviceDiscovered, n.onDiscovered),
	)
	n.log.Info("notifications enabled", "topic", n.cfg.Topic)
}

// Stop unsubscribes from the bus.
func (n *Notifier) Stop() {
	for _, unsub := range n.unsubs {
		unsub()
	}
	n.unsubs = nil
}

func (n *Notifier) onNewDevice(ctx context.Context, ev domain.Event) {
	n.send(ctx, "New device nearby",
		fmt.Sprintf("%s (%s) seen for the first time", ev.Name, ev.Address), "3")
}

// onDiscovered announces a watched device returning after the configured
// absence gap. Last-seen times are tracked here, per address, so one
// sighting burst produces at most one announcement.
func (n *Notifier) onDiscovered(ctx context.Context, ev domain.Event) {
	n.mu.Lock()
	prev, known := n.lastSeen[ev.Address]
	n.lastSeen[ev.Address] = ev.Timestamp
	n.mu.Unlock()

	if !known || ev.Timestamp.Sub(prev) < n.cfg.AbsenceGap {
		return
	}

	dev, err := n.store.GetDevice(ctx, ev.Address)
	if err != nil || !dev.Watched {
		return
	}
	n.send(ctx, "Watched device returned",
		fmt.Sprintf("%s is back after %s away", dev.DisplayName(), ev.Timestamp.Sub(prev).Round(time.Minute)), "4")
}

func (n *Notifier) send(ctx context.Context, title, message, priority string) {
	url := strings.TrimSuffix(n.cfg.Server, "/") + "/" + n.cfg.Topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		n.log.Warn("notification request build failed", "error", err)
		return
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", "radio")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("notification send failed", "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Warn("notification rejected", "status", resp.StatusCode)
		return
	}
	n.log.Debug("notification sent", "title", title)
}
