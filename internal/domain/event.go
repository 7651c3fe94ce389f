package domain

import (
	"context"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// EventScanCompleted fires after each scan cycle's writes finish.
	EventScanCompleted EventType = "scan.completed"
	// EventScanDegraded fires when the scan loop enters its backoff state.
	EventScanDegraded EventType = "scan.degraded"
	// EventDeviceDiscovered fires once per unique device per scan cycle.
	EventDeviceDiscovered EventType = "device.discovered"
	// EventDeviceNew fires when an address is sighted for the first time.
	EventDeviceNew EventType = "device.new"
	// EventPruneCompleted fires after a retention pruning run.
	EventPruneCompleted EventType = "prune.completed"
)

// Event describes something that happened inside the daemon. Events are
// fanned out in-process and forwarded to connected control clients.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address,omitempty"`
	Name      string    `json:"name,omitempty"`
	Count     int       `json:"count,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus fans events out to subscribers.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
}
