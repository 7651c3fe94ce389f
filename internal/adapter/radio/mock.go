package radio

import (
	"context"
	"sync"
	"time"

	"bluehood/internal/domain"
)

// Mock is a scripted Radio for tests and for running the daemon without
// Bluetooth hardware.
type Mock struct {
	mu      sync.Mutex
	devices []domain.DiscoveryEvent
	err     error
	scans   int
}

// NewMock creates an empty mock radio.
func NewMock() *Mock {
	return &Mock{}
}

// AddDevice makes a device visible to subsequent scans.
func (m *Mock) AddDevice(address, name string, rssi int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = append(m.devices, domain.DiscoveryEvent{
		Address: address,
		Name:    name,
		RSSI:    rssi,
	})
}

// SetError makes subsequent scans fail with err; nil restores success.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Clear removes all visible devices.
func (m *Mock) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = nil
}

// Scans reports how many scans have been attempted.
func (m *Mock) Scans() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

func (m *Mock) Scan(_ context.Context, _ time.Duration) ([]domain.DiscoveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	if m.err != nil {
		return nil, m.err
	}
	now := time.Now()
	out := make([]domain.DiscoveryEvent, len(m.devices))
	for i, d := range m.devices {
		d.Timestamp = now
		out[i] = d
	}
	return out, nil
}
