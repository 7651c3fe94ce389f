package domain

import (
	"context"
	"time"
)

// Radio abstracts the scanning primitive. A scan runs for a bounded
// window and reports every advertisement heard, duplicates included;
// de-duplication is the scan loop's job.
type Radio interface {
	Scan(ctx context.Context, window time.Duration) ([]DiscoveryEvent, error)
}

// VendorLookup resolves a hardware address to a manufacturer name.
// Implementations must be bounded (cached or deadline-limited) so they
// never block the scan loop noticeably. Empty string means unknown.
type VendorLookup interface {
	Lookup(ctx context.Context, address string) string
}

// Store owns durability of devices and sightings. Implementations must
// allow concurrent reads and serialize writes so rapid re-sightings of
// the same device never lose updates. Every method fails fast with
// ErrStorageUnavailable instead of retrying internally.
type Store interface {
	// UpsertDevice creates the device on first sight (first seen = last
	// seen = the event timestamp) or updates last seen, signal and the
	// advertised name / vendor if currently unset. A user-assigned
	// friendly name is never overwritten. The returned Device reflects
	// the row after the write.
	UpsertDevice(ctx context.Context, ev DiscoveryEvent, vendor string) (Device, error)

	// RecordSighting appends one row to the device's sighting log.
	RecordSighting(ctx context.Context, address string, ts time.Time, rssi int) error

	GetDevice(ctx context.Context, address string) (Device, error)
	ListDevices(ctx context.Context, filter DeviceFilter) ([]Device, error)

	// GetSightings returns the device's sightings at or after since,
	// ascending by timestamp. A zero since returns the full log.
	GetSightings(ctx context.Context, address string, since time.Time) ([]Sighting, error)

	// Idempotent client mutations. Fail with ErrUnknownDevice when the
	// address has never been sighted.
	SetFriendlyName(ctx context.Context, address, name string) error
	SetIgnored(ctx context.Context, address string, ignored bool) error
	SetWatched(ctx context.Context, address string, watched bool) error

	// PruneSightings deletes sightings older than the cutoff, except the
	// newest sighting of each device, which is always retained so last
	// seen stays derivable from the log. Returns the number deleted.
	PruneSightings(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
