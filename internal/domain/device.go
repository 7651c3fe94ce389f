package domain

import "time"

// DeviceFilter selects which devices a listing returns.
type DeviceFilter string

const (
	// FilterAll returns every known device, ignored ones included.
	FilterAll DeviceFilter = "all"
	// FilterActive returns devices seen within the configured active
	// window, excluding ignored devices.
	FilterActive DeviceFilter = "active"
)

// Device is one tracked Bluetooth device, keyed by hardware address.
// Timestamps, signal state and the vendor fill-in are maintained by the
// scan loop; FriendlyName, Ignored and Watched are client mutations.
type Device struct {
	Address        string    `json:"address"`
	AdvertisedName string    `json:"advertised_name,omitempty"`
	FriendlyName   string    `json:"friendly_name,omitempty"`
	Vendor         string    `json:"vendor,omitempty"`
	Ignored        bool      `json:"ignored"`
	Watched        bool      `json:"watched"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	// LastRSSI is the most recent observed signal strength in dBm.
	// Zero means no reading was reported. Display-only.
	LastRSSI       int   `json:"last_rssi,omitempty"`
	TotalSightings int64 `json:"total_sightings"`
}

// DisplayName returns the user-assigned name if set, then the advertised
// name, then the raw address.
func (d Device) DisplayName() string {
	if d.FriendlyName != "" {
		return d.FriendlyName
	}
	if d.AdvertisedName != "" {
		return d.AdvertisedName
	}
	return d.Address
}

// Sighting is one timestamped observation of a device during a scan
// cycle. The sighting log is append-only: rows are inserted in
// observation order and only ever removed by retention pruning.
type Sighting struct {
	ID        int64     `json:"id"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
	RSSI      int       `json:"rssi,omitempty"`
}

// DiscoveryEvent is one device reported by the radio during a scan window.
type DiscoveryEvent struct {
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	RSSI      int       `json:"rssi,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
