// Package control implements the daemon's local control channel: a Unix
// socket carrying newline-delimited JSON frames. Requests and responses
// are correlated by id; the daemon additionally pushes event frames to
// every connected client.
package control

import (
	"encoding/json"
	"time"

	"bluehood/internal/domain"
	"bluehood/internal/usecase/pattern"
)

// FrameType identifies the kind of frame on the wire.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
)

// Frame is the envelope exchanged over the control socket, one JSON
// object per line.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      uint64          `json:"id,omitempty"`      // request/response correlation ID
	Method  string          `json:"method,omitempty"`  // request only
	Payload json.RawMessage `json:"payload,omitempty"` // request params or response result
	Error   string          `json:"error,omitempty"`   // response only
	Code    string          `json:"code,omitempty"`    // machine-parseable error code
}

// Supported request methods.
const (
	MethodPing        = "ping"
	MethodListDevices = "list_devices"
	MethodGetDevice   = "get_device"
	MethodSetName     = "set_name"
	MethodSetIgnored  = "set_ignored"
	MethodSetWatched  = "set_watched"
)

// ListDevicesParams selects the device listing.
type ListDevicesParams struct {
	Filter string `json:"filter,omitempty"` // "all" or "active"; default "active"
}

// ListDevicesResult carries the device listing.
type ListDevicesResult struct {
	Devices []domain.Device `json:"devices"`
}

// GetDeviceParams identifies a device and the history window to analyze.
type GetDeviceParams struct {
	Address string `json:"address"`
	Days    int    `json:"days,omitempty"` // default 30
}

// DeviceDetail is the full per-device view: metadata, derived pattern,
// and recent-activity histograms for heatmap display.
type DeviceDetail struct {
	Device         domain.Device   `json:"device"`
	Pattern        pattern.Summary `json:"pattern"`
	SightingCount  int             `json:"sighting_count"`
	Since          time.Time       `json:"since"`
	Hourly         [24]int         `json:"hourly"`  // midnight-first local hours
	Weekday        [7]int          `json:"weekday"` // Monday-first
	HourlyHeatmap  string          `json:"hourly_heatmap"`
	WeekdayHeatmap string          `json:"weekday_heatmap"`
}

// SetNameParams assigns a friendly name.
type SetNameParams struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// SetIgnoredParams toggles listing exclusion.
type SetIgnoredParams struct {
	Address string `json:"address"`
	Ignored bool   `json:"ignored"`
}

// SetWatchedParams toggles presence notifications.
type SetWatchedParams struct {
	Address string `json:"address"`
	Watched bool   `json:"watched"`
}

// PingResult reports daemon liveness and scan state.
type PingResult struct {
	State         string `json:"state"` // scan loop phase
	Clients       int    `json:"clients"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
