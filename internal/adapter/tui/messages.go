// Package tui implements the interactive device browser: a Bubble Tea
// program that talks to the daemon over the control socket.
package tui

import (
	"bluehood/internal/adapter/control"
	"bluehood/internal/domain"
)

// devicesMsg carries the result of a device listing.
type devicesMsg struct {
	Devices []domain.Device
	Err     error
}

// detailMsg carries the result of a device detail request.
type detailMsg struct {
	Detail control.DeviceDetail
	Err    error
}

// pingMsg carries the daemon liveness probe result.
type pingMsg struct {
	Result control.PingResult
	Err    error
}

// actionDoneMsg reports completion of a mutation (rename, ignore, watch).
type actionDoneMsg struct {
	Err error
}

// daemonEventMsg wraps an event pushed by the daemon over the socket.
type daemonEventMsg struct {
	Event domain.Event
	OK    bool // false when the event stream closed
}

// tickMsg drives the periodic refresh fallback.
type tickMsg struct{}
