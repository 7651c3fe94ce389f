package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"bluehood/internal/adapter/control"
	"bluehood/internal/domain"
)

// refreshInterval is the polling fallback for when no daemon events arrive.
const refreshInterval = 15 * time.Second

func listDevicesCmd(client *control.Client, filter string) tea.Cmd {
	return func() tea.Msg {
		devices, err := client.ListDevices(context.Background(), filter)
		return devicesMsg{Devices: devices, Err: err}
	}
}

func getDeviceCmd(client *control.Client, address string, days int) tea.Cmd {
	return func() tea.Msg {
		detail, err := client.GetDevice(context.Background(), address, days)
		return detailMsg{Detail: detail, Err: err}
	}
}

func pingCmd(client *control.Client) tea.Cmd {
	return func() tea.Msg {
		res, err := client.Ping(context.Background())
		return pingMsg{Result: res, Err: err}
	}
}

func setNameCmd(client *control.Client, address, name string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Err: client.SetName(context.Background(), address, name)}
	}
}

func setIgnoredCmd(client *control.Client, address string, ignored bool) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Err: client.SetIgnored(context.Background(), address, ignored)}
	}
}

func setWatchedCmd(client *control.Client, address string, watched bool) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Err: client.SetWatched(context.Background(), address, watched)}
	}
}

// waitForEventCmd blocks on the daemon event stream and re-arms itself
// from Update after each delivery.
func waitForEventCmd(events <-chan domain.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return daemonEventMsg{Event: ev, OK: ok}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
