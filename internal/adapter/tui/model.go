package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bluehood/internal/adapter/control"
	"bluehood/internal/domain"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// view identifies which screen is active.
type view int

const (
	viewList view = iota
	viewDetail
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleWatched = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleHeat    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleBorder  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// Model is the root Bubble Tea model for the device browser.
type Model struct {
	client *control.Client

	view   view
	filter string // "active" or "all"

	devices []domain.Device
	table   table.Model

	detail     control.DeviceDetail
	detailAddr string

	renaming  bool
	nameInput textinput.Model

	daemonState string
	errMsg      string
	width       int
	height      int
	ready       bool
}

// New creates the device browser model.
func New(client *control.Client) *Model {
	ni := textinput.New()
	ni.Placeholder = "friendly name"
	ni.CharLimit = 64
	ni.Width = 32

	return &Model{
		client:    client,
		filter:    string(domain.FilterActive),
		nameInput: ni,
	}
}

// Init kicks off the first listing, the liveness probe, the daemon event
// wait and the refresh ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		listDevicesCmd(m.client, m.filter),
		pingCmd(m.client),
		waitForEventCmd(m.client.Events()),
		tickCmd(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.rebuildTable()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case devicesMsg:
		if msg.Err != nil {
			m.errMsg = control.TranslateError(msg.Err)
			return m, nil
		}
		m.errMsg = ""
		m.devices = msg.Devices
		m.rebuildTable()
		return m, nil

	case detailMsg:
		if msg.Err != nil {
			m.errMsg = control.TranslateError(msg.Err)
			return m, nil
		}
		m.errMsg = ""
		m.detail = msg.Detail
		m.detailAddr = msg.Detail.Device.Address
		m.view = viewDetail
		return m, nil

	case pingMsg:
		if msg.Err != nil {
			m.daemonState = ""
			m.errMsg = control.TranslateError(msg.Err)
		} else {
			m.daemonState = msg.Result.State
		}
		return m, nil

	case actionDoneMsg:
		if msg.Err != nil {
			m.errMsg = control.TranslateError(msg.Err)
			return m, nil
		}
		m.errMsg = ""
		return m, m.refreshCmd()

	case daemonEventMsg:
		if !msg.OK {
			// Stream closed; fall back to polling only.
			return m, nil
		}
		cmds := []tea.Cmd{waitForEventCmd(m.client.Events())}
		if msg.Event.Type == domain.EventScanCompleted ||
			msg.Event.Type == domain.EventDeviceNew {
			cmds = append(cmds, m.refreshCmd())
		}
		return m, tea.Batch(cmds...)

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), pingCmd(m.client), tickCmd())
	}

	if !m.renaming && m.view == viewList {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.renaming {
		switch msg.Type {
		case tea.KeyEnter:
			name := strings.TrimSpace(m.nameInput.Value())
			m.renaming = false
			m.nameInput.Blur()
			return m, setNameCmd(m.client, m.selectedAddress(), name)
		case tea.KeyEsc:
			m.renaming = false
			m.nameInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc":
		if m.view == viewDetail {
			m.view = viewList
			return m, nil
		}
		return m, tea.Quit

	case "enter":
		if m.view == viewList {
			if addr := m.selectedAddress(); addr != "" {
				return m, getDeviceCmd(m.client, addr, 0)
			}
		}
		return m, nil

	case "a":
		if m.filter == string(domain.FilterActive) {
			m.filter = string(domain.FilterAll)
		} else {
			m.filter = string(domain.FilterActive)
		}
		return m, listDevicesCmd(m.client, m.filter)

	case "r":
		return m, tea.Batch(m.refreshCmd(), pingCmd(m.client))

	case "n":
		if addr := m.selectedAddress(); addr != "" {
			m.renaming = true
			m.nameInput.SetValue(m.selectedFriendlyName())
			m.nameInput.Focus()
			return m, textinput.Blink
		}
		return m, nil

	case "i":
		if addr := m.selectedAddress(); addr != "" {
			return m, setIgnoredCmd(m.client, addr, !m.selectedDevice().Ignored)
		}
		return m, nil

	case "w":
		if addr := m.selectedAddress(); addr != "" {
			return m, setWatchedCmd(m.client, addr, !m.selectedDevice().Watched)
		}
		return m, nil
	}

	if m.view == viewList {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// refreshCmd reloads whatever the current view shows.
func (m *Model) refreshCmd() tea.Cmd {
	if m.view == viewDetail && m.detailAddr != "" {
		return tea.Batch(
			getDeviceCmd(m.client, m.detailAddr, 0),
			listDevicesCmd(m.client, m.filter),
		)
	}
	return listDevicesCmd(m.client, m.filter)
}

// selectedDevice returns the device the current view is focused on.
func (m *Model) selectedDevice() domain.Device {
	if m.view == viewDetail {
		return m.detail.Device
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.devices) {
		return domain.Device{}
	}
	return m.devices[idx]
}

func (m *Model) selectedAddress() string      { return m.selectedDevice().Address }
func (m *Model) selectedFriendlyName() string { return m.selectedDevice().FriendlyName }

// View renders the active screen.
func (m *Model) View() string {
	if !m.ready {
		return "  Connecting..."
	}

	var body string
	switch m.view {
	case viewDetail:
		body = m.viewDetail()
	default:
		body = m.viewList()
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.viewFooter())
}

func (m *Model) viewList() string {
	title := styleTitle.Render("  bluehood")
	scope := styleMuted.Render(fmt.Sprintf("  %d devices (%s)", len(m.devices), m.filter))
	if m.daemonState != "" {
		scope += styleMuted.Render("  daemon: " + m.daemonState)
	}

	var rename string
	if m.renaming {
		rename = "\n  rename: " + m.nameInput.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title+scope,
		styleBorder.Render(m.table.View()),
		rename,
	)
}

func (m *Model) viewDetail() string {
	d := m.detail
	dev := d.Device

	var b strings.Builder
	b.WriteString(styleTitle.Render("  "+dev.DisplayName()) + "\n\n")
	b.WriteString(fmt.Sprintf("  Address    %s\n", dev.Address))
	if dev.Vendor != "" {
		b.WriteString(fmt.Sprintf("  Vendor     %s\n", dev.Vendor))
	}
	if dev.AdvertisedName != "" && dev.AdvertisedName != dev.DisplayName() {
		b.WriteString(fmt.Sprintf("  Advertised %s\n", dev.AdvertisedName))
	}
	b.WriteString(fmt.Sprintf("  First seen %s\n", dev.FirstSeen.Local().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("  Last seen  %s\n", relativeTime(dev.LastSeen)))
	if dev.LastRSSI != 0 {
		b.WriteString(fmt.Sprintf("  RSSI       %d dBm\n", dev.LastRSSI))
	}
	b.WriteString(fmt.Sprintf("  Sightings  %d total, %d in window\n", dev.TotalSightings, d.SightingCount))

	var flags []string
	if dev.Ignored {
		flags = append(flags, "ignored")
	}
	if dev.Watched {
		flags = append(flags, styleWatched.Render("watched"))
	}
	if len(flags) > 0 {
		b.WriteString("  Flags      " + strings.Join(flags, ", ") + "\n")
	}

	b.WriteString("\n  " + styleTitle.Render("Pattern") + "  " + d.Pattern.Text + "\n\n")
	b.WriteString("  Hours    " + styleHeat.Render(d.HourlyHeatmap) + "\n")
	b.WriteString("           " + styleMuted.Render("0     6     12    18   23") + "\n")
	b.WriteString("  Days     " + styleHeat.Render(d.WeekdayHeatmap) + "\n")
	b.WriteString("           " + styleMuted.Render("MTWTFSS") + "\n")

	if m.renaming {
		b.WriteString("\n  rename: " + m.nameInput.View() + "\n")
	}

	return b.String()
}

func (m *Model) viewFooter() string {
	var hints []string
	if m.view == viewDetail {
		hints = []string{"esc back"}
	} else {
		hints = []string{"enter detail", "a all/active"}
	}
	hints = append(hints, "n rename", "i ignore", "w watch", "r refresh", "q quit")

	footer := styleMuted.Render("  " + strings.Join(hints, " · "))
	if m.errMsg != "" {
		footer = styleError.Render("  "+m.errMsg) + "\n" + footer
	}
	return footer
}

func (m *Model) rebuildTable() {
	if !m.ready {
		return
	}

	nameW := 24
	addrW := 18
	vendorW := m.width - nameW - addrW - 14 - 12 - 10
	if vendorW < 12 {
		vendorW = 12
	}

	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "Address", Width: addrW},
		{Title: "Vendor", Width: vendorW},
		{Title: "Last seen", Width: 14},
		{Title: "Sightings", Width: 10},
		{Title: "Flags", Width: 8},
	}

	rows := make([]table.Row, 0, len(m.devices))
	for _, d := range m.devices {
		var flags string
		if d.Watched {
			flags += "w"
		}
		if d.Ignored {
			flags += "i"
		}
		rows = append(rows, table.Row{
			d.DisplayName(),
			d.Address,
			d.Vendor,
			relativeTime(d.LastSeen),
			fmt.Sprintf("%d", d.TotalSightings),
			flags,
		})
	}

	tableH := m.height - 7
	if tableH < 5 {
		tableH = 5
	}

	cursor := m.table.Cursor()
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(tableH),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)

	if cursor > 0 && cursor < len(rows) {
		t.SetCursor(cursor)
	}
	m.table = t
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2 15:04")
	}
}

// Run starts the device browser and blocks until it exits.
func Run(client *control.Client) error {
	p := tea.NewProgram(New(client), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
