package integration

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluehood/internal/adapter/control"
	"bluehood/internal/adapter/radio"
	"bluehood/internal/adapter/store"
	"bluehood/internal/domain"
	"bluehood/internal/usecase/eventbus"
	"bluehood/internal/usecase/scanner"
)

// harness is the daemon wired together minus the real radio.
type harness struct {
	radio  *radio.Mock
	store  *store.SQLiteStore
	bus    *eventbus.Bus
	loop   *scanner.Loop
	client *control.Client
}

func startHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.Default()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "bluehood.db"), 5*time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	bus := eventbus.New(log)
	t.Cleanup(bus.Close)

	rdo := radio.NewMock()
	loop := scanner.New(rdo, st, nil, bus, scanner.Config{
		Interval: 20 * time.Millisecond,
		Window:   time.Millisecond,
	}, log)

	socket := filepath.Join(dir, "ctl.sock")
	srv := control.NewServer(st, bus, func() string { return loop.State().String() }, socket, log)

	ctx := NewTestContext(t, 30*time.Second)
	go srv.Start(ctx)
	t.Cleanup(srv.Stop)
	go loop.Run(ctx)

	require.Eventually(t, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	client := control.NewClient(socket)
	t.Cleanup(func() { client.Close() })

	return &harness{radio: rdo, store: st, bus: bus, loop: loop, client: client}
}

func TestE2EDiscoveryToListing(t *testing.T) {
	SkipIfShort(t)
	h := startHarness(t)
	ctx := NewTestContext(t, 10*time.Second)

	h.radio.AddDevice("AA:BB:CC:DD:EE:FF", "Pixel 9", -60)

	// The scan loop should pick the device up and it should appear over
	// the control channel.
	require.Eventually(t, func() bool {
		devices, err := h.client.ListDevices(ctx, "active")
		return err == nil && len(devices) == 1
	}, 5*time.Second, 20*time.Millisecond)

	devices, err := h.client.ListDevices(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", devices[0].Address)
	assert.Equal(t, "Pixel 9", devices[0].AdvertisedName)
	assert.GreaterOrEqual(t, devices[0].TotalSightings, int64(1))
}

func TestE2ERenameIgnoreWatch(t *testing.T) {
	SkipIfShort(t)
	h := startHarness(t)
	ctx := NewTestContext(t, 10*time.Second)

	h.radio.AddDevice("AA:BB:CC:DD:EE:FF", "Pixel 9", -60)
	require.Eventually(t, func() bool {
		_, err := h.client.GetDevice(ctx, "AA:BB:CC:DD:EE:FF", 0)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, h.client.SetName(ctx, "AA:BB:CC:DD:EE:FF", "my phone"))
	require.NoError(t, h.client.SetWatched(ctx, "AA:BB:CC:DD:EE:FF", true))
	require.NoError(t, h.client.SetIgnored(ctx, "AA:BB:CC:DD:EE:FF", true))

	detail, err := h.client.GetDevice(ctx, "AA:BB:CC:DD:EE:FF", 0)
	require.NoError(t, err)
	assert.Equal(t, "my phone", detail.Device.DisplayName())
	assert.True(t, detail.Device.Watched)
	assert.True(t, detail.Device.Ignored)

	// Ignored devices disappear from the active listing but stay known.
	active, err := h.client.ListDevices(ctx, "active")
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := h.client.ListDevices(ctx, "all")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestE2EDegradedRadioRecovers(t *testing.T) {
	SkipIfShort(t)
	h := startHarness(t)
	ctx := NewTestContext(t, 10*time.Second)

	h.radio.SetError(domain.ErrRadioUnavailable)

	// The daemon keeps answering while the radio is down.
	require.Eventually(t, func() bool {
		res, err := h.client.Ping(ctx)
		return err == nil && res.State == "degraded"
	}, 5*time.Second, 20*time.Millisecond)

	h.radio.SetError(nil)
	h.radio.AddDevice("AA:BB:CC:DD:EE:FF", "", -60)

	require.Eventually(t, func() bool {
		devices, err := h.client.ListDevices(ctx, "all")
		return err == nil && len(devices) == 1
	}, 10*time.Second, 20*time.Millisecond)
}

func TestE2EScanEventsReachClients(t *testing.T) {
	SkipIfShort(t)
	h := startHarness(t)
	ctx := NewTestContext(t, 10*time.Second)

	// Connect before events start flowing.
	_, err := h.client.Ping(ctx)
	require.NoError(t, err)

	select {
	case ev := <-h.client.Events():
		assert.NotEmpty(t, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no events delivered over the control channel")
	}
}
