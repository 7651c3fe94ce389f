package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluehood/internal/domain"
)

// watchStore serves a single canned device.
type watchStore struct {
	device domain.Device
	err    error
}

func (w *watchStore) GetDevice(context.Context, string) (domain.Device, error) {
	return w.device, w.err
}

func (w *watchStore) UpsertDevice(context.Context, domain.DiscoveryEvent, string) (domain.Device, error) {
	return domain.Device{}, nil
}
func (w *watchStore) RecordSighting(context.Context, string, time.Time, int) error { return nil }
func (w *watchStore) ListDevices(context.Context, domain.DeviceFilter) ([]domain.Device, error) {
	return nil, nil
}
func (w *watchStore) GetSightings(context.Context, string, time.Time) ([]domain.Sighting, error) {
	return nil, nil
}
func (w *watchStore) SetFriendlyName(context.Context, string, string) error { return nil }
func (w *watchStore) SetIgnored(context.Context, string, bool) error        { return nil }
func (w *watchStore) SetWatched(context.Context, string, bool) error        { return nil }
func (w *watchStore) PruneSightings(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (w *watchStore) Close() error { return nil }

type capturedPost struct {
	Title string
	Body  string
	Path  string
}

func captureServer(t *testing.T) (*httptest.Server, func() []capturedPost) {
	t.Helper()
	var mu sync.Mutex
	var posts []capturedPost
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		posts = append(posts, capturedPost{
			Title: r.Header.Get("Title"),
			Body:  string(body),
			Path:  r.URL.Path,
		})
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedPost {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedPost(nil), posts...)
	}
}

func TestNewDeviceNotification(t *testing.T) {
	srv, posts := captureServer(t)
	n := New(&watchStore{}, Config{Server: srv.URL, Topic: "presence"}, slog.Default())

	n.onNewDevice(context.Background(), domain.Event{
		Type:    domain.EventDeviceNew,
		Address: "AA:BB:CC:DD:EE:FF",
		Name:    "Pixel 9",
	})

	got := posts()
	require.Len(t, got, 1)
	assert.Equal(t, "New device nearby", got[0].Title)
	assert.Contains(t, got[0].Body, "Pixel 9")
	assert.Contains(t, got[0].Body, "AA:BB:CC:DD:EE:FF")
	assert.Equal(t, "/presence", got[0].Path)
}

func TestWatchedReturnAfterAbsence(t *testing.T) {
	srv, posts := captureServer(t)
	st := &watchStore{device: domain.Device{
		Address:      "AA:BB:CC:DD:EE:FF",
		FriendlyName: "my phone",
		Watched:      true,
	}}
	n := New(st, Config{Server: srv.URL, Topic: "presence", AbsenceGap: 30 * time.Minute}, slog.Default())

	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ev := func(ts time.Time) domain.Event {
		return domain.Event{Type: domain.EventDeviceDiscovered, Address: "AA:BB:CC:DD:EE:FF", Timestamp: ts}
	}

	// First sighting just primes the tracker.
	n.onDiscovered(context.Background(), ev(base))
	// Back-to-back sightings stay quiet.
	n.onDiscovered(context.Background(), ev(base.Add(time.Minute)))
	assert.Empty(t, posts())

	// After a real absence, the return is announced.
	n.onDiscovered(context.Background(), ev(base.Add(2*time.Hour)))
	got := posts()
	require.Len(t, got, 1)
	assert.Equal(t, "Watched device returned", got[0].Title)
	assert.Contains(t, got[0].Body, "my phone")
}

func TestUnwatchedReturnStaysQuiet(t *testing.T) {
	srv, posts := captureServer(t)
	st := &watchStore{device: domain.Device{Address: "AA:BB:CC:DD:EE:FF", Watched: false}}
	n := New(st, Config{Server: srv.URL, Topic: "presence", AbsenceGap: 30 * time.Minute}, slog.Default())

	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	n.onDiscovered(context.Background(), domain.Event{Address: "AA:BB:CC:DD:EE:FF", Timestamp: base})
	n.onDiscovered(context.Background(), domain.Event{Address: "AA:BB:CC:DD:EE:FF", Timestamp: base.Add(2 * time.Hour)})

	assert.Empty(t, posts())
}

func TestRejectedNotificationIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(&watchStore{}, Config{Server: srv.URL, Topic: "presence"}, slog.Default())
	// Must not panic or error; delivery is best effort.
	n.onNewDevice(context.Background(), domain.Event{Name: "x", Address: "AA:BB:CC:DD:EE:FF"})
}
