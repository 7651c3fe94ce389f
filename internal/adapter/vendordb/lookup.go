// Package vendordb resolves hardware addresses to manufacturer names via
// the macvendors.com OUI API. Results (including misses) are cached, the
// API is rate limited to one request per second, and a circuit breaker
// keeps repeated API failures from slowing the scan loop.
package vendordb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Circuit breaker settings for the vendor API.
const (
	cbMaxFailures uint32 = 5
	cbOpenTimeout        = 2 * time.Minute
	cbInterval           = 5 * time.Minute
)

// macOS CoreBluetooth reports per-device UUIDs instead of MAC addresses.
var coreBluetoothUUID = regexp.MustCompile(
	`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)

// IsCoreBluetoothUUID reports whether the address is a CoreBluetooth UUID,
// which carries no OUI and cannot be resolved to a vendor.
func IsCoreBluetoothUUID(address string) bool {
	return coreBluetoothUUID.MatchString(address)
}

// IsRandomizedAddress reports whether the address is locally administered
// (bit 1 of the first byte), i.e. randomized for privacy. Randomized
// addresses have no registered vendor.
func IsRandomizedAddress(address string) bool {
	if IsCoreBluetoothUUID(address) {
		return false
	}
	first, _, ok := strings.Cut(address, ":")
	if !ok {
		return false
	}
	b, err := strconv.ParseUint(first, 16, 8)
	if err != nil {
		return false
	}
	return b&0x02 != 0
}

// Lookup is a cached, bounded OUI vendor resolver.
type Lookup struct {
	apiURL  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[string]
	log     *slog.Logger

	mu    sync.Mutex
	cache map[string]string // OUI -> vendor ("" caches a miss)
}

// New creates a vendor lookup against apiURL. timeout bounds each API call.
func New(apiURL string, timeout time.Duration, log *slog.Logger) *Lookup {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "vendor-api",
		MaxRequests: 1, // one probe in half-open state
		Interval:    cbInterval,
		Timeout:     cbOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cbMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("vendor API circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Lookup{
		apiURL:  strings.TrimSuffix(apiURL, "/") + "/",
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		breaker: cb,
		log:     log,
	}
}

// Lookup resolves the vendor for an address, or "" when unknown.
// Randomized and CoreBluetooth-UUID addresses are skipped outright; only
// the OUI prefix is ever sent to the API. Failures resolve to "": the
// vendor is cosmetic and the caller must not stall on it.
func (l *Lookup) Lookup(ctx context.Context, address string) string {
	if IsCoreBluetoothUUID(address) || IsRandomizedAddress(address) {
		return ""
	}
	oui := ouiPrefix(address)
	if oui == "" {
		return ""
	}

	l.mu.Lock()
	if l.cache == nil {
		l.cache = make(map[string]string)
	}
	if vendor, ok := l.cache[oui]; ok {
		l.mu.Unlock()
		return vendor
	}
	l.mu.Unlock()

	vendor, err := l.breaker.Execute(func() (string, error) {
		return l.fetch(ctx, oui)
	})
	if err != nil {
		l.log.Debug("vendor lookup failed", "oui", oui, "error", err)
		return ""
	}

	// Cache hits and misses alike so each OUI is asked about once.
	l.mu.Lock()
	l.cache[oui] = vendor
	l.mu.Unlock()
	return vendor
}

func (l *Lookup) fetch(ctx context.Context, oui string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiURL+oui, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(body)), nil
	case http.StatusNotFound:
		return "", nil // OUI not registered; a valid miss, not a failure
	default:
		return "", fmt.Errorf("vendor API status %d", resp.StatusCode)
	}
}

// ouiPrefix extracts the first three octets ("AA:BB:CC") of a MAC address.
func ouiPrefix(address string) string {
	parts := strings.Split(address, ":")
	if len(parts) < 3 {
		return ""
	}
	return strings.ToUpper(strings.Join(parts[:3], ":"))
}
