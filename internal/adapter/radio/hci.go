// Package radio provides Radio implementations: an hcitool-backed scanner
// for Linux hosts with BlueZ, and an in-memory mock for tests.
package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"bluehood/internal/domain"
)

// hcitool inquiry results: "<TAB>XX:XX:XX:XX:XX:XX<TAB>clock offset: 0x1234<TAB>class: 0x123456"
var inquiryLine = regexp.MustCompile(`([0-9A-Fa-f:]{17})\s+clock offset:`)

// inquiry length is expressed in 1.28 s units.
const inquiryUnit = 1280 * time.Millisecond

// HCIRadio scans through the BlueZ hcitool utility. Inquiry scans report
// discoverable devices without pairing; names are resolved with a
// follow-up remote name request per address.
type HCIRadio struct {
	adapter      string // e.g. "hci0"; empty uses the default adapter
	log          *slog.Logger
	resolveNames bool
}

// NewHCIRadio creates an hcitool-backed radio on the named adapter.
func NewHCIRadio(adapter string, log *slog.Logger) *HCIRadio {
	return &HCIRadio{adapter: adapter, log: log, resolveNames: true}
}

func (r *HCIRadio) args(sub ...string) []string {
	if r.adapter != "" {
		return append([]string{"-i", r.adapter}, sub...)
	}
	return sub
}

// Scan runs one bounded inquiry. Missing hcitool, a missing adapter, or a
// permission failure all surface as ErrRadioUnavailable so the scan loop
// can degrade instead of crash.
func (r *HCIRadio) Scan(ctx context.Context, window time.Duration) ([]domain.DiscoveryEvent, error) {
	const op = "radio.Scan"

	length := int(window / inquiryUnit)
	if length < 1 {
		length = 1
	}

	cmd := exec.CommandContext(ctx, "hcitool", r.args("inq", "--length", fmt.Sprint(length))...)
	out, err := cmd.Output()
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrRadioUnavailable, describeExecErr(err))
	}

	now := time.Now()
	var events []domain.DiscoveryEvent
	for _, line := range strings.Split(string(out), "\n") {
		m := inquiryLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		addr := strings.ToUpper(m[1])
		name := ""
		if r.resolveNames {
			name = r.remoteName(ctx, addr)
		}
		events = append(events, domain.DiscoveryEvent{
			Address:   addr,
			Name:      name,
			Timestamp: now,
		})
	}
	r.log.Debug("inquiry complete", "devices", len(events))
	return events, nil
}

// remoteName asks the device for its friendly name. Best effort: an
// unreachable or nameless device just yields an empty string.
func (r *HCIRadio) remoteName(ctx context.Context, address string) string {
	nameCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(nameCtx, "hcitool", r.args("name", address)...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func describeExecErr(err error) string {
	if errors.Is(err, exec.ErrNotFound) {
		return "hcitool not found (install bluez-utils)"
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return err.Error()
}
