package control

import (
	"context"
	"encoding/json"
	"time"

	"bluehood/internal/domain"
	"bluehood/internal/usecase/pattern"
)

// defaultDetailDays is the history window analyzed when a client asks for
// device detail without an explicit range.
const defaultDetailDays = 30

// decodeParams unmarshals request params, mapping decode failures to the
// malformed-request sentinel. An absent payload yields the zero value.
func decodeParams[T any](payload json.RawMessage) (T, error) {
	var p T
	if len(payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, domain.NewDomainError("control.decodeParams", domain.ErrMalformedRequest, err.Error())
	}
	return p, nil
}

func (s *Server) registerHandlers() {
	s.handlers[MethodPing] = s.handlePing
	s.handlers[MethodListDevices] = s.handleListDevices
	s.handlers[MethodGetDevice] = s.handleGetDevice
	s.handlers[MethodSetName] = s.handleSetName
	s.handlers[MethodSetIgnored] = s.handleSetIgnored
	s.handlers[MethodSetWatched] = s.handleSetWatched
}

func (s *Server) handlePing(_ context.Context, _ json.RawMessage) (any, error) {
	state := "unknown"
	if s.stateFn != nil {
		state = s.stateFn()
	}
	return PingResult{
		State:         state,
		Clients:       s.clientCount(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}, nil
}

func (s *Server) handleListDevices(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decodeParams[ListDevicesParams](payload)
	if err != nil {
		return nil, err
	}

	var filter domain.DeviceFilter
	switch p.Filter {
	case "", string(domain.FilterActive):
		filter = domain.FilterActive
	case string(domain.FilterAll):
		filter = domain.FilterAll
	default:
		return nil, domain.NewDomainError("control.ListDevices", domain.ErrMalformedRequest,
			"filter must be \"all\" or \"active\"")
	}

	devices, err := s.store.ListDevices(ctx, filter)
	if err != nil {
		return nil, err
	}
	return ListDevicesResult{Devices: devices}, nil
}

func (s *Server) handleGetDevice(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decodeParams[GetDeviceParams](payload)
	if err != nil {
		return nil, err
	}
	if p.Address == "" {
		return nil, domain.NewDomainError("control.GetDevice", domain.ErrMalformedRequest, "address is required")
	}
	if p.Days <= 0 {
		p.Days = defaultDetailDays
	}

	dev, err := s.store.GetDevice(ctx, p.Address)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -p.Days)
	sightings, err := s.store.GetSightings(ctx, p.Address, since)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, len(sightings))
	for i, sg := range sightings {
		times[i] = sg.Timestamp
	}

	hourly := pattern.HourlyHistogram(times)
	weekday := pattern.WeekdayHistogram(times)

	return DeviceDetail{
		Device:         dev,
		Pattern:        pattern.Summarize(times),
		SightingCount:  len(times),
		Since:          since,
		Hourly:         hourly,
		Weekday:        weekday,
		HourlyHeatmap:  pattern.Heatmap(hourly[:]),
		WeekdayHeatmap: pattern.Heatmap(weekday[:]),
	}, nil
}

func (s *Server) handleSetName(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decodeParams[SetNameParams](payload)
	if err != nil {
		return nil, err
	}
	if p.Address == "" {
		return nil, domain.NewDomainError("control.SetName", domain.ErrMalformedRequest, "address is required")
	}
	if err := s.store.SetFriendlyName(ctx, p.Address, p.Name); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Server) handleSetIgnored(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decodeParams[SetIgnoredParams](payload)
	if err != nil {
		return nil, err
	}
	if p.Address == "" {
		return nil, domain.NewDomainError("control.SetIgnored", domain.ErrMalformedRequest, "address is required")
	}
	if err := s.store.SetIgnored(ctx, p.Address, p.Ignored); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Server) handleSetWatched(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decodeParams[SetWatchedParams](payload)
	if err != nil {
		return nil, err
	}
	if p.Address == "" {
		return nil, domain.NewDomainError("control.SetWatched", domain.ErrMalformedRequest, "address is required")
	}
	if err := s.store.SetWatched(ctx, p.Address, p.Watched); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}
