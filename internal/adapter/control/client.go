package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"bluehood/internal/domain"
)

// DefaultRequestTimeout bounds a single control request when the caller's
// context carries no deadline of its own.
const DefaultRequestTimeout = 5 * time.Second

// Client talks to the daemon over the control socket. It connects lazily
// on the first call and reconnects on the next call after a dropped
// connection. Safe for concurrent use.
type Client struct {
	path    string
	timeout time.Duration

	mu      sync.Mutex // guards conn, enc, nextID, pending
	writeMu sync.Mutex // serializes socket writes, never held with mu
	conn    net.Conn
	enc     *json.Encoder
	nextID  uint64
	pending map[uint64]chan Frame

	events chan domain.Event
}

// NewClient creates a client for the daemon socket at path. No connection
// is made until the first request.
func NewClient(path string) *Client {
	return &Client{
		path:    path,
		timeout: DefaultRequestTimeout,
		pending: make(map[uint64]chan Frame),
		events:  make(chan domain.Event, 64),
	}
}

// Events returns the stream of daemon events pushed over the socket.
// Events arriving faster than the consumer drains them are dropped.
func (c *Client) Events() <-chan domain.Event { return c.events }

// Close tears down the connection. Pending requests fail with
// ErrDaemonUnreachable.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.enc = nil
	return err
}

// connect dials the socket if no live connection exists. Caller holds c.mu.
func (c *Client) connect() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return domain.NewDomainError("control.connect", domain.ErrDaemonUnreachable, err.Error())
	}
	c.conn = conn
	c.enc = json.NewEncoder(conn)
	go c.readLoop(conn)
	return nil
}

// readLoop routes response frames to their waiting callers and event
// frames to the event channel. It runs until the connection drops.
func (c *Client) readLoop(conn net.Conn) {
	dec := json.NewDecoder(conn)
	for {
		var frame Frame
		if err := dec.Decode(&frame); err != nil {
			c.dropConn(conn)
			return
		}
		switch frame.Type {
		case FrameResponse:
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			if ok {
				delete(c.pending, frame.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- frame
			}
		case FrameEvent:
			var ev domain.Event
			if err := json.Unmarshal(frame.Payload, &ev); err != nil {
				continue
			}
			select {
			case c.events <- ev:
			default:
			}
		}
	}
}

// dropConn discards the dead connection and fails every in-flight request.
func (c *Client) dropConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.enc = nil
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

// Call sends a request and decodes the response payload into out (which
// may be nil). Wire failures surface as ErrDaemonUnreachable, deadline
// expiry as ErrRequestTimeout, and daemon-reported errors as the sentinel
// matching the response code.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var payload json.RawMessage
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return domain.WrapOp("control.Call marshal", err)
		}
		payload = raw
	}

	c.mu.Lock()
	if err := c.connect(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	respCh := make(chan Frame, 1)
	c.pending[id] = respCh
	conn := c.conn
	enc := c.enc
	c.mu.Unlock()

	// The write happens outside c.mu so a stalled socket blocks only
	// writers, not response routing or other callers' bookkeeping.
	c.writeMu.Lock()
	err := enc.Encode(Frame{Type: FrameRequest, ID: id, Method: method, Payload: payload})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.dropConn(conn)
		return domain.NewDomainError("control.Call", domain.ErrDaemonUnreachable, err.Error())
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return domain.NewDomainError("control.Call", domain.ErrRequestTimeout, method)
	case frame, ok := <-respCh:
		if !ok {
			return domain.NewDomainError("control.Call", domain.ErrDaemonUnreachable, "connection lost")
		}
		if frame.Error != "" {
			if sentinel := domain.ErrorFromCode(domain.ErrorCode(frame.Code)); sentinel != nil {
				return domain.NewDomainError("control."+method, sentinel, frame.Error)
			}
			return fmt.Errorf("control.%s: %s", method, frame.Error)
		}
		if out != nil && len(frame.Payload) > 0 {
			if err := json.Unmarshal(frame.Payload, out); err != nil {
				return domain.WrapOp("control.Call decode", err)
			}
		}
		return nil
	}
}

// Ping reports daemon liveness and the scan loop phase.
func (c *Client) Ping(ctx context.Context) (PingResult, error) {
	var res PingResult
	err := c.Call(ctx, MethodPing, nil, &res)
	return res, err
}

// ListDevices returns devices matching filter ("all" or "active";
// empty means active).
func (c *Client) ListDevices(ctx context.Context, filter string) ([]domain.Device, error) {
	var res ListDevicesResult
	err := c.Call(ctx, MethodListDevices, ListDevicesParams{Filter: filter}, &res)
	return res.Devices, err
}

// GetDevice returns the device record plus a presence analysis over the
// last days of history (default 30 when days <= 0).
func (c *Client) GetDevice(ctx context.Context, address string, days int) (DeviceDetail, error) {
	var res DeviceDetail
	err := c.Call(ctx, MethodGetDevice, GetDeviceParams{Address: address, Days: days}, &res)
	return res, err
}

// SetName assigns a friendly name; an empty name clears it.
func (c *Client) SetName(ctx context.Context, address, name string) error {
	return c.Call(ctx, MethodSetName, SetNameParams{Address: address, Name: name}, nil)
}

// SetIgnored marks or unmarks a device as ignored.
func (c *Client) SetIgnored(ctx context.Context, address string, ignored bool) error {
	return c.Call(ctx, MethodSetIgnored, SetIgnoredParams{Address: address, Ignored: ignored}, nil)
}

// SetWatched marks or unmarks a device as watched.
func (c *Client) SetWatched(ctx context.Context, address string, watched bool) error {
	return c.Call(ctx, MethodSetWatched, SetWatchedParams{Address: address, Watched: watched}, nil)
}

// TranslateError renders a control error for end users.
func TranslateError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrDaemonUnreachable):
		return "daemon is not running (start it with: bluehood daemon)"
	case errors.Is(err, domain.ErrUnknownDevice):
		return "no such device"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "daemon storage error, check the daemon log"
	case errors.Is(err, domain.ErrRequestTimeout):
		return "daemon did not respond in time"
	default:
		return err.Error()
	}
}
