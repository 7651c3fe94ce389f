package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"bluehood/internal/domain"
	"bluehood/internal/infra/tracer"
)

// writeTimeout bounds a single frame write so a stalled client cannot
// wedge its write loop.
const writeTimeout = 5 * time.Second

// Handler handles one request method.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// clientConn tracks a single connected client.
type clientConn struct {
	conn      net.Conn
	sendCh    chan Frame // buffered outbound queue
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex // serializes writes to conn
}

// writeFrame encodes one frame to the connection under the write mutex.
func (cc *clientConn) writeFrame(frame Frame) error {
	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()
	cc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return json.NewEncoder(cc.conn).Encode(frame)
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() {
		close(cc.done)
		cc.conn.Close()
	})
}

// Server exposes the store and pattern engine over the control socket.
// Request handling runs concurrently with the scan loop and with other
// clients; no store call spans a socket write.
type Server struct {
	store   domain.Store
	bus     domain.EventBus
	stateFn func() string // scan loop phase for ping
	path    string
	log     *slog.Logger

	handlers map[string]Handler
	clients  sync.Map // connID (uint64) -> *clientConn
	nextID   atomic.Uint64
	ln       net.Listener
	unsub    func()
	started  time.Time
}

// NewServer creates a control server listening (once started) at path.
// stateFn reports the scan loop phase; it may be nil.
func NewServer(store domain.Store, bus domain.EventBus, stateFn func() string,
	path string, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		bus:      bus,
		stateFn:  stateFn,
		path:     path,
		log:      log,
		handlers: make(map[string]Handler),
	}
	s.registerHandlers()
	return s
}

// Start begins accepting clients. Blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	// Remove a stale socket from an unclean shutdown.
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.WrapOp("control listen", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return domain.WrapOp("control listen", err)
	}
	s.ln = ln
	s.started = time.Now()
	// The channel trusts the single-host boundary; let any local user connect.
	if err := os.Chmod(s.path, 0o666); err != nil {
		s.log.Warn("socket chmod failed", "path", s.path, "error", err)
	}

	if s.bus != nil {
		s.unsub = s.bus.SubscribeAll(s.broadcast)
	}

	s.log.Info("control server listening", "socket", s.path)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return domain.WrapOp("control accept", err)
		}
		go s.handleConn(ctx, conn)
	}
}

// Stop closes the listener, disconnects all clients and removes the socket.
func (s *Server) Stop() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	if s.ln != nil {
		s.ln.Close()
	}
	s.clients.Range(func(key, value any) bool {
		value.(*clientConn).close()
		s.clients.Delete(key)
		return true
	})
	os.Remove(s.path)
}

// clientCount reports currently connected clients.
func (s *Server) clientCount() int {
	n := 0
	s.clients.Range(func(_, _ any) bool { n++; return true })
	return n
}

// broadcast forwards a daemon event to every connected client, dropping
// it for clients whose queue is full.
func (s *Server) broadcast(_ context.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	frame := Frame{Type: FrameEvent, Payload: payload}
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		select {
		case cc.sendCh <- frame:
		default:
			s.log.Warn("dropped event for slow client")
		}
		return true
	})
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	connID := s.nextID.Add(1)
	cc := &clientConn{
		conn:   conn,
		sendCh: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
	s.clients.Store(connID, cc)
	s.log.Info("client connected", "conn_id", connID)

	go s.writeLoop(cc)
	s.readLoop(ctx, cc)

	s.clients.Delete(connID)
	cc.close()
	s.log.Info("client disconnected", "conn_id", connID)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	dec := json.NewDecoder(cc.conn)
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		if err := dec.Decode(&frame); err != nil {
			// A syntax error poisons the stream position; report
			// synchronously (the connection closes right after) and drop.
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				reqErr := domain.NewDomainError("control.read", domain.ErrMalformedRequest, err.Error())
				cc.writeFrame(Frame{
					Type:  FrameResponse,
					ID:    frame.ID,
					Error: reqErr.Error(),
					Code:  string(domain.ErrorCodeOf(reqErr)),
				})
			}
			return
		}
		if frame.Type != FrameRequest {
			continue
		}

		go s.dispatch(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			if err := cc.writeFrame(frame); err != nil {
				cc.close()
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cc *clientConn, req Frame) {
	ctx, span := tracer.StartSpan(ctx, "control.dispatch",
		trace.WithAttributes(tracer.StringAttr("request.method", req.Method)),
	)
	defer span.End()

	handler, ok := s.handlers[req.Method]
	if !ok {
		err := domain.NewDomainError("control.dispatch", domain.ErrMethodNotFound, req.Method)
		tracer.RecordError(span, err)
		s.sendResponse(cc, req.ID, nil, err)
		return
	}

	result, err := handler(ctx, req.Payload)
	if err != nil {
		tracer.RecordError(span, err)
		s.sendResponse(cc, req.ID, nil, err)
		return
	}
	tracer.SetOK(span)
	payload, err := json.Marshal(result)
	s.sendResponse(cc, req.ID, payload, err)
}

func (s *Server) sendResponse(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{Type: FrameResponse, ID: id, Payload: result}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = string(domain.ErrorCodeOf(err))
	}
	select {
	case cc.sendCh <- resp:
	default:
		s.log.Warn("dropped response for slow client", "frame_id", id)
	}
}
