// Package bridge exposes the chat view model to remote UIs over WebSocket.
// Each connection receives the draft and a continuous state stream. The
// first connection also consumes one-time effects; later concurrent
// connections receive state only.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"relaychat/internal/domain"
	"relaychat/internal/infra/middleware"
	"relaychat/internal/viewmodel"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// ChatSurface is the presentation contract of the chat view model.
type ChatSurface interface {
	WatchState(ctx context.Context) <-chan domain.ConversationState
	Effects() *viewmodel.EffectQueue
	Dispatch(event domain.ChatEvent)
	UpdateDraft(text string)
	Draft() string
}

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	id        uint64
	ws        *websocket.Conn
	sendCh    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// send queues f, blocking until there is room or the connection ends.
func (cc *clientConn) send(f Frame) bool {
	select {
	case <-cc.done:
		return false
	default:
	}
	select {
	case cc.sendCh <- f:
		return true
	case <-cc.done:
		return false
	}
}

// drain removes and returns every queued frame.
func (cc *clientConn) drain() []Frame {
	var out []Frame
	for {
		select {
		case f := <-cc.sendCh:
			out = append(out, f)
		default:
			return out
		}
	}
}

// Server is the WebSocket presentation bridge.
type Server struct {
	chat      ChatSurface
	bus       domain.EventBus // nil disables notices
	auth      Authenticator
	logger    *slog.Logger
	addr      string
	httpSrv   *http.Server
	boundAddr atomic.Value // string
	clients   sync.Map     // id (uint64) -> *clientConn
	nextID    atomic.Uint64
	conns     sync.WaitGroup
	limiter   *middleware.Limiter // nil = unlimited

	subOnce sync.Once
	unsub   func()
}

// Option configures a Server.
type Option func(*Server)

// WithConnectLimit caps WebSocket handshakes per client host.
func WithConnectLimit(perMinute, burst int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.limiter = middleware.NewLimiter(perMinute, burst)
		}
	}
}

// NewServer creates a bridge for chat. bus may be nil.
func NewServer(chat ChatSurface, bus domain.EventBus, auth Authenticator, addr string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		chat:   chat,
		bus:    bus,
		auth:   auth,
		logger: logger.With("component", "bridge"),
		addr:   addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the bridge routes. The first call subscribes to the bus.
func (s *Server) Handler() http.Handler {
	s.subOnce.Do(func() {
		if s.bus != nil {
			s.unsub = s.bus.SubscribeAll(s.forwardNotice)
		}
	})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleUpgrade)

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Wrap(h)
	}
	return middleware.SecurityHeaders(h)
}

// Start accepts connections until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}
	s.boundAddr.Store(listener.Addr().String())
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	s.logger.Info("bridge started", "addr", s.BoundAddr())

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()

	err = s.httpSrv.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge serve: %w", err)
	}
	<-stopped
	return nil
}

// Stop closes every connection and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
	}
	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		return true
	})
	s.conns.Wait()

	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the address the server bound to, or "" before Start.
func (s *Server) BoundAddr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Authenticate(requestToken(r)); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	s.conns.Add(1)
	defer s.conns.Done()

	cc := &clientConn{
		id:     s.nextID.Add(1),
		ws:     ws,
		sendCh: make(chan Frame, sendBuffer),
		done:   make(chan struct{}),
	}
	s.clients.Store(cc.id, cc)
	s.logger.Info("bridge client connected", "conn_id", cc.id)

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.writeLoop(cc)
	}()
	go func() {
		defer wg.Done()
		s.streamState(ctx, cc)
	}()
	go func() {
		defer wg.Done()
		s.streamEffects(ctx, cc)
	}()

	s.readLoop(ctx, cc)

	cancel()
	cc.close()
	wg.Wait()
	s.clients.Delete(cc.id)
	s.discardPending(cc)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("bridge client disconnected", "conn_id", cc.id)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		var frame Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		switch frame.Type {
		case FrameTypeEvent:
			event, err := ParseEvent(frame.Event, frame.Text)
			if err != nil {
				s.sendError(cc, err)
				continue
			}
			s.chat.Dispatch(event)
		case FrameTypeDraft:
			s.chat.UpdateDraft(frame.Text)
		default:
			s.sendError(cc, fmt.Errorf("unsupported frame type %q", frame.Type))
		}
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				s.logger.Debug("bridge write failed", "conn_id", cc.id, "error", err)
				cc.close()
				cc.ws.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// streamState sends the draft once, then every state change.
func (s *Server) streamState(ctx context.Context, cc *clientConn) {
	if f, err := newFrame(FrameTypeDraft, draftView{Text: s.chat.Draft()}); err == nil {
		if !cc.send(f) {
			return
		}
	}
	for st := range s.chat.WatchState(ctx) {
		f, err := newFrame(FrameTypeState, NewStateView(st))
		if err != nil {
			s.logger.Warn("encode state failed", "error", err)
			continue
		}
		if !cc.send(f) {
			return
		}
	}
}

func (s *Server) streamEffects(ctx context.Context, cc *clientConn) {
	err := s.chat.Effects().Collect(ctx, func(e domain.Effect) {
		f, err := newFrame(FrameTypeEffect, NewEffectView(e))
		if err != nil {
			s.logger.Warn("encode effect failed", "error", err)
			return
		}
		if !cc.send(f) {
			s.logger.Warn("effect lost on closing connection", "conn_id", cc.id, "kind", NewEffectView(e).Kind)
		}
	})
	if errors.Is(err, viewmodel.ErrConsumerAttached) {
		s.logger.Debug("effects owned by another client; streaming state only", "conn_id", cc.id)
	}
}

// discardPending empties the queue of a closed connection. Effects were
// already taken from the view model, so each lost one is logged.
func (s *Server) discardPending(cc *clientConn) int {
	frames := cc.drain()
	lost := 0
	for _, f := range frames {
		if f.Type != FrameTypeEffect {
			continue
		}
		var v EffectView
		_ = json.Unmarshal(f.Payload, &v)
		s.logger.Warn("effect lost on closing connection", "conn_id", cc.id, "kind", v.Kind, "text", v.Text)
		lost++
	}
	if len(frames) > lost {
		s.logger.Debug("discarded unsent frames", "conn_id", cc.id, "frames", len(frames)-lost)
	}
	return lost
}

func (s *Server) sendError(cc *clientConn, err error) {
	f, merr := newFrame(FrameTypeError, errorView{Message: err.Error()})
	if merr != nil {
		return
	}
	cc.send(f)
}

// forwardNotice relays bus events to every client, dropping them for slow
// clients.
func (s *Server) forwardNotice(_ context.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	frame := Frame{Type: FrameTypeNotice, Payload: payload}
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		select {
		case cc.sendCh <- frame:
		default:
			s.logger.Warn("bridge: dropped notice for slow client", "conn_id", cc.id, "event", string(event.Type))
		}
		return true
	})
}
