package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sammcj/go-a2a-core/a2a"
	"github.com/sammcj/go-a2a-core/server/auth"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendQueue  = 256
)

// WebSocketHandler serves the A2A JSON-RPC surface over a WebSocket. Every
// text frame is one request; streaming methods forward each event as a
// response carrying the request id.
type WebSocketHandler struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewWebSocketHandler creates a WebSocketHandler. A nil checkOrigin allows
// every origin.
func NewWebSocketHandler(d *Dispatcher, logger *zap.Logger, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket endpoints.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Credentials are taken from the upgrade request and apply to the
	// whole session.
	creds, _ := auth.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	s := &wsSession{
		id:      uuid.NewString(),
		conn:    conn,
		handler: h,
		creds:   creds,
		send:    make(chan []byte, wsSendQueue),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.logger = h.logger.With(zap.String("session_id", s.id))
	s.logger.Debug("websocket session opened")

	go s.writePump()
	s.readPump()
	s.wg.Wait()
	s.logger.Debug("websocket session closed")
}

// wsSession is one WebSocket connection.
type wsSession struct {
	id      string
	conn    *websocket.Conn
	handler *WebSocketHandler
	creds   auth.Credentials
	logger  *zap.Logger

	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// readPump reads requests until the connection fails, then tears the
// session down.
func (s *wsSession) readPump() {
	defer s.cancel()

	s.conn.SetReadLimit(DefaultMaxBodyBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if msgType != websocket.TextMessage {
			s.write(a2a.NewErrorResponse(nil, a2a.ErrInvalidRequest("Only text frames are supported")))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(message)
		}()
	}
}

// writePump is the only writer on the connection.
func (s *wsSession) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.cancel()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *wsSession) handle(message []byte) {
	reply := s.handler.dispatcher.Dispatch(s.ctx, s.creds, message)
	switch {
	case reply.None():
	case reply.Stream != nil:
		sub := reply.Stream
		defer sub.Close()
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					if sub.Dropped() {
						s.write(a2a.NewErrorResponse(reply.ID, a2a.NewError(a2a.CodeInternalError, "Stream subscriber fell behind and was dropped")))
					}
					return
				}
				if !s.write(a2a.NewResponse(reply.ID, ev)) {
					return
				}
			case <-s.ctx.Done():
				return
			}
		}
	default:
		s.write(reply.Response)
	}
}

// write queues resp for the write pump. It returns false once the session
// is closing.
func (s *wsSession) write(resp *a2a.JSONRPCResponse) bool {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal websocket response", zap.Error(err))
		return true
	}
	select {
	case s.send <- data:
		return true
	case <-s.ctx.Done():
		return false
	}
}
