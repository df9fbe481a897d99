package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/time/rate"

	"github.com/songlinshu/vector/engine"
	vectorerrors "github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/subscription"
)

// graphql-transport-ws protocol message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// Protocol close codes defined by graphql-transport-ws.
const (
	closeInvalidMessage     = 4400
	closeUnauthorized       = 4401
	closeInitTimeout        = 4408
	closeDuplicateOperation = 4409
	closeTooManyRequests    = 4429
)

const wsSubprotocol = "graphql-transport-ws"

// wsMessage is one protocol frame in either direction.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn wraps a WebSocket connection with a write mutex so the session's
// delivery goroutines and the read loop never interleave frames. It is the
// connection's subscription sink.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  *slog.Logger
}

var _ subscription.Sink = (*wsConn)(nil)

func (c *wsConn) writeJSON(msg wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(5 * time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.conn.Close()
}

// Next delivers one resolved emission frame.
func (c *wsConn) Next(id string, env *engine.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.writeJSON(wsMessage{ID: id, Type: msgNext, Payload: payload})
}

// Error delivers a terminal error frame. The protocol carries the error list
// directly, not a full envelope.
func (c *wsConn) Error(id string, env *engine.Envelope) error {
	payload, err := json.Marshal(env.Errors)
	if err != nil {
		return err
	}
	return c.writeJSON(wsMessage{ID: id, Type: msgError, Payload: payload})
}

// Complete signals graceful end of one subscription.
func (c *wsConn) Complete(id string) error {
	return c.writeJSON(wsMessage{ID: id, Type: msgComplete})
}

// handleWebSocket upgrades the connection and runs the graphql-transport-ws
// protocol over it until the client disconnects or the server shuts down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{wsSubprotocol},
		CheckOrigin:     s.checkOrigin,
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	connID := uuid.NewString()
	logger := s.logger.With("connection", connID)
	conn := &wsConn{conn: raw, logger: logger}

	metrics := s.registry.CoreMetrics()
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	logger.Debug("connection accepted", "remote", r.RemoteAddr)

	if !s.awaitInit(conn) {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := subscription.NewSession(s.exec, conn, s.config.Subscriptions, logger, metrics)
	if err != nil {
		logger.Error("session setup failed", "error", err)
		conn.closeWith(websocket.CloseInternalServerErr, "session setup failed")
		return
	}
	defer func() {
		if err := session.Close(10 * time.Second); err != nil {
			logger.Warn("session close timed out", "error", err)
		}
		_ = raw.Close()
		logger.Debug("connection closed")
	}()

	s.readLoop(ctx, conn, session)
}

// awaitInit enforces the connection_init handshake within the configured
// deadline.
func (s *Server) awaitInit(conn *wsConn) bool {
	deadline := time.Now().Add(s.config.ConnectionInitTimeout())
	if err := conn.conn.SetReadDeadline(deadline); err != nil {
		conn.closeWith(websocket.CloseInternalServerErr, "deadline setup failed")
		return false
	}

	var msg wsMessage
	if err := conn.conn.ReadJSON(&msg); err != nil {
		conn.closeWith(closeInitTimeout, "connection initialisation timeout")
		return false
	}
	if msg.Type != msgConnectionInit {
		conn.closeWith(closeUnauthorized, "expected connection_init")
		return false
	}
	if err := conn.conn.SetReadDeadline(time.Time{}); err != nil {
		conn.closeWith(websocket.CloseInternalServerErr, "deadline reset failed")
		return false
	}

	if err := conn.writeJSON(wsMessage{Type: msgConnectionAck}); err != nil {
		conn.logger.Warn("ack write failed", "error", err)
		return false
	}
	return true
}

// readLoop processes client frames until the connection drops or a protocol
// violation forces a close.
func (s *Server) readLoop(ctx context.Context, conn *wsConn, session *subscription.Session) {
	var limiter *rate.Limiter
	if s.config.RateLimit > 0 {
		burst := int(s.config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.config.RateLimit), burst)
	}

	for {
		var msg wsMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				conn.logger.Debug("connection read failed", "error", err)
			}
			return
		}

		if limiter != nil && !limiter.Allow() {
			conn.closeWith(closeTooManyRequests, "message rate exceeded")
			return
		}

		switch msg.Type {
		case msgSubscribe:
			if !s.handleSubscribe(ctx, conn, session, msg) {
				return
			}

		case msgComplete:
			session.Unsubscribe(msg.ID)

		case msgPing:
			if err := conn.writeJSON(wsMessage{Type: msgPong, Payload: msg.Payload}); err != nil {
				return
			}

		case msgPong, msgConnectionInit:
			// Redundant init frames and unsolicited pongs are tolerated.

		default:
			conn.closeWith(closeInvalidMessage, fmt.Sprintf("unknown message type %q", msg.Type))
			return
		}
	}
}

// handleSubscribe starts a subscription or, for query and mutation payloads,
// runs them one-shot and completes immediately. Returns false when the
// connection must close.
func (s *Server) handleSubscribe(ctx context.Context, conn *wsConn, session *subscription.Session, msg wsMessage) bool {
	if msg.ID == "" {
		conn.closeWith(closeInvalidMessage, "subscribe requires an id")
		return false
	}

	var req operationRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		conn.closeWith(closeInvalidMessage, "malformed subscribe payload")
		return false
	}

	op, err := engine.Parse(req.Query, req.OperationName, req.Variables, s.config.MaxDepth)
	if err != nil {
		s.registry.CoreMetrics().ValidationFailures.WithLabelValues(failureReason(err)).Inc()
		if werr := conn.Error(msg.ID, engine.ErrorEnvelope(err)); werr != nil {
			return false
		}
		return true
	}

	if op.Kind != ast.Subscription {
		start := time.Now()
		execCtx, cancel := context.WithTimeout(ctx, s.config.Timeout())
		env := s.exec.Execute(execCtx, op, nil)
		cancel()
		s.observeOperation(op, env, time.Since(start))

		if err := conn.Next(msg.ID, env); err != nil {
			return false
		}
		return conn.Complete(msg.ID) == nil
	}

	if err := session.Subscribe(ctx, msg.ID, op); err != nil {
		if errors.Is(err, vectorerrors.ErrDuplicateOperationID) {
			conn.closeWith(closeDuplicateOperation,
				fmt.Sprintf("subscriber for %s already exists", msg.ID))
			return false
		}
		if werr := conn.Error(msg.ID, engine.ErrorEnvelope(err)); werr != nil {
			return false
		}
	}
	return true
}

// checkOrigin applies the CORS origin list to WebSocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	if !s.config.EnableCORS {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
