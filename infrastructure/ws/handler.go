// Package ws carries the event protocol over gorilla websockets behind a gin router.
package ws

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/services"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Config struct {
	ConnectionBufferSize int
	MaxMessageSize       int64
	PingPeriod           time.Duration
	WriteWait            time.Duration
}

// pongWait must exceed PingPeriod so that a healthy peer always answers in time.
func (c Config) pongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

func (c Config) withDefaults() Config {
	if c.ConnectionBufferSize <= 0 {
		c.ConnectionBufferSize = 256
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 8192
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 54 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

type Handler struct {
	log      *slog.Logger
	chat     services.IChatService
	cfg      Config
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, chat services.IChatService, cfg Config) *Handler {
	return &Handler{
		log:  log,
		chat: chat,
		cfg:  cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades an authenticated request and blocks until the connection is gone.
// The identity has already been verified, so nothing is registered for a rejected handshake.
func (h *Handler) Serve(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": errors.ErrMissingToken.Error(),
			"kind":  errors.Kind(errors.ErrMissingToken),
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "user_id", identity.ID, "error", err)
		return
	}

	cl := &client{
		conn:     conn,
		sink:     NewSink(h.cfg.ConnectionBufferSize),
		identity: identity,
		chat:     h.chat,
		cfg:      h.cfg,
	}
	cl.id = h.chat.Connect(identity, cl.sink)
	cl.log = h.log.With("connection_id", cl.id, "user_id", identity.ID)
	cl.log.Info("Websocket connected", "remote_addr", conn.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		cl.writePump()
	}()
	cl.readPump(c.Request.Context())
	<-done
}

type client struct {
	id       domain.ConnectionID
	identity domain.Identity
	conn     *websocket.Conn
	sink     *Sink
	chat     services.IChatService
	cfg      Config
	log      *slog.Logger
}

// readPump serves the inbound side. Its exit releases the connection:
// subscriptions first, then registration, then the outbound buffer.
func (c *client) readPump(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer func() {
		cancel()
		c.chat.Disconnect(c.id)
		c.sink.Close()
		c.log.Info("Websocket disconnected")
	}()

	c.setupReadConnection()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.processMessage(ctx, raw)
	}
}

func (c *client) setupReadConnection() {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait())); err != nil {
		c.log.Warn("Unable to set read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait()))
	})
}

func (c *client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
		c.log.Warn("Websocket closed unexpectedly", "error", err)
		return
	}
	c.log.Debug("Websocket read ended", "error", err)
}

// processMessage runs one request. The reply and any error go to this connection only.
// Transport errors are never surfaced: the peer is gone or about to be.
func (c *client) processMessage(ctx context.Context, raw []byte) {
	request, err := event.DecodeRequest(raw)
	if err != nil {
		c.reportError(ctx, err)
		return
	}
	reply, err := c.chat.Handle(ctx, c.id, request)
	if err != nil {
		c.reportError(ctx, err)
		return
	}
	if reply != nil {
		c.deliver(ctx, reply)
	}
}

func (c *client) reportError(ctx context.Context, err error) {
	kind := errors.Kind(err)
	if kind == "transport" {
		c.log.Debug("Transport error not surfaced", "error", err)
		return
	}
	c.log.Debug("Request failed", "kind", kind, "error", err)
	c.deliver(ctx, event.Error{Message: errors.ToEventMessage(err), Kind: kind})
}

func (c *client) deliver(ctx context.Context, evt event.DomainEvent) {
	if err := c.sink.Consume(ctx, evt); err != nil {
		c.log.Warn("Reply not delivered", "event", evt.Name(), "error", err)
	}
}

// writePump is the only writer of the websocket.
func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	frames := c.sink.Frames()
	for {
		select {
		case frame, ok := <-frames:
			if !c.handleFrame(frame, ok) {
				return
			}
		case <-ticker.C:
			if !c.handlePing() {
				return
			}
		}
	}
}

// handleFrame returns false once the connection must be dropped.
func (c *client) handleFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.log.Warn("Unable to set write deadline", "error", err)
		return false
	}
	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Unable to write close message", "error", err)
		}
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Unable to write frame", "error", err)
		}
		return false
	}
	return true
}

func (c *client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.log.Warn("Unable to set write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Unable to write ping", "error", err)
		}
		return false
	}
	return true
}

func (c *client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Unable to close websocket", "error", err)
	}
}

func isExpectedCloseError(err error) bool {
	return err == nil ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, websocket.ErrCloseSent)
}
