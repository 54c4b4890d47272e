package client

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn is the client side of the websocket protocol.
// Send is safe for concurrent use; Listen must run on a single goroutine.
type Conn struct {
	log *slog.Logger
	ws  *websocket.Conn
	mu  sync.Mutex
}

// Dial opens the websocket and presents the token on the handshake.
// A rejected token is reported as an authentication error.
func Dial(ctx context.Context, log *slog.Logger, serverURL, token string) (*Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	query := u.Query()
	query.Set("token", token)
	u.RawQuery = query.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	return &Conn{log: log, ws: ws}, nil
}

func (c *Conn) Send(request event.Request) error {
	data, err := event.Encode(request)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	return nil
}

// Listen feeds every server event to the synchronizer until the connection ends.
// Frames that cannot be decoded are logged and skipped.
func (c *Conn) Listen(ctx context.Context, synchronizer *Synchronizer) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", errors.ErrTransport, err)
		}
		evt, err := event.DecodeEvent(data)
		if err != nil {
			c.log.Warn("Frame skipped", "error", err)
			continue
		}
		if err := synchronizer.Dispatch(ctx, ServerEvent{Event: evt}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Close says goodbye to the relay, then drops the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.ws.Close()
}
