package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/domain"
)

// CommandHandler processes an envelope pushed by the daemon to this
// session (clear requests, offscreen ping/clear).
type CommandHandler func(env domain.Envelope) domain.Response

// Client is the session-side endpoint used by detectors, UIs and the
// offscreen helper.
type Client struct {
	conn    *websocket.Conn
	handler CommandHandler
	logger  *zap.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan domain.Response

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the daemon hub. A nil handler answers pushed commands
// with a non-success response.
func Dial(ctx context.Context, wsURL, token string, role domain.SessionRole, sourceURL string, handler CommandHandler, logger *zap.Logger) (*Client, error) {
	header := http.Header{}
	header.Set(HeaderToken, token)
	header.Set(HeaderRole, string(role))
	header.Set(HeaderURL, sourceURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", domain.ErrEndpointGone)
	}

	c := &Client{
		conn:    conn,
		handler: handler,
		logger:  logger,
		pending: make(map[string]chan domain.Response),
		closed:  make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

// Request delivers env and awaits the matching response. Returns
// domain.ErrEndpointGone once the daemon side is gone, domain.ErrTimeout
// when the context deadline elapses first.
func (c *Client) Request(ctx context.Context, env domain.Envelope) (domain.Response, error) {
	select {
	case <-c.closed:
		return domain.Response{}, domain.ErrEndpointGone
	default:
	}

	if env.ID == "" {
		env.ID = uuid.NewString()
	}

	ch := make(chan domain.Response, 1)
	c.pendingMu.Lock()
	c.pending[env.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, env.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.write(frame{Envelope: &env}); err != nil {
		return domain.Response{}, domain.ErrEndpointGone
	}

	select {
	case <-ctx.Done():
		return domain.Response{}, domain.ErrTimeout
	case <-c.closed:
		return domain.Response{}, domain.ErrEndpointGone
	case resp := <-ch:
		return resp, nil
	}
}

// Done is closed once the session is gone, whether closed locally or by
// the daemon side.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Close tears the session down. In-flight requests fail with EndpointGone.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.Close()

	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.logger.Debug("client read ended", zap.Error(err))
			return
		}

		switch {
		case f.Response != nil:
			c.pendingMu.Lock()
			ch, ok := c.pending[f.Response.ID]
			if ok {
				delete(c.pending, f.Response.ID)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- *f.Response
			}
		case f.Envelope != nil:
			resp := c.handleCommand(*f.Envelope)
			resp.ID = f.Envelope.ID
			if err := c.write(frame{Response: &resp}); err != nil {
				c.logger.Debug("command response write failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) handleCommand(env domain.Envelope) domain.Response {
	if c.handler == nil {
		return domain.Response{Success: false, Error: "no command handler"}
	}
	return c.handler(env)
}

func (c *Client) write(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// Ensure Client satisfies the detector's transport dependency.
var _ domain.Requester = (*Client)(nil)
