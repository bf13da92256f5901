// Package bridge connects the callback adapter to a wallet host over a
// websocket. Requests go out as HandlerParams frames; the host answers
// with Response frames carrying the same id.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sigweihq/web3provider/pkg/adapter"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/sigweihq/web3provider/pkg/utils"
)

// Maximum frame size accepted from the host
const maxMessageSize = 1024 * 1024

var ErrClosed = errors.New("bridge connection closed")

// Response is a host answer. Exactly one of Result or Error is expected;
// a frame with neither resolves the request with nil.
type Response struct {
	ID      string          `json:"id"`
	Network string          `json:"network"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Router delivers host answers to the provider of a network.
// *chains.Registry implements it.
type Router interface {
	SendResponse(network, id string, result any) error
	SendError(network, id string, reason any) error
}

// Client is a websocket connection to the wallet host
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the host at url
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if err := utils.ValidateBridgeURL(url); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}

	c := &Client{
		conn:   conn,
		logger: logger.With("component", "bridge"),
		done:   make(chan struct{}),
	}
	c.logger.Info("connected to wallet host", "url", url)
	return c, nil
}

// Handler returns an adapter handler writing every request to the host
func (c *Client) Handler() adapter.Handler {
	return func(ctx context.Context, params types.HandlerParams) (any, error) {
		return nil, c.write(ctx, params)
	}
}

func (c *Client) write(ctx context.Context, params types.HandlerParams) error {
	msg, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	deadline := time.Now().Add(constants.BridgeWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	c.logger.Debug("request sent", "id", params.ID, "network", params.Network, "method", params.Name)
	return nil
}

// Run reads host answers and routes them until ctx is done or the
// connection drops. It closes the client on return.
func (c *Client) Run(ctx context.Context, router Router) error {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.BridgePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(constants.BridgePongWait))
	})

	go c.keepAlive(ctx)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read response: %w", err)
		}

		c.route(router, message)
	}
}

func (c *Client) route(router Router, message []byte) {
	var res Response
	if err := json.Unmarshal(message, &res); err != nil {
		c.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	if res.ID == "" {
		c.logger.Warn("dropping frame without id", "network", res.Network)
		return
	}

	var err error
	if len(res.Error) > 0 && string(res.Error) != "null" {
		err = router.SendError(res.Network, res.ID, decodeError(res.Error))
	} else {
		err = router.SendResponse(res.Network, res.ID, decodeResult(res.Result))
	}
	if err != nil {
		c.logger.Warn("unable to route host answer", "id", res.ID, "network", res.Network, "error", err)
	}
}

func (c *Client) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(constants.BridgePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(constants.BridgeWriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Warn("ping failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// Close sends a close frame and closes the connection
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(constants.BridgeWriteTimeout))
		err = c.conn.Close()
	})
	return err
}

func decodeResult(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	return v
}

// decodeError keeps {code, message} objects as RPC errors so callers can
// match on the code
func decodeError(raw json.RawMessage) any {
	var rpcErr types.RPCError
	if err := json.Unmarshal(raw, &rpcErr); err == nil && rpcErr.Code != 0 {
		return &rpcErr
	}
	return decodeResult(raw)
}
