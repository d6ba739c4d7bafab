package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/gorilla/websocket"
	"github.com/smallnest/chanx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096

	// A client this far behind is disconnected instead of buffering forever
	maxPending = 1024
)

var errClientClosed = errors.New("client is closed")

// Client is one observer connection. Its id doubles as the submitter id of
// every bid it places.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	send   *chanx.UnboundedChan[[]byte]

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(hub *Hub, id string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		logger: hub.logger.With(slog.String("client_id", id)),
		send:   chanx.NewUnboundedChan[[]byte](context.Background(), 16),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the connection-scoped id
func (c *Client) ID() string {
	return c.id
}

// enqueue queues a frame without waiting for the socket
func (c *Client) enqueue(frame []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClientClosed
	}
	if c.send.Len() >= maxPending {
		c.mu.Unlock()
		c.logger.Warn("Disconnecting slow client", "pending", c.send.Len())
		c.close()
		// Unblocks a writePump stuck on a full socket
		c.conn.Close()
		return errClientClosed
	}
	c.send.In <- frame
	c.mu.Unlock()
	return nil
}

// close stops the client. Frames already queued are still written.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send.In)
	c.hub.unregister(c)
}

// writePump pumps frames from the send queue to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.close()
		// Release the queue goroutine
		for range c.send.Out {
		}
	}()

	for {
		select {
		case frame, ok := <-c.send.Out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("Write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client frames until the connection goes away
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Unexpected websocket close", "error", err)
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError("malformed message")
		return
	}

	switch env.Type {
	case MessageBidPlaced:
		c.handleBid(env.Data)
	default:
		c.sendError("unsupported message type: " + env.Type)
	}
}

func (c *Client) handleBid(data json.RawMessage) {
	var bid PlaceBid
	if len(data) == 0 {
		c.sendError("missing bid payload")
		return
	}
	if err := json.Unmarshal(data, &bid); err != nil {
		c.sendError("invalid bid payload")
		return
	}
	if strings.TrimSpace(bid.ItemID) == "" {
		c.sendError("itemId is required")
		return
	}

	req := auction.BidRequest{
		ItemID:      bid.ItemID,
		Amount:      bid.BidAmount,
		SubmitterID: c.id,
	}
	if bid.UserName != nil && strings.TrimSpace(*bid.UserName) != "" {
		name := strings.TrimSpace(*bid.UserName)
		req.SubmitterName = &name
	}

	// The outcome reaches observers through the broadcaster, including the
	// rejection addressed to this client.
	if _, err := c.hub.bidder.PlaceBid(c.ctx, req); err != nil {
		c.logger.Error("Failed to place bid", "item_id", bid.ItemID, "error", err)
		c.sendError("internal error")
	}
}

func (c *Client) sendError(message string) {
	frame, err := encode(MessageError, ErrorPayload{Error: message})
	if err != nil {
		return
	}
	_ = c.enqueue(frame)
}
