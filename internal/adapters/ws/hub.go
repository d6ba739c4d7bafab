package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/notify"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClientNotFound is returned when a directed message has no live recipient
var ErrClientNotFound = errors.New("client not connected")

// Bidder is the part of the engine the hub needs
type Bidder interface {
	PlaceBid(ctx context.Context, req auction.BidRequest) (auction.BidOutcome, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub tracks observer connections and fans notifications out to them
type Hub struct {
	bidder Bidder
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
	wg      sync.WaitGroup
}

// NewHub creates a hub that forwards client bids to bidder
func NewHub(bidder Bidder, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		bidder:  bidder,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "ws_hub")),
		clients: make(map[string]*Client),
	}
}

// ServeHTTP upgrades the request and registers a new observer
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", "error", err)
		return
	}

	client := newClient(h, uuid.New().String(), conn)
	if err := h.register(client); err != nil {
		client.close()
		for range client.send.Out {
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// register queues the CONNECTED frame, then makes c visible to broadcasts,
// so it is always the first frame the client reads.
func (h *Hub) register(c *Client) error {
	frame, err := encode(MessageConnected, Connected{
		ClientID:   c.id,
		ServerTime: h.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", MessageConnected, err)
	}
	if err := c.enqueue(frame); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errClientClosed
	}
	h.clients[c.id] = c
	h.wg.Add(2)
	h.logger.Info("Client connected", "client_id", c.id, "clients", len(h.clients))
	return nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
		h.logger.Info("Client disconnected", "client_id", c.id, "clients", len(h.clients))
	}
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) broadcast(msgType string, data any) error {
	frame, err := encode(msgType, data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msgType, err)
	}
	for _, c := range h.snapshot() {
		_ = c.enqueue(frame)
	}
	return nil
}

// BroadcastUpdate implements notify.UpdateBroadcaster
func (h *Hub) BroadcastUpdate(_ context.Context, update notify.BidUpdate) error {
	return h.broadcast(MessageUpdateBid, update)
}

// BroadcastReset implements notify.ResetBroadcaster
func (h *Hub) BroadcastReset(_ context.Context, reset notify.AuctionsReset) error {
	return h.broadcast(MessageAuctionsReset, reset)
}

// NotifyRejection implements notify.RejectionNotifier
func (h *Hub) NotifyRejection(_ context.Context, submitterID string, rejection notify.BidRejection) error {
	h.mu.RLock()
	client, ok := h.clients[submitterID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, submitterID)
	}

	frame, err := encode(MessageBidRejected, rejection)
	if err != nil {
		return fmt.Errorf("failed to encode rejection: %w", err)
	}
	return client.enqueue(frame)
}

// ClientCount returns the number of live connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their pumps to exit
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	for _, c := range h.snapshot() {
		c.close()
	}
	h.wg.Wait()
	h.logger.Info("Websocket hub closed")
}
