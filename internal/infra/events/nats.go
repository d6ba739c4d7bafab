package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/floroz/gavel-live/internal/notify"
)

var _ notify.UpdateBroadcaster = (*NATSPublisher)(nil)

// NATSPublisher exports accepted bids to NATS on {prefix}.{itemID}
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	now    func() time.Time
}

// NewNATSPublisher connects to the NATS server at url
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("gavel-live"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// Subject returns the subject of an item
func (p *NATSPublisher) Subject(itemID string) string {
	return p.prefix + "." + itemID
}

// BroadcastUpdate implements notify.UpdateBroadcaster.
// Publishing is fire-and-forget; ctx only bounds the flush.
func (p *NATSPublisher) BroadcastUpdate(ctx context.Context, update notify.BidUpdate) error {
	body, err := EncodeBidUpdate(update, p.now())
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(update.ItemID), body); err != nil {
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush nats: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
