package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/notify"
)

var (
	_ notify.UpdateBroadcaster = (*RabbitMQPublisher)(nil)
	_ notify.ResetBroadcaster  = (*RabbitMQPublisher)(nil)
)

// RabbitMQPublisher exports accepted bids and resets to a topic exchange.
// It implements notify.UpdateBroadcaster and notify.ResetBroadcaster.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	now      func() time.Time
}

// NewRabbitMQPublisher creates a new RabbitMQ publisher
func NewRabbitMQPublisher(conn *amqp.Connection, exchange string) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Ensure the exchange exists
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{
		channel:  ch,
		exchange: exchange,
		now:      time.Now,
	}, nil
}

// Close closes the channel
func (p *RabbitMQPublisher) Close() error {
	return p.channel.Close()
}

// BroadcastUpdate publishes a bid.placed event
func (p *RabbitMQPublisher) BroadcastUpdate(ctx context.Context, update notify.BidUpdate) error {
	body, err := EncodeBidUpdate(update, p.now())
	if err != nil {
		return err
	}
	return p.publish(ctx, auction.EventTypeBidPlaced.String(), body)
}

// BroadcastReset publishes an auction.reset event
func (p *RabbitMQPublisher) BroadcastReset(ctx context.Context, reset notify.AuctionsReset) error {
	body, err := EncodeAuctionsReset(reset, p.now())
	if err != nil {
		return err
	}
	return p.publish(ctx, auction.EventTypeAuctionsReset.String(), body)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, body []byte) error {
	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  ContentTypeProtobuf,
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}
