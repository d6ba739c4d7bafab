package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/gavel-live/internal/auction"
)

// CommandExchange receives admin commands. It is separate from the event
// exchange so the server never consumes its own auction.reset events.
const CommandExchange = "auction.commands"

var errUnknownCommand = errors.New("unknown command")

// ErrConsumerClosed is returned by Run when the broker closes the delivery channel
var ErrConsumerClosed = errors.New("admin command channel closed")

// Resetter is the part of the engine the admin consumer drives
type Resetter interface {
	ResetAll(ctx context.Context) ([]auction.Item, error)
}

// AdminConsumer consumes admin commands and applies them to the engine
type AdminConsumer struct {
	conn     *amqp.Connection
	queue    string
	resetter Resetter
	logger   *slog.Logger
}

// NewAdminConsumer creates a new admin command consumer
func NewAdminConsumer(conn *amqp.Connection, queue string, resetter Resetter, logger *slog.Logger) *AdminConsumer {
	return &AdminConsumer{
		conn:     conn,
		queue:    queue,
		resetter: resetter,
		logger:   logger,
	}
}

// Run starts the consumer loop
func (c *AdminConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := DeclareCommandQueue(ch, c.queue); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for admin commands...", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrConsumerClosed
			}
			c.handle(ctx, d)
		}
	}
}

func (c *AdminConsumer) handle(ctx context.Context, d amqp.Delivery) {
	command := d.RoutingKey
	requestedBy := ""
	if len(d.Body) > 0 {
		fields, err := Decode(d.Body)
		if err != nil {
			c.logger.Error("Failed to unmarshal command", "error", err)
			// If we can't parse it, we probably can't process it ever.
			if nackErr := d.Nack(false, false); nackErr != nil {
				c.logger.Error("Failed to Nack message", "error", nackErr)
			}
			return
		}
		if cmd, ok := fields["command"].(string); ok && cmd != "" {
			command = cmd
		}
		requestedBy, _ = fields["requested_by"].(string)
	}

	c.logger.Info("Received admin command", "command", command, "requested_by", requestedBy)

	if err := c.apply(ctx, command); err != nil {
		if errors.Is(err, errUnknownCommand) {
			c.logger.Warn("Dropping unknown admin command", "command", command)
			if nackErr := d.Nack(false, false); nackErr != nil {
				c.logger.Error("Failed to Nack message", "error", nackErr)
			}
			return
		}

		// Retry once, then drop
		c.logger.Error("Failed to apply admin command", "command", command, "error", err)
		if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to Ack message", "error", ackErr)
	}
}

func (c *AdminConsumer) apply(ctx context.Context, command string) error {
	switch command {
	case CommandReset:
		items, err := c.resetter.ResetAll(ctx)
		if err != nil {
			return err
		}
		c.logger.Info("Auctions reset by admin command", "count", len(items))
		return nil
	default:
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

// DeclareCommandQueue declares the command exchange and binds queue to the reset command
func DeclareCommandQueue(ch *amqp.Channel, queue string) error {
	err := ch.ExchangeDeclare(
		CommandExchange, // name
		"direct",        // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return err
	}

	return ch.QueueBind(
		q.Name,          // queue name
		CommandReset,    // routing key
		CommandExchange, // exchange
		false,
		nil,
	)
}

// PublishCommand sends an admin command to the command exchange
func PublishCommand(ctx context.Context, conn *amqp.Connection, command, requestedBy string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if declareErr := ch.ExchangeDeclare(CommandExchange, "direct", true, false, false, false, nil); declareErr != nil {
		return fmt.Errorf("failed to declare exchange: %w", declareErr)
	}

	body, err := EncodeCommand(command, requestedBy)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		CommandExchange, // exchange
		command,         // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  ContentTypeProtobuf,
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}
