package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/smallnest/chanx"
)

const (
	defaultQueueCapacity   = 256
	defaultLaneCapacity    = 64
	defaultDeliveryTimeout = 5 * time.Second
)

// event is one committed state change waiting for delivery
type event struct {
	outcome *auction.BidOutcome
	reset   *auction.Snapshot
}

// lane delivers events to one sink through its own FIFO and goroutine.
// A slow sink only delays its own lane.
type lane struct {
	updates    UpdateBroadcaster
	rejections RejectionNotifier
	resets     ResetBroadcaster
	queue      *chanx.UnboundedChan[event]
}

func (l *lane) accepts(ev event) bool {
	switch {
	case ev.outcome != nil && ev.outcome.Accepted != nil:
		return l.updates != nil
	case ev.outcome != nil && ev.outcome.Rejected != nil:
		return l.rejections != nil && ev.outcome.Rejected.SubmitterID != ""
	case ev.reset != nil:
		return l.resets != nil
	}
	return false
}

// Broadcaster turns engine commits into notifications.
//
// The engine enqueues under its lock through an unbounded FIFO. The dispatcher
// fans each event out to per-sink lanes, so every sink sees events in commit
// order and a stuck sink never holds back the others.
type Broadcaster struct {
	mu      sync.RWMutex
	closed  bool
	running bool
	queue   *chanx.UnboundedChan[event]
	lanes   []*lane

	// deliverCtx is set by Run and outlives its cancellation
	deliverCtx context.Context
	workers    sync.WaitGroup

	deliveryTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Broadcaster
type Option func(*Broadcaster)

// WithSink adds a receiver of every notification kind sink implements.
// Its updates, rejections and resets share one lane and keep their relative order.
func WithSink(sink any) Option {
	return func(b *Broadcaster) {
		l := &lane{}
		l.updates, _ = sink.(UpdateBroadcaster)
		l.rejections, _ = sink.(RejectionNotifier)
		l.resets, _ = sink.(ResetBroadcaster)
		b.addLane(l)
	}
}

// WithUpdateBroadcaster adds a receiver of accepted bids
func WithUpdateBroadcaster(u UpdateBroadcaster) Option {
	return func(b *Broadcaster) {
		b.addLane(&lane{updates: u})
	}
}

// WithRejectionNotifier adds a receiver of rejections
func WithRejectionNotifier(n RejectionNotifier) Option {
	return func(b *Broadcaster) {
		b.addLane(&lane{rejections: n})
	}
}

// WithResetBroadcaster adds a receiver of resets
func WithResetBroadcaster(r ResetBroadcaster) Option {
	return func(b *Broadcaster) {
		b.addLane(&lane{resets: r})
	}
}

// WithDeliveryTimeout bounds each individual delivery
func WithDeliveryTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.deliveryTimeout = d
		}
	}
}

// NewBroadcaster creates a broadcaster. Call Run to start delivering.
func NewBroadcaster(logger *slog.Logger, opts ...Option) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broadcaster{
		// The queue is closed through its In channel only, so that Close drains it
		queue:           chanx.NewUnboundedChan[event](context.Background(), defaultQueueCapacity),
		deliveryTimeout: defaultDeliveryTimeout,
		logger:          logger.With(slog.String("component", "broadcaster")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach adds sinks after construction, for wiring that has to create the
// engine before its observers. Sinks attached while Run is active only see
// events dispatched after the call.
func (b *Broadcaster) Attach(opts ...Option) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, opt := range opts {
		opt(b)
	}
}

// addLane is called with b.mu held, or before b is shared
func (b *Broadcaster) addLane(l *lane) {
	if l.updates == nil && l.rejections == nil && l.resets == nil {
		return
	}
	b.lanes = append(b.lanes, l)
	if b.running {
		b.startLane(l)
	}
}

func (b *Broadcaster) startLane(l *lane) {
	queue := chanx.NewUnboundedChan[event](context.Background(), defaultLaneCapacity)
	l.queue = queue
	ctx := b.deliverCtx

	b.workers.Add(1)
	go func() {
		defer b.workers.Done()
		for ev := range queue.Out {
			b.deliver(ctx, l, ev)
		}
	}()
}

// PublishOutcome implements auction.Publisher
func (b *Broadcaster) PublishOutcome(outcome auction.BidOutcome) {
	b.enqueue(event{outcome: &outcome})
}

// PublishReset implements auction.Publisher
func (b *Broadcaster) PublishReset(snapshot auction.Snapshot) {
	b.enqueue(event{reset: &snapshot})
}

func (b *Broadcaster) enqueue(ev event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("Dropping event published after close")
		return
	}
	b.queue.In <- ev
}

// Pending returns the number of events not yet handed to every sink
func (b *Broadcaster) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.queue.Len()
	for _, l := range b.lanes {
		if l.queue != nil {
			n += l.queue.Len()
		}
	}
	return n
}

// Run dispatches events until the broadcaster is closed and every lane is drained.
// Cancelling ctx closes the broadcaster; events already queued are still delivered.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.logger.Info("Broadcaster started")
	defer b.logger.Info("Broadcaster stopped")

	b.mu.Lock()
	// Deliveries outlive ctx so the drain after shutdown still reaches sinks
	b.deliverCtx = context.WithoutCancel(ctx)
	b.running = true
	for _, l := range b.lanes {
		b.startLane(l)
	}
	b.mu.Unlock()
	defer b.stopLanes()

	for {
		select {
		case ev, ok := <-b.queue.Out:
			if !ok {
				return nil
			}
			b.fanOut(ev)
		case <-ctx.Done():
			b.Close()
			for ev := range b.queue.Out {
				b.fanOut(ev)
			}
			return nil
		}
	}
}

// Close stops accepting events. Run returns once the queue is drained.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.queue.In)
}

func (b *Broadcaster) fanOut(ev event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, l := range b.lanes {
		if l.accepts(ev) {
			l.queue.In <- ev
		}
	}
}

// stopLanes closes every lane and waits until each has delivered its backlog
func (b *Broadcaster) stopLanes() {
	b.mu.Lock()
	b.running = false
	for _, l := range b.lanes {
		if l.queue != nil {
			close(l.queue.In)
			l.queue = nil
		}
	}
	b.mu.Unlock()

	b.workers.Wait()
}

func (b *Broadcaster) deliver(ctx context.Context, l *lane, ev event) {
	ctx, cancel := context.WithTimeout(ctx, b.deliveryTimeout)
	defer cancel()

	switch {
	case ev.outcome != nil && ev.outcome.Accepted != nil:
		update := NewBidUpdate(*ev.outcome.Accepted)
		if err := l.updates.BroadcastUpdate(ctx, update); err != nil {
			b.logger.Error("Failed to broadcast bid update",
				"item_id", update.ItemID,
				"seq", update.Seq,
				"error", err,
			)
		}

	case ev.outcome != nil && ev.outcome.Rejected != nil:
		rejected := ev.outcome.Rejected
		if err := l.rejections.NotifyRejection(ctx, rejected.SubmitterID, NewBidRejection(*rejected)); err != nil {
			b.logger.Warn("Failed to notify rejection",
				"item_id", rejected.ItemID,
				"submitter_id", rejected.SubmitterID,
				"error", err,
			)
		}

	case ev.reset != nil:
		if err := l.resets.BroadcastReset(ctx, NewAuctionsReset(*ev.reset)); err != nil {
			b.logger.Error("Failed to broadcast reset", "error", err)
		}
	}
}
