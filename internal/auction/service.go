package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultResetWindow is how long auctions stay open after ResetAll
const DefaultResetWindow = 5 * time.Minute

// Validation errors
var (
	ErrItemNotFound = fmt.Errorf("item not found")
	ErrBidTooLow    = fmt.Errorf("bid amount must be higher than current bid")
	ErrAuctionEnded = fmt.Errorf("auction has ended")
)

// Internal errors. These abort a single operation and never leave the lock held.
var (
	ErrInternal      = fmt.Errorf("internal arbitration failure")
	ErrCorruptedItem = fmt.Errorf("item record violates invariants")
)

// validateBidAmount checks if the bid amount is higher than the current bid
func validateBidAmount(bidAmount, currentBid int64) error {
	if bidAmount <= currentBid {
		return ErrBidTooLow
	}
	return nil
}

// validateAuctionNotEnded checks if the auction has not ended at now
func validateAuctionNotEnded(now, endAt time.Time) error {
	if now.After(endAt) {
		return ErrAuctionEnded
	}
	return nil
}

// checkIntegrity rejects records that no sequence of commits could have produced
func checkIntegrity(item Item) error {
	if item.CurrentBid < item.StartingPrice {
		return fmt.Errorf("%w: item %s current bid %d below starting price %d",
			ErrCorruptedItem, item.ID, item.CurrentBid, item.StartingPrice)
	}
	if item.HighestBidderID == nil && item.HighestBidderName != nil {
		return fmt.Errorf("%w: item %s has a bidder name without a bidder id", ErrCorruptedItem, item.ID)
	}
	return nil
}

// Engine arbitrates bids and resets against the item store.
//
// A single mutex covers PlaceBid, ResetAll and ListItems, so mutations are
// totally ordered and readers never see a half-applied bid.
type Engine struct {
	mu          sync.Mutex
	store       *Store
	seq         uint64
	publisher   Publisher
	now         Clock
	resetWindow time.Duration
	logger      *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithPublisher sets the receiver of committed outcomes
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithClock overrides time.Now
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.now = c
		}
	}
}

// WithResetWindow sets how far ResetAll pushes the end time
func WithResetWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.resetWindow = d
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine that exclusively owns a store loaded with seed
func NewEngine(seed []Item, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:       NewStore(),
		publisher:   nopPublisher{},
		now:         time.Now,
		resetWindow: DefaultResetWindow,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, item := range seed {
		if err := checkIntegrity(item); err != nil {
			return nil, fmt.Errorf("invalid seed item: %w", err)
		}
		if err := e.store.Add(item); err != nil {
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
	}

	return e, nil
}

// PlaceBid arbitrates one bid.
//
// Rejections are returned as outcomes, never as errors. A non-nil error means
// the attempt was aborted by an internal failure and the store is unchanged.
func (e *Engine) PlaceBid(ctx context.Context, req BidRequest) (outcome BidOutcome, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, existed := e.store.Get(req.ItemID)
	prevSeq := e.seq
	defer func() {
		if r := recover(); r != nil {
			// Roll back a commit that a panicking publisher made unobservable
			if existed {
				_ = e.store.Replace(prev.ID, prev)
			}
			e.seq = prevSeq
			outcome = BidOutcome{}
			err = fmt.Errorf("%w: panic while arbitrating bid on item %s: %v", ErrInternal, req.ItemID, r)
		}
		if err != nil {
			e.logger.ErrorContext(ctx, "Bid arbitration aborted", "item_id", req.ItemID, "error", err)
		}
	}()

	outcome, err = e.arbitrate(req)
	if err != nil {
		return BidOutcome{}, err
	}

	if outcome.IsAccepted() {
		e.logger.InfoContext(ctx, "Bid accepted",
			"item_id", outcome.Accepted.ItemID,
			"amount", outcome.Accepted.NewBid,
			"bidder_id", outcome.Accepted.HighestBidderID,
			"seq", outcome.Accepted.Seq,
		)
	} else {
		e.logger.DebugContext(ctx, "Bid rejected",
			"item_id", outcome.Rejected.ItemID,
			"amount", req.Amount,
			"reason", outcome.Rejected.Reason,
		)
	}

	// Published under the lock so delivery order matches commit order
	e.publisher.PublishOutcome(outcome)
	return outcome, nil
}

func (e *Engine) arbitrate(req BidRequest) (BidOutcome, error) {
	item, ok := e.store.Get(req.ItemID)
	if !ok {
		return reject(req, ReasonItemNotFound, 0), nil
	}

	if err := checkIntegrity(item); err != nil {
		return BidOutcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if err := validateAuctionNotEnded(e.now(), item.EndAt); err != nil {
		return reject(req, ReasonAuctionEnded, item.CurrentBid), nil
	}

	if err := validateBidAmount(req.Amount, item.CurrentBid); err != nil {
		return reject(req, ReasonBidTooLow, item.CurrentBid), nil
	}

	bidderID := req.SubmitterID
	item.CurrentBid = req.Amount
	item.HighestBidderID = &bidderID
	item.HighestBidderName = nil
	if req.SubmitterName != nil {
		name := *req.SubmitterName
		item.HighestBidderName = &name
	}

	if err := e.store.Replace(item.ID, item); err != nil {
		return BidOutcome{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	e.seq++

	return BidOutcome{
		Accepted: &Accepted{
			ItemID:            item.ID,
			NewBid:            item.CurrentBid,
			HighestBidderID:   bidderID,
			HighestBidderName: item.HighestBidderName,
			Seq:               e.seq,
		},
	}, nil
}

func reject(req BidRequest, reason RejectReason, currentBid int64) BidOutcome {
	var message string
	switch reason {
	case ReasonBidTooLow:
		message = fmt.Sprintf("Bid too low: current bid is %s", FormatAmount(currentBid))
	case ReasonAuctionEnded:
		message = "Auction ended"
	default:
		message = "Item not found"
	}

	return BidOutcome{
		Rejected: &Rejected{
			ItemID:      req.ItemID,
			SubmitterID: req.SubmitterID,
			Reason:      reason,
			CurrentBid:  currentBid,
			Message:     message,
		},
	}
}

// ResetAll reinitializes every item: bid back to the starting price, bidder
// cleared, and a new end time of now plus the reset window.
func (e *Engine) ResetAll(ctx context.Context) (items []Item, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("%w: panic while resetting auctions: %v", ErrInternal, r)
		}
		if err != nil {
			e.logger.ErrorContext(ctx, "Auction reset aborted", "error", err)
		}
	}()

	now := e.now()
	endAt := now.Add(e.resetWindow)

	for _, item := range e.store.All() {
		item.CurrentBid = item.StartingPrice
		item.HighestBidderID = nil
		item.HighestBidderName = nil
		item.EndAt = endAt

		if replaceErr := e.store.Replace(item.ID, item); replaceErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrInternal, replaceErr)
		}
	}

	items = e.store.All()
	e.logger.InfoContext(ctx, "Auctions reset", "count", len(items), "ends_at", endAt)

	e.publisher.PublishReset(Snapshot{ServerTime: now, Items: e.store.All()})
	return items, nil
}

// ListItems returns a consistent snapshot of all items and the server time
func (e *Engine) ListItems(_ context.Context) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		ServerTime: e.now(),
		Items:      e.store.All(),
	}
}

// GetItem returns a single item
func (e *Engine) GetItem(_ context.Context, itemID string) (Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, ok := e.store.Get(itemID)
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}
