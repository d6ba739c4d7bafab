package auction

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateBidAmount tests the bid amount validation logic
func TestValidateBidAmount(t *testing.T) {
	tests := []struct {
		name           string
		bidAmount      int64
		currentHighest int64
		wantErr        error
	}{
		{
			name:           "valid bid - higher than current highest",
			bidAmount:      1000,
			currentHighest: 500,
			wantErr:        nil,
		},
		{
			name:           "invalid bid - equal to current highest",
			bidAmount:      500,
			currentHighest: 500,
			wantErr:        ErrBidTooLow,
		},
		{
			name:           "invalid bid - lower than current highest",
			bidAmount:      300,
			currentHighest: 500,
			wantErr:        ErrBidTooLow,
		},
		{
			name:           "valid bid - one minor unit above current highest",
			bidAmount:      501,
			currentHighest: 500,
			wantErr:        nil,
		},
		{
			name:           "invalid bid - zero",
			bidAmount:      0,
			currentHighest: 0,
			wantErr:        ErrBidTooLow,
		},
		{
			name:           "invalid bid - negative",
			bidAmount:      -100,
			currentHighest: 0,
			wantErr:        ErrBidTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBidAmount(tt.bidAmount, tt.currentHighest)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestValidateAuctionNotEnded tests the auction end time validation logic
func TestValidateAuctionNotEnded(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		endAt   time.Time
		wantErr error
	}{
		{
			name:    "valid - auction ends in the future",
			endAt:   now.Add(24 * time.Hour),
			wantErr: nil,
		},
		{
			name:    "valid - auction ends exactly now",
			endAt:   now,
			wantErr: nil,
		},
		{
			name:    "invalid - auction ended 1 hour ago",
			endAt:   now.Add(-1 * time.Hour),
			wantErr: ErrAuctionEnded,
		},
		{
			name:    "invalid - auction ended 1 millisecond ago",
			endAt:   now.Add(-1 * time.Millisecond),
			wantErr: ErrAuctionEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAuctionNotEnded(now, tt.endAt)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// recordingPublisher captures everything the engine publishes
type recordingPublisher struct {
	mu       sync.Mutex
	outcomes []BidOutcome
	resets   []Snapshot
	panicOn  string
}

func (p *recordingPublisher) PublishOutcome(o BidOutcome) {
	if p.panicOn != "" && o.ItemID() == p.panicOn {
		panic("publisher exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
}

func (p *recordingPublisher) PublishReset(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, s)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func ptr[T any](v T) *T { return &v }

func newTestEngine(t *testing.T, items ...Item) (*Engine, *recordingPublisher, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	if len(items) == 0 {
		items = []Item{{
			ID:            "1",
			Title:         "Laptop",
			StartingPrice: 100000,
			CurrentBid:    100000,
			EndAt:         clock.Now().Add(time.Hour),
		}}
	}

	engine, err := NewEngine(items,
		WithClock(clock.Now),
		WithPublisher(pub),
		WithResetWindow(5*time.Minute),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return engine, pub, clock
}

func TestEngine_PlaceBid_Accepted(t *testing.T) {
	// Arrange
	engine, pub, _ := newTestEngine(t)
	ctx := context.Background()

	// Act
	outcome, err := engine.PlaceBid(ctx, BidRequest{ItemID: "1", Amount: 100500, SubmitterID: "u1", SubmitterName: ptr("Alice")})

	// Assert
	require.NoError(t, err)
	require.True(t, outcome.IsAccepted())
	assert.Equal(t, "1", outcome.Accepted.ItemID)
	assert.Equal(t, int64(100500), outcome.Accepted.NewBid)
	assert.Equal(t, "u1", outcome.Accepted.HighestBidderID)
	assert.Equal(t, "Alice", *outcome.Accepted.HighestBidderName)
	assert.Equal(t, uint64(1), outcome.Accepted.Seq)

	item, err := engine.GetItem(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(100500), item.CurrentBid)
	assert.Equal(t, "u1", *item.HighestBidderID)
	assert.Equal(t, "Alice", *item.HighestBidderName)

	require.Len(t, pub.outcomes, 1)
	assert.Equal(t, outcome, pub.outcomes[0])
}

func TestEngine_PlaceBid_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		req        BidRequest
		advance    time.Duration
		wantReason RejectReason
		wantBid    int64
		wantMsg    string
	}{
		{
			name:       "equal to current bid",
			req:        BidRequest{ItemID: "1", Amount: 100000, SubmitterID: "u2"},
			wantReason: ReasonBidTooLow,
			wantBid:    100000,
			wantMsg:    "Bid too low: current bid is 1000.00",
		},
		{
			name:       "below current bid",
			req:        BidRequest{ItemID: "1", Amount: 50, SubmitterID: "u2"},
			wantReason: ReasonBidTooLow,
			wantBid:    100000,
		},
		{
			name:       "unknown item",
			req:        BidRequest{ItemID: "999", Amount: 200000, SubmitterID: "u2"},
			wantReason: ReasonItemNotFound,
			wantBid:    0,
			wantMsg:    "Item not found",
		},
		{
			name:       "auction ended",
			req:        BidRequest{ItemID: "1", Amount: 200000, SubmitterID: "u2"},
			advance:    time.Hour + time.Millisecond,
			wantReason: ReasonAuctionEnded,
			wantBid:    100000,
			wantMsg:    "Auction ended",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, pub, clock := newTestEngine(t)
			ctx := context.Background()
			clock.Set(clock.Now().Add(tt.advance))
			before := engine.ListItems(ctx).Items

			outcome, err := engine.PlaceBid(ctx, tt.req)

			require.NoError(t, err)
			require.False(t, outcome.IsAccepted())
			assert.Equal(t, tt.wantReason, outcome.Rejected.Reason)
			assert.Equal(t, tt.wantBid, outcome.Rejected.CurrentBid)
			assert.Equal(t, "u2", outcome.Rejected.SubmitterID)
			assert.Equal(t, tt.req.ItemID, outcome.Rejected.ItemID)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, outcome.Rejected.Message)
			}

			// Rejections never touch the store
			assert.Equal(t, before, engine.ListItems(ctx).Items)
			require.Len(t, pub.outcomes, 1)
			assert.False(t, pub.outcomes[0].IsAccepted())
		})
	}
}

func TestEngine_PlaceBid_OpenAtExactEndTime(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	clock.Set(clock.Now().Add(time.Hour))

	outcome, err := engine.PlaceBid(context.Background(), BidRequest{ItemID: "1", Amount: 100001, SubmitterID: "u1"})

	require.NoError(t, err)
	assert.True(t, outcome.IsAccepted())
}

func TestEngine_PlaceBid_SequentialBids(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Alice outbids the start, Bob outbids Alice, Alice fails to match Bob
	first, err := engine.PlaceBid(ctx, BidRequest{ItemID: "1", Amount: 100500, SubmitterID: "alice"})
	require.NoError(t, err)
	require.True(t, first.IsAccepted())

	second, err := engine.PlaceBid(ctx, BidRequest{ItemID: "1", Amount: 101000, SubmitterID: "bob"})
	require.NoError(t, err)
	require.True(t, second.IsAccepted())
	assert.Equal(t, first.Accepted.Seq+1, second.Accepted.Seq)

	third, err := engine.PlaceBid(ctx, BidRequest{ItemID: "1", Amount: 101000, SubmitterID: "alice"})
	require.NoError(t, err)
	require.False(t, third.IsAccepted())
	assert.Equal(t, ReasonBidTooLow, third.Rejected.Reason)
	assert.Equal(t, int64(101000), third.Rejected.CurrentBid)

	item, err := engine.GetItem(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "bob", *item.HighestBidderID)
	assert.Nil(t, item.HighestBidderName)
}

func TestEngine_PlaceBid_NameIsNotAliased(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	name := "Alice"

	_, err := engine.PlaceBid(ctx, BidRequest{ItemID: "1", Amount: 100500, SubmitterID: "u1", SubmitterName: &name})
	require.NoError(t, err)
	name = "Mallory"

	item, err := engine.GetItem(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", *item.HighestBidderName)
}

func TestEngine_ResetAll(t *testing.T) {
	engine, pub, clock := newTestEngine(t,
		Item{ID: "a", StartingPrice: 1000, CurrentBid: 1000, EndAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		Item{ID: "b", StartingPrice: 2000, CurrentBid: 2000, EndAt: time.Date(2025, 6, 1, 10, 1, 0, 0, time.UTC)},
	)
	ctx := context.Background()

	_, err := engine.PlaceBid(ctx, BidRequest{ItemID: "b", Amount: 2500, SubmitterID: "u1", SubmitterName: ptr("Alice")})
	require.NoError(t, err)
	before := engine.ListItems(ctx).Items

	items, err := engine.ResetAll(ctx)
	require.NoError(t, err)

	require.Len(t, items, 2)
	wantEnd := clock.Now().Add(5 * time.Minute)
	for i, item := range items {
		assert.Equal(t, item.StartingPrice, item.CurrentBid)
		assert.Nil(t, item.HighestBidderID)
		assert.Nil(t, item.HighestBidderName)
		assert.Equal(t, wantEnd, item.EndAt)
		assert.True(t, item.EndAt.After(before[i].EndAt))
	}
	assert.Equal(t, items, engine.ListItems(ctx).Items)

	require.Len(t, pub.resets, 1)
	assert.Equal(t, clock.Now(), pub.resets[0].ServerTime)
	assert.Equal(t, items, pub.resets[0].Items)

	// Reset reopens an ended auction
	outcome, err := engine.PlaceBid(ctx, BidRequest{ItemID: "a", Amount: 1001, SubmitterID: "u2"})
	require.NoError(t, err)
	assert.True(t, outcome.IsAccepted())
}

func TestEngine_ResetAll_Twice(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.ResetAll(ctx)
	require.NoError(t, err)
	second, err := engine.ResetAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_ResetAll_EmptyStore(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	items, err := engine.ResetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEngine_ListItems(t *testing.T) {
	engine, _, clock := newTestEngine(t, DefaultSeed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))...)

	snapshot := engine.ListItems(context.Background())

	assert.Equal(t, clock.Now(), snapshot.ServerTime)
	require.Len(t, snapshot.Items, 4)
	assert.Equal(t, "1", snapshot.Items[0].ID)
	assert.Equal(t, "4", snapshot.Items[3].ID)
}

func TestEngine_GetItem_NotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.GetItem(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestNewEngine_InvalidSeed(t *testing.T) {
	tests := []struct {
		name    string
		seed    []Item
		wantErr error
	}{
		{
			name:    "duplicate id",
			seed:    []Item{{ID: "1"}, {ID: "1"}},
			wantErr: ErrDuplicateItem,
		},
		{
			name:    "bid below starting price",
			seed:    []Item{{ID: "1", StartingPrice: 100, CurrentBid: 50}},
			wantErr: ErrCorruptedItem,
		},
		{
			name:    "bidder name without bidder",
			seed:    []Item{{ID: "1", HighestBidderName: ptr("ghost")}},
			wantErr: ErrCorruptedItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.seed)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEngine_PlaceBid_CorruptedItem(t *testing.T) {
	engine, pub, _ := newTestEngine(t)
	ctx := context.Background()

	// Corrupt the record behind the engine's back
	engine.store.items["1"] = Item{ID: "1", StartingPrice: 100000, CurrentBid: 10, EndAt: time.Now().Add(time.Hour)}

	_, err := engine.PlaceBid(ctx, BidRequest{ItemID: "1", Amount: 200000, SubmitterID: "u1"})
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, ErrCorruptedItem)
	assert.Empty(t, pub.outcomes)

	// Store is unchanged and the lock was released
	assert.Equal(t, int64(10), engine.store.items["1"].CurrentBid)
	_, err = engine.ResetAll(ctx)
	require.NoError(t, err)

	outcome, err := engine.PlaceBid(ctx, BidRequest{ItemID: "1", Amount: 200000, SubmitterID: "u1"})
	require.NoError(t, err)
	assert.True(t, outcome.IsAccepted())
}

func TestEngine_PlaceBid_PanicReleasesLock(t *testing.T) {
	engine, pub, _ := newTestEngine(t,
		Item{ID: "bad", StartingPrice: 10, CurrentBid: 10, EndAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		Item{ID: "good", StartingPrice: 10, CurrentBid: 10, EndAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
	)
	pub.panicOn = "bad"
	ctx := context.Background()

	_, err := engine.PlaceBid(ctx, BidRequest{ItemID: "bad", Amount: 20, SubmitterID: "u1"})
	require.ErrorIs(t, err, ErrInternal)

	// The aborted bid left no trace
	bad, err := engine.GetItem(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, int64(10), bad.CurrentBid)
	assert.Nil(t, bad.HighestBidderID)

	done := make(chan BidOutcome, 1)
	go func() {
		outcome, _ := engine.PlaceBid(ctx, BidRequest{ItemID: "good", Amount: 20, SubmitterID: "u1"})
		done <- outcome
	}()

	select {
	case outcome := <-done:
		require.True(t, outcome.IsAccepted())
		assert.Equal(t, uint64(1), outcome.Accepted.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("engine lock was not released after a panic")
	}
}
