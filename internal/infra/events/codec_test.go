package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/notify"
)

func TestEncodeBidUpdate(t *testing.T) {
	// Arrange
	name := "Alice"
	occurredAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	update := notify.BidUpdate{
		ItemID:            "1",
		NewBid:            100500,
		HighestBidderID:   "client-1",
		HighestBidderName: &name,
		Seq:               3,
	}

	// Act
	body, err := EncodeBidUpdate(update, occurredAt)
	require.NoError(t, err)
	fields, err := Decode(body)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "bid.placed", fields["event_type"])
	assert.Equal(t, "2025-06-01T10:00:00Z", fields["occurred_at"])
	assert.Equal(t, "1", fields["item_id"])
	assert.Equal(t, float64(100500), fields["new_bid"])
	assert.Equal(t, "client-1", fields["highest_bidder_id"])
	assert.Equal(t, "Alice", fields["highest_bidder_name"])
	assert.Equal(t, float64(3), fields["seq"])
	assert.NotEmpty(t, fields["event_id"])
}

func TestEncodeBidUpdate_AnonymousBidder(t *testing.T) {
	body, err := EncodeBidUpdate(notify.BidUpdate{ItemID: "1", NewBid: 10, HighestBidderID: "c"}, time.Now())
	require.NoError(t, err)

	fields, err := Decode(body)
	require.NoError(t, err)
	assert.Contains(t, fields, "highest_bidder_name")
	assert.Nil(t, fields["highest_bidder_name"])
}

func TestEncodeAuctionsReset(t *testing.T) {
	reset := notify.AuctionsReset{
		ServerTime: 1_700_000_000_000,
		Items: []notify.ItemView{
			{ID: "1", Title: "MacBook Pro", StartingPrice: 100000, CurrentBid: 100000, AuctionEndTime: 1_700_000_300_000},
			{ID: "2", Title: "iPhone 14 Pro Max", StartingPrice: 75000, CurrentBid: 75000, AuctionEndTime: 1_700_000_300_000},
		},
	}

	body, err := EncodeAuctionsReset(reset, time.Now())
	require.NoError(t, err)

	fields, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "auction.reset", fields["event_type"])
	assert.Equal(t, float64(1_700_000_000_000), fields["server_time"])

	items, ok := fields["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "MacBook Pro", first["title"])
	assert.Equal(t, float64(100000), first["current_bid"])
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}

type fakeResetter struct {
	calls int
	err   error
}

func (f *fakeResetter) ResetAll(context.Context) ([]auction.Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []auction.Item{{ID: "1"}}, nil
}

func TestAdminConsumer_Apply(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name      string
		command   string
		resetErr  error
		wantCalls int
		wantErr   error
	}{
		{name: "reset", command: CommandReset, wantCalls: 1},
		{name: "reset failure", command: CommandReset, resetErr: auction.ErrInternal, wantCalls: 1, wantErr: auction.ErrInternal},
		{name: "unknown command", command: "auction.delete", wantErr: errUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetter := &fakeResetter{err: tt.resetErr}
			consumer := NewAdminConsumer(nil, "auction.admin", resetter, logger)

			err := consumer.apply(context.Background(), tt.command)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, resetter.calls)
		})
	}
}
