package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddAndGet(t *testing.T) {
	store := NewStore()
	now := time.Now()

	for _, item := range DefaultSeed(now) {
		require.NoError(t, store.Add(item))
	}
	assert.Equal(t, 4, store.Len())

	item, ok := store.Get("2")
	require.True(t, ok)
	assert.Equal(t, "iPhone 14 Pro Max", item.Title)
	assert.Equal(t, int64(75000), item.CurrentBid)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStore_AddDuplicate(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Add(Item{ID: "1"}))

	err := store.Add(Item{ID: "1"})
	assert.ErrorIs(t, err, ErrDuplicateItem)
	assert.Equal(t, 1, store.Len())
}

func TestStore_AllKeepsInsertionOrder(t *testing.T) {
	store := NewStore()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Add(Item{ID: id}))
	}

	ids := []string{}
	for _, item := range store.All() {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	bidder := "u1"
	require.NoError(t, store.Add(Item{ID: "1", CurrentBid: 10, HighestBidderID: &bidder}))

	item, _ := store.Get("1")
	item.CurrentBid = 999
	*item.HighestBidderID = "intruder"

	stored, _ := store.Get("1")
	assert.Equal(t, int64(10), stored.CurrentBid)
	assert.Equal(t, "u1", *stored.HighestBidderID)
}

func TestStore_Replace(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Add(Item{ID: "1", CurrentBid: 10}))

	// ID in the record is forced to the key
	require.NoError(t, store.Replace("1", Item{ID: "other", CurrentBid: 20}))
	item, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "1", item.ID)
	assert.Equal(t, int64(20), item.CurrentBid)

	err := store.Replace("2", Item{})
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.Equal(t, 1, store.Len())
}

func TestDefaultSeed_EndTimes(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		id    string
		endIn time.Duration
	}{
		{id: "1", endIn: time.Hour},
		{id: "2", endIn: time.Hour},
		{id: "3", endIn: 2 * time.Hour},
		{id: "4", endIn: 3*time.Hour + 30*time.Minute},
	}

	seed := DefaultSeed(now)
	require.Len(t, seed, len(tests))
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.id, seed[i].ID)
			assert.Equal(t, now.Add(tt.endIn), seed[i].EndAt)
			assert.Equal(t, seed[i].StartingPrice, seed[i].CurrentBid)
		})
	}
}
