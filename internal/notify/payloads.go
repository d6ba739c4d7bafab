package notify

import (
	"time"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/samber/lo"
)

// BidUpdate is broadcast after every accepted bid
type BidUpdate struct {
	ItemID            string  `json:"itemId"`
	NewBid            int64   `json:"newBid"`
	HighestBidderID   string  `json:"highestBidderId"`
	HighestBidderName *string `json:"highestBidderName"`
	Seq               uint64  `json:"seq"`
}

// BidRejection is sent to the submitter of a rejected bid
type BidRejection struct {
	ItemID     string `json:"itemId"`
	Reason     string `json:"reason"`
	CurrentBid int64  `json:"currentBid"`
	Error      string `json:"error"`
}

// ItemView is the wire form of an auction item
type ItemView struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	ImageURL          string  `json:"imageUrl"`
	StartingPrice     int64   `json:"startingPrice"`
	CurrentBid        int64   `json:"currentBid"`
	HighestBidderID   *string `json:"highestBidderId"`
	HighestBidderName *string `json:"highestBidderName"`
	AuctionEndTime    int64   `json:"auctionEndTime"` // epoch ms
}

// AuctionsReset is broadcast after every reset
type AuctionsReset struct {
	ServerTime int64      `json:"serverTime"` // epoch ms
	Items      []ItemView `json:"items"`
}

// NewBidUpdate converts an accepted outcome
func NewBidUpdate(a auction.Accepted) BidUpdate {
	return BidUpdate{
		ItemID:            a.ItemID,
		NewBid:            a.NewBid,
		HighestBidderID:   a.HighestBidderID,
		HighestBidderName: a.HighestBidderName,
		Seq:               a.Seq,
	}
}

// NewBidRejection converts a rejected outcome
func NewBidRejection(r auction.Rejected) BidRejection {
	return BidRejection{
		ItemID:     r.ItemID,
		Reason:     r.Reason.String(),
		CurrentBid: r.CurrentBid,
		Error:      r.Message,
	}
}

// NewItemView converts a store record
func NewItemView(item auction.Item) ItemView {
	return ItemView{
		ID:                item.ID,
		Title:             item.Title,
		ImageURL:          item.ImageURL,
		StartingPrice:     item.StartingPrice,
		CurrentBid:        item.CurrentBid,
		HighestBidderID:   item.HighestBidderID,
		HighestBidderName: item.HighestBidderName,
		AuctionEndTime:    item.EndAt.UnixMilli(),
	}
}

// NewItemViews converts a list of store records, never returning nil
func NewItemViews(items []auction.Item) []ItemView {
	if len(items) == 0 {
		return []ItemView{}
	}
	return lo.Map(items, func(item auction.Item, _ int) ItemView {
		return NewItemView(item)
	})
}

// NewAuctionsReset converts a post-reset snapshot
func NewAuctionsReset(s auction.Snapshot) AuctionsReset {
	return AuctionsReset{
		ServerTime: s.ServerTime.UnixMilli(),
		Items:      NewItemViews(s.Items),
	}
}

// FromEpochMillis is the inverse of the epoch ms fields above
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
