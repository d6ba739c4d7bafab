package auction

import (
	"time"
)

// Item represents an auction item
type Item struct {
	ID                string
	Title             string
	ImageURL          string
	StartingPrice     int64 // in minor currency units
	CurrentBid        int64
	HighestBidderID   *string
	HighestBidderName *string
	EndAt             time.Time
}

// HasEnded reports whether the auction is closed at the given instant.
// An auction is still open at exactly EndAt.
func (i Item) HasEnded(now time.Time) bool {
	return now.After(i.EndAt)
}

// HasBids reports whether a bid has been accepted since the last reset
func (i Item) HasBids() bool {
	return i.HighestBidderID != nil
}

// clone returns a copy that shares no pointers with the receiver
func (i Item) clone() Item {
	out := i
	if i.HighestBidderID != nil {
		id := *i.HighestBidderID
		out.HighestBidderID = &id
	}
	if i.HighestBidderName != nil {
		name := *i.HighestBidderName
		out.HighestBidderName = &name
	}
	return out
}

// BidRequest is a single bid attempt. It only lives for one arbitration call.
type BidRequest struct {
	ItemID        string
	Amount        int64
	SubmitterID   string
	SubmitterName *string
}

// RejectReason is the machine-readable code for a rejected bid
type RejectReason string

const (
	ReasonItemNotFound RejectReason = "ITEM_NOT_FOUND"
	ReasonAuctionEnded RejectReason = "AUCTION_ENDED"
	ReasonBidTooLow    RejectReason = "BID_TOO_LOW"
)

// String returns the string representation of the reason
func (r RejectReason) String() string {
	return string(r)
}

// IsValid checks if the reason is one of the known codes
func (r RejectReason) IsValid() bool {
	switch r {
	case ReasonItemNotFound, ReasonAuctionEnded, ReasonBidTooLow:
		return true
	default:
		return false
	}
}

// Err returns the sentinel error matching the reason
func (r RejectReason) Err() error {
	switch r {
	case ReasonItemNotFound:
		return ErrItemNotFound
	case ReasonAuctionEnded:
		return ErrAuctionEnded
	case ReasonBidTooLow:
		return ErrBidTooLow
	default:
		return nil
	}
}

// Accepted describes a committed bid
type Accepted struct {
	ItemID            string
	NewBid            int64
	HighestBidderID   string
	HighestBidderName *string
	// Seq is the commit sequence number. It increases by one on every accepted bid.
	Seq uint64
}

// Rejected describes a bid that left the store untouched
type Rejected struct {
	ItemID      string
	SubmitterID string
	Reason      RejectReason
	// CurrentBid is the item's bid at arbitration time, zero when the item does not exist
	CurrentBid int64
	Message    string
}

// BidOutcome is exactly one of Accepted or Rejected
type BidOutcome struct {
	Accepted *Accepted
	Rejected *Rejected
}

// IsAccepted reports whether the bid was committed
func (o BidOutcome) IsAccepted() bool {
	return o.Accepted != nil
}

// ItemID returns the item the outcome refers to
func (o BidOutcome) ItemID() string {
	if o.Accepted != nil {
		return o.Accepted.ItemID
	}
	if o.Rejected != nil {
		return o.Rejected.ItemID
	}
	return ""
}

// Err returns the sentinel error of a rejection, nil for an accepted bid
func (o BidOutcome) Err() error {
	if o.Rejected == nil {
		return nil
	}
	return o.Rejected.Reason.Err()
}

// Snapshot is a consistent read of every item together with the server clock
type Snapshot struct {
	ServerTime time.Time
	Items      []Item
}

// EventType represents the type of domain event
type EventType string

const (
	EventTypeBidPlaced     EventType = "bid.placed"
	EventTypeBidRejected   EventType = "bid.rejected"
	EventTypeAuctionsReset EventType = "auction.reset"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeBidPlaced, EventTypeBidRejected, EventTypeAuctionsReset:
		return true
	default:
		return false
	}
}
