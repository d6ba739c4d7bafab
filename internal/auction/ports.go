package auction

import (
	"time"
)

// Publisher receives every committed state change in commit order.
// The engine calls it while holding its lock, so implementations must
// hand the change off without blocking on I/O.
type Publisher interface {
	// PublishOutcome is called once per arbitrated bid, accepted or rejected
	PublishOutcome(outcome BidOutcome)

	// PublishReset is called after every item has been reinitialized
	PublishReset(snapshot Snapshot)
}

// Clock returns the current time. All expiry checks go through it.
type Clock func() time.Time

type nopPublisher struct{}

func (nopPublisher) PublishOutcome(BidOutcome) {}
func (nopPublisher) PublishReset(Snapshot)     {}
