package notify

import (
	"context"
)

// UpdateBroadcaster delivers an accepted bid to every observer
type UpdateBroadcaster interface {
	BroadcastUpdate(ctx context.Context, update BidUpdate) error
}

// RejectionNotifier delivers a rejection to the submitter only
type RejectionNotifier interface {
	NotifyRejection(ctx context.Context, submitterID string, rejection BidRejection) error
}

// ResetBroadcaster delivers the post-reset catalogue to every observer
type ResetBroadcaster interface {
	BroadcastReset(ctx context.Context, reset AuctionsReset) error
}
