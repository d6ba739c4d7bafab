package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/notify"
)

// ContentTypeProtobuf is set on every message body produced here
const ContentTypeProtobuf = "application/x-protobuf"

// CommandReset is the admin command that reinitializes every auction
const CommandReset = "auction.reset"

// EncodeBidUpdate encodes an accepted bid as a protobuf Struct
func EncodeBidUpdate(update notify.BidUpdate, occurredAt time.Time) ([]byte, error) {
	var name any
	if update.HighestBidderName != nil {
		name = *update.HighestBidderName
	}

	return encode(map[string]any{
		"event_id":            uuid.NewString(),
		"event_type":          auction.EventTypeBidPlaced.String(),
		"occurred_at":         occurredAt.UTC().Format(time.RFC3339Nano),
		"item_id":             update.ItemID,
		"new_bid":             update.NewBid,
		"highest_bidder_id":   update.HighestBidderID,
		"highest_bidder_name": name,
		"seq":                 update.Seq,
	})
}

// EncodeAuctionsReset encodes the post-reset catalogue as a protobuf Struct
func EncodeAuctionsReset(reset notify.AuctionsReset, occurredAt time.Time) ([]byte, error) {
	items := make([]any, 0, len(reset.Items))
	for _, item := range reset.Items {
		items = append(items, map[string]any{
			"id":               item.ID,
			"title":            item.Title,
			"starting_price":   item.StartingPrice,
			"current_bid":      item.CurrentBid,
			"auction_end_time": item.AuctionEndTime,
		})
	}

	return encode(map[string]any{
		"event_id":    uuid.NewString(),
		"event_type":  auction.EventTypeAuctionsReset.String(),
		"occurred_at": occurredAt.UTC().Format(time.RFC3339Nano),
		"server_time": reset.ServerTime,
		"items":       items,
	})
}

// EncodeCommand encodes an admin command
func EncodeCommand(command, requestedBy string) ([]byte, error) {
	return encode(map[string]any{
		"command":      command,
		"requested_by": requestedBy,
	})
}

// Decode turns a body produced by this package back into plain Go values.
// Numbers come back as float64.
func Decode(body []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return s.AsMap(), nil
}

func encode(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build event: %w", err)
	}
	body, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return body, nil
}
