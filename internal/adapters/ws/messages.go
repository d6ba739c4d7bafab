package ws

import (
	"encoding/json"
)

// Message types of the observer protocol
const (
	MessageConnected     = "CONNECTED"
	MessageBidPlaced     = "BID_PLACED"
	MessageUpdateBid     = "UPDATE_BID"
	MessageBidRejected   = "BID_REJECTED"
	MessageAuctionsReset = "AUCTIONS_RESET"
	MessageError         = "ERROR"
)

// Envelope wraps every frame in both directions
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// outbound is the server side envelope, encoded once per broadcast
type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Connected is the first frame on every connection
type Connected struct {
	ClientID   string `json:"clientId"`
	ServerTime int64  `json:"serverTime"`
}

// PlaceBid is the client's bid attempt
type PlaceBid struct {
	ItemID    string  `json:"itemId"`
	BidAmount int64   `json:"bidAmount"`
	UserName  *string `json:"userName,omitempty"`
}

// ErrorPayload reports a frame the server could not act on
type ErrorPayload struct {
	Error string `json:"error"`
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(outbound{Type: msgType, Data: data})
}
