package api

import (
	"github.com/floroz/gavel-live/internal/notify"
)

// Procedure paths of the auction service
const (
	ServiceName = "gavel.live.v1.AuctionService"

	PlaceBidProcedure   = "/" + ServiceName + "/PlaceBid"
	ListItemsProcedure  = "/" + ServiceName + "/ListItems"
	GetItemProcedure    = "/" + ServiceName + "/GetItem"
	ResetAllProcedure   = "/" + ServiceName + "/ResetAll"
	AdminLoginProcedure = "/" + ServiceName + "/AdminLogin"
)

// RejectReasonHeader carries the reason code on a rejected PlaceBid
const RejectReasonHeader = "X-Reject-Reason"

type PlaceBidRequest struct {
	ItemID    string `json:"itemId"`
	BidAmount int64  `json:"bidAmount"`
	// SubmitterID routes the rejection notice to a websocket observer.
	// Callers that are not connected leave it empty.
	SubmitterID string  `json:"submitterId,omitempty"`
	UserName    *string `json:"userName,omitempty"`
}

type PlaceBidResponse struct {
	Update notify.BidUpdate `json:"update"`
}

type ListItemsRequest struct{}

type ListItemsResponse struct {
	ServerTime int64             `json:"serverTime"`
	Items      []notify.ItemView `json:"items"`
}

type GetItemRequest struct {
	ID string `json:"id"`
}

type GetItemResponse struct {
	Item notify.ItemView `json:"item"`
}

type ResetAllRequest struct{}

type ResetAllResponse struct {
	ServerTime int64             `json:"serverTime"`
	Items      []notify.ItemView `json:"items"`
	ResetBy    string            `json:"resetBy"`
}

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // epoch ms
}
