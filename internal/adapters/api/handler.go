package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/notify"
	"github.com/floroz/gavel-live/pkg/auth"
)

const defaultAdminSubject = "admin"

// AuctionService is the engine surface exposed over RPC
type AuctionService interface {
	PlaceBid(ctx context.Context, req auction.BidRequest) (auction.BidOutcome, error)
	ResetAll(ctx context.Context) ([]auction.Item, error)
	ListItems(ctx context.Context) auction.Snapshot
	GetItem(ctx context.Context, itemID string) (auction.Item, error)
}

type AuctionHandler struct {
	service           AuctionService
	signer            *auth.Signer
	adminPasswordHash string
	now               func() time.Time
	logger            *slog.Logger
}

type HandlerOption func(*AuctionHandler)

// WithAdmin enables AdminLogin and ResetAll. A verify-only signer serves
// ResetAll but cannot issue tokens.
func WithAdmin(signer *auth.Signer, adminPasswordHash string) HandlerOption {
	return func(h *AuctionHandler) {
		h.signer = signer
		h.adminPasswordHash = adminPasswordHash
	}
}

func NewAuctionHandler(service AuctionService, logger *slog.Logger, opts ...HandlerOption) *AuctionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &AuctionHandler{
		service: service,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "api")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AdminEnabled reports whether the admin procedures should be mounted
func (h *AuctionHandler) AdminEnabled() bool {
	return h.signer != nil
}

func (h *AuctionHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[PlaceBidResponse], error) {
	if strings.TrimSpace(req.Msg.ItemID) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("itemId is required"))
	}

	submitterID := req.Msg.SubmitterID
	if submitterID == "" {
		submitterID = "api-" + uuid.NewString()
	}

	var name *string
	if req.Msg.UserName != nil {
		if trimmed := strings.TrimSpace(*req.Msg.UserName); trimmed != "" {
			name = &trimmed
		}
	}

	outcome, err := h.service.PlaceBid(ctx, auction.BidRequest{
		ItemID:        req.Msg.ItemID,
		Amount:        req.Msg.BidAmount,
		SubmitterID:   submitterID,
		SubmitterName: name,
	})
	if err != nil {
		h.logger.Error("PlaceBid failed", "item_id", req.Msg.ItemID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}

	if !outcome.IsAccepted() {
		return nil, rejectionError(outcome.Rejected)
	}

	return connect.NewResponse(&PlaceBidResponse{
		Update: notify.NewBidUpdate(*outcome.Accepted),
	}), nil
}

func (h *AuctionHandler) ListItems(
	ctx context.Context,
	_ *connect.Request[ListItemsRequest],
) (*connect.Response[ListItemsResponse], error) {
	snapshot := h.service.ListItems(ctx)
	return connect.NewResponse(&ListItemsResponse{
		ServerTime: snapshot.ServerTime.UnixMilli(),
		Items:      notify.NewItemViews(snapshot.Items),
	}), nil
}

func (h *AuctionHandler) GetItem(
	ctx context.Context,
	req *connect.Request[GetItemRequest],
) (*connect.Response[GetItemResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}

	item, err := h.service.GetItem(ctx, req.Msg.ID)
	if err != nil {
		if errors.Is(err, auction.ErrItemNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&GetItemResponse{Item: notify.NewItemView(item)}), nil
}

// ResetAll reinitializes every auction. The auth interceptor guarantees the caller
// holds auth.PermissionAuctionReset.
func (h *AuctionHandler) ResetAll(
	ctx context.Context,
	_ *connect.Request[ResetAllRequest],
) (*connect.Response[ResetAllResponse], error) {
	subject, _ := auth.GetSubject(ctx)

	items, err := h.service.ResetAll(ctx)
	if err != nil {
		h.logger.Error("ResetAll failed", "subject", subject, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
	h.logger.Info("Auctions reset", "subject", subject, "count", len(items))

	return connect.NewResponse(&ResetAllResponse{
		ServerTime: h.now().UnixMilli(),
		Items:      notify.NewItemViews(items),
		ResetBy:    subject,
	}), nil
}

// AdminLogin exchanges the admin password for a token carrying the reset permission
func (h *AuctionHandler) AdminLogin(
	_ context.Context,
	req *connect.Request[AdminLoginRequest],
) (*connect.Response[AdminLoginResponse], error) {
	if h.signer == nil || !h.signer.CanSign() || h.adminPasswordHash == "" {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("admin login is not configured"))
	}

	ok, err := auth.VerifyPassword(h.adminPasswordHash, req.Msg.Password)
	if err != nil {
		h.logger.Error("Admin password hash is unusable", "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid credentials"))
	}

	subject := req.Msg.Username
	if subject == "" {
		subject = defaultAdminSubject
	}

	token, err := h.signer.GenerateToken(subject, []string{auth.PermissionAuctionReset})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&AdminLoginResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt.UnixMilli(),
	}), nil
}

func rejectionError(r *auction.Rejected) error {
	code := connect.CodeFailedPrecondition
	if r.Reason == auction.ReasonItemNotFound {
		code = connect.CodeNotFound
	}

	connectErr := connect.NewError(code, errors.New(r.Message))
	connectErr.Meta().Set(RejectReasonHeader, r.Reason.String())
	return connectErr
}

// RejectReason extracts the reason code from a PlaceBid error, empty when err is not a rejection
func RejectReason(err error) auction.RejectReason {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return ""
	}
	return auction.RejectReason(connectErr.Meta().Get(RejectReasonHeader))
}
