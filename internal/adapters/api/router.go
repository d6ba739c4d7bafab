package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/notify"
	"github.com/floroz/gavel-live/pkg/auth"
)

// NewRouter mounts the RPC procedures, the REST snapshot, the websocket
// endpoint and the health check. ws may be nil.
func NewRouter(h *AuctionHandler, ws http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/items", h.serveSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", h.serveItem).Methods(http.MethodGet)

	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, WithJSON()))
	r.Handle(ListItemsProcedure, connect.NewUnaryHandler(ListItemsProcedure, h.ListItems, WithJSON()))
	r.Handle(GetItemProcedure, connect.NewUnaryHandler(GetItemProcedure, h.GetItem, WithJSON()))

	if h.AdminEnabled() {
		r.Handle(ResetAllProcedure, connect.NewUnaryHandler(ResetAllProcedure, h.ResetAll,
			WithJSON(),
			connect.WithInterceptors(auth.NewAuthInterceptor(h.signer, auth.PermissionAuctionReset)),
		))
		r.Handle(AdminLoginProcedure, connect.NewUnaryHandler(AdminLoginProcedure, h.AdminLogin, WithJSON()))
	}

	return r
}

// serveSnapshot answers GET /items with {"serverTime": ms, "items": [...]}
func (h *AuctionHandler) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.ListItems(r.Context())
	h.writeJSON(w, http.StatusOK, ListItemsResponse{
		ServerTime: snapshot.ServerTime.UnixMilli(),
		Items:      notify.NewItemViews(snapshot.Items),
	})
}

func (h *AuctionHandler) serveItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, auction.ErrItemNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
			return
		}
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	h.writeJSON(w, http.StatusOK, notify.NewItemView(item))
}

func (h *AuctionHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to write response", slog.Any("error", err))
	}
}
