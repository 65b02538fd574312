package ledger

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/auth"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

type Handler struct {
	ledger *Ledger
	logger *zap.SugaredLogger
}

func NewHandler(l *Ledger, logger *zap.SugaredLogger) *Handler {
	return &Handler{ledger: l, logger: logger}
}

// Balance GET /api/me/points
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	b, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, b)
}

// Transactions GET /api/me/points/transactions?page=&limit=
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	page, err := h.ledger.History(r.Context(), userID,
		utilities.QueryInt(r, "page", 1), utilities.QueryInt(r, "limit", defaultPageSize))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, page)
}

type withdrawRequest struct {
	Amount int64 `json:"amount"`
}

// Withdraw POST /api/me/points/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req withdrawRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	tx, err := h.ledger.Withdraw(r.Context(), userID, req.Amount)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	h.logger.Infow("withdrawal posted", "user_id", userID, "amount", req.Amount)
	utilities.WriteJSON(w, http.StatusCreated, tx)
}
