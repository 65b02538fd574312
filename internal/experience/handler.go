package experience

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/auth"
	"github.com/HanjuJo/Latteh/internal/vote"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func viewer(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.svc.List(r.Context(), ListQuery{
		Page:      utilities.QueryInt(r, "page", 1),
		Limit:     utilities.QueryInt(r, "limit", defaultPageSize),
		Category:  q.Get("category"),
		TimeOfDay: q.Get("timeOfDay"),
	}, viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := utilities.DecodeJSON(r, &in); err != nil {
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	e, err := h.svc.Create(r.Context(), viewer(r), in)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), viewer(r)); err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"message": "경험담이 삭제되었습니다."})
}

func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VoteType string `json:"voteType"`
	}
	if err := utilities.DecodeJSON(r, &req); err != nil {
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	dir, err := vote.ParseDirection(req.VoteType)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	res, err := h.svc.Vote(r.Context(), r.PathValue("id"), viewer(r), dir)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Purchase(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, e)
}
