package question

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

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := utilities.DecodeJSON(r, dst); err != nil {
		h.logger.Debugw("invalid payload", "path", r.URL.Path, "err", err)
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return false
	}
	return true
}

func viewer(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// List GET /api/questions?page=&limit=&category=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), ListQuery{
		Page:     utilities.QueryInt(r, "page", 1),
		Limit:    utilities.QueryInt(r, "limit", defaultPageSize),
		Category: r.URL.Query().Get("category"),
	}, viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, page)
}

// Create POST /api/questions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if !h.decode(w, r, &in) {
		return
	}
	q, err := h.svc.Create(r.Context(), viewer(r), in)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, q)
}

// Get GET /api/questions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, d)
}

// Update PUT /api/questions/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if !h.decode(w, r, &in) {
		return
	}
	q, err := h.svc.Update(r.Context(), r.PathValue("id"), viewer(r), in)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, q)
}

// Delete DELETE /api/questions/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), viewer(r)); err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{"message": "질문이 삭제되었습니다."})
}

type voteRequest struct {
	VoteType string `json:"voteType"`
}

func (h *Handler) direction(w http.ResponseWriter, r *http.Request) (vote.Direction, bool) {
	var req voteRequest
	if !h.decode(w, r, &req) {
		return vote.None, false
	}
	dir, err := vote.ParseDirection(req.VoteType)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return vote.None, false
	}
	return dir, true
}

// Vote POST /api/questions/{id}/vote
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	dir, ok := h.direction(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Vote(r.Context(), r.PathValue("id"), viewer(r), dir)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

// ListAnswers GET /api/questions/{id}/answers
func (h *Handler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := h.svc.ListAnswers(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"answers": answers})
}

// CreateAnswer POST /api/questions/{id}/answers
func (h *Handler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var in AnswerInput
	if !h.decode(w, r, &in) {
		return
	}
	a, err := h.svc.CreateAnswer(r.Context(), r.PathValue("id"), viewer(r), in)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, a)
}

// Accept POST /api/questions/{id}/answers/{answerId}/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.AcceptAnswer(r.Context(), r.PathValue("id"), r.PathValue("answerId"), viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, a)
}

// VoteAnswer POST /api/answers/{id}/vote
func (h *Handler) VoteAnswer(w http.ResponseWriter, r *http.Request) {
	dir, ok := h.direction(w, r)
	if !ok {
		return
	}
	res, err := h.svc.VoteAnswer(r.Context(), r.PathValue("id"), viewer(r), dir)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}
