package ebook

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/auth"
	"github.com/HanjuJo/Latteh/internal/ebook/entity"
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
	page, err := h.svc.List(r.Context(), utilities.QueryInt(r, "page", 1), utilities.QueryInt(r, "limit", defaultPageSize))
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
	b, err := h.svc.Create(r.Context(), viewer(r), in)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Get(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Publish)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Archive)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id, actorID string) (*entity.Ebook, error)) {
	b, err := fn(r.Context(), r.PathValue("id"), viewer(r))
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, b)
}
