package auth

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/user"
	"github.com/HanjuJo/Latteh/internal/user/entity"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

// Handler exposes register / login / me.
type Handler struct {
	users  *user.UserService
	tokens *TokenIssuer
	logger *zap.SugaredLogger
}

func NewHandler(users *user.UserService, tokens *TokenIssuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{users: users, tokens: tokens, logger: logger}
}

// RegisterRequest request body for the register endpoint.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	UserType string `json:"userType"`
	Bio      string `json:"bio"`
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      entity.Account `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	u, err := h.users.SignupUser(r.Context(), user.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Nickname: req.Nickname,
		UserType: req.UserType,
		Bio:      req.Bio,
	})
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	h.logger.Infow("user registered", "user_id", u.ID)
	h.respondWithToken(w, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		apperr.Write(w, h.logger, apperr.Validation("invalid payload"))
		return
	}
	u, err := h.users.AuthenticatePassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		apperr.Write(w, h.logger, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, u)
}

// Me returns the caller's account, including balance and level.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"user": u.Account()})
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, u *entity.User) {
	token, exp, err := h.tokens.Issue(u.ID)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, status, TokenResponse{Token: token, ExpiresAt: exp, User: u.Account()})
}
