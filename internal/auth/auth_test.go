package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/testutil"
	"github.com/HanjuJo/Latteh/internal/user"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
)

func newIssuer(secret string) *TokenIssuer {
	return NewTokenIssuer(Config{Secret: secret, TTL: time.Hour, Issuer: "latteh-test"})
}

func TestIssueAndVerify(t *testing.T) {
	tokens := newIssuer("s3cret")
	token, exp, err := tokens.Issue("42")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	sub, err := tokens.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "42", sub)

	_, err = newIssuer("other").Verify(token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = tokens.Verify("not.a.jwt")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	other := NewTokenIssuer(Config{Secret: "s3cret", TTL: time.Hour, Issuer: "someone-else"})
	foreign, _, err := other.Issue("42")
	require.NoError(t, err)
	_, err = tokens.Verify(foreign)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestVerifyExpired(t *testing.T) {
	tokens := newIssuer("s3cret")
	issued := time.Now().Add(-2 * time.Hour)
	tokens.nowFn = func() time.Time { return issued }
	token, _, err := tokens.Issue("42")
	require.NoError(t, err)

	tokens.nowFn = time.Now
	_, err = tokens.Verify(token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.Contains(t, err.Error(), "expired")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := ConfigFromEnv()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "abc")
	t.Setenv("JWT_TTL", "2h")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour, cfg.TTL)
	require.Equal(t, "latteh-api", cfg.Issuer)
}

func TestMiddleware(t *testing.T) {
	tokens := newIssuer("s3cret")
	m := NewMiddleware(tokens, zap.NewNop().Sugar())
	echo := func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			id = "anonymous"
		}
		_, _ = w.Write([]byte(id))
	}
	token, _, err := tokens.Issue("7")
	require.NoError(t, err)

	cases := []struct {
		name   string
		h      http.HandlerFunc
		header string
		code   int
		body   string
	}{
		{"require ok", m.Require(echo), "Bearer " + token, http.StatusOK, "7"},
		{"require lowercase scheme", m.Require(echo), "bearer " + token, http.StatusOK, "7"},
		{"require missing", m.Require(echo), "", http.StatusUnauthorized, ""},
		{"require bad token", m.Require(echo), "Bearer nope", http.StatusUnauthorized, ""},
		{"require basic auth", m.Require(echo), "Basic dXNlcjpwdw==", http.StatusUnauthorized, ""},
		{"optional ok", m.Optional(echo), "Bearer " + token, http.StatusOK, "7"},
		{"optional missing", m.Optional(echo), "", http.StatusOK, "anonymous"},
		{"optional bad token", m.Optional(echo), "Bearer nope", http.StatusOK, "anonymous"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			tc.h(rec, req)
			require.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				require.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRegisterLoginMe(t *testing.T) {
	db := testutil.NewDB(t)
	users := userrepo.NewUserRepo(db)
	require.NoError(t, users.EnsureTable(context.Background()))
	tokens := newIssuer("s3cret")
	logger := zap.NewNop().Sugar()
	h := NewHandler(user.NewUserService(db, users, user.BcryptHasher{Cost: bcrypt.MinCost}), tokens, logger)
	m := NewMiddleware(tokens, logger)

	post := func(fn http.HandlerFunc, body any) *httptest.ResponseRecorder {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b)))
		return rec
	}

	reg := RegisterRequest{Email: "Kim@Example.com", Password: "password123", Name: "김라떼", Nickname: "latte"}
	rec := post(h.Register, reg)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "kim@example.com", out.User.Email)
	require.Equal(t, "경험 탐색자", out.User.UserType)

	rec = post(h.Register, reg)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = post(h.Login, LoginRequest{Email: "kim@example.com", Password: "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = post(h.Login, LoginRequest{Email: "nobody@example.com", Password: "password123"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(h.Login, LoginRequest{Email: "kim@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	rec = httptest.NewRecorder()
	m.Require(h.Me)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"nickname":"latte"`)
}
