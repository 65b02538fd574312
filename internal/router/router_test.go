package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/HanjuJo/Latteh/internal/auth"
	"github.com/HanjuJo/Latteh/internal/metrics"
	"github.com/HanjuJo/Latteh/internal/schema"
	"github.com/HanjuJo/Latteh/internal/testutil"
	"github.com/HanjuJo/Latteh/internal/user"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, schema.Ensure(context.Background(), db))
	reg := prometheus.NewRegistry()
	return RegisterRoutes(zap.NewNop().Sugar(), Deps{
		DB:             db,
		Tokens:         auth.NewTokenIssuer(auth.Config{Secret: "test-secret", Issuer: "latteh-test"}),
		Hasher:         user.BcryptHasher{Cost: bcrypt.MinCost},
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, email, nickname string) (string, string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "name": "테스터", "nickname": nickname,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out.User.ID
}

func TestHealthAndHeaders(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/questions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/questions", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestHandler(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/me/points"},
		{http.MethodPost, "/api/questions"},
		{http.MethodPost, "/api/experiences/1/purchase"},
		{http.MethodPost, "/api/ebooks"},
	} {
		rec := do(t, h, tc.method, tc.path, "", map[string]string{})
		require.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
	rec := do(t, h, http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQuestionFlowOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	asker, askerID := register(t, h, "asker@example.com", "asker")
	helper, _ := register(t, h, "helper@example.com", "helper")

	rec := do(t, h, http.MethodGet, "/api/me/points", asker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"total":0,"available":0}`, rec.Body.String())

	// a fresh account cannot escrow points it does not have
	rec = do(t, h, http.MethodPost, "/api/questions", asker, map[string]any{
		"title": "이직 고민", "content": "3년차 개발자입니다", "categories": []string{"커리어"},
		"offeredPoints": 10,
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/questions", asker, map[string]any{
		"title": "이직 고민", "content": "3년차 개발자입니다", "categories": []string{"커리어"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))

	rec = do(t, h, http.MethodPost, "/api/questions/"+q.ID+"/answers", helper, map[string]any{
		"content": "저도 같은 고민을 했어요", "experienceType": "직접 경험",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))

	rec = do(t, h, http.MethodPost, "/api/questions/"+q.ID+"/answers/"+a.ID+"/accept", helper, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/questions/"+q.ID+"/answers/"+a.ID+"/accept", asker, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/questions/"+q.ID+"/vote", helper, map[string]string{"voteType": "up"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"upvotes":1`)

	rec = do(t, h, http.MethodGet, "/api/questions/"+q.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), a.ID)

	rec = do(t, h, http.MethodGet, "/api/users/"+askerID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "latteh_http_requests_total")
	require.True(t, strings.Contains(body, `route="POST /api/questions"`), "routes are labelled by pattern")
}
