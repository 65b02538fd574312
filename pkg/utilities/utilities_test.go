package utilities

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSnowflakeIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewSnowflakeID()
		require.NotEmpty(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewNode(t *testing.T) {
	n := newNode("")
	require.NotNil(t, n)
	require.Equal(t, int64(1), n.Generate().Node())

	n = newNode("7")
	require.NotNil(t, n)
	require.Equal(t, int64(7), n.Generate().Node())

	require.Nil(t, newNode("-1"))
	require.Nil(t, newNode("4096"))
	require.Nil(t, newNode("seven"))
}

func TestNewKSUID(t *testing.T) {
	require.Len(t, NewKSUID(), 27)
	require.NotEqual(t, NewKSUID(), NewKSUID())
}

func TestLoggerConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.True(t, cfg.Dev)
	require.Equal(t, "debug", cfg.Level)

	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err = ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Level)
}

func TestLevelFromString(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	require.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	require.Equal(t, zapcore.ErrorLevel, levelFromString("error"))
	require.Equal(t, zapcore.InfoLevel, levelFromString("loud"))
}

func TestInitWithRotatedFile(t *testing.T) {
	lg, err := Init(Config{Level: "info", File: filepath.Join(t.TempDir(), "api.log")})
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()
}

func TestWriteJSONAndDecode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"n": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"n":1}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"n":2}`))
	var out struct{ N int }
	require.NoError(t, DecodeJSON(req, &out))
	require.Equal(t, 2, out.N)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=x", nil)
	require.Equal(t, 3, QueryInt(req, "page", 1))
	require.Equal(t, 10, QueryInt(req, "limit", 10))
	require.Equal(t, 7, QueryInt(req, "missing", 7))
}

func TestTrimList(t *testing.T) {
	require.Equal(t, []string{"육아", "건강"}, TrimList([]string{" 육아 ", "", "건강", "육아", "  "}))
	require.Empty(t, TrimList(nil))
}

func TestTooLong(t *testing.T) {
	require.False(t, TooLong("가나다", 3))
	require.True(t, TooLong("가나다라", 3))
}
