package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/testutil"
	"github.com/HanjuJo/Latteh/internal/user/entity"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
)

func newTestService(t *testing.T) *UserService {
	t.Helper()
	svc, _ := newTestServiceDB(t)
	return svc
}

func newTestServiceDB(t *testing.T) (*UserService, *sqlx.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	r := userrepo.NewUserRepo(db)
	require.NoError(t, r.EnsureTable(context.Background()))
	return NewUserService(db, r, BcryptHasher{Cost: bcrypt.MinCost}), db
}

func validSignup() SignupInput {
	return SignupInput{
		Email:    "  Mina@Example.com ",
		Password: "correct-horse",
		Name:     "김민아",
		Nickname: "mina",
	}
}

func TestSignupAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.SignupUser(ctx, validSignup())
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Equal(t, "mina@example.com", u.Email)
	require.Equal(t, entity.DefaultType, u.UserType)
	require.NotEqual(t, "correct-horse", u.PasswordHash)

	got, err := svc.AuthenticatePassword(ctx, "MINA@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, int64(0), got.Points.Available)
	require.Equal(t, 1, got.Level())

	_, err = svc.AuthenticatePassword(ctx, "mina@example.com", "wrong-password")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.AuthenticatePassword(ctx, "nobody@example.com", "correct-horse")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestSignupRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.SignupUser(ctx, validSignup())
	require.NoError(t, err)

	dupEmail := validSignup()
	dupEmail.Nickname = "other"
	_, err = svc.SignupUser(ctx, dupEmail)
	require.ErrorIs(t, err, apperr.ErrConflict)

	dupNick := validSignup()
	dupNick.Email = "other@example.com"
	_, err = svc.SignupUser(ctx, dupNick)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService(t)
	cases := map[string]func(*SignupInput){
		"bad email":      func(in *SignupInput) { in.Email = "not-an-email" },
		"short password": func(in *SignupInput) { in.Password = "short" },
		"missing name":   func(in *SignupInput) { in.Name = " " },
		"long nickname":  func(in *SignupInput) { in.Nickname = "abcdefghijklmnopqrstuvwxyz012345" },
		"bad user type":  func(in *SignupInput) { in.UserType = "admin" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validSignup()
			mutate(&in)
			_, err := svc.SignupUser(context.Background(), in)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestIncrementStatRaisesLevel(t *testing.T) {
	svc, db := newTestServiceDB(t)
	ctx := context.Background()
	u, err := svc.SignupUser(ctx, validSignup())
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		require.NoError(t, svc.repo.IncrementStat(ctx, db, u.ID, entity.StatAnswersProvided))
	}
	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(15), got.Statistics.AnswersProvided)
	require.Equal(t, 2, got.Level())

	err = svc.repo.IncrementStat(ctx, db, "missing", entity.StatQuestionsAsked)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProfileHandler(t *testing.T) {
	svc := newTestService(t)
	u, err := svc.SignupUser(context.Background(), validSignup())
	require.NoError(t, err)
	h := NewHandler(svc, zap.NewNop().Sugar())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}", h.Profile)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+u.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"nickname":"mina"`)
	require.Contains(t, rec.Body.String(), `"level":1`)
	require.NotContains(t, rec.Body.String(), "mina@example.com")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
