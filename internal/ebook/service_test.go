package ebook

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/auth"
	"github.com/HanjuJo/Latteh/internal/ebook/entity"
	"github.com/HanjuJo/Latteh/internal/ebook/repo"
	experienceentity "github.com/HanjuJo/Latteh/internal/experience/entity"
	experiencerepo "github.com/HanjuJo/Latteh/internal/experience/repo"
	ledgerrepo "github.com/HanjuJo/Latteh/internal/ledger/repo"
	"github.com/HanjuJo/Latteh/internal/testutil"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
)

type fixture struct {
	svc         *Service
	users       *userrepo.UserRepo
	experiences *experiencerepo.ExperienceRepo
	ledger      *ledgerrepo.LedgerRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	users := userrepo.NewUserRepo(db)
	lr := ledgerrepo.NewLedgerRepo(db)
	er := experiencerepo.NewExperienceRepo(db)
	br := repo.NewEbookRepo(db)
	require.NoError(t, users.EnsureTable(ctx))
	require.NoError(t, lr.EnsureTable(ctx))
	require.NoError(t, er.EnsureTable(ctx))
	require.NoError(t, br.EnsureTable(ctx))
	testutil.InsertUser(t, db, "writer", 10)
	testutil.InsertUser(t, db, "other", 0)
	return fixture{svc: NewService(db, br, er, users, zap.NewNop().Sugar()), users: users, experiences: er, ledger: lr}
}

func (f fixture) experience(t *testing.T, authorID string) string {
	t.Helper()
	now := time.Now().UTC()
	e := &experienceentity.Experience{
		ID: authorID + "-exp", AuthorID: authorID, Title: "t", Content: "c",
		ExperienceType: "직접 경험", TimeOfDay: experienceentity.TimeAny, ReadTime: 5,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.experiences.Insert(context.Background(), f.svc.db, e))
	return e.ID
}

func draft() CreateInput {
	return CreateInput{
		Title:       "직장인 육아 일기",
		Description: "맞벌이 부부의 1년",
		CoverImage:  "cover.jpg",
		Categories:  []string{"육아"},
		Price:       12000,
		Currency:    "krw",
	}
}

func TestPublishLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := draft()
	in.ContentIDs = []string{f.experience(t, "writer")}
	b, err := f.svc.Create(ctx, "writer", in)
	require.NoError(t, err)
	require.Equal(t, entity.StatusDraft, b.Status)
	require.Equal(t, entity.CurrencyKRW, b.Currency)
	require.Equal(t, entity.FormatPDF, b.FileFormat)

	_, err = f.svc.Get(ctx, b.ID, "other")
	require.ErrorIs(t, err, apperr.ErrNotFound, "drafts are private")
	got, err := f.svc.Get(ctx, b.ID, "writer")
	require.NoError(t, err)
	require.Equal(t, in.ContentIDs, got.ContentIDs)

	_, err = f.svc.Publish(ctx, b.ID, "other")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	pub, err := f.svc.Publish(ctx, b.ID, "writer")
	require.NoError(t, err)
	require.Equal(t, entity.StatusPublished, pub.Status)
	require.NotNil(t, pub.PublishedAt)

	_, err = f.svc.Publish(ctx, b.ID, "writer")
	require.ErrorIs(t, err, apperr.ErrConflict)

	w, err := f.users.GetByID(ctx, "writer")
	require.NoError(t, err)
	require.Equal(t, int64(1), w.Statistics.EbooksPublished)
	require.Equal(t, int64(10), w.Points.Available, "price never touches points")

	page, err := f.svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	page, err = f.svc.List(ctx, math.MaxInt, maxPageSize)
	require.NoError(t, err)
	require.Empty(t, page.Ebooks)
	require.Equal(t, maxPage, page.CurrentPage)

	arch, err := f.svc.Archive(ctx, b.ID, "writer")
	require.NoError(t, err)
	require.Equal(t, entity.StatusArchived, arch.Status)
	_, err = f.svc.Archive(ctx, b.ID, "writer")
	require.ErrorIs(t, err, apperr.ErrConflict)

	page, err = f.svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Zero(t, page.Total)

	_, total, err := f.ledger.ListByUser(ctx, "writer", 10, 0)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	theirs := f.experience(t, "other")

	cases := map[string]func(*CreateInput){
		"no cover":          func(in *CreateInput) { in.CoverImage = "" },
		"bad currency":      func(in *CreateInput) { in.Currency = "EUR" },
		"bad format":        func(in *CreateInput) { in.FileFormat = "DOCX" },
		"negative price":    func(in *CreateInput) { in.Price = -1 },
		"long subtitle":     func(in *CreateInput) { in.Subtitle = strings.Repeat("가", entity.MaxSubtitle+1) },
		"foreign content":   func(in *CreateInput) { in.ContentIDs = []string{theirs} },
		"missing category":  func(in *CreateInput) { in.Categories = nil },
		"empty description": func(in *CreateInput) { in.Description = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := draft()
			mutate(&in)
			_, err := f.svc.Create(ctx, "writer", in)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	in := draft()
	in.ContentIDs = []string{"nope"}
	_, err := f.svc.Create(ctx, "writer", in)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPublishHandler(t *testing.T) {
	f := newFixture(t)
	b, err := f.svc.Create(context.Background(), "writer", draft())
	require.NoError(t, err)

	h := NewHandler(f.svc, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ebooks/{id}/publish", func(w http.ResponseWriter, r *http.Request) {
		h.Publish(w, r.WithContext(auth.WithUserID(r.Context(), "writer")))
	})
	mux.HandleFunc("GET /api/ebooks", h.List)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ebooks/"+b.ID+"/publish", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ebooks/"+b.ID+"/publish", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ebooks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), b.ID)
}
