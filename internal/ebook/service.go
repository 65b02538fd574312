package ebook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/ebook/entity"
	"github.com/HanjuJo/Latteh/internal/ebook/repo"
	experiencerepo "github.com/HanjuJo/Latteh/internal/experience/repo"
	userentity "github.com/HanjuJo/Latteh/internal/user/entity"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
	"github.com/HanjuJo/Latteh/pkg/database"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	maxPage         = 100_000
)

// Service manages e-book drafts and their publication lifecycle. Prices are
// shown to buyers but never settled through the points ledger.
type Service struct {
	db          *sqlx.DB
	repo        *repo.EbookRepo
	experiences *experiencerepo.ExperienceRepo
	users       *userrepo.UserRepo
	logger      *zap.SugaredLogger
	nowFn       func() time.Time
}

func NewService(db *sqlx.DB, r *repo.EbookRepo, experiences *experiencerepo.ExperienceRepo,
	users *userrepo.UserRepo, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{db: db, repo: r, experiences: experiences, users: users, logger: logger,
		nowFn: func() time.Time { return time.Now().UTC() }}
}

type CreateInput struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Description string   `json:"description"`
	CoverImage  string   `json:"coverImage"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency"`
	Language    string   `json:"language"`
	Pages       int64    `json:"pages"`
	FileFormat  string   `json:"fileFormat"`
	ContentIDs  []string `json:"contentIds"`
}

func (in *CreateInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Subtitle = strings.TrimSpace(in.Subtitle)
	in.Description = strings.TrimSpace(in.Description)
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	in.Categories = utilities.TrimList(in.Categories)
	in.Tags = utilities.TrimList(in.Tags)
	in.ContentIDs = utilities.TrimList(in.ContentIDs)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = entity.CurrencyKRW
	}
	in.FileFormat = strings.ToUpper(strings.TrimSpace(in.FileFormat))
	if in.FileFormat == "" {
		in.FileFormat = entity.FormatPDF
	}
	if strings.TrimSpace(in.Language) == "" {
		in.Language = "ko"
	}
	switch {
	case in.Title == "":
		return apperr.Validation("전자책 제목은 필수입니다")
	case utilities.TooLong(in.Title, entity.MaxTitle):
		return apperr.Validation("전자책 제목은 %d자 이내로 입력하세요", entity.MaxTitle)
	case utilities.TooLong(in.Subtitle, entity.MaxSubtitle):
		return apperr.Validation("부제목은 %d자 이내로 입력하세요", entity.MaxSubtitle)
	case in.Description == "":
		return apperr.Validation("설명은 필수입니다")
	case utilities.TooLong(in.Description, entity.MaxDescription):
		return apperr.Validation("설명은 %d자 이내로 입력하세요", entity.MaxDescription)
	case in.CoverImage == "":
		return apperr.Validation("표지 이미지는 필수입니다")
	case len(in.Categories) == 0:
		return apperr.Validation("최소 하나의 카테고리를 선택하세요")
	case in.Price < 0:
		return apperr.Validation("가격은 0 이상이어야 합니다")
	case !entity.ValidCurrency(in.Currency):
		return apperr.Validation("unknown currency %q", in.Currency)
	case !entity.ValidFormat(in.FileFormat):
		return apperr.Validation("unknown file format %q", in.FileFormat)
	case in.Pages < 0:
		return apperr.Validation("pages must not be negative")
	}
	return nil
}

// Create saves a draft. Every content id must be a live experience written
// by the same author.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*entity.Ebook, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	for _, id := range in.ContentIDs {
		e, err := s.experiences.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.IsDeleted || e.AuthorID != authorID {
			return nil, apperr.Validation("experience %s cannot be bundled", id)
		}
	}
	now := s.nowFn()
	b := &entity.Ebook{
		ID:          utilities.NewSnowflakeID(),
		AuthorID:    authorID,
		Title:       in.Title,
		Subtitle:    in.Subtitle,
		Description: in.Description,
		CoverImage:  in.CoverImage,
		Categories:  in.Categories,
		Tags:        in.Tags,
		Price:       in.Price,
		Currency:    in.Currency,
		Language:    in.Language,
		Pages:       in.Pages,
		FileFormat:  in.FileFormat,
		ContentIDs:  in.ContentIDs,
		Status:      entity.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Infow("ebook drafted", "ebook_id", b.ID, "author_id", authorID)
	return b, nil
}

func (s *Service) owned(ctx context.Context, id, actorID string) (*entity.Ebook, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.AuthorID != actorID {
		return nil, apperr.Forbidden("not the author of this ebook")
	}
	return b, nil
}

// Publish makes a draft public. It succeeds once per ebook and counts toward
// the author's level.
func (s *Service) Publish(ctx context.Context, id, actorID string) (*entity.Ebook, error) {
	b, err := s.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if b.Status != entity.StatusDraft {
		return nil, fmt.Errorf("%w: ebook is %s", apperr.ErrConflict, b.Status)
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ok, err := s.repo.Transition(ctx, tx, id, entity.StatusDraft, entity.StatusPublished, s.nowFn())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: ebook is no longer a draft", apperr.ErrConflict)
		}
		return s.users.IncrementStat(ctx, tx, actorID, userentity.StatEbooksPublished)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("ebook published", "ebook_id", id, "author_id", actorID)
	return s.repo.GetByID(ctx, id)
}

// Archive withdraws an ebook from the catalogue.
func (s *Service) Archive(ctx context.Context, id, actorID string) (*entity.Ebook, error) {
	b, err := s.owned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	if b.Status == entity.StatusArchived {
		return nil, fmt.Errorf("%w: ebook is already archived", apperr.ErrConflict)
	}
	ok, err := s.repo.Transition(ctx, s.db, id, b.Status, entity.StatusArchived, s.nowFn())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ebook status changed", apperr.ErrConflict)
	}
	return s.repo.GetByID(ctx, id)
}

type ListPage struct {
	Ebooks      []*entity.Ebook `json:"ebooks"`
	TotalPages  int64           `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Total       int64           `json:"total"`
}

// List returns the published catalogue.
func (s *Service) List(ctx context.Context, page, limit int) (ListPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page > maxPage {
		page = maxPage
	}
	items, total, err := s.repo.ListPublished(ctx, limit, (page-1)*limit)
	if err != nil {
		return ListPage{}, err
	}
	return ListPage{Ebooks: items, TotalPages: (total + int64(limit) - 1) / int64(limit), CurrentPage: page, Total: total}, nil
}

// Get returns an ebook. Drafts are visible to their author only.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*entity.Ebook, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == entity.StatusDraft && b.AuthorID != viewerID {
		return nil, apperr.NotFound("ebook")
	}
	if b.Status == entity.StatusPublished {
		if err := s.repo.IncrementView(ctx, id); err != nil {
			return nil, err
		}
		b.ViewCount++
	}
	return b, nil
}
