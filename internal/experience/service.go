package experience

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/experience/entity"
	"github.com/HanjuJo/Latteh/internal/experience/repo"
	"github.com/HanjuJo/Latteh/internal/ledger"
	ledgerentity "github.com/HanjuJo/Latteh/internal/ledger/entity"
	questionentity "github.com/HanjuJo/Latteh/internal/question/entity"
	userentity "github.com/HanjuJo/Latteh/internal/user/entity"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
	"github.com/HanjuJo/Latteh/internal/vote"
	voterepo "github.com/HanjuJo/Latteh/internal/vote/repo"
	"github.com/HanjuJo/Latteh/pkg/database"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	maxPage         = 100_000
	defaultReadTime = 5
)

type Service struct {
	db     *sqlx.DB
	repo   *repo.ExperienceRepo
	users  *userrepo.UserRepo
	ledger *ledger.Ledger
	votes  *voterepo.VoteRepo
	logger *zap.SugaredLogger
	nowFn  func() time.Time
}

func NewService(db *sqlx.DB, r *repo.ExperienceRepo, users *userrepo.UserRepo, l *ledger.Ledger,
	votes *voterepo.VoteRepo, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{db: db, repo: r, users: users, ledger: l, votes: votes, logger: logger,
		nowFn: func() time.Time { return time.Now().UTC() }}
}

type CreateInput struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Summary        string   `json:"summary"`
	Categories     []string `json:"categories"`
	Tags           []string `json:"tags"`
	ExperienceType string   `json:"experienceType"`
	TimeOfDay      string   `json:"timeOfDay"`
	ReadTime       int64    `json:"readTime"`
	IsPremium      bool     `json:"isPremium"`
	PremiumPrice   int64    `json:"premiumPrice"`
}

func (in *CreateInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Summary = strings.TrimSpace(in.Summary)
	in.Categories = utilities.TrimList(in.Categories)
	in.Tags = utilities.TrimList(in.Tags)
	in.TimeOfDay = strings.TrimSpace(in.TimeOfDay)
	if in.TimeOfDay == "" {
		in.TimeOfDay = entity.TimeAny
	}
	if in.ReadTime <= 0 {
		in.ReadTime = defaultReadTime
	}
	switch {
	case in.Title == "":
		return apperr.Validation("경험담 제목은 필수입니다")
	case utilities.TooLong(in.Title, entity.MaxTitle):
		return apperr.Validation("경험담 제목은 %d자 이내로 입력하세요", entity.MaxTitle)
	case in.Content == "":
		return apperr.Validation("경험담 내용은 필수입니다")
	case utilities.TooLong(in.Content, entity.MaxContent):
		return apperr.Validation("경험담 내용은 %d자 이내로 입력하세요", entity.MaxContent)
	case utilities.TooLong(in.Summary, entity.MaxSummary):
		return apperr.Validation("요약은 %d자 이내로 입력하세요", entity.MaxSummary)
	case len(in.Categories) == 0:
		return apperr.Validation("최소 하나의 카테고리를 선택하세요")
	case !questionentity.ValidExperienceType(in.ExperienceType):
		return apperr.Validation("경험 유형은 필수입니다")
	case !entity.ValidTimeOfDay(in.TimeOfDay):
		return apperr.Validation("unknown timeOfDay %q", in.TimeOfDay)
	case in.PremiumPrice < 0:
		return apperr.Validation("premiumPrice must not be negative")
	}
	if !in.IsPremium {
		in.PremiumPrice = 0
	}
	return nil
}

// Create shares an experience and counts it toward the author's level.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*entity.Experience, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.nowFn()
	e := &entity.Experience{
		ID:             utilities.NewSnowflakeID(),
		AuthorID:       authorID,
		Title:          in.Title,
		Content:        in.Content,
		Summary:        in.Summary,
		Categories:     in.Categories,
		Tags:           in.Tags,
		ExperienceType: in.ExperienceType,
		TimeOfDay:      in.TimeOfDay,
		ReadTime:       in.ReadTime,
		IsPremium:      in.IsPremium,
		PremiumPrice:   in.PremiumPrice,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.users.IncrementStat(ctx, tx, authorID, userentity.StatExperiencesShared); err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("experience created", "experience_id", e.ID, "author_id", authorID, "premium", e.IsPremium)
	return s.find(ctx, e.ID, authorID)
}

type ListQuery struct {
	Page      int
	Limit     int
	Category  string
	TimeOfDay string
}

type ListPage struct {
	Experiences []*entity.Experience `json:"experiences"`
	TotalPages  int64                `json:"totalPages"`
	CurrentPage int                  `json:"currentPage"`
	Total       int64                `json:"total"`
}

// List returns live experiences newest first. Premium bodies are locked
// unless the viewer wrote or bought them.
func (s *Service) List(ctx context.Context, lq ListQuery, viewerID string) (ListPage, error) {
	if lq.Page < 1 {
		lq.Page = 1
	}
	if lq.Limit < 1 {
		lq.Limit = defaultPageSize
	}
	if lq.Limit > maxPageSize {
		lq.Limit = maxPageSize
	}
	if lq.Page > maxPage {
		lq.Page = maxPage
	}
	tod := strings.TrimSpace(lq.TimeOfDay)
	if tod == entity.TimeAny {
		tod = ""
	}
	if tod != "" && !entity.ValidTimeOfDay(tod) {
		return ListPage{}, apperr.Validation("unknown timeOfDay %q", tod)
	}
	items, total, err := s.repo.List(ctx, repo.Filter{Category: strings.TrimSpace(lq.Category), TimeOfDay: tod},
		lq.Limit, (lq.Page-1)*lq.Limit)
	if err != nil {
		return ListPage{}, err
	}
	ids := make([]string, 0, len(items))
	for _, e := range items {
		ids = append(ids, e.ID)
	}
	tallies, err := s.votes.Tallies(ctx, vote.TargetExperience, ids)
	if err != nil {
		return ListPage{}, err
	}
	owned, err := s.repo.PurchasedAmong(ctx, viewerID, ids)
	if err != nil {
		return ListPage{}, err
	}
	for _, e := range items {
		e.SetVotes(tallies[e.ID])
		if e.IsPremium && e.AuthorID != viewerID && !owned[e.ID] {
			e.Lock()
		}
	}
	pages := (total + int64(lq.Limit) - 1) / int64(lq.Limit)
	return ListPage{Experiences: items, TotalPages: pages, CurrentPage: lq.Page, Total: total}, nil
}

func (s *Service) live(ctx context.Context, id string) (*entity.Experience, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsDeleted {
		return nil, apperr.NotFound("experience")
	}
	return e, nil
}

func (s *Service) find(ctx context.Context, id, viewerID string) (*entity.Experience, error) {
	e, err := s.live(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.votes.Tally(ctx, vote.Target{Type: vote.TargetExperience, ID: id})
	if err != nil {
		return nil, err
	}
	e.SetVotes(t)
	if e.IsPremium && e.AuthorID != viewerID {
		owned := false
		if viewerID != "" {
			if owned, err = s.repo.HasPurchased(ctx, id, viewerID); err != nil {
				return nil, err
			}
		}
		if !owned {
			e.Lock()
		}
	}
	return e, nil
}

// Get counts a view and returns the experience as viewerID may see it.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*entity.Experience, error) {
	if _, err := s.live(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementView(ctx, id); err != nil {
		return nil, err
	}
	return s.find(ctx, id, viewerID)
}

// Delete hides an experience; only its author may.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	e, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	if e.AuthorID != actorID {
		return apperr.Forbidden("경험담을 삭제할 권한이 없습니다")
	}
	return s.repo.SoftDelete(ctx, id, s.nowFn())
}

// Vote toggles the caller's vote on an experience.
func (s *Service) Vote(ctx context.Context, id, userID string, dir vote.Direction) (vote.Result, error) {
	if _, err := s.live(ctx, id); err != nil {
		return vote.Result{}, err
	}
	t, mine, err := s.votes.Toggle(ctx, vote.Target{Type: vote.TargetExperience, ID: id}, userID, dir)
	if err != nil {
		return vote.Result{}, err
	}
	return vote.NewResult(t, mine), nil
}

// Purchase buys a premium experience. The buyer pays the price, the author
// earns it, and the purchase is recorded in one transaction.
func (s *Service) Purchase(ctx context.Context, id, buyerID string) (*entity.Experience, error) {
	e, err := s.live(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsPremium {
		return nil, apperr.Validation("experience is free")
	}
	if e.AuthorID == buyerID {
		return nil, apperr.Forbidden("cannot purchase your own experience")
	}
	price := e.PremiumPrice
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.repo.InsertPurchase(ctx, tx, entity.Purchase{
			ExperienceID: id, BuyerID: buyerID, Price: price, CreatedAt: s.nowFn(),
		}); err != nil {
			return err
		}
		if price == 0 {
			return nil
		}
		src := ledgerentity.Source{Type: ledgerentity.SourceExperience, ID: id, Model: ledgerentity.ModelExperience}
		if _, err := s.ledger.DebitTx(ctx, tx, ledgerentity.Entry{
			UserID: buyerID, Amount: price, Type: ledgerentity.TypeSpend,
			Description: fmt.Sprintf("경험담 구매: %s", e.Title), Source: src,
		}); err != nil {
			return err
		}
		_, err := s.ledger.CreditTx(ctx, tx, ledgerentity.Entry{
			UserID: e.AuthorID, Amount: price, Type: ledgerentity.TypeEarn,
			Description: fmt.Sprintf("경험담 판매: %s", e.Title), Source: src,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("experience purchased", "experience_id", id, "buyer_id", buyerID, "price", price)
	return s.find(ctx, id, buyerID)
}
