package question

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/ledger"
	ledgerentity "github.com/HanjuJo/Latteh/internal/ledger/entity"
	"github.com/HanjuJo/Latteh/internal/question/entity"
	"github.com/HanjuJo/Latteh/internal/question/repo"
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
)

// Service implements questions, answers and the escrow around accepted answers.
type Service struct {
	db     *sqlx.DB
	repo   *repo.QuestionRepo
	users  *userrepo.UserRepo
	ledger *ledger.Ledger
	votes  *voterepo.VoteRepo
	logger *zap.SugaredLogger
	nowFn  func() time.Time
}

func NewService(db *sqlx.DB, r *repo.QuestionRepo, users *userrepo.UserRepo, l *ledger.Ledger,
	votes *voterepo.VoteRepo, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{db: db, repo: r, users: users, ledger: l, votes: votes, logger: logger,
		nowFn: func() time.Time { return time.Now().UTC() }}
}

type CreateInput struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Categories    []string `json:"categories"`
	Tags          []string `json:"tags"`
	IsAnonymous   bool     `json:"isAnonymous"`
	OfferedPoints int64    `json:"offeredPoints"`

	TimeRestriction entity.TimeRestriction `json:"timeRestriction"`
}

func (in *CreateInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Categories = utilities.TrimList(in.Categories)
	in.Tags = utilities.TrimList(in.Tags)
	switch {
	case in.Title == "":
		return apperr.Validation("질문 제목은 필수입니다")
	case utilities.TooLong(in.Title, entity.MaxTitle):
		return apperr.Validation("질문 제목은 %d자 이내로 입력하세요", entity.MaxTitle)
	case in.Content == "":
		return apperr.Validation("질문 내용은 필수입니다")
	case utilities.TooLong(in.Content, entity.MaxContent):
		return apperr.Validation("질문 내용은 %d자 이내로 입력하세요", entity.MaxContent)
	case len(in.Categories) == 0:
		return apperr.Validation("최소 하나의 카테고리를 선택하세요")
	case in.OfferedPoints < 0:
		return apperr.Validation("offeredPoints must not be negative")
	}
	if !in.TimeRestriction.HasTimeLimit {
		in.TimeRestriction.ExpiresAt = nil
	}
	return nil
}

func checkTimeLimit(tr entity.TimeRestriction, now time.Time) error {
	if !tr.HasTimeLimit {
		return nil
	}
	if tr.ExpiresAt == nil {
		return apperr.Validation("답변 마감 시간을 입력하세요")
	}
	if !tr.ExpiresAt.After(now) {
		return apperr.Validation("답변 마감 시간은 현재 이후여야 합니다")
	}
	return nil
}

// Create publishes a question. Offered points move out of the author's
// available balance in the same transaction that inserts the question, so
// either both happen or neither does.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*entity.Question, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.nowFn()
	if err := checkTimeLimit(in.TimeRestriction, now); err != nil {
		return nil, err
	}
	if in.TimeRestriction.ExpiresAt != nil {
		t := in.TimeRestriction.ExpiresAt.UTC()
		in.TimeRestriction.ExpiresAt = &t
	}
	q := &entity.Question{
		ID:            utilities.NewSnowflakeID(),
		AuthorID:      authorID,
		Title:         in.Title,
		Content:       in.Content,
		Categories:    in.Categories,
		Tags:          in.Tags,
		IsAnonymous:   in.IsAnonymous,
		OfferedPoints: in.OfferedPoints,
		Status:        entity.StatusOpen,
		CreatedAt:     now,
		UpdatedAt:     now,

		TimeRestriction: in.TimeRestriction,
	}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.users.IncrementStat(ctx, tx, authorID, userentity.StatQuestionsAsked); err != nil {
			return err
		}
		if q.OfferedPoints > 0 {
			if _, err := s.ledger.DebitTx(ctx, tx, ledgerentity.Entry{
				UserID:      authorID,
				Amount:      q.OfferedPoints,
				Type:        ledgerentity.TypeSpend,
				Description: "질문 포인트 제공",
				Source:      ledgerentity.Source{Type: ledgerentity.SourceQuestion, ID: q.ID, Model: ledgerentity.ModelQuestion},
			}); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, q)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("question created", "question_id", q.ID, "author_id", authorID, "offered_points", q.OfferedPoints)
	return s.Find(ctx, q.ID, authorID)
}

// ListQuery selects one page of questions.
type ListQuery struct {
	Page     int
	Limit    int
	Category string
}

// ListPage mirrors the paginated list response.
type ListPage struct {
	Questions   []*entity.Question `json:"questions"`
	TotalPages  int64              `json:"totalPages"`
	CurrentPage int                `json:"currentPage"`
	Total       int64              `json:"total"`
}

// List returns live questions, newest first.
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
	items, total, err := s.repo.List(ctx, strings.TrimSpace(lq.Category), lq.Limit, (lq.Page-1)*lq.Limit)
	if err != nil {
		return ListPage{}, err
	}
	ids := make([]string, 0, len(items))
	for _, q := range items {
		ids = append(ids, q.ID)
	}
	tallies, err := s.votes.Tallies(ctx, vote.TargetQuestion, ids)
	if err != nil {
		return ListPage{}, err
	}
	for _, q := range items {
		if err := s.closeExpired(ctx, q); err != nil {
			return ListPage{}, err
		}
		q.SetVotes(tallies[q.ID])
		q.HideAuthor(viewerID)
	}
	pages := (total + int64(lq.Limit) - 1) / int64(lq.Limit)
	return ListPage{Questions: items, TotalPages: pages, CurrentPage: lq.Page, Total: total}, nil
}

// Find loads a live question with its tally without counting a view.
func (s *Service) Find(ctx context.Context, id, viewerID string) (*entity.Question, error) {
	q, err := s.live(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.votes.Tally(ctx, vote.Target{Type: vote.TargetQuestion, ID: id})
	if err != nil {
		return nil, err
	}
	q.SetVotes(t)
	q.HideAuthor(viewerID)
	return q, nil
}

// Detail is a question together with its answers.
type Detail struct {
	*entity.Question
	Answers []*entity.Answer `json:"answers"`
}

// Get counts a view and returns the question with its answers.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*Detail, error) {
	if _, err := s.live(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementView(ctx, id); err != nil {
		return nil, err
	}
	q, err := s.Find(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	answers, err := s.ListAnswers(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	return &Detail{Question: q, Answers: answers}, nil
}

func (s *Service) live(ctx context.Context, id string) (*entity.Question, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.IsDeleted {
		return nil, apperr.NotFound("question")
	}
	if err := s.closeExpired(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// closeExpired closes an open question whose answer window has passed.
func (s *Service) closeExpired(ctx context.Context, q *entity.Question) error {
	now := s.nowFn()
	if q.Status != entity.StatusOpen || !q.TimeRestriction.Expired(now) {
		return nil
	}
	closed, err := s.repo.Close(ctx, q.ID, now)
	if err != nil {
		return err
	}
	if closed {
		s.logger.Infow("question closed", "question_id", q.ID, "expires_at", q.TimeRestriction.ExpiresAt)
	}
	q.Status = entity.StatusClosed
	return nil
}

// UpdateInput carries the editable fields. Offered points cannot change.
type UpdateInput struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	IsAnonymous bool     `json:"isAnonymous"`
}

// Update edits a question; only its author may.
func (s *Service) Update(ctx context.Context, id, actorID string, in UpdateInput) (*entity.Question, error) {
	q, err := s.live(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.AuthorID != actorID {
		return nil, apperr.Forbidden("질문을 수정할 권한이 없습니다")
	}
	ci := CreateInput{Title: in.Title, Content: in.Content, Categories: in.Categories, Tags: in.Tags}
	if err := ci.normalize(); err != nil {
		return nil, err
	}
	q.Title, q.Content, q.Categories, q.Tags = ci.Title, ci.Content, ci.Categories, ci.Tags
	q.IsAnonymous = in.IsAnonymous
	q.UpdatedAt = s.nowFn()
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	return s.Find(ctx, id, actorID)
}

// Delete soft-deletes a question. Escrow that was never paid out goes back
// to the author as a refund.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	q, err := s.live(ctx, id)
	if err != nil {
		return err
	}
	if q.AuthorID != actorID {
		return apperr.Forbidden("질문을 삭제할 권한이 없습니다")
	}
	var refunded int64
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		rm, err := s.repo.SoftDelete(ctx, tx, id, s.nowFn())
		if err != nil {
			return err
		}
		if rm.AcceptedAnswerID.Valid || rm.OfferedPoints == 0 {
			return nil
		}
		_, err = s.ledger.CreditTx(ctx, tx, ledgerentity.Entry{
			UserID:      rm.AuthorID,
			Amount:      rm.OfferedPoints,
			Type:        ledgerentity.TypeRefund,
			Description: "질문 삭제 포인트 환불",
			Source:      ledgerentity.Source{Type: ledgerentity.SourceQuestion, ID: id, Model: ledgerentity.ModelQuestion},
		})
		refunded = rm.OfferedPoints
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Infow("question deleted", "question_id", id, "refunded", refunded)
	return nil
}

// Vote toggles the caller's vote on a question.
func (s *Service) Vote(ctx context.Context, id, userID string, dir vote.Direction) (vote.Result, error) {
	if _, err := s.live(ctx, id); err != nil {
		return vote.Result{}, err
	}
	t, mine, err := s.votes.Toggle(ctx, vote.Target{Type: vote.TargetQuestion, ID: id}, userID, dir)
	if err != nil {
		return vote.Result{}, err
	}
	return vote.NewResult(t, mine), nil
}

type AnswerInput struct {
	Content        string `json:"content"`
	ExperienceType string `json:"experienceType"`
	IsAnonymous    bool   `json:"isAnonymous"`
}

// CreateAnswer adds an answer to an open question.
func (s *Service) CreateAnswer(ctx context.Context, questionID, authorID string, in AnswerInput) (*entity.Answer, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.ExperienceType = strings.TrimSpace(in.ExperienceType)
	switch {
	case in.Content == "":
		return nil, apperr.Validation("답변 내용은 필수입니다")
	case utilities.TooLong(in.Content, entity.MaxAnswerContent):
		return nil, apperr.Validation("답변 내용은 %d자 이내로 입력하세요", entity.MaxAnswerContent)
	case !entity.ValidExperienceType(in.ExperienceType):
		return nil, apperr.Validation("경험 유형은 필수입니다")
	}
	q, err := s.live(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.Status == entity.StatusClosed {
		return nil, apperr.Validation("답변 마감된 질문입니다")
	}
	if q.AuthorID == authorID {
		return nil, apperr.Forbidden("cannot answer your own question")
	}
	now := s.nowFn()
	a := &entity.Answer{
		ID:             utilities.NewSnowflakeID(),
		QuestionID:     questionID,
		AuthorID:       authorID,
		Content:        in.Content,
		ExperienceType: in.ExperienceType,
		IsAnonymous:    in.IsAnonymous,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.users.IncrementStat(ctx, tx, authorID, userentity.StatAnswersProvided); err != nil {
			return err
		}
		if err := s.repo.InsertAnswer(ctx, tx, a); err != nil {
			return err
		}
		return s.repo.IncrementAnswers(ctx, tx, questionID)
	})
	if err != nil {
		return nil, err
	}
	return s.findAnswer(ctx, a.ID, authorID)
}

func (s *Service) findAnswer(ctx context.Context, id, viewerID string) (*entity.Answer, error) {
	a, err := s.repo.GetAnswer(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsDeleted {
		return nil, apperr.NotFound("answer")
	}
	t, err := s.votes.Tally(ctx, vote.Target{Type: vote.TargetAnswer, ID: id})
	if err != nil {
		return nil, err
	}
	a.SetVotes(t)
	a.HideAuthor(viewerID)
	return a, nil
}

// ListAnswers returns the answers of a live question.
func (s *Service) ListAnswers(ctx context.Context, questionID, viewerID string) ([]*entity.Answer, error) {
	if _, err := s.live(ctx, questionID); err != nil {
		return nil, err
	}
	answers, err := s.repo.ListAnswers(ctx, questionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.ID)
	}
	tallies, err := s.votes.Tallies(ctx, vote.TargetAnswer, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		a.SetVotes(tallies[a.ID])
		a.HideAuthor(viewerID)
	}
	return answers, nil
}

// VoteAnswer toggles the caller's vote on an answer.
func (s *Service) VoteAnswer(ctx context.Context, answerID, userID string, dir vote.Direction) (vote.Result, error) {
	a, err := s.findAnswer(ctx, answerID, userID)
	if err != nil {
		return vote.Result{}, err
	}
	if _, err := s.live(ctx, a.QuestionID); err != nil {
		return vote.Result{}, err
	}
	t, mine, err := s.votes.Toggle(ctx, vote.Target{Type: vote.TargetAnswer, ID: answerID}, userID, dir)
	if err != nil {
		return vote.Result{}, err
	}
	return vote.NewResult(t, mine), nil
}

// AcceptAnswer lets the question author pick one answer. The escrow is paid
// to the answer's author at most once; a second acceptance fails with
// ErrAlreadyAccepted and moves no points.
func (s *Service) AcceptAnswer(ctx context.Context, questionID, answerID, actorID string) (*entity.Answer, error) {
	q, err := s.live(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.AuthorID != actorID {
		return nil, apperr.Forbidden("only the question author can accept an answer")
	}
	if q.IsAccepted() {
		return nil, apperr.ErrAlreadyAccepted
	}
	a, err := s.repo.GetAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if a.QuestionID != questionID || a.IsDeleted {
		return nil, apperr.NotFound("answer")
	}

	var paid int64
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		offered, ok, err := s.repo.Accept(ctx, tx, questionID, answerID, s.nowFn())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrAlreadyAccepted
		}
		if err := s.repo.MarkAccepted(ctx, tx, answerID, offered, s.nowFn()); err != nil {
			return err
		}
		if err := s.users.IncrementStat(ctx, tx, a.AuthorID, userentity.StatBestAnswerCount); err != nil {
			return err
		}
		if offered > 0 {
			if _, err := s.ledger.CreditTx(ctx, tx, ledgerentity.Entry{
				UserID:      a.AuthorID,
				Amount:      offered,
				Type:        ledgerentity.TypeEarn,
				Description: "답변 채택 포인트",
				Source:      ledgerentity.Source{Type: ledgerentity.SourceAnswer, ID: answerID, Model: ledgerentity.ModelAnswer},
			}); err != nil {
				return err
			}
		}
		paid = offered
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyAccepted) {
			// lost a race; a delete may have won instead of another accept
			if _, lerr := s.live(ctx, questionID); lerr != nil {
				return nil, lerr
			}
		}
		return nil, err
	}
	s.logger.Infow("answer accepted", "question_id", questionID, "answer_id", answerID, "points", paid)
	return s.findAnswer(ctx, answerID, actorID)
}
