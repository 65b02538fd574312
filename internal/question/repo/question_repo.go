package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/level"
	"github.com/HanjuJo/Latteh/internal/question/entity"
	"github.com/HanjuJo/Latteh/pkg/database"
)

// QuestionRepo provides data access for questions and answers.
type QuestionRepo struct {
	db *sqlx.DB
}

func NewQuestionRepo(db *sqlx.DB) *QuestionRepo { return &QuestionRepo{db: db} }

// EnsureTable creates questions.
func (r *QuestionRepo) EnsureTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS questions (
  id VARCHAR(32) PRIMARY KEY,
  author_id VARCHAR(32) NOT NULL REFERENCES users(id),
  title VARCHAR(200) NOT NULL,
  content TEXT NOT NULL,
  categories TEXT NOT NULL DEFAULT '[]',
  tags TEXT NOT NULL DEFAULT '[]',
  is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
  offered_points BIGINT NOT NULL DEFAULT 0 CHECK (offered_points >= 0),
  status VARCHAR(16) NOT NULL DEFAULT 'open',
  answer_count BIGINT NOT NULL DEFAULT 0,
  view_count BIGINT NOT NULL DEFAULT 0,
  accepted_answer_id VARCHAR(32),
  accepted_at TIMESTAMP,
  has_time_limit BOOLEAN NOT NULL DEFAULT FALSE,
  expires_at TIMESTAMP,
  is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_author ON questions(author_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_status ON questions(status, created_at)`,
	)
}

// EnsureAnswerTable creates answers; questions must exist first.
func (r *QuestionRepo) EnsureAnswerTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS answers (
  id VARCHAR(32) PRIMARY KEY,
  question_id VARCHAR(32) NOT NULL REFERENCES questions(id),
  author_id VARCHAR(32) NOT NULL REFERENCES users(id),
  content TEXT NOT NULL,
  experience_type VARCHAR(32) NOT NULL,
  is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
  is_accepted BOOLEAN NOT NULL DEFAULT FALSE,
  points_earned BIGINT NOT NULL DEFAULT 0,
  is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_author ON answers(author_id, created_at)`,
	)
}

// authorRow is the users side of a content join.
type authorRow struct {
	AuthorNickname string `db:"author_nickname"`
	AuthorImage    string `db:"author_profile_image"`
	level.Activity
}

const authorCols = `u.nickname AS author_nickname, u.profile_image AS author_profile_image,
	u.stat_questions_asked, u.stat_answers_provided, u.stat_experiences_shared,
	u.stat_ebooks_published, u.stat_best_answer_count`

func (a authorRow) toAuthor(id string) *entity.Author {
	return &entity.Author{ID: id, Nickname: a.AuthorNickname, ProfileImage: a.AuthorImage, Level: level.Resolve(a.Activity)}
}

type questionRow struct {
	ID               string              `db:"id"`
	AuthorID         string              `db:"author_id"`
	Title            string              `db:"title"`
	Content          string              `db:"content"`
	Categories       database.StringList `db:"categories"`
	Tags             database.StringList `db:"tags"`
	IsAnonymous      bool                `db:"is_anonymous"`
	OfferedPoints    int64               `db:"offered_points"`
	Status           string              `db:"status"`
	AnswerCount      int64               `db:"answer_count"`
	ViewCount        int64               `db:"view_count"`
	AcceptedAnswerID sql.NullString      `db:"accepted_answer_id"`
	AcceptedAt       sql.NullTime        `db:"accepted_at"`
	HasTimeLimit     bool                `db:"has_time_limit"`
	ExpiresAt        sql.NullTime        `db:"expires_at"`
	IsDeleted        bool                `db:"is_deleted"`
	CreatedAt        time.Time           `db:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at"`
	authorRow
}

func (row questionRow) toEntity() *entity.Question {
	q := &entity.Question{
		ID:            row.ID,
		AuthorID:      row.AuthorID,
		Author:        row.toAuthor(row.AuthorID),
		Title:         row.Title,
		Content:       row.Content,
		Categories:    []string(row.Categories),
		Tags:          []string(row.Tags),
		IsAnonymous:   row.IsAnonymous,
		OfferedPoints: row.OfferedPoints,
		Status:        entity.Status(row.Status),
		AnswerCount:   row.AnswerCount,
		ViewCount:     row.ViewCount,
		IsDeleted:     row.IsDeleted,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.AcceptedAnswerID.Valid {
		q.Accepted.AnswerID = row.AcceptedAnswerID.String
	}
	if row.AcceptedAt.Valid {
		t := row.AcceptedAt.Time
		q.Accepted.AcceptedAt = &t
	}
	q.TimeRestriction.HasTimeLimit = row.HasTimeLimit
	if row.ExpiresAt.Valid {
		t := row.ExpiresAt.Time
		q.TimeRestriction.ExpiresAt = &t
	}
	return q
}

const selectQuestion = `SELECT q.id, q.author_id, q.title, q.content, q.categories, q.tags, q.is_anonymous,
	q.offered_points, q.status, q.answer_count, q.view_count, q.accepted_answer_id, q.accepted_at,
	q.has_time_limit, q.expires_at, q.is_deleted, q.created_at, q.updated_at, ` + authorCols + `
  FROM questions q JOIN users u ON u.id = q.author_id`

// Insert writes a new question. ext may be a transaction.
func (r *QuestionRepo) Insert(ctx context.Context, ext sqlx.ExtContext, q *entity.Question) error {
	var expiresAt sql.NullTime
	if q.TimeRestriction.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *q.TimeRestriction.ExpiresAt, Valid: true}
	}
	_, err := ext.ExecContext(ctx, ext.Rebind(`INSERT INTO questions
	  (id, author_id, title, content, categories, tags, is_anonymous, offered_points, status,
	   has_time_limit, expires_at, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		q.ID, q.AuthorID, q.Title, q.Content, database.StringList(q.Categories), database.StringList(q.Tags),
		q.IsAnonymous, q.OfferedPoints, string(q.Status), q.TimeRestriction.HasTimeLimit, expiresAt,
		q.CreatedAt, q.UpdatedAt)
	return err
}

// GetByID returns the question including soft-deleted ones.
func (r *QuestionRepo) GetByID(ctx context.Context, id string) (*entity.Question, error) {
	var row questionRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectQuestion+` WHERE q.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("question")
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// List returns live questions newest first, optionally filtered by category.
func (r *QuestionRepo) List(ctx context.Context, category string, limit, offset int) ([]*entity.Question, int64, error) {
	where := ` WHERE q.is_deleted = FALSE`
	args := []any{}
	if category != "" {
		where += ` AND q.categories LIKE ?` + database.LikeEscape
		args = append(args, database.ContainsPattern(category))
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM questions q`+where), args...); err != nil {
		return nil, 0, err
	}
	var rows []questionRow
	q := r.db.Rebind(selectQuestion + where + ` ORDER BY q.created_at DESC, q.id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	out := make([]*entity.Question, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, total, nil
}

// IncrementView bumps view_count by one.
func (r *QuestionRepo) IncrementView(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE questions SET view_count = view_count + 1 WHERE id = ?`), id)
	return err
}

// Update rewrites the editable fields.
func (r *QuestionRepo) Update(ctx context.Context, q *entity.Question) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE questions
	  SET title = ?, content = ?, categories = ?, tags = ?, is_anonymous = ?, updated_at = ?
	  WHERE id = ? AND is_deleted = FALSE`),
		q.Title, q.Content, database.StringList(q.Categories), database.StringList(q.Tags), q.IsAnonymous, q.UpdatedAt, q.ID)
	return err
}

// Removal is what a soft delete found on the row it removed.
type Removal struct {
	AuthorID         string         `db:"author_id"`
	OfferedPoints    int64          `db:"offered_points"`
	AcceptedAnswerID sql.NullString `db:"accepted_answer_id"`
}

// SoftDelete marks a live question deleted. It returns ErrNotFound when the
// question is missing or already deleted, so at most one caller wins.
func (r *QuestionRepo) SoftDelete(ctx context.Context, ext sqlx.ExtContext, id string, now time.Time) (Removal, error) {
	var rm Removal
	err := sqlx.GetContext(ctx, ext, &rm, ext.Rebind(`UPDATE questions SET is_deleted = TRUE, updated_at = ?
	  WHERE id = ? AND is_deleted = FALSE RETURNING author_id, offered_points, accepted_answer_id`), now, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Removal{}, apperr.NotFound("question")
	}
	return rm, err
}

// Accept records answerID as the accepted answer only if none was accepted
// before and the question is live. ok is false when the condition failed.
func (r *QuestionRepo) Accept(ctx context.Context, ext sqlx.ExtContext, questionID, answerID string, now time.Time) (offered int64, ok bool, err error) {
	err = sqlx.GetContext(ctx, ext, &offered, ext.Rebind(`UPDATE questions
	  SET accepted_answer_id = ?, accepted_at = ?, status = ?, updated_at = ?
	  WHERE id = ? AND accepted_answer_id IS NULL AND is_deleted = FALSE
	  RETURNING offered_points`), answerID, now, string(entity.StatusAnswered), now, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return offered, true, nil
}

// Close moves an open question to closed. It reports whether this call
// changed the row.
func (r *QuestionRepo) Close(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE questions SET status = ?, updated_at = ?
	  WHERE id = ? AND status = ? AND is_deleted = FALSE`),
		string(entity.StatusClosed), now, id, string(entity.StatusOpen))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// IncrementAnswers bumps answer_count on a question.
func (r *QuestionRepo) IncrementAnswers(ctx context.Context, ext sqlx.ExtContext, id string) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`UPDATE questions SET answer_count = answer_count + 1 WHERE id = ?`), id)
	return err
}
