package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/question/entity"
)

type answerRow struct {
	ID             string    `db:"id"`
	QuestionID     string    `db:"question_id"`
	AuthorID       string    `db:"author_id"`
	Content        string    `db:"content"`
	ExperienceType string    `db:"experience_type"`
	IsAnonymous    bool      `db:"is_anonymous"`
	IsAccepted     bool      `db:"is_accepted"`
	PointsEarned   int64     `db:"points_earned"`
	IsDeleted      bool      `db:"is_deleted"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	authorRow
}

func (row answerRow) toEntity() *entity.Answer {
	return &entity.Answer{
		ID:             row.ID,
		QuestionID:     row.QuestionID,
		AuthorID:       row.AuthorID,
		Author:         row.toAuthor(row.AuthorID),
		Content:        row.Content,
		ExperienceType: row.ExperienceType,
		IsAnonymous:    row.IsAnonymous,
		IsAccepted:     row.IsAccepted,
		PointsEarned:   row.PointsEarned,
		IsDeleted:      row.IsDeleted,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

const selectAnswer = `SELECT a.id, a.question_id, a.author_id, a.content, a.experience_type, a.is_anonymous,
	a.is_accepted, a.points_earned, a.is_deleted, a.created_at, a.updated_at, ` + authorCols + `
  FROM answers a JOIN users u ON u.id = a.author_id`

// InsertAnswer writes a new answer. ext may be a transaction.
func (r *QuestionRepo) InsertAnswer(ctx context.Context, ext sqlx.ExtContext, a *entity.Answer) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`INSERT INTO answers
	  (id, question_id, author_id, content, experience_type, is_anonymous, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.QuestionID, a.AuthorID, a.Content, a.ExperienceType, a.IsAnonymous, a.CreatedAt, a.UpdatedAt)
	return err
}

// GetAnswer fetches one answer.
func (r *QuestionRepo) GetAnswer(ctx context.Context, id string) (*entity.Answer, error) {
	var row answerRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectAnswer+` WHERE a.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("answer")
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// ListAnswers returns the live answers of a question, accepted answer first,
// then oldest first.
func (r *QuestionRepo) ListAnswers(ctx context.Context, questionID string) ([]*entity.Answer, error) {
	var rows []answerRow
	q := r.db.Rebind(selectAnswer + ` WHERE a.question_id = ? AND a.is_deleted = FALSE
	  ORDER BY a.is_accepted DESC, a.created_at ASC, a.id ASC`)
	if err := r.db.SelectContext(ctx, &rows, q, questionID); err != nil {
		return nil, err
	}
	out := make([]*entity.Answer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// MarkAccepted flags the answer and records what it earned.
func (r *QuestionRepo) MarkAccepted(ctx context.Context, ext sqlx.ExtContext, id string, points int64, now time.Time) error {
	res, err := ext.ExecContext(ctx, ext.Rebind(`UPDATE answers SET is_accepted = TRUE, points_earned = ?, updated_at = ?
	  WHERE id = ? AND is_accepted = FALSE`), points, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrAlreadyAccepted
	}
	return nil
}
