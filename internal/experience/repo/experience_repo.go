package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/experience/entity"
	"github.com/HanjuJo/Latteh/internal/level"
	"github.com/HanjuJo/Latteh/pkg/database"
)

type ExperienceRepo struct {
	db *sqlx.DB
}

func NewExperienceRepo(db *sqlx.DB) *ExperienceRepo { return &ExperienceRepo{db: db} }

// EnsureTable creates experiences.
func (r *ExperienceRepo) EnsureTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS experiences (
  id VARCHAR(32) PRIMARY KEY,
  author_id VARCHAR(32) NOT NULL REFERENCES users(id),
  title VARCHAR(200) NOT NULL,
  content TEXT NOT NULL,
  summary TEXT NOT NULL DEFAULT '',
  categories TEXT NOT NULL DEFAULT '[]',
  tags TEXT NOT NULL DEFAULT '[]',
  experience_type VARCHAR(32) NOT NULL,
  time_of_day VARCHAR(16) NOT NULL DEFAULT 'any',
  read_time BIGINT NOT NULL DEFAULT 5,
  is_premium BOOLEAN NOT NULL DEFAULT FALSE,
  premium_price BIGINT NOT NULL DEFAULT 0 CHECK (premium_price >= 0),
  view_count BIGINT NOT NULL DEFAULT 0,
  purchase_count BIGINT NOT NULL DEFAULT 0,
  is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_experiences_created_at ON experiences(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_experiences_author ON experiences(author_id, created_at)`,
	)
}

// EnsurePurchaseTable creates experience_purchases; one row per buyer.
func (r *ExperienceRepo) EnsurePurchaseTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS experience_purchases (
  experience_id VARCHAR(32) NOT NULL REFERENCES experiences(id),
  buyer_id VARCHAR(32) NOT NULL REFERENCES users(id),
  price BIGINT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  PRIMARY KEY (experience_id, buyer_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_experience_purchases_buyer ON experience_purchases(buyer_id)`,
	)
}

type experienceRow struct {
	ID             string              `db:"id"`
	AuthorID       string              `db:"author_id"`
	Title          string              `db:"title"`
	Content        string              `db:"content"`
	Summary        string              `db:"summary"`
	Categories     database.StringList `db:"categories"`
	Tags           database.StringList `db:"tags"`
	ExperienceType string              `db:"experience_type"`
	TimeOfDay      string              `db:"time_of_day"`
	ReadTime       int64               `db:"read_time"`
	IsPremium      bool                `db:"is_premium"`
	PremiumPrice   int64               `db:"premium_price"`
	ViewCount      int64               `db:"view_count"`
	PurchaseCount  int64               `db:"purchase_count"`
	IsDeleted      bool                `db:"is_deleted"`
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
	AuthorNickname string              `db:"author_nickname"`
	AuthorImage    string              `db:"author_profile_image"`
	level.Activity
}

func (row experienceRow) toEntity() *entity.Experience {
	return &entity.Experience{
		ID:             row.ID,
		AuthorID:       row.AuthorID,
		Author:         &entity.Author{ID: row.AuthorID, Nickname: row.AuthorNickname, ProfileImage: row.AuthorImage, Level: level.Resolve(row.Activity)},
		Title:          row.Title,
		Content:        row.Content,
		Summary:        row.Summary,
		Categories:     []string(row.Categories),
		Tags:           []string(row.Tags),
		ExperienceType: row.ExperienceType,
		TimeOfDay:      row.TimeOfDay,
		ReadTime:       row.ReadTime,
		IsPremium:      row.IsPremium,
		PremiumPrice:   row.PremiumPrice,
		ViewCount:      row.ViewCount,
		PurchaseCount:  row.PurchaseCount,
		IsDeleted:      row.IsDeleted,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

const selectExperience = `SELECT e.id, e.author_id, e.title, e.content, e.summary, e.categories, e.tags,
	e.experience_type, e.time_of_day, e.read_time, e.is_premium, e.premium_price, e.view_count,
	e.purchase_count, e.is_deleted, e.created_at, e.updated_at,
	u.nickname AS author_nickname, u.profile_image AS author_profile_image,
	u.stat_questions_asked, u.stat_answers_provided, u.stat_experiences_shared,
	u.stat_ebooks_published, u.stat_best_answer_count
  FROM experiences e JOIN users u ON u.id = e.author_id`

func (r *ExperienceRepo) Insert(ctx context.Context, ext sqlx.ExtContext, e *entity.Experience) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`INSERT INTO experiences
	  (id, author_id, title, content, summary, categories, tags, experience_type, time_of_day, read_time,
	   is_premium, premium_price, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.AuthorID, e.Title, e.Content, e.Summary, database.StringList(e.Categories), database.StringList(e.Tags),
		e.ExperienceType, e.TimeOfDay, e.ReadTime, e.IsPremium, e.PremiumPrice, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *ExperienceRepo) GetByID(ctx context.Context, id string) (*entity.Experience, error) {
	var row experienceRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectExperience+` WHERE e.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("experience")
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Category  string
	TimeOfDay string
}

// List returns live experiences newest first with the total match count.
func (r *ExperienceRepo) List(ctx context.Context, f Filter, limit, offset int) ([]*entity.Experience, int64, error) {
	where := ` WHERE e.is_deleted = FALSE`
	args := []any{}
	if f.Category != "" {
		where += ` AND e.categories LIKE ?` + database.LikeEscape
		args = append(args, database.ContainsPattern(f.Category))
	}
	if f.TimeOfDay != "" {
		// "any" experiences fit every part of the day
		where += ` AND e.time_of_day IN (?, ?)`
		args = append(args, f.TimeOfDay, entity.TimeAny)
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM experiences e`+where), args...); err != nil {
		return nil, 0, err
	}
	var rows []experienceRow
	q := r.db.Rebind(selectExperience + where + ` ORDER BY e.created_at DESC, e.id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	out := make([]*entity.Experience, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, total, nil
}

func (r *ExperienceRepo) IncrementView(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE experiences SET view_count = view_count + 1 WHERE id = ?`), id)
	return err
}

// SoftDelete hides a live experience.
func (r *ExperienceRepo) SoftDelete(ctx context.Context, id string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE experiences SET is_deleted = TRUE, updated_at = ?
	  WHERE id = ? AND is_deleted = FALSE`), now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("experience")
	}
	return nil
}

// InsertPurchase records a purchase. A second purchase by the same buyer is
// rejected with ErrConflict.
func (r *ExperienceRepo) InsertPurchase(ctx context.Context, ext sqlx.ExtContext, p entity.Purchase) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`INSERT INTO experience_purchases (experience_id, buyer_id, price, created_at)
	  VALUES (?, ?, ?, ?)`), p.ExperienceID, p.BuyerID, p.Price, p.CreatedAt)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: experience already purchased", apperr.ErrConflict)
	}
	if err != nil {
		return err
	}
	_, err = ext.ExecContext(ctx, ext.Rebind(`UPDATE experiences SET purchase_count = purchase_count + 1 WHERE id = ?`), p.ExperienceID)
	return err
}

// HasPurchased reports whether buyerID owns experienceID.
func (r *ExperienceRepo) HasPurchased(ctx context.Context, experienceID, buyerID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM experience_purchases
	  WHERE experience_id = ? AND buyer_id = ?`), experienceID, buyerID)
	return n > 0, err
}

// PurchasedAmong returns which of ids buyerID has bought.
func (r *ExperienceRepo) PurchasedAmong(ctx context.Context, buyerID string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if buyerID == "" || len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT experience_id FROM experience_purchases WHERE buyer_id = ? AND experience_id IN (?)`, buyerID, ids)
	if err != nil {
		return nil, err
	}
	var got []string
	if err := r.db.SelectContext(ctx, &got, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, id := range got {
		out[id] = true
	}
	return out, nil
}
