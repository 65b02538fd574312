package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/ebook/entity"
	"github.com/HanjuJo/Latteh/pkg/database"
)

type EbookRepo struct {
	db *sqlx.DB
}

func NewEbookRepo(db *sqlx.DB) *EbookRepo { return &EbookRepo{db: db} }

func (r *EbookRepo) EnsureTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS ebooks (
  id VARCHAR(32) PRIMARY KEY,
  author_id VARCHAR(32) NOT NULL REFERENCES users(id),
  title VARCHAR(200) NOT NULL,
  subtitle VARCHAR(300) NOT NULL DEFAULT '',
  description TEXT NOT NULL,
  cover_image TEXT NOT NULL,
  categories TEXT NOT NULL DEFAULT '[]',
  tags TEXT NOT NULL DEFAULT '[]',
  price BIGINT NOT NULL DEFAULT 0 CHECK (price >= 0),
  currency VARCHAR(3) NOT NULL DEFAULT 'KRW',
  language VARCHAR(8) NOT NULL DEFAULT 'ko',
  pages BIGINT NOT NULL DEFAULT 0,
  file_format VARCHAR(8) NOT NULL DEFAULT 'PDF',
  content_ids TEXT NOT NULL DEFAULT '[]',
  status VARCHAR(16) NOT NULL DEFAULT 'draft',
  published_at TIMESTAMP,
  view_count BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_ebooks_status_published ON ebooks(status, published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ebooks_author ON ebooks(author_id)`,
	)
}

type ebookRow struct {
	ID          string              `db:"id"`
	AuthorID    string              `db:"author_id"`
	Title       string              `db:"title"`
	Subtitle    string              `db:"subtitle"`
	Description string              `db:"description"`
	CoverImage  string              `db:"cover_image"`
	Categories  database.StringList `db:"categories"`
	Tags        database.StringList `db:"tags"`
	Price       int64               `db:"price"`
	Currency    string              `db:"currency"`
	Language    string              `db:"language"`
	Pages       int64               `db:"pages"`
	FileFormat  string              `db:"file_format"`
	ContentIDs  database.StringList `db:"content_ids"`
	Status      string              `db:"status"`
	PublishedAt sql.NullTime        `db:"published_at"`
	ViewCount   int64               `db:"view_count"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

func (row ebookRow) toEntity() *entity.Ebook {
	b := &entity.Ebook{
		ID:          row.ID,
		AuthorID:    row.AuthorID,
		Title:       row.Title,
		Subtitle:    row.Subtitle,
		Description: row.Description,
		CoverImage:  row.CoverImage,
		Categories:  []string(row.Categories),
		Tags:        []string(row.Tags),
		Price:       row.Price,
		Currency:    row.Currency,
		Language:    row.Language,
		Pages:       row.Pages,
		FileFormat:  row.FileFormat,
		ContentIDs:  []string(row.ContentIDs),
		Status:      entity.Status(row.Status),
		ViewCount:   row.ViewCount,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.PublishedAt.Valid {
		t := row.PublishedAt.Time
		b.PublishedAt = &t
	}
	return b
}

const selectEbook = `SELECT id, author_id, title, subtitle, description, cover_image, categories, tags, price,
	currency, language, pages, file_format, content_ids, status, published_at, view_count, created_at, updated_at
  FROM ebooks`

func (r *EbookRepo) Insert(ctx context.Context, b *entity.Ebook) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO ebooks
	  (id, author_id, title, subtitle, description, cover_image, categories, tags, price, currency, language,
	   pages, file_format, content_ids, status, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		b.ID, b.AuthorID, b.Title, b.Subtitle, b.Description, b.CoverImage, database.StringList(b.Categories),
		database.StringList(b.Tags), b.Price, b.Currency, b.Language, b.Pages, b.FileFormat,
		database.StringList(b.ContentIDs), string(b.Status), b.CreatedAt, b.UpdatedAt)
	return err
}

func (r *EbookRepo) GetByID(ctx context.Context, id string) (*entity.Ebook, error) {
	var row ebookRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectEbook+` WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("ebook")
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// ListPublished returns published ebooks, most recently published first.
func (r *EbookRepo) ListPublished(ctx context.Context, limit, offset int) ([]*entity.Ebook, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM ebooks WHERE status = ?`),
		string(entity.StatusPublished)); err != nil {
		return nil, 0, err
	}
	var rows []ebookRow
	q := r.db.Rebind(selectEbook + ` WHERE status = ? ORDER BY published_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, string(entity.StatusPublished), limit, offset); err != nil {
		return nil, 0, err
	}
	out := make([]*entity.Ebook, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, total, nil
}

// Transition moves the ebook from one status to another. ok is false when the
// ebook was not in from.
func (r *EbookRepo) Transition(ctx context.Context, ext sqlx.ExtContext, id string, from, to entity.Status, now time.Time) (bool, error) {
	q := `UPDATE ebooks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	args := []any{string(to), now, id, string(from)}
	if to == entity.StatusPublished {
		q = `UPDATE ebooks SET status = ?, updated_at = ?, published_at = ? WHERE id = ? AND status = ?`
		args = []any{string(to), now, now, id, string(from)}
	}
	res, err := ext.ExecContext(ctx, ext.Rebind(q), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *EbookRepo) IncrementView(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE ebooks SET view_count = view_count + 1 WHERE id = ?`), id)
	return err
}
