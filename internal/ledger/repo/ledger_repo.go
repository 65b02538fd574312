package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/ledger/entity"
	"github.com/HanjuJo/Latteh/pkg/database"
)

// LedgerRepo applies balance changes to users and records each one in
// point_transactions. Every write method takes the executor so a caller can
// run it inside its own transaction.
type LedgerRepo struct {
	db *sqlx.DB
}

func NewLedgerRepo(db *sqlx.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// EnsureTable creates point_transactions. users must already exist.
func (r *LedgerRepo) EnsureTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS point_transactions (
  id VARCHAR(32) PRIMARY KEY,
  user_id VARCHAR(32) NOT NULL REFERENCES users(id),
  type VARCHAR(16) NOT NULL,
  amount BIGINT NOT NULL CHECK (amount > 0),
  balance BIGINT NOT NULL CHECK (balance >= 0),
  description TEXT NOT NULL,
  source_type VARCHAR(32) NOT NULL,
  source_id VARCHAR(64) NOT NULL DEFAULT '',
  source_model VARCHAR(32) NOT NULL DEFAULT '',
  status VARCHAR(16) NOT NULL DEFAULT 'completed',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_point_tx_user_created ON point_transactions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_point_tx_source ON point_transactions(source_type, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_point_tx_status ON point_transactions(status)`,
	)
}

type txRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Type        string    `db:"type"`
	Amount      int64     `db:"amount"`
	Balance     int64     `db:"balance"`
	Description string    `db:"description"`
	SourceType  string    `db:"source_type"`
	SourceID    string    `db:"source_id"`
	SourceModel string    `db:"source_model"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row txRow) toEntity() entity.PointTransaction {
	return entity.PointTransaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Type:        entity.Type(row.Type),
		Amount:      row.Amount,
		Balance:     row.Balance,
		Description: row.Description,
		Source:      entity.Source{Type: row.SourceType, ID: row.SourceID, Model: row.SourceModel},
		Status:      entity.Status(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// Credit adds e.Amount to the available balance, and to the lifetime total
// when the type counts toward it, then records the entry.
func (r *LedgerRepo) Credit(ctx context.Context, ext sqlx.ExtContext, id string, e entity.Entry, now time.Time) (*entity.PointTransaction, error) {
	var grow int64
	if e.Type.GrowsTotal() {
		grow = e.Amount
	}
	var balance int64
	q := ext.Rebind(`UPDATE users
	  SET points_available = points_available + ?, points_total = points_total + ?, updated_at = ?
	  WHERE id = ? RETURNING points_available`)
	if err := sqlx.GetContext(ctx, ext, &balance, q, e.Amount, grow, now, e.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return r.insert(ctx, ext, id, e, balance, now)
}

// Debit removes e.Amount from the available balance only if enough remains.
// The check and the update are one statement, so concurrent debits can never
// drive the balance below zero.
func (r *LedgerRepo) Debit(ctx context.Context, ext sqlx.ExtContext, id string, e entity.Entry, now time.Time) (*entity.PointTransaction, error) {
	var balance int64
	q := ext.Rebind(`UPDATE users
	  SET points_available = points_available - ?, updated_at = ?
	  WHERE id = ? AND points_available >= ? RETURNING points_available`)
	if err := sqlx.GetContext(ctx, ext, &balance, q, e.Amount, now, e.UserID, e.Amount); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		var n int
		if err := sqlx.GetContext(ctx, ext, &n, ext.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), e.UserID); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("%w: need %d", apperr.ErrInsufficientFunds, e.Amount)
	}
	return r.insert(ctx, ext, id, e, balance, now)
}

func (r *LedgerRepo) insert(ctx context.Context, ext sqlx.ExtContext, id string, e entity.Entry, balance int64, now time.Time) (*entity.PointTransaction, error) {
	q := ext.Rebind(`INSERT INTO point_transactions
	  (id, user_id, type, amount, balance, description, source_type, source_id, source_model, status, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := ext.ExecContext(ctx, q, id, e.UserID, string(e.Type), e.Amount, balance, e.Description,
		e.Source.Type, e.Source.ID, e.Source.Model, string(entity.StatusCompleted), now, now); err != nil {
		return nil, err
	}
	return &entity.PointTransaction{
		ID:          id,
		UserID:      e.UserID,
		Type:        e.Type,
		Amount:      e.Amount,
		Balance:     balance,
		Description: e.Description,
		Source:      e.Source,
		Status:      entity.StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Balance reads the current total and available points for userID.
func (r *LedgerRepo) Balance(ctx context.Context, userID string) (entity.Balance, error) {
	var b entity.Balance
	q := r.db.Rebind(`SELECT points_total, points_available FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &b, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Balance{}, apperr.NotFound("user")
		}
		return entity.Balance{}, err
	}
	return b, nil
}

const selectTx = `SELECT id, user_id, type, amount, balance, description, source_type, source_id,
	source_model, status, created_at, updated_at FROM point_transactions`

// ListByUser returns one page of a user's history, newest first, and the
// total number of entries.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]entity.PointTransaction, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM point_transactions WHERE user_id = ?`), userID); err != nil {
		return nil, 0, err
	}
	var rows []txRow
	q := r.db.Rebind(selectTx + ` WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &rows, q, userID, limit, offset); err != nil {
		return nil, 0, err
	}
	out := make([]entity.PointTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, total, nil
}

// GetByID fetches one transaction.
func (r *LedgerRepo) GetByID(ctx context.Context, id string) (*entity.PointTransaction, error) {
	var row txRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectTx+` WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("transaction")
		}
		return nil, err
	}
	tx := row.toEntity()
	return &tx, nil
}

// SetStatus updates the lifecycle status of an entry. Amount and balance
// never change after insert.
func (r *LedgerRepo) SetStatus(ctx context.Context, id string, status entity.Status) error {
	q := r.db.Rebind(`UPDATE point_transactions SET status = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("transaction")
	}
	return nil
}
