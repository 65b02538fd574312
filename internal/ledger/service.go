package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/ledger/entity"
	"github.com/HanjuJo/Latteh/internal/ledger/repo"
	"github.com/HanjuJo/Latteh/internal/metrics"
	"github.com/HanjuJo/Latteh/pkg/database"
	"github.com/HanjuJo/Latteh/pkg/utilities"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 100_000
)

// Ledger is the only writer of user balances. Credit and Debit run in their
// own transaction; CreditTx and DebitTx join one the caller already holds.
type Ledger struct {
	db      *sqlx.DB
	repo    *repo.LedgerRepo
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	nowFn   func() time.Time
}

func NewLedger(db *sqlx.DB, r *repo.LedgerRepo, m *metrics.Metrics, logger *zap.SugaredLogger) *Ledger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Ledger{db: db, repo: r, metrics: m, logger: logger, nowFn: func() time.Time { return time.Now().UTC() }}
}

func validate(e entity.Entry) error {
	if e.UserID == "" {
		return apperr.Validation("user id is required")
	}
	if e.Amount <= 0 {
		return apperr.Validation("amount must be positive")
	}
	if e.Source.Type == "" {
		return apperr.Validation("source type is required")
	}
	return nil
}

// Credit adds points to a user.
func (l *Ledger) Credit(ctx context.Context, e entity.Entry) (*entity.PointTransaction, error) {
	var out *entity.PointTransaction
	err := database.WithTx(ctx, l.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = l.CreditTx(ctx, tx, e)
		return err
	})
	return out, err
}

// CreditTx is Credit inside the caller's transaction.
func (l *Ledger) CreditTx(ctx context.Context, ext sqlx.ExtContext, e entity.Entry) (*entity.PointTransaction, error) {
	if err := validate(e); err != nil {
		return nil, err
	}
	if !e.Type.IsCredit() {
		return nil, apperr.Validation("%q is not a credit type", e.Type)
	}
	tx, err := l.repo.Credit(ctx, ext, utilities.NewSnowflakeID(), e, l.nowFn())
	l.observe(e, err)
	return tx, err
}

// Debit removes points from a user, failing with ErrInsufficientFunds when
// the available balance is short.
func (l *Ledger) Debit(ctx context.Context, e entity.Entry) (*entity.PointTransaction, error) {
	var out *entity.PointTransaction
	err := database.WithTx(ctx, l.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = l.DebitTx(ctx, tx, e)
		return err
	})
	return out, err
}

// DebitTx is Debit inside the caller's transaction.
func (l *Ledger) DebitTx(ctx context.Context, ext sqlx.ExtContext, e entity.Entry) (*entity.PointTransaction, error) {
	if err := validate(e); err != nil {
		return nil, err
	}
	if !e.Type.IsDebit() {
		return nil, apperr.Validation("%q is not a debit type", e.Type)
	}
	tx, err := l.repo.Debit(ctx, ext, utilities.NewSnowflakeID(), e, l.nowFn())
	l.observe(e, err)
	return tx, err
}

func (l *Ledger) observe(e entity.Entry, err error) {
	outcome := "ok"
	switch {
	case err == nil:
		l.logger.Debugw("points posted", "user_id", e.UserID, "type", e.Type, "amount", e.Amount, "source", e.Source.Type)
	case errors.Is(err, apperr.ErrInsufficientFunds):
		outcome = "insufficient_funds"
	case errors.Is(err, apperr.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
		l.logger.Warnw("posting failed", "user_id", e.UserID, "type", e.Type, "err", err)
	}
	l.metrics.ObservePosting(string(e.Type), outcome)
}

// Withdraw cashes out points from the available balance.
func (l *Ledger) Withdraw(ctx context.Context, userID string, amount int64) (*entity.PointTransaction, error) {
	return l.Debit(ctx, entity.Entry{
		UserID:      userID,
		Amount:      amount,
		Type:        entity.TypeWithdrawal,
		Description: fmt.Sprintf("포인트 출금 %d", amount),
		Source:      entity.Source{Type: entity.SourceWithdrawal, Model: entity.ModelUser, ID: userID},
	})
}

// Grant credits points on behalf of an administrator.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int64, reason string) (*entity.PointTransaction, error) {
	if reason == "" {
		reason = "관리자 지급"
	}
	return l.Credit(ctx, entity.Entry{
		UserID:      userID,
		Amount:      amount,
		Type:        entity.TypeReward,
		Description: reason,
		Source:      entity.Source{Type: entity.SourceAdmin, Model: entity.ModelUser, ID: userID},
	})
}

// Balance returns the user's current points.
func (l *Ledger) Balance(ctx context.Context, userID string) (entity.Balance, error) {
	return l.repo.Balance(ctx, userID)
}

// HistoryPage is one page of a user's transactions.
type HistoryPage struct {
	Items []entity.PointTransaction `json:"items"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
	Total int64                     `json:"total"`
}

// History lists transactions newest first. page starts at 1.
func (l *Ledger) History(ctx context.Context, userID string, page, limit int) (HistoryPage, error) {
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
	items, total, err := l.repo.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return HistoryPage{}, err
	}
	return HistoryPage{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// SetStatus changes a transaction's lifecycle status.
func (l *Ledger) SetStatus(ctx context.Context, id string, status entity.Status) error {
	if !status.Valid() {
		return apperr.Validation("unknown status %q", status)
	}
	return l.repo.SetStatus(ctx, id, status)
}
