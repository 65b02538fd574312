package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/apperr"
	"github.com/HanjuJo/Latteh/internal/level"
	"github.com/HanjuJo/Latteh/internal/user/entity"
	"github.com/HanjuJo/Latteh/pkg/database"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// points_* columns belong to the ledger; this repo only seeds them with zero.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(32) PRIMARY KEY,
  email VARCHAR(255) NOT NULL UNIQUE,
  name VARCHAR(200) NOT NULL,
  nickname VARCHAR(120) NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  password_algo VARCHAR(32) NOT NULL DEFAULT '',
  user_type VARCHAR(32) NOT NULL,
  bio TEXT NOT NULL DEFAULT '',
  profile_image TEXT NOT NULL DEFAULT '',
  points_total BIGINT NOT NULL DEFAULT 0,
  points_available BIGINT NOT NULL DEFAULT 0 CHECK (points_available >= 0),
  stat_questions_asked BIGINT NOT NULL DEFAULT 0,
  stat_answers_provided BIGINT NOT NULL DEFAULT 0,
  stat_experiences_shared BIGINT NOT NULL DEFAULT 0,
  stat_ebooks_published BIGINT NOT NULL DEFAULT 0,
  stat_best_answer_count BIGINT NOT NULL DEFAULT 0,
  version BIGINT NOT NULL DEFAULT 1,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at)`,
	)
}

type userRow struct {
	ID              string    `db:"id"`
	Email           string    `db:"email"`
	Name            string    `db:"name"`
	Nickname        string    `db:"nickname"`
	PasswordHash    string    `db:"password_hash"`
	PasswordAlgo    string    `db:"password_algo"`
	UserType        string    `db:"user_type"`
	Bio             string    `db:"bio"`
	ProfileImage    string    `db:"profile_image"`
	PointsTotal     int64     `db:"points_total"`
	PointsAvailable int64     `db:"points_available"`
	Version         int64     `db:"version"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	level.Activity
}

func (row userRow) toEntity() *entity.User {
	return &entity.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		Nickname:     row.Nickname,
		PasswordHash: row.PasswordHash,
		PasswordAlgo: row.PasswordAlgo,
		UserType:     row.UserType,
		Bio:          row.Bio,
		ProfileImage: row.ProfileImage,
		Points:       entity.Points{Total: row.PointsTotal, Available: row.PointsAvailable},
		Statistics:   row.Activity,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

const selectUser = `SELECT id, email, name, nickname, password_hash, password_algo, user_type, bio,
	profile_image, points_total, points_available, stat_questions_asked, stat_answers_provided,
	stat_experiences_shared, stat_ebooks_published, stat_best_answer_count, version, created_at, updated_at
  FROM users`

// Create inserts a new user row with zero points and counters.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	q := r.db.Rebind(`INSERT INTO users (id, email, name, nickname, password_hash, password_algo,
		user_type, bio, profile_image, version, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Email, u.Name, u.Nickname, u.PasswordHash, u.PasswordAlgo,
		u.UserType, u.Bio, u.ProfileImage, u.Version, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: email or nickname already registered", apperr.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *UserRepo) get(ctx context.Context, where string, arg any) (*entity.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectUser+" WHERE "+where+" = ?"), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.get(ctx, "id", id)
}

// GetByEmail returns a user matched by (lower-cased) email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.get(ctx, "email", email)
}

// ExistsByEmail reports whether the email is taken.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// ExistsByNickname reports whether the nickname is taken.
func (r *UserRepo) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, "nickname", nickname)
}

func (r *UserRepo) exists(ctx context.Context, col string, v string) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM users WHERE `+col+` = ?`), v); err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementStat bumps one activity counter atomically. ext may be the DB or a
// caller's transaction.
func (r *UserRepo) IncrementStat(ctx context.Context, ext sqlx.ExtContext, id string, stat entity.Stat) error {
	col := stat.Column()
	if col == "" {
		return fmt.Errorf("unknown stat %q", stat)
	}
	q := ext.Rebind(`UPDATE users SET ` + col + ` = ` + col + ` + 1, updated_at = ? WHERE id = ?`)
	res, err := ext.ExecContext(ctx, q, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("user")
	}
	return nil
}
