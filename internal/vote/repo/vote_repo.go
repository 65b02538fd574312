package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/HanjuJo/Latteh/internal/vote"
	"github.com/HanjuJo/Latteh/pkg/database"
)

// VoteRepo stores one row per (target, user). A user without a row has not
// voted, so up and down are mutually exclusive by construction.
type VoteRepo struct {
	db *sqlx.DB
}

func NewVoteRepo(db *sqlx.DB) *VoteRepo { return &VoteRepo{db: db} }

func (r *VoteRepo) EnsureTable(ctx context.Context) error {
	return database.ExecAll(ctx, r.db, `
CREATE TABLE IF NOT EXISTS votes (
  target_type VARCHAR(16) NOT NULL,
  target_id VARCHAR(32) NOT NULL,
  user_id VARCHAR(32) NOT NULL REFERENCES users(id),
  direction VARCHAR(8) NOT NULL CHECK (direction IN ('up', 'down')),
  created_at TIMESTAMP NOT NULL,
  PRIMARY KEY (target_type, target_id, user_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_user ON votes(user_id)`,
	)
}

// Toggle applies dir for userID on target in one transaction and returns the
// new tally along with the user's resulting vote.
func (r *VoteRepo) Toggle(ctx context.Context, target vote.Target, userID string, dir vote.Direction) (vote.Tally, vote.Direction, error) {
	var (
		tally vote.Tally
		next  vote.Direction
	)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		current, err := mine(ctx, tx, target, userID)
		if err != nil {
			return err
		}
		next = vote.Next(current, dir)
		if next == vote.None {
			_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM votes WHERE target_type = ? AND target_id = ? AND user_id = ?`),
				target.Type, target.ID, userID)
		} else {
			err = put(ctx, tx, target, userID, next)
		}
		if err != nil {
			return err
		}
		tally, err = tallyOf(ctx, tx, target)
		return err
	})
	return tally, next, err
}

// Tally counts the votes on target.
func (r *VoteRepo) Tally(ctx context.Context, target vote.Target) (vote.Tally, error) {
	return tallyOf(ctx, r.db, target)
}

type countRow struct {
	TargetID  string `db:"target_id"`
	Direction string `db:"direction"`
	N         int64  `db:"n"`
}

// Tallies counts votes for many targets of one type. Targets without votes
// are absent from the map.
func (r *VoteRepo) Tallies(ctx context.Context, targetType string, ids []string) (map[string]vote.Tally, error) {
	out := make(map[string]vote.Tally, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT target_id, direction, COUNT(*) AS n FROM votes
	  WHERE target_type = ? AND target_id IN (?) GROUP BY target_id, direction`, targetType, ids)
	if err != nil {
		return nil, err
	}
	var rows []countRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		t := out[row.TargetID]
		if vote.Direction(row.Direction) == vote.Up {
			t.Upvotes = row.N
		} else {
			t.Downvotes = row.N
		}
		out[row.TargetID] = t
	}
	return out, nil
}

func mine(ctx context.Context, q sqlx.ExtContext, target vote.Target, userID string) (vote.Direction, error) {
	var dir string
	err := sqlx.GetContext(ctx, q, &dir, q.Rebind(`SELECT direction FROM votes
	  WHERE target_type = ? AND target_id = ? AND user_id = ?`), target.Type, target.ID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return vote.None, nil
	}
	if err != nil {
		return vote.None, err
	}
	return vote.Direction(dir), nil
}

// put writes userID's vote as an upsert. Two first votes racing on the same
// key both land here with current == None; the later one overwrites instead
// of failing on the primary key.
func put(ctx context.Context, ext sqlx.ExtContext, target vote.Target, userID string, dir vote.Direction) error {
	_, err := ext.ExecContext(ctx, ext.Rebind(`INSERT INTO votes (target_type, target_id, user_id, direction, created_at)
	  VALUES (?, ?, ?, ?, ?)
	  ON CONFLICT (target_type, target_id, user_id) DO UPDATE SET direction = excluded.direction, created_at = excluded.created_at`),
		target.Type, target.ID, userID, string(dir), time.Now().UTC())
	return err
}

func tallyOf(ctx context.Context, q sqlx.ExtContext, target vote.Target) (vote.Tally, error) {
	var rows []countRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(`SELECT target_id, direction, COUNT(*) AS n FROM votes
	  WHERE target_type = ? AND target_id = ? GROUP BY target_id, direction`), target.Type, target.ID)
	if err != nil {
		return vote.Tally{}, err
	}
	var t vote.Tally
	for _, row := range rows {
		if vote.Direction(row.Direction) == vote.Up {
			t.Upvotes = row.N
		} else {
			t.Downvotes = row.N
		}
	}
	return t, nil
}
