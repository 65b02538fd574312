package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	sqlDB, err := Connect(Config{
		Driver:  DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "db.sqlite"),
		Timeout: time.Second,
	})
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, DriverSQLite)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.Driver)
	require.Equal(t, 5, cfg.MaxConns)
	require.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", " SQLite ")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("DATABASE_TIMEOUT", "2s")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.Driver)
	require.Equal(t, "file:test.db", cfg.DSN)
	require.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestConfigFromEnvInvalidDuration(t *testing.T) {
	t.Setenv("DATABASE_TIMEOUT", "soon")
	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(Config{Driver: "mysql", DSN: "x"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestWithTxCommitAndRollback(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, ExecAll(ctx, db, `CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER NOT NULL)`))

	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "a", 1)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "b", 2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM kv`))
	require.Equal(t, 1, n)
}

func TestSQLiteRebindKeepsQuestionMarks(t *testing.T) {
	db := openSQLite(t)
	require.Equal(t, "SELECT ? + ?", db.Rebind("SELECT ? + ?"))

	pg := sqlx.NewDb(nil, DriverPostgres)
	require.Equal(t, "SELECT $1 + $2", pg.Rebind("SELECT ? + ?"))
}

func TestSQLiteDSNEnablesForeignKeys(t *testing.T) {
	require.Equal(t, "a.db?_pragma=foreign_keys(1)", sqliteDSN("a.db"))
	require.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", sqliteDSN("a.db?_pragma=busy_timeout(5000)"))
	require.Equal(t, "a.db?_pragma=foreign_keys(0)", sqliteDSN("a.db?_pragma=foreign_keys(0)"))

	sqlDB, err := Connect(Config{
		Driver:  DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "fk.sqlite"),
		Timeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	ctx := context.Background()

	// no idle pool, so each query dials a fresh connection
	sqlDB.SetMaxIdleConns(0)
	for i := 0; i < 3; i++ {
		var on int
		require.NoError(t, sqlDB.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&on))
		require.Equal(t, 1, on)
	}

	require.NoError(t, ExecAll(ctx, sqlDB,
		`CREATE TABLE parent (id TEXT PRIMARY KEY)`,
		`CREATE TABLE child (id TEXT PRIMARY KEY, parent_id TEXT NOT NULL REFERENCES parent(id))`))
	_, err = sqlDB.ExecContext(ctx, `INSERT INTO child (id, parent_id) VALUES ('c', 'missing')`)
	require.Error(t, err)
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	require.Equal(t, `%"abc"%`, ContainsPattern("abc"))
	require.Equal(t, `%"a\_c"%`, ContainsPattern("a_c"))
	require.Equal(t, `%"100\%"%`, ContainsPattern("100%"))

	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, ExecAll(ctx, db, `CREATE TABLE tagged (id TEXT PRIMARY KEY, tags TEXT NOT NULL)`))
	for id, tags := range map[string]StringList{"1": {"abc"}, "2": {"a_c"}, "3": {"100%"}} {
		_, err := db.ExecContext(ctx, `INSERT INTO tagged (id, tags) VALUES (?, ?)`, id, tags)
		require.NoError(t, err)
	}
	match := func(item string) []string {
		var ids []string
		require.NoError(t, db.SelectContext(ctx, &ids,
			`SELECT id FROM tagged WHERE tags LIKE ?`+LikeEscape+` ORDER BY id`, ContainsPattern(item)))
		return ids
	}
	require.Equal(t, []string{"1"}, match("abc"))
	require.Equal(t, []string{"2"}, match("a_c"))
	require.Equal(t, []string{"3"}, match("100%"))
	require.Empty(t, match("%"))
}

func TestQuoteLiteral(t *testing.T) {
	require.Equal(t, "'Asia/Seoul'", quoteLiteral("Asia/Seoul"))
	require.Equal(t, "'it''s'", quoteLiteral("it's"))
}

func TestIsUniqueViolation(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, ExecAll(ctx, db, `CREATE TABLE u (email TEXT NOT NULL UNIQUE)`))
	_, err := db.ExecContext(ctx, `INSERT INTO u (email) VALUES ('a@b.c')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO u (email) VALUES ('a@b.c')`)
	require.True(t, IsUniqueViolation(err))
	require.False(t, IsUniqueViolation(errors.New("timeout")))
	require.False(t, IsUniqueViolation(nil))
}
