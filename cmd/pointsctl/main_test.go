package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/HanjuJo/Latteh/internal/testutil"
	"github.com/HanjuJo/Latteh/pkg/database"
)

func run(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetArgs(append([]string{"--driver", "sqlite", "--dsn", dsn}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGrantBalanceHistory(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dsn := filepath.Join(t.TempDir(), "ctl.db") + "?_pragma=busy_timeout(5000)"

	out, err := run(t, dsn, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "schema up to date")

	sqlDB, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: dsn, Timeout: 5 * time.Second})
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, database.DriverSQLite)
	testutil.InsertUser(t, db, "u1", 0)
	require.NoError(t, db.Close())

	out, err = run(t, dsn, "grant", "--user", "u1", "--amount", "150", "--reason", "이벤트 보상")
	require.NoError(t, err)
	require.Contains(t, out, "granted 150 to u1")

	out, err = run(t, dsn, "balance", "--user", "u1")
	require.NoError(t, err)
	require.Equal(t, "total=150 available=150\n", out)

	out, err = run(t, dsn, "history", "--user", "u1", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "보상")
	require.Contains(t, out, "1 of 1 transactions")

	txID := strings.Fields(strings.Split(out, "\n")[1])[0]
	out, err = run(t, dsn, "status", "--tx", txID, "--status", "cancelled")
	require.NoError(t, err)
	require.Contains(t, out, "-> cancelled")

	_, err = run(t, dsn, "status", "--tx", txID, "--status", "bogus")
	require.Error(t, err)

	_, err = run(t, dsn, "grant", "--user", "ghost", "--amount", "5")
	require.Error(t, err)
}
