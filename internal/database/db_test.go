package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTempDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString_Profiles(t *testing.T) {
	tests := []struct {
		profile DatabaseProfile
		want    string
	}{
		{ProfileLedger, "synchronous(FULL)"},
		{ProfileCache, "synchronous(OFF)"},
		{ProfileStandard, "synchronous(NORMAL)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			connStr := buildConnectionString("/tmp/x.db", tt.profile)
			assert.Contains(t, connStr, "/tmp/x.db?_pragma=journal_mode(WAL)")
			assert.Contains(t, connStr, tt.want)
			assert.Contains(t, connStr, "busy_timeout(5000)")
		})
	}
}

func TestMigrate_CreatesTables(t *testing.T) {
	tests := []struct {
		name   string
		tables []string
	}{
		{"ledger", []string{"ledger_events", "open_positions", "decision_records"}},
		{"portfolio", []string{"snapshots"}},
		{"cache", []string{"price_cache"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTempDB(t, tt.name, ProfileStandard)
			require.NoError(t, db.Migrate())
			// Second run must be a no-op
			require.NoError(t, db.Migrate())

			for _, table := range tt.tables {
				var got string
				err := db.Conn().QueryRow(
					"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
				).Scan(&got)
				require.NoError(t, err, table)
				assert.Equal(t, table, got)
			}
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTempDB(t, "scratch", ProfileStandard)
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTempDB(t, "tx", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
		return n
	}

	t.Run("commits on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO t (v) VALUES (1)")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO t (v) VALUES (2)"); err != nil {
				return err
			}
			return boom
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, _ = tx.Exec("INSERT INTO t (v) VALUES (3)")
			panic("unexpected")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
		assert.Equal(t, 1, count())
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
	})
}

func TestHealthCheckAndBackup(t *testing.T) {
	db := newTempDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())
	_, err := db.Conn().Exec(`INSERT INTO open_positions (symbol, buy_price, buy_date, cost_amount)
		VALUES ('AAPL', 100, '2026-01-02', 10000)`)
	require.NoError(t, err)

	require.NoError(t, db.HealthCheck(context.Background()))

	dest := filepath.Join(t.TempDir(), "backup", "ledger.db")
	require.NoError(t, db.BackupTo(context.Background(), dest))

	copied, err := New(Config{Path: dest, Name: "ledger-copy"})
	require.NoError(t, err)
	defer copied.Close()

	var n int
	require.NoError(t, copied.Conn().QueryRow("SELECT COUNT(*) FROM open_positions").Scan(&n))
	assert.Equal(t, 1, n)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageCount)
}
