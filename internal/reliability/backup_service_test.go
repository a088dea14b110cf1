package reliability

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/database"
	"github.com/aristath/papertrail/internal/domain"
	testingpkg "github.com/aristath/papertrail/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackupFixture(t *testing.T) (*BackupService, *domain.FixedClock) {
	t.Helper()

	ledgerDB, cleanupLedger := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanupLedger)
	scratchDB, cleanupScratch := testingpkg.NewTestDB(t, "scratch")
	t.Cleanup(cleanupScratch)

	_, err := scratchDB.Conn().Exec("CREATE TABLE trades (id INTEGER PRIMARY KEY, symbol TEXT)")
	require.NoError(t, err)
	_, err = scratchDB.Conn().Exec("INSERT INTO trades (symbol) VALUES ('AAPL'), ('MSFT')")
	require.NoError(t, err)

	clock := domain.NewFixedClock(time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC))
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewBackupService(map[string]*database.DB{
		"ledger":  ledgerDB,
		"scratch": scratchDB,
		"missing": nil,
	}, filepath.Join(t.TempDir(), "backups"), clock, log)
	return svc, clock
}

func TestBackupService_DatabaseNames(t *testing.T) {
	svc, _ := newBackupFixture(t)
	assert.Equal(t, []string{"ledger", "scratch"}, svc.DatabaseNames())
}

func TestBackupService_CreateArchive(t *testing.T) {
	svc, _ := newBackupFixture(t)

	archive, err := svc.CreateArchive(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "papertrail-backup-2026-03-02-030000.tar.gz", archive.Name)
	assert.FileExists(t, archive.Path)
	assert.Greater(t, archive.SizeBytes, int64(0))
	require.Len(t, archive.Metadata.Databases, 2)
	assert.Equal(t, "ledger.db", archive.Metadata.Databases[0].Filename)
	assert.Contains(t, archive.Metadata.Databases[1].Checksum, "sha256:")

	metadata, err := VerifyArchive(archive.Path)
	require.NoError(t, err)
	assert.Equal(t, archive.Metadata.Databases, metadata.Databases)

	entries, err := os.ReadDir(svc.BackupDir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directory should be removed")
}

func TestBackupService_BackupDatabase(t *testing.T) {
	svc, _ := newBackupFixture(t)
	dest := filepath.Join(t.TempDir(), "scratch.db")

	require.NoError(t, svc.BackupDatabase(context.Background(), "scratch", dest))

	copyDB, err := sql.Open("sqlite", dest)
	require.NoError(t, err)
	defer copyDB.Close()

	var count int
	require.NoError(t, copyDB.QueryRow("SELECT COUNT(*) FROM trades").Scan(&count))
	assert.Equal(t, 2, count)

	err = svc.BackupDatabase(context.Background(), "missing", dest)
	assert.Error(t, err)
}

func TestBackupService_RotateLocal(t *testing.T) {
	svc, clock := newBackupFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.CreateArchive(ctx)
		require.NoError(t, err)
		clock.Set(clock.Now().Add(24 * time.Hour))
	}

	deleted, err := svc.RotateLocal(2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	backups, err := svc.ListLocal()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "papertrail-backup-2026-03-05-030000.tar.gz", backups[0].Filename)
	assert.Equal(t, "papertrail-backup-2026-03-04-030000.tar.gz", backups[1].Filename)
}

func TestVerifyArchive_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.db"), []byte("ledger"), 0644))
	require.NoError(t, writeMetadata(filepath.Join(dir, metadataFilename), BackupMetadata{
		Version: metadataVersion,
		Databases: []DatabaseMetadata{
			{Name: "ledger", Filename: "ledger.db", Checksum: "sha256:deadbeef"},
		},
	}))

	archivePath := filepath.Join(dir, "bad.tar.gz")
	require.NoError(t, createArchive(archivePath, dir, []string{"ledger.db", metadataFilename}))

	_, err := VerifyArchive(archivePath)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestParseArchiveName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"papertrail-backup-2026-01-08-143022.tar.gz", true},
		{"papertrail-backup-2026-01-08.tar.gz", false},
		{"other-2026-01-08-143022.tar.gz", false},
		{"papertrail-backup-2026-01-08-143022.zip", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := ParseArchiveName(tt.name)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, time.Date(2026, 1, 8, 14, 30, 22, 0, time.UTC), ts)
			}
		})
	}
}
