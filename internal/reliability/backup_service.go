// Package reliability provides database backups and their cloud copies.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/database"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

const (
	archivePrefix     = "papertrail-backup-"
	archiveSuffix     = ".tar.gz"
	archiveTimeLayout = "2006-01-02-150405"
	metadataFilename  = "backup-metadata.json"
	metadataVersion   = "1"

	// LocalArchivesToKeep is how many archives stay in the local backup directory
	LocalArchivesToKeep = 7
)

// ErrChecksumMismatch is returned when an archived database does not match its recorded checksum
var ErrChecksumMismatch = errors.New("backup checksum mismatch")

// BackupMetadata contains metadata about a backup
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata contains metadata about a single database in the backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// Archive is a verified backup archive on local disk
type Archive struct {
	Name      string         `json:"name"`
	Path      string         `json:"path"`
	SizeBytes int64          `json:"size_bytes"`
	Metadata  BackupMetadata `json:"metadata"`
}

// BackupInfo describes a stored backup archive
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// BackupService writes consistent copies of every database into tar.gz archives
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	clock     domain.Clock
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(
	databases map[string]*database.DB,
	backupDir string,
	clock domain.Clock,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		clock:     clock,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// BackupDir returns the directory archives are written to
func (s *BackupService) BackupDir() string {
	return s.backupDir
}

// DatabaseNames returns the names of the databases included in every archive, sorted
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name, db := range s.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Backup creates and verifies an archive, then rotates old local archives
func (s *BackupService) Backup(ctx context.Context) (*Archive, error) {
	archive, err := s.CreateArchive(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.RotateLocal(LocalArchivesToKeep); err != nil {
		// Archive succeeded
		s.log.Error().Err(err).Msg("Failed to rotate local backups")
	}
	return archive, nil
}

// BackupDatabase copies one database to destPath with VACUUM INTO and checks the copy
func (s *BackupService) BackupDatabase(ctx context.Context, name, destPath string) error {
	db, ok := s.databases[name]
	if !ok || db == nil {
		return fmt.Errorf("database %s not found", name)
	}

	s.log.Debug().
		Str("database", name).
		Str("backup_path", destPath).
		Msg("Backing up database")

	if err := db.BackupTo(ctx, destPath); err != nil {
		return err
	}
	if err := verifyDatabaseFile(ctx, destPath); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("backup verification failed for %s: %w", name, err)
	}
	return nil
}

// CreateArchive backs up every database into a staging directory and packs them
// with a checksum manifest into a tar.gz archive. The archive is verified before
// it is returned.
func (s *BackupService) CreateArchive(ctx context.Context) (*Archive, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	now := s.clock.Now().UTC()
	stamp := now.Format(archiveTimeLayout)

	stagingDir := filepath.Join(s.backupDir, "staging-"+stamp)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	names := s.DatabaseNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("no databases to back up")
	}

	metadata := BackupMetadata{
		Timestamp: now,
		Version:   metadataVersion,
		Databases: make([]DatabaseMetadata, 0, len(names)),
	}

	files := make([]string, 0, len(names)+1)
	for _, name := range names {
		filename := name + ".db"
		path := filepath.Join(stagingDir, filename)

		if err := s.BackupDatabase(ctx, name, path); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Failed to backup database")
			return nil, fmt.Errorf("failed to backup %s: %w", name, err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s backup: %w", name, err)
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksum for %s: %w", name, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFilename), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFilename)

	archiveName := ArchiveName(now)
	archivePath := filepath.Join(s.backupDir, archiveName)
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	if _, err := VerifyArchive(archivePath); err != nil {
		_ = os.Remove(archivePath)
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int("databases", len(names)).
		Int64("size_bytes", info.Size()).
		Msg("Backup completed successfully")

	return &Archive{
		Name:      archiveName,
		Path:      archivePath,
		SizeBytes: info.Size(),
		Metadata:  metadata,
	}, nil
}

// ListLocal lists archives in the backup directory, newest first
func (s *BackupService) ListLocal() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	now := s.clock.Now()
	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := ParseArchiveName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Timestamp: ts,
			SizeBytes: info.Size(),
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sortNewestFirst(backups)
	return backups, nil
}

// RotateLocal deletes all but the newest keep archives and returns how many were removed
func (s *BackupService) RotateLocal(keep int) (int, error) {
	backups, err := s.ListLocal()
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		path := filepath.Join(s.backupDir, backup.Filename)
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old backup")
			continue
		}
		s.log.Debug().Str("path", path).Msg("Deleted old backup")
		deleted++
	}
	return deleted, nil
}

// ArchiveName returns the archive filename for a backup taken at t
func ArchiveName(t time.Time) string {
	return archivePrefix + t.UTC().Format(archiveTimeLayout) + archiveSuffix
}

// ParseArchiveName extracts the timestamp from an archive filename:
// papertrail-backup-2026-01-08-143022.tar.gz
func ParseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	ts, err := time.Parse(archiveTimeLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// VerifyArchive reads an archive back and checks every database against the
// checksums recorded in its metadata.
func VerifyArchive(path string) (*BackupMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	defer gz.Close()

	checksums := make(map[string]string)
	var metadata *BackupMetadata

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry: %w", err)
		}

		if header.Name == metadataFilename {
			var m BackupMetadata
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return nil, fmt.Errorf("failed to decode backup metadata: %w", err)
			}
			metadata = &m
			continue
		}

		hash := sha256.New()
		if _, err := io.Copy(hash, tr); err != nil {
			return nil, fmt.Errorf("failed to read %s from archive: %w", header.Name, err)
		}
		checksums[header.Name] = fmt.Sprintf("sha256:%x", hash.Sum(nil))
	}

	if metadata == nil {
		return nil, fmt.Errorf("archive %s has no metadata", filepath.Base(path))
	}
	for _, db := range metadata.Databases {
		got, ok := checksums[db.Filename]
		if !ok {
			return nil, fmt.Errorf("archive %s is missing %s", filepath.Base(path), db.Filename)
		}
		if got != db.Checksum {
			return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, db.Filename)
		}
	}
	return metadata, nil
}

// verifyDatabaseFile runs an integrity check against a backup copy
func verifyDatabaseFile(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// fileChecksum calculates the SHA256 checksum of a file
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive packs the named files of sourceDir into a tar.gz archive
func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			_ = tarWriter.Close()
			_ = gzipWriter.Close()
			_ = archiveFile.Close()
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		_ = gzipWriter.Close()
		_ = archiveFile.Close()
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		_ = archiveFile.Close()
		return err
	}
	return archiveFile.Close()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}

func sortNewestFirst(backups []BackupInfo) {
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
}
