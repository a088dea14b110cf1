package reliability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// MinRemoteBackups is the number of newest remote archives rotation never deletes
const MinRemoteBackups = 3

// ObjectStore is the bucket API the R2 backup service needs
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// R2BackupService uploads local backup archives to Cloudflare R2
type R2BackupService struct {
	store         ObjectStore
	backupService *BackupService
	retentionDays int
	clock         domain.Clock
	log           zerolog.Logger
}

// NewR2BackupService creates a new R2 backup service.
// retentionDays of 0 keeps remote archives forever.
func NewR2BackupService(
	store ObjectStore,
	backupService *BackupService,
	retentionDays int,
	clock domain.Clock,
	log zerolog.Logger,
) *R2BackupService {
	return &R2BackupService{
		store:         store,
		backupService: backupService,
		retentionDays: retentionDays,
		clock:         clock,
		log:           log.With().Str("service", "r2_backup").Logger(),
	}
}

// Backup creates an archive, uploads it and rotates old remote archives
func (s *R2BackupService) Backup(ctx context.Context) (*Archive, error) {
	archive, err := s.CreateAndUploadBackup(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.RotateOldBackups(ctx, s.retentionDays); err != nil {
		// Upload succeeded
		s.log.Error().Err(err).Msg("Failed to rotate r2 backups")
	}
	return archive, nil
}

// CreateAndUploadBackup creates a local archive and uploads it to R2
func (s *R2BackupService) CreateAndUploadBackup(ctx context.Context) (*Archive, error) {
	s.log.Info().Msg("Starting R2 backup")
	startTime := time.Now()

	archive, err := s.backupService.Backup(ctx)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	if err := s.store.Upload(ctx, archive.Name, file, archive.SizeBytes); err != nil {
		return nil, fmt.Errorf("failed to upload to r2: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archive.Name).
		Int64("size_bytes", archive.SizeBytes).
		Msg("R2 backup completed successfully")

	return archive, nil
}

// ListBackups lists all backups stored in R2, newest first
func (s *R2BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list r2 backups: %w", err)
	}

	now := s.clock.Now()
	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		ts, ok := ParseArchiveName(*obj.Key)
		if !ok {
			s.log.Warn().Str("filename", *obj.Key).Msg("Failed to parse timestamp from filename")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{
			Filename:  *obj.Key,
			Timestamp: ts,
			SizeBytes: size,
			AgeHours:  int64(now.Sub(ts).Hours()),
		})
	}

	sortNewestFirst(backups)
	return backups, nil
}

// RotateOldBackups deletes remote archives older than the retention period.
// The newest MinRemoteBackups archives are always kept.
func (s *R2BackupService) RotateOldBackups(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= MinRemoteBackups {
		s.log.Debug().Int("count", len(backups)).Msg("Too few backups to rotate")
		return 0, nil
	}

	cutoff := s.clock.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[MinRemoteBackups:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("R2 backup rotation completed")

	return deleted, nil
}
