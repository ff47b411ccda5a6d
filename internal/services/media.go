package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pawhaven/pawhaven-backend/internal/database"
	"github.com/pawhaven/pawhaven-backend/internal/models"
)

var (
	ErrNotListingOwner = errors.New("user does not own this listing")
	ErrStorage         = errors.New("media storage failed")
	ErrMetadata        = errors.New("media metadata write failed")
)

// MediaStore is the cat_media persistence boundary.
type MediaStore interface {
	// ListingOwner returns the owner of a listing, or ErrListingNotFound.
	ListingOwner(ctx context.Context, catID string) (string, error)
	ListMedia(ctx context.Context, catID string) ([]models.CatMedia, error)
	// SaveMedia inserts the row; when demoteOthers is set, every existing
	// primary for the listing is demoted in the same transaction.
	SaveMedia(ctx context.Context, media *models.CatMedia, demoteOthers bool) error
}

// FileUploader pushes file bytes to external storage and returns the
// public URL.
type FileUploader interface {
	Upload(ctx context.Context, file multipart.File, path string) (string, error)
}

// PostgresMedia backs MediaStore with the cat_media table.
type PostgresMedia struct{}

func (PostgresMedia) ListingOwner(ctx context.Context, catID string) (string, error) {
	var ownerID string
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT user_id FROM cats WHERE id = $1
	`, catID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrListingNotFound
		}
		return "", err
	}
	return ownerID, nil
}

func (PostgresMedia) ListMedia(ctx context.Context, catID string) ([]models.CatMedia, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT id, cat_id, file_path, media_type, is_primary, created_at
		FROM cat_media WHERE cat_id = $1
		ORDER BY created_at ASC, id ASC
	`, catID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []models.CatMedia
	for rows.Next() {
		var m models.CatMedia
		if err := rows.Scan(&m.ID, &m.CatID, &m.FilePath, &m.MediaType, &m.IsPrimary, &m.CreatedAt); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (PostgresMedia) SaveMedia(ctx context.Context, media *models.CatMedia, demoteOthers bool) error {
	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if demoteOthers {
		if _, err := tx.ExecContext(ctx, `
			UPDATE cat_media SET is_primary = FALSE WHERE cat_id = $1 AND is_primary = TRUE
		`, media.CatID); err != nil {
			return err
		}
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO cat_media (cat_id, file_path, media_type, is_primary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, media.CatID, media.FilePath, media.MediaType, media.IsPrimary).Scan(&media.ID, &media.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// DecidePrimary settles whether a new file becomes the listing's primary
// media, given the caller's request and what the listing already holds.
// The first file is always primary. An image is primary when the listing
// has no images yet, otherwise only when the uploader asked for it. A
// video is never primary once the listing holds any other media.
func DecidePrimary(mediaType string, existing []models.CatMedia, requested bool) bool {
	if len(existing) == 0 {
		return true
	}

	if mediaType != models.MediaTypeImage {
		return false
	}

	for _, m := range existing {
		if m.MediaType == models.MediaTypeImage {
			return requested
		}
	}
	return true
}

// MediaService runs the upload flow: ownership check, storage upload,
// primary decision, metadata write, audit.
type MediaService struct {
	store    MediaStore
	uploader FileUploader
}

func NewMediaService(store MediaStore, uploader FileUploader) *MediaService {
	return &MediaService{store: store, uploader: uploader}
}

// Ingest uploads one file for a listing and records its metadata. The
// storage upload happens before the metadata write; if the write then
// fails the stored file is orphaned, which is recorded in the audit trail
// so it can be reaped later.
func (s *MediaService) Ingest(ctx context.Context, catID, userID string, file multipart.File, filename, mediaType string, wantPrimary bool) (*models.CatMedia, error) {
	owner, err := s.store.ListingOwner(ctx, catID)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, ErrNotListingOwner
	}

	existing, err := s.store.ListMedia(ctx, catID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	path := fmt.Sprintf("%s/%s/%s%s", userID, catID, uuid.New().String(), ext)

	url, err := s.uploader.Upload(ctx, file, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	isPrimary := DecidePrimary(mediaType, existing, wantPrimary)

	media := &models.CatMedia{
		CatID:     catID,
		FilePath:  path,
		MediaType: mediaType,
		IsPrimary: isPrimary,
		URL:       url,
	}

	if err := s.store.SaveMedia(ctx, media, isPrimary); err != nil {
		if auditErr := RecordAudit(models.AuditMediaOrphaned, catID, userID, path); auditErr != nil {
			log.Printf("Failed to record orphaned media event: %v", auditErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMetadata, err)
	}

	if err := RecordAudit(models.AuditMediaUploaded, catID, userID, path); err != nil {
		log.Printf("Failed to record media audit event: %v", err)
	}
	_ = Cache.DeletePattern("cats:*")

	return media, nil
}

var _ MediaStore = PostgresMedia{}
