package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/pawhaven/pawhaven-backend/internal/database"
	"github.com/pawhaven/pawhaven-backend/internal/models"
)

// ReportThreshold is the number of distinct reporters that hides a listing.
const ReportThreshold = 5

var (
	ErrDuplicateReport = errors.New("listing already reported by this user")
	ErrListingNotFound = errors.New("listing not found")
)

// ReportStore is the moderation persistence boundary. Tests swap in a
// memory fake; the server uses the Postgres implementation.
type ReportStore interface {
	HasReport(ctx context.Context, catID, userID string) (bool, error)
	InsertReport(ctx context.Context, report *models.CatReport) error
	CountReports(ctx context.Context, catID string) (int, error)
	HideListing(ctx context.Context, catID string) error
}

// PostgresReports backs ReportStore with the cat_reports table.
type PostgresReports struct{}

func (PostgresReports) HasReport(ctx context.Context, catID, userID string) (bool, error) {
	var exists bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM cat_reports WHERE cat_id = $1 AND user_id = $2)
	`, catID, userID).Scan(&exists)
	return exists, err
}

func (PostgresReports) InsertReport(ctx context.Context, report *models.CatReport) error {
	return database.PostgresDB.QueryRowContext(ctx, `
		INSERT INTO cat_reports (cat_id, user_id, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, report.CatID, report.UserID, report.Reason).Scan(&report.ID, &report.CreatedAt)
}

func (PostgresReports) CountReports(ctx context.Context, catID string) (int, error) {
	var count int
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cat_reports WHERE cat_id = $1
	`, catID).Scan(&count)
	return count, err
}

func (PostgresReports) HideListing(ctx context.Context, catID string) error {
	result, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE cats SET is_hidden = TRUE WHERE id = $1
	`, catID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrListingNotFound
	}
	return nil
}

// ModerationService applies the report rules: one report per user per
// listing, and a listing disappears once enough distinct users report it.
type ModerationService struct {
	store ReportStore
}

func NewModerationService(store ReportStore) *ModerationService {
	return &ModerationService{store: store}
}

// ReportListing files a report and returns the updated report count. The
// count is always re-read from the store after the insert so concurrent
// reporters converge on the real total.
func (s *ModerationService) ReportListing(ctx context.Context, catID, userID, reason string) (*models.CatReport, int, error) {
	already, err := s.store.HasReport(ctx, catID, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check existing report: %w", err)
	}
	if already {
		return nil, 0, ErrDuplicateReport
	}

	report := &models.CatReport{CatID: catID, UserID: userID, Reason: reason}
	if err := s.store.InsertReport(ctx, report); err != nil {
		return nil, 0, fmt.Errorf("failed to insert report: %w", err)
	}

	if err := RecordAudit(models.AuditReportFiled, catID, userID, reason); err != nil {
		log.Printf("Failed to record report audit event: %v", err)
	}

	count, err := s.store.CountReports(ctx, catID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	if count >= ReportThreshold {
		if err := s.store.HideListing(ctx, catID); err != nil {
			if !errors.Is(err, ErrListingNotFound) {
				return nil, 0, fmt.Errorf("failed to hide listing: %w", err)
			}
		} else {
			if err := RecordAudit(models.AuditListingHidden, catID, userID,
				fmt.Sprintf("hidden at %d reports", count)); err != nil {
				log.Printf("Failed to record hide audit event: %v", err)
			}
			_ = Cache.DeletePattern("cats:*")
		}
	}

	return report, count, nil
}

var _ ReportStore = PostgresReports{}
