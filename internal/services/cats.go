package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/pawhaven/pawhaven-backend/internal/database"
	"github.com/pawhaven/pawhaven-backend/internal/models"
)

// URLResolver turns a stored file path into a public URL. Nil resolvers
// leave the path as-is, which is how local development serves files.
type URLResolver func(filePath string) string

// CatService reads and writes listings. Hidden listings (moderation
// threshold reached) are excluded from every public read path.
type CatService struct {
	media   MediaStore
	resolve URLResolver
}

func NewCatService(media MediaStore, resolve URLResolver) *CatService {
	return &CatService{media: media, resolve: resolve}
}

const catColumns = `
	c.id, c.name, c.breed, c.gender, c.age, c.description, c.location,
	c.condition, c.contact, c.status, c.is_hidden, c.user_id, c.created_at,
	p.username
`

// ListCats returns visible listings, newest first, with media attached.
// The page is cached in Redis and invalidated on any listing mutation.
func (s *CatService) ListCats(ctx context.Context, limit, offset int) ([]models.CatListing, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	cacheKey := CacheKey("cats", fmt.Sprintf("list:%d:%d", limit, offset))
	var cached []models.CatListing
	if hit, err := Cache.Get(cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT `+catColumns+`
		FROM cats c
		JOIN profiles p ON p.id = c.user_id
		WHERE c.is_hidden = FALSE
		ORDER BY c.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats, err := s.scanCats(ctx, rows)
	if err != nil {
		return nil, err
	}

	if err := Cache.Set(cacheKey, cats); err != nil {
		log.Printf("Failed to cache cat listings: %v", err)
	}
	return cats, nil
}

// GetCat returns one visible listing with its media.
func (s *CatService) GetCat(ctx context.Context, catID string) (*models.CatListing, error) {
	row := database.PostgresDB.QueryRowContext(ctx, `
		SELECT `+catColumns+`
		FROM cats c
		JOIN profiles p ON p.id = c.user_id
		WHERE c.id = $1 AND c.is_hidden = FALSE
	`, catID)

	cat, err := scanCat(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrListingNotFound
		}
		return nil, err
	}

	if err := s.attachMedia(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// ListCatsByUser returns a user's own listings, hidden ones included, so
// owners can see that a post was taken down.
func (s *CatService) ListCatsByUser(ctx context.Context, userID string) ([]models.CatListing, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT `+catColumns+`
		FROM cats c
		JOIN profiles p ON p.id = c.user_id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanCats(ctx, rows)
}

// CreateCat inserts a new listing for the given owner.
func (s *CatService) CreateCat(ctx context.Context, cat *models.CatListing) error {
	conditionJSON, err := json.Marshal(cat.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode condition: %w", err)
	}
	contactJSON, err := json.Marshal(cat.Contact)
	if err != nil {
		return fmt.Errorf("failed to encode contact: %w", err)
	}

	if cat.Status == "" {
		cat.Status = models.StatusAvailable
	}

	err = database.PostgresDB.QueryRowContext(ctx, `
		INSERT INTO cats (name, breed, gender, age, description, location, condition, contact, status, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, cat.Name, cat.Breed, cat.Gender, cat.Age, cat.Description, cat.Location,
		conditionJSON, contactJSON, cat.Status, cat.UserID).Scan(&cat.ID, &cat.CreatedAt)
	if err != nil {
		return err
	}

	_ = Cache.DeletePattern("cats:*")
	return nil
}

// UpdateStatus flips a listing between available and adopted. Only the
// owner may change it.
func (s *CatService) UpdateStatus(ctx context.Context, catID, userID, status string) error {
	if status != models.StatusAvailable && status != models.StatusAdopted {
		return fmt.Errorf("invalid status %q", status)
	}

	result, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE cats SET status = $1 WHERE id = $2 AND user_id = $3
	`, status, catID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		owner, err := PostgresMedia{}.ListingOwner(ctx, catID)
		if err != nil {
			return err
		}
		if owner != userID {
			return ErrNotListingOwner
		}
		return ErrListingNotFound
	}

	_ = Cache.DeletePattern("cats:*")
	return nil
}

// DeleteCat removes a listing and its media rows. Only the owner may
// delete; media rows go with the listing via the foreign key.
func (s *CatService) DeleteCat(ctx context.Context, catID, userID string) error {
	result, err := database.PostgresDB.ExecContext(ctx, `
		DELETE FROM cats WHERE id = $1 AND user_id = $2
	`, catID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		owner, err := PostgresMedia{}.ListingOwner(ctx, catID)
		if err != nil {
			return err
		}
		if owner != userID {
			return ErrNotListingOwner
		}
		return ErrListingNotFound
	}

	_ = Cache.DeletePattern("cats:*")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCat(row rowScanner) (*models.CatListing, error) {
	var cat models.CatListing
	var conditionJSON, contactJSON []byte

	err := row.Scan(&cat.ID, &cat.Name, &cat.Breed, &cat.Gender, &cat.Age,
		&cat.Description, &cat.Location, &conditionJSON, &contactJSON,
		&cat.Status, &cat.IsHidden, &cat.UserID, &cat.CreatedAt,
		&cat.UploaderUsername)
	if err != nil {
		return nil, err
	}

	if len(conditionJSON) > 0 {
		cat.Condition = &models.CatCondition{}
		if err := json.Unmarshal(conditionJSON, cat.Condition); err != nil {
			return nil, fmt.Errorf("failed to decode condition: %w", err)
		}
	}
	if len(contactJSON) > 0 {
		cat.Contact = &models.CatContact{}
		if err := json.Unmarshal(contactJSON, cat.Contact); err != nil {
			return nil, fmt.Errorf("failed to decode contact: %w", err)
		}
	}

	return &cat, nil
}

func (s *CatService) scanCats(ctx context.Context, rows *sql.Rows) ([]models.CatListing, error) {
	cats := []models.CatListing{}
	for rows.Next() {
		cat, err := scanCat(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cats {
		if err := s.attachMedia(ctx, &cats[i]); err != nil {
			return nil, err
		}
	}
	return cats, nil
}

// attachMedia loads a listing's media, resolves URLs, and picks the card
// thumbnail: primary image first, then any image, then any primary, then
// the first item, then nothing.
func (s *CatService) attachMedia(ctx context.Context, cat *models.CatListing) error {
	media, err := s.media.ListMedia(ctx, cat.ID)
	if err != nil {
		return err
	}

	for i := range media {
		if s.resolve != nil {
			media[i].URL = s.resolve(media[i].FilePath)
		} else {
			media[i].URL = media[i].FilePath
		}
	}
	cat.Media = media
	cat.ImageURL = thumbnailURL(media)
	return nil
}

func thumbnailURL(media []models.CatMedia) string {
	for _, m := range media {
		if m.IsPrimary && m.MediaType == models.MediaTypeImage {
			return m.URL
		}
	}
	for _, m := range media {
		if m.MediaType == models.MediaTypeImage {
			return m.URL
		}
	}
	for _, m := range media {
		if m.IsPrimary {
			return m.URL
		}
	}
	if len(media) > 0 {
		return media[0].URL
	}
	return ""
}
