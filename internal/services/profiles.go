package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pawhaven/pawhaven-backend/internal/auth"
	"github.com/pawhaven/pawhaven-backend/internal/database"
	"github.com/pawhaven/pawhaven-backend/internal/models"
)

// PostgresProfiles is the profiles table backed by Postgres. It satisfies
// auth.Profiles so the session layer can provision rows on first login.
type PostgresProfiles struct{}

func NewPostgresProfiles() *PostgresProfiles {
	return &PostgresProfiles{}
}

func (p *PostgresProfiles) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, username, email, profile_image, created_at
		FROM profiles WHERE id = $1
	`, id).Scan(&profile.ID, &profile.Username, &profile.Email, &profile.ProfileImage, &profile.CreatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrProfileNotFound
		}
		return nil, err
	}

	return &profile, nil
}

func (p *PostgresProfiles) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, username, email, profile_image, created_at
		FROM profiles WHERE LOWER(username) = LOWER($1)
	`, username).Scan(&profile.ID, &profile.Username, &profile.Email, &profile.ProfileImage, &profile.CreatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrProfileNotFound
		}
		return nil, err
	}

	return &profile, nil
}

func (p *PostgresProfiles) Insert(ctx context.Context, profile *models.UserProfile) error {
	return database.PostgresDB.QueryRowContext(ctx, `
		INSERT INTO profiles (id, username, email, profile_image)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, profile.ID, profile.Username, profile.Email, profile.ProfileImage).Scan(&profile.CreatedAt)
}

// Update applies a partial update. Only whitelisted columns are accepted;
// unknown fields are rejected rather than silently dropped.
func (p *PostgresProfiles) Update(ctx context.Context, id string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	allowed := map[string]bool{
		"username":      true,
		"email":         true,
		"profile_image": true,
	}

	setClauses := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	i := 1
	for column, value := range fields {
		if !allowed[column] {
			return fmt.Errorf("cannot update column %q", column)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, i))
		args = append(args, value)
		i++
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d", strings.Join(setClauses, ", "), i)

	result, err := database.PostgresDB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return auth.ErrProfileNotFound
	}
	return nil
}
