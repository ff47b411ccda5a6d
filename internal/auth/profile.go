package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/pawhaven/pawhaven-backend/internal/models"
	"github.com/pawhaven/pawhaven-backend/pkg/utils"
)

// Profiles is the profile table boundary. The server wires the Postgres
// implementation from internal/services; tests use in-memory fakes.
type Profiles interface {
	GetByID(ctx context.Context, id string) (*models.UserProfile, error)
	Insert(ctx context.Context, p *models.UserProfile) error
	// Update applies a partial update; fields maps column name to new value.
	Update(ctx context.Context, id string, fields map[string]string) error
}

// FetchOrCreateProfile looks up the profile row for an authenticated user and
// provisions one when it is missing. An existing row is returned verbatim; a
// new row gets the metadata username/image or the synthesized defaults.
// Any lookup or insert failure propagates as a fetch failure.
func FetchOrCreateProfile(ctx context.Context, profiles Profiles, user AuthUser) (*models.UserProfile, error) {
	if user.ID == "" {
		return nil, fmt.Errorf("auth user has no id")
	}

	existing, err := profiles.GetByID(ctx, user.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	username := user.Metadata["username"]
	if username == "" {
		username = utils.DefaultUsername(user.ID)
	}
	image := user.Metadata["profile_image"]
	if image == "" {
		image = models.DefaultProfileImage
	}

	profile := &models.UserProfile{
		ID:           user.ID,
		Username:     username,
		Email:        user.Email,
		ProfileImage: image,
	}
	if err := profiles.Insert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}
