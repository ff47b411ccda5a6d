package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pawhaven/pawhaven-backend/internal/auth"
	"github.com/pawhaven/pawhaven-backend/pkg/utils"
)

var profileStore auth.Profiles

func InitProfileStore(store auth.Profiles) {
	profileStore = store
}

type ensureProfileRequest struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EnsureProfile fetches the profile row for an authenticated user,
// provisioning one with defaults when it does not exist yet.
func EnsureProfile(w http.ResponseWriter, r *http.Request) {
	var req ensureProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	profile, err := auth.FetchOrCreateProfile(r.Context(), profileStore, auth.AuthUser{
		ID:       req.ID,
		Email:    req.Email,
		Metadata: req.Metadata,
	})
	if err != nil {
		log.Printf("Failed to ensure profile %s: %v", req.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}

// GetProfile returns one profile by id.
func GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	profile, err := profileStore.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("Failed to fetch profile %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}

type updateProfileRequest struct {
	Username     *string `json:"username,omitempty"`
	Email        *string `json:"email,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// UpdateProfile applies a partial profile update.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := make(map[string]string)
	if req.Username != nil {
		normalized := utils.NormalizeUsername(*req.Username)
		if err := utils.ValidateUsername(normalized); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fields["username"] = normalized
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.ProfileImage != nil {
		fields["profile_image"] = *req.ProfileImage
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	if err := profileStore.Update(r.Context(), userID, fields); err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		log.Printf("Failed to update profile %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	profile, err := profileStore.GetByID(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to reload profile %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}
