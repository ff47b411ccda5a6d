package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pawhaven/pawhaven-backend/internal/models"
	"github.com/pawhaven/pawhaven-backend/internal/services"
)

var catService *services.CatService

func InitCatService(svc *services.CatService) {
	catService = svc
}

// ListCats returns visible listings, newest first.
func ListCats(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	cats, err := catService.ListCats(r.Context(), limit, offset)
	if err != nil {
		log.Printf("Failed to list cats: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch cats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cats":    cats,
	})
}

// GetCat returns one listing with its media.
func GetCat(w http.ResponseWriter, r *http.Request) {
	catID := chi.URLParam(r, "catID")

	cat, err := catService.GetCat(r.Context(), catID)
	if err != nil {
		if errors.Is(err, services.ErrListingNotFound) {
			writeError(w, http.StatusNotFound, "Cat not found")
			return
		}
		log.Printf("Failed to fetch cat %s: %v", catID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch cat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cat":     cat,
	})
}

// ListUserCats returns all of one user's listings, hidden ones included.
func ListUserCats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	cats, err := catService.ListCatsByUser(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to list cats for user %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch cats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cats":    cats,
	})
}

// CreateCat adds a new listing.
func CreateCat(w http.ResponseWriter, r *http.Request) {
	var cat models.CatListing
	if err := json.NewDecoder(r.Body).Decode(&cat); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if cat.Name == "" || cat.UserID == "" {
		writeError(w, http.StatusBadRequest, "name and user_id are required")
		return
	}

	if err := catService.CreateCat(r.Context(), &cat); err != nil {
		log.Printf("Failed to create cat: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create cat")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"cat":     cat,
	})
}

type updateStatusRequest struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// UpdateCatStatus flips a listing between available and adopted.
func UpdateCatStatus(w http.ResponseWriter, r *http.Request) {
	catID := chi.URLParam(r, "catID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "userId and status are required")
		return
	}

	if err := catService.UpdateStatus(r.Context(), catID, req.UserID, req.Status); err != nil {
		switch {
		case errors.Is(err, services.ErrListingNotFound):
			writeError(w, http.StatusNotFound, "Cat not found")
		case errors.Is(err, services.ErrNotListingOwner):
			writeError(w, http.StatusForbidden, "You do not have permission to update this cat")
		default:
			log.Printf("Failed to update cat %s: %v", catID, err)
			writeError(w, http.StatusInternalServerError, "Failed to update cat")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DeleteCat removes a listing.
func DeleteCat(w http.ResponseWriter, r *http.Request) {
	catID := chi.URLParam(r, "catID")
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := catService.DeleteCat(r.Context(), catID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrListingNotFound):
			writeError(w, http.StatusNotFound, "Cat not found")
		case errors.Is(err, services.ErrNotListingOwner):
			writeError(w, http.StatusForbidden, "You do not have permission to delete this cat")
		default:
			log.Printf("Failed to delete cat %s: %v", catID, err)
			writeError(w, http.StatusInternalServerError, "Failed to delete cat")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
