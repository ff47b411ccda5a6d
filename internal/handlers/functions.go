package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pawhaven/pawhaven-backend/internal/config"
	"github.com/pawhaven/pawhaven-backend/internal/services"
)

// Service globals wired at startup, swapped for fakes in tests.
var (
	moderationService *services.ModerationService
	mediaService      *services.MediaService
)

func InitModerationService(store services.ReportStore) {
	moderationService = services.NewModerationService(store)
}

func InitMediaService(store services.MediaStore, uploader services.FileUploader) {
	mediaService = services.NewMediaService(store, uploader)
}

// InitCloudinaryUploader wires the media service with Cloudinary storage.
func InitCloudinaryUploader(cfg *config.Config, store services.MediaStore) error {
	uploader, err := services.NewCloudinaryService(
		cfg.CloudinaryName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
	)
	if err != nil {
		return err
	}
	mediaService = services.NewMediaService(store, uploader)
	return nil
}

type ReportCatRequest struct {
	CatID  string `json:"catId"`
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

// ReportCat files one user's report against a listing and returns the
// updated report count.
func ReportCat(w http.ResponseWriter, r *http.Request) {
	var req ReportCatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CatID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "catId and userId are required")
		return
	}

	report, count, err := moderationService.ReportListing(r.Context(), req.CatID, req.UserID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateReport):
			writeError(w, http.StatusBadRequest, "You have already reported this cat")
		case errors.Is(err, services.ErrListingNotFound):
			writeError(w, http.StatusNotFound, "Cat not found")
		default:
			log.Printf("Failed to report cat %s: %v", req.CatID, err)
			writeError(w, http.StatusInternalServerError, "Failed to report cat")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"report":        report,
		"reports_count": count,
	})
}

// UploadMedia ingests one multipart file for a listing. The primary flag
// in the request is a hint; the server decides the real primary status.
func UploadMedia(w http.ResponseWriter, r *http.Request) {
	if mediaService == nil {
		writeError(w, http.StatusInternalServerError, "Media service not initialized")
		return
	}

	if err := r.ParseMultipartForm(25 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form: "+err.Error())
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	catID := r.FormValue("catId")
	userID := r.FormValue("userId")
	if catID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "catId and userId are required")
		return
	}

	mediaType := r.FormValue("mediaType")
	if mediaType == "" {
		mediaType = "image"
	}
	wantPrimary := r.FormValue("isPrimary") == "true"

	media, err := mediaService.Ingest(r.Context(), catID, userID, file, fileHeader.Filename, mediaType, wantPrimary)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrListingNotFound):
			writeError(w, http.StatusNotFound, "Cat not found")
		case errors.Is(err, services.ErrNotListingOwner):
			writeError(w, http.StatusForbidden, "You do not have permission to upload to this cat")
		case errors.Is(err, services.ErrStorage):
			log.Printf("Storage upload failed for cat %s: %v", catID, err)
			writeError(w, http.StatusInternalServerError, "Failed to store file")
		case errors.Is(err, services.ErrMetadata):
			log.Printf("Media metadata write failed for cat %s: %v", catID, err)
			writeError(w, http.StatusInternalServerError, "Failed to save media record")
		default:
			log.Printf("Failed to upload media for cat %s: %v", catID, err)
			writeError(w, http.StatusInternalServerError, "Failed to upload media")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"media":   media,
	})
}
