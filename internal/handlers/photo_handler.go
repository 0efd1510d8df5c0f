package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inspectsync/server/internal/middleware"
	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/repository"
	"github.com/inspectsync/server/internal/services"
)

// PhotoHandler handles photo attachment endpoints
type PhotoHandler struct {
	sessions *services.SessionManager
	pipeline *services.PhotoPipeline
	photos   repository.PhotoRepo
	blobs    *services.BlobStore
}

// NewPhotoHandler creates a new PhotoHandler
func NewPhotoHandler(sessions *services.SessionManager, pipeline *services.PhotoPipeline, photos repository.PhotoRepo, blobs *services.BlobStore) *PhotoHandler {
	return &PhotoHandler{
		sessions: sessions,
		pipeline: pipeline,
		photos:   photos,
		blobs:    blobs,
	}
}

// Upload attaches a batch of photos to one checklist item
// @Summary Upload photos for a checklist item
// @Description Accepts a multipart batch. Each image is normalized before upload; files over the size cap or beyond the per-item limit are rejected individually. Partial success is reported, not failed.
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param facilityID path string true "Facility ID"
// @Param questionID path string true "Checklist question ID"
// @Param files formData file true "Image files"
// @Success 200 {object} models.PhotoBatchResult "Attached and rejected files"
// @Failure 400 {object} models.ErrorResponse "Batch rejected outright"
// @Security ApiKeyAuth
// @Router /api/sessions/{facilityID}/questions/{questionID}/photos [post]
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	questionID := chi.URLParam(r, "questionID")

	// Parse multipart form (max 64MB in memory across the batch)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Request must be multipart/form-data.")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		respondError(w, http.StatusBadRequest, "No files provided.")
		return
	}

	files := make([]services.UploadFile, 0, len(r.MultipartForm.File["files"]))
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "Failed to read uploaded file.")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "Failed to read uploaded file.")
			return
		}
		files = append(files, services.UploadFile{Name: header.Filename, Data: data})
	}

	// Photos hang off the stored record, so an unsaved draft is pushed to
	// the store first
	if session.RemoteID() == "" {
		if _, err := session.Scheduler().SaveDraft(r.Context()); err != nil {
			log.Printf("Pre-upload draft save failed for facility %s: %v", session.FacilityID, err)
			respondError(w, http.StatusBadGateway, models.ErrDraftNotSaved.Error())
			return
		}
	}

	result, err := h.pipeline.Attach(r.Context(), session.RemoteID(), questionID, files)
	if err != nil {
		if result != nil && len(result.Rejected) > 0 {
			respondJSON(w, http.StatusBadRequest, result)
			return
		}
		respondServiceError(w, err)
		return
	}

	for _, photo := range result.Attached {
		session.AttachPhoto(photo)
	}

	respondJSON(w, http.StatusOK, result)
}

// Delete removes a photo attachment
// @Summary Delete a photo
// @Description Removes the catalog row first, then the stored blob best-effort.
// @Tags photos
// @Param facilityID path string true "Facility ID"
// @Param photoID path string true "Photo ID"
// @Success 204 "Photo deleted"
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Security ApiKeyAuth
// @Router /api/sessions/{facilityID}/photos/{photoID} [delete]
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	photoID := chi.URLParam(r, "photoID")
	if err := h.pipeline.Delete(r.Context(), photoID); err != nil {
		respondServiceError(w, err)
		return
	}

	session.DetachPhoto(photoID)
	w.WriteHeader(http.StatusNoContent)
}

// ListByInspection lists the photo catalog for an inspection
// @Summary List photos for an inspection
// @Tags photos
// @Produce json
// @Param inspectionID path string true "Inspection ID"
// @Success 200 {array} models.Photo
// @Security ApiKeyAuth
// @Router /api/inspections/{inspectionID}/photos [get]
func (h *PhotoHandler) ListByInspection(w http.ResponseWriter, r *http.Request) {
	inspectionID := chi.URLParam(r, "inspectionID")

	photos, err := h.photos.ListByInspection(r.Context(), inspectionID)
	if err != nil {
		log.Printf("Error listing photos: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	respondJSON(w, http.StatusOK, photos)
}

// Download serves a photo's bytes
// @Summary Download a photo
// @Tags photos
// @Produce image/jpeg
// @Param photoID path string true "Photo ID"
// @Success 200 {file} binary "Image bytes"
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Security ApiKeyAuth
// @Router /api/photos/{photoID}/file [get]
func (h *PhotoHandler) Download(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoID")

	photo, err := h.photos.GetByID(r.Context(), photoID)
	if err != nil {
		log.Printf("Error loading photo: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "Photo not found.")
		return
	}

	fullPath, err := h.blobs.FullPath(photo.StoragePath)
	if err != nil || !h.blobs.Exists(photo.StoragePath) {
		respondError(w, http.StatusNotFound, "Photo file not found.")
		return
	}

	http.ServeFile(w, r, fullPath)
}

func (h *PhotoHandler) currentSession(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return nil, false
	}

	facilityID := chi.URLParam(r, "facilityID")
	session, err := h.sessions.Get(facilityID, inspector.ID)
	if err != nil {
		respondError(w, http.StatusNotFound, "No open session for this facility.")
		return nil, false
	}
	return session, true
}
