package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inspectsync/server/internal/middleware"
	"github.com/inspectsync/server/internal/repository"
)

// InspectionHandler handles read access to stored inspection records
type InspectionHandler struct {
	inspections repository.InspectionRepo
}

// NewInspectionHandler creates a new InspectionHandler
func NewInspectionHandler(inspections repository.InspectionRepo) *InspectionHandler {
	return &InspectionHandler{inspections: inspections}
}

// Get returns one stored inspection
// @Summary Get an inspection
// @Tags inspections
// @Produce json
// @Param inspectionID path string true "Inspection ID"
// @Success 200 {object} models.Inspection
// @Failure 404 {object} models.ErrorResponse "Inspection not found"
// @Security ApiKeyAuth
// @Router /api/inspections/{inspectionID} [get]
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "inspectionID")

	inspection, err := h.inspections.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("Error loading inspection: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}
	if inspection == nil {
		respondError(w, http.StatusNotFound, "Inspection not found.")
		return
	}

	respondJSON(w, http.StatusOK, inspection)
}

// ListByFacility returns a facility's inspection history, newest first
// @Summary List inspections for a facility
// @Tags inspections
// @Produce json
// @Param facilityId query string true "Facility ID"
// @Param limit query int false "Maximum records to return (default 50)"
// @Success 200 {array} models.Inspection
// @Failure 400 {object} models.ErrorResponse "Missing facility id"
// @Security ApiKeyAuth
// @Router /api/inspections [get]
func (h *InspectionHandler) ListByFacility(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	facilityID := r.URL.Query().Get("facilityId")
	if facilityID == "" {
		respondError(w, http.StatusBadRequest, "facilityId query parameter is required.")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	inspections, err := h.inspections.ListByFacility(r.Context(), facilityID, inspector.AccountID, limit)
	if err != nil {
		log.Printf("Error listing inspections: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	respondJSON(w, http.StatusOK, inspections)
}
