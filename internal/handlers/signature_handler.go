package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/inspectsync/server/internal/middleware"
	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/repository"
	"github.com/inspectsync/server/internal/services"
)

// SignatureHandler manages the caller's signing credential and PIN
type SignatureHandler struct {
	signatures repository.SignatureRepo
	inspectors repository.InspectorRepo
	clock      services.Clock
}

// NewSignatureHandler creates a new SignatureHandler
func NewSignatureHandler(signatures repository.SignatureRepo, inspectors repository.InspectorRepo, clock services.Clock) *SignatureHandler {
	return &SignatureHandler{
		signatures: signatures,
		inspectors: inspectors,
		clock:      clock,
	}
}

// Get returns the caller's stored signature
// @Summary Get the signing credential
// @Tags signatures
// @Produce json
// @Success 200 {object} models.Signature
// @Failure 404 {object} models.ErrorResponse "No signature on file"
// @Security ApiKeyAuth
// @Router /api/signature [get]
func (h *SignatureHandler) Get(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	signature, err := h.signatures.Get(r.Context(), inspector.AccountID, inspector.ID)
	if err != nil {
		log.Printf("Error loading signature: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}
	if !signature.Valid() {
		respondError(w, http.StatusNotFound, "No signature on file.")
		return
	}

	respondJSON(w, http.StatusOK, signature)
}

// Put stores or replaces the caller's signature
// @Summary Save the signing credential
// @Tags signatures
// @Accept json
// @Produce json
// @Param request body models.Signature true "Signature data"
// @Success 200 {object} models.Signature
// @Failure 400 {object} models.ErrorResponse "Blank signature"
// @Security ApiKeyAuth
// @Router /api/signature [put]
func (h *SignatureHandler) Put(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req struct {
		SignatureData string `json:"signatureData"`
		InspectorName string `json:"inspectorName,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	name := req.InspectorName
	if name == "" {
		name = inspector.Name
	}

	signature := &models.Signature{
		AccountID:     inspector.AccountID,
		UserID:        inspector.ID,
		InspectorName: name,
		SignatureData: req.SignatureData,
		UpdatedAt:     h.clock.Now(),
	}
	if !signature.Valid() {
		respondError(w, http.StatusBadRequest, "Signature data must not be blank.")
		return
	}

	if err := h.signatures.Upsert(r.Context(), signature); err != nil {
		log.Printf("Error saving signature: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	respondJSON(w, http.StatusOK, signature)
}

// SetPIN sets the caller's signing PIN
// @Summary Set the signing PIN
// @Description Once a PIN is set, completing an inspection requires it.
// @Tags signatures
// @Accept json
// @Success 204 "PIN updated"
// @Failure 400 {object} models.ErrorResponse "PIN too short"
// @Security ApiKeyAuth
// @Router /api/signature/pin [post]
func (h *SignatureHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := inspector.SetPIN(req.PIN); err != nil {
		respondServiceError(w, err)
		return
	}

	if err := h.inspectors.UpdatePINHash(r.Context(), inspector.ID, inspector.PINHash); err != nil {
		log.Printf("Error saving PIN: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
