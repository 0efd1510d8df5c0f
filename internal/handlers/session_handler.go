package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inspectsync/server/internal/middleware"
	"github.com/inspectsync/server/internal/models"
	"github.com/inspectsync/server/internal/services"
)

// SessionHandler handles draft session endpoints
type SessionHandler struct {
	sessions   *services.SessionManager
	completion *services.CompletionService
	bus        *services.LifecycleBus
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *services.SessionManager, completion *services.CompletionService, bus *services.LifecycleBus) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		completion: completion,
		bus:        bus,
	}
}

// Open starts or resumes the editing session for a facility
// @Summary Open a draft session
// @Description Opens the editing session for a facility, reconciling the stored draft against any local fallback snapshot.
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body models.OpenSessionRequest true "Facility to inspect"
// @Success 200 {object} models.SessionResponse "Session state after reconciliation"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Security ApiKeyAuth
// @Router /api/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req models.OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	session, err := h.sessions.Open(r.Context(), inspector, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session.View())
}

// Get returns the current session state for a facility
// @Summary Get session state
// @Tags sessions
// @Produce json
// @Param facilityID path string true "Facility ID"
// @Success 200 {object} models.SessionResponse
// @Failure 404 {object} models.ErrorResponse "No open session"
// @Security ApiKeyAuth
// @Router /api/sessions/{facilityID} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, session.View())
}

// Mutate applies one edit to the working draft
// @Summary Edit the working draft
// @Description Applies one field edit. Edits arm the auto-save debounce; a suspend flag flushes the draft to the local fallback immediately.
// @Tags sessions
// @Accept json
// @Produce json
// @Param facilityID path string true "Facility ID"
// @Param request body models.MutateRequest true "Edit to apply"
// @Success 200 {object} models.SessionResponse "Session state after the edit"
// @Failure 400 {object} models.ErrorResponse "Invalid edit"
// @Failure 409 {object} models.ErrorResponse "Inspection already completed"
// @Security ApiKeyAuth
// @Router /api/sessions/{facilityID}/mutate [post]
func (h *SessionHandler) Mutate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req models.MutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := session.ApplyMutation(req); err != nil {
		respondServiceError(w, err)
		return
	}

	if req.Suspend {
		h.bus.Publish(services.LifecycleEvent{
			Kind:       services.LifecycleSuspend,
			FacilityID: session.FacilityID,
			UserID:     session.UserID,
		})
	}

	respondJSON(w, http.StatusOK, session.View())
}

// Save forces an immediate draft save, bypassing the debounce
// @Summary Save the draft now
// @Tags sessions
// @Produce json
// @Param facilityID path string true "Facility ID"
// @Success 200 {object} models.SaveResult
// @Failure 404 {object} models.ErrorResponse "No open session"
// @Failure 502 {object} models.ErrorResponse "Store write failed; draft kept in local fallback"
// @Security ApiKeyAuth
// @Router /api/sessions/{facilityID}/save [post]
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	result, err := session.Scheduler().SaveDraft(r.Context())
	if err != nil {
		log.Printf("Explicit save failed for facility %s: %v", session.FacilityID, err)
		respondError(w, http.StatusBadGateway, "Draft could not be saved to the store; local fallback retained.")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Complete finalizes the draft into an immutable signed report
// @Summary Complete the inspection
// @Description Validates answers and signature, then writes the final report. When every required question is unanswered the caller must confirm auto-fill.
// @Tags sessions
// @Accept json
// @Produce json
// @Param facilityID path string true "Facility ID"
// @Param request body models.CompleteRequest true "Completion options"
// @Success 200 {object} models.CompleteResult
// @Failure 400 {object} models.ErrorResponse "Signature missing or answers incomplete"
// @Failure 409 {object} models.ErrorResponse "Auto-fill confirmation required"
// @Security ApiKeyAuth
// @Router /api/sessions/{facilityID}/complete [post]
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	session, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req models.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	// A signing PIN, once set, gates completion
	if inspector != nil && inspector.HasPIN() && !inspector.VerifyPIN(req.PIN) {
		respondError(w, http.StatusForbidden, "Invalid signing PIN.")
		return
	}

	result, err := h.completion.Complete(r.Context(), session, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.sessions.Close(session.FacilityID, session.UserID)
	respondJSON(w, http.StatusOK, result)
}

// Close tears the session down, flushing unsaved work to the local fallback
// @Summary Close the session
// @Tags sessions
// @Param facilityID path string true "Facility ID"
// @Success 204 "Session closed"
// @Security ApiKeyAuth
// @Router /api/sessions/{facilityID} [delete]
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	facilityID := chi.URLParam(r, "facilityID")
	h.sessions.Close(facilityID, inspector.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Lifecycle publishes an app lifecycle signal from the client
// @Summary Report a lifecycle event
// @Description Suspend flushes matching dirty drafts to the local fallback; terminate also stops their auto-save timers.
// @Tags sessions
// @Accept json
// @Success 202 "Event accepted"
// @Failure 400 {object} models.ErrorResponse "Unknown event kind"
// @Security ApiKeyAuth
// @Router /api/lifecycle [post]
func (h *SessionHandler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	inspector := middleware.GetInspectorFromContext(r.Context())
	if inspector == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req struct {
		Kind       string `json:"kind"`
		FacilityID string `json:"facilityId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	var kind services.LifecycleEventKind
	switch req.Kind {
	case "suspend":
		kind = services.LifecycleSuspend
	case "resume":
		kind = services.LifecycleResume
	case "terminate":
		kind = services.LifecycleTerminate
	default:
		respondError(w, http.StatusBadRequest, "Unknown lifecycle event kind.")
		return
	}

	h.bus.Publish(services.LifecycleEvent{
		Kind:       kind,
		FacilityID: req.FacilityID,
		UserID:     inspector.ID,
	})
	w.WriteHeader(http.StatusAccepted)
}

// currentSession resolves the caller's open session for the facility in the URL
func (h *SessionHandler) currentSession(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
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

// Shared helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondServiceError maps domain errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAutoFillConfirmation):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInspectionCompleted):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrInspectionNotFound),
		errors.Is(err, models.ErrTemplateNotFound),
		errors.Is(err, models.ErrPhotoNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrSignatureRequired),
		errors.Is(err, models.ErrIncompleteAnswers),
		errors.Is(err, models.ErrEmptyFacilityID),
		errors.Is(err, models.ErrInvalidAnswer),
		errors.Is(err, models.ErrUnknownQuestion),
		errors.Is(err, models.ErrTemplateEmpty),
		errors.Is(err, models.ErrPhotoLimitExceeded),
		errors.Is(err, models.ErrPhotoTooLarge),
		errors.Is(err, models.ErrNoPhotosAttached),
		errors.Is(err, models.ErrDraftNotSaved),
		errors.Is(err, models.ErrPINTooShort):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error.")
	}
}
