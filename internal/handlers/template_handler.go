package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inspectsync/server/internal/repository"
)

// TemplateHandler serves checklist templates
type TemplateHandler struct {
	templates repository.TemplateRepo
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templates repository.TemplateRepo) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// Get returns a checklist template by id
// @Summary Get a template
// @Tags templates
// @Produce json
// @Param templateID path string true "Template ID"
// @Success 200 {object} models.Template
// @Failure 404 {object} models.ErrorResponse "Template not found"
// @Security ApiKeyAuth
// @Router /api/templates/{templateID} [get]
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "templateID")

	template, err := h.templates.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("Error loading template: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}
	if template == nil {
		respondError(w, http.StatusNotFound, "Template not found.")
		return
	}

	respondJSON(w, http.StatusOK, template)
}

// GetDefault returns the seeded default template
// @Summary Get the default template
// @Tags templates
// @Produce json
// @Success 200 {object} models.Template
// @Security ApiKeyAuth
// @Router /api/templates/default [get]
func (h *TemplateHandler) GetDefault(w http.ResponseWriter, r *http.Request) {
	template, err := h.templates.GetByName(r.Context(), repository.DefaultTemplateName)
	if err != nil {
		log.Printf("Error loading default template: %v", err)
		respondError(w, http.StatusInternalServerError, "Database error.")
		return
	}
	if template == nil {
		respondError(w, http.StatusNotFound, "Template not found.")
		return
	}

	respondJSON(w, http.StatusOK, template)
}
