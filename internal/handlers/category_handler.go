package handlers

import (
	"net/http"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

// CategoryHandler serves the taxonomy tree and its admin CRUD. The level
// path parameter is one of categories, subcategories or subdivisions.
type CategoryHandler struct {
	Service *services.CategoryService
}

func (h *CategoryHandler) Tree(w http.ResponseWriter, r *http.Request) {
	tax, err := h.Service.Tree(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tax)
}

func (h *CategoryHandler) level(w http.ResponseWriter, r *http.Request) (string, bool) {
	level := getParam(r, "level")
	if !services.ValidLevel(level) {
		writeError(w, r, apperr.NotFound(services.MsgCategoryNotFound))
		return "", false
	}
	return level, true
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	level, ok := h.level(w, r)
	if !ok {
		return
	}
	var req models.TaxonomyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.Service.Create(r.Context(), level, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, services.MsgCategorySaved, map[string]any{"id": id, "slug": req.Slug})
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	level, ok := h.level(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.TaxonomyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.Update(r.Context(), level, id, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgCategorySaved, map[string]any{"id": id, "slug": req.Slug})
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	level, ok := h.level(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), level, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgCategoryDeleted, nil)
}
