package handlers

import (
	"net/http"

	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type ReviewHandler struct {
	Service *services.ReviewService
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	serviceID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rv, err := h.Service.Create(r.Context(), u, serviceID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, services.MsgReviewCreated, rv)
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rv, err := h.Service.Update(r.Context(), u, id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgReviewUpdated, rv)
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), u, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgReviewDeleted, nil)
}

func (h *ReviewHandler) ListByService(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	page, limit := pageParams(r)
	out, err := h.Service.ListByService(r.Context(), serviceID, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReviewHandler) ListByProfile(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	out, err := h.Service.ListByProfile(r.Context(), getParam(r, "username"), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
