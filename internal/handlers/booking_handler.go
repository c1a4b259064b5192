package handlers

import (
	"net/http"

	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type BookingHandler struct {
	Service *services.BookingService
}

func (h *BookingHandler) Request(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req models.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.Service.Request(r.Context(), u, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, services.MsgBookingRequested, b)
}

func (h *BookingHandler) Decide(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.BookingDecision
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.Service.Decide(r.Context(), u, id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgBookingUpdated, b)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	b, err := h.Service.Get(r.Context(), u, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// List returns the caller's bookings as client, or as provider with
// ?as=provider.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	page, limit := pageParams(r)
	out, err := h.Service.List(r.Context(), u.ID, queryString(r, "as") == "provider", page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
