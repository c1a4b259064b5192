package handlers

import (
	"net/http"

	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type SubscriptionHandler struct {
	Service *services.SubscriptionService
}

func (h *SubscriptionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	sum, err := h.Service.GetMine(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	sub, err := h.Service.Cancel(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSubscriptionCanceled, sub)
}

// Activate is the admin entry point; payments happen outside the platform.
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req models.ActivateSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.Service.Activate(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSubscriptionActivated, sub)
}
