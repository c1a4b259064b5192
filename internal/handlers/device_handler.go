package handlers

import (
	"net/http"

	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

// DeviceHandler registers FCM tokens for push delivery.
type DeviceHandler struct {
	Service *services.DeviceService
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req models.DeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.Register(r.Context(), u.ID, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgDeviceRegistered, nil)
}

func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.Unregister(r.Context(), u.ID, req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgDeviceUnregistered, nil)
}
