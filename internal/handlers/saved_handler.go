package handlers

import (
	"net/http"

	"doulitsa/internal/services"
)

// SavedHandler manages bookmarks. Routes carry the kind (service or profile)
// and the target id.
type SavedHandler struct {
	Service *services.SavedService
}

func (h *SavedHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	out, err := h.Service.List(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SavedHandler) IDs(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	out, err := h.Service.IDs(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SavedHandler) Save(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.Save(r.Context(), u.ID, getParam(r, "kind"), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSavedAdded, nil)
}

func (h *SavedHandler) Remove(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.Remove(r.Context(), u.ID, getParam(r, "kind"), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSavedRemoved, nil)
}
