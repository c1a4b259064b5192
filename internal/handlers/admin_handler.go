package handlers

import (
	"net/http"

	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type AdminHandler struct {
	Service *services.AdminService
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	out, err := h.Service.ListUsers(r.Context(), models.UserFilter{
		Search:  queryString(r, "search"),
		Role:    queryString(r, "role"),
		Blocked: queryBool(r, "blocked"),
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	admin, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.Service.SetBlocked(r.Context(), admin, id, req.Blocked)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := services.MsgUserBlocked
	if !req.Blocked {
		msg = services.MsgUserUnblocked
	}
	writeResult(w, http.StatusOK, msg, user)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	admin, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.Service.SetRole(r.Context(), admin, id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgRoleChanged, user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteUser(r.Context(), admin, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgUserDeleted, nil)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	var req models.RevalidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.Revalidate(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgRevalidated, map[string]any{"tags": req.Tags})
}
