package handlers

import (
	"net/http"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type ServiceHandler struct {
	Service *services.ServiceService
	Saved   *services.SavedService
}

func serviceFilter(r *http.Request) models.ServiceFilter {
	page, limit := pageParams(r)
	return models.ServiceFilter{
		Category:    queryString(r, "category"),
		Subcategory: queryString(r, "subcategory"),
		Subdivision: queryString(r, "subdivision"),
		ProfileID:   queryInt64(r, "profile_id"),
		PriceMin:    queryFloat(r, "price_min"),
		PriceMax:    queryFloat(r, "price_max"),
		Online:      queryBool(r, "online"),
		Search:      queryString(r, "search"),
		Sort:        queryString(r, "sort"),
		Status:      queryString(r, "status"),
		Page:        page,
		Limit:       limit,
	}
}

func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.List(r.Context(), serviceFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ServiceHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	var viewer *models.User
	if u, ok := CurrentUser(r.Context()); ok {
		viewer = &u
	}
	svc, err := h.Service.GetBySlug(r.Context(), getParam(r, "slug"), viewer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if viewer != nil && h.Saved != nil {
		svc.Saved, _ = h.Saved.IsSaved(r.Context(), viewer.ID, models.SavedKindService, svc.ID)
	}
	writeJSON(w, http.StatusOK, svc)
}

func (h *ServiceHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	items, err := h.Service.ListMine(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// serviceForm reads a service form sent as JSON or as multipart with a
// "data" JSON field and "images" files.
func serviceForm(w http.ResponseWriter, r *http.Request) (models.ServiceRequest, []services.Upload, bool) {
	var req models.ServiceRequest
	uploads, ok := decodeForm(w, r, &req, "images", "images[]")
	if !ok {
		return req, nil, false
	}
	keep, present, err := gatherStringsFromForm(r.MultipartForm, "keep_images", "keep_images[]")
	if err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.ErrBadRequest, apperr.MsgBadRequest))
		return req, nil, false
	}
	if present {
		req.KeepImages = keep
	}
	return req, uploads, true
}

func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	req, uploads, ok := serviceForm(w, r)
	if !ok {
		return
	}
	svc, err := h.Service.CreateService(r.Context(), u, &req, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, services.MsgServiceCreated, svc)
}

func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, uploads, ok := serviceForm(w, r)
	if !ok {
		return
	}
	svc, err := h.Service.EditService(r.Context(), u, id, &req, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgServiceUpdated, svc)
}

type statusAction func(*services.ServiceService, *http.Request, models.User, int64) (models.Service, error)

func (h *ServiceHandler) status(action statusAction, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := mustUser(w, r)
		if !ok {
			return
		}
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		svc, err := action(h.Service, r, u, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeResult(w, http.StatusOK, message, svc)
	}
}

func (h *ServiceHandler) Cancel() http.HandlerFunc {
	return h.status(func(s *services.ServiceService, r *http.Request, u models.User, id int64) (models.Service, error) {
		return s.CancelService(r.Context(), u, id)
	}, services.MsgServiceCanceled)
}

func (h *ServiceHandler) Deactivate() http.HandlerFunc {
	return h.status(func(s *services.ServiceService, r *http.Request, u models.User, id int64) (models.Service, error) {
		return s.Deactivate(r.Context(), u, id)
	}, services.MsgServiceDeactivated)
}

func (h *ServiceHandler) Activate() http.HandlerFunc {
	return h.status(func(s *services.ServiceService, r *http.Request, u models.User, id int64) (models.Service, error) {
		return s.Activate(r.Context(), u, id)
	}, services.MsgServiceActivated)
}

func (h *ServiceHandler) ModerationQueue(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.ListForModeration(r.Context(), serviceFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ServiceHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.ModerationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := h.Service.Moderate(r.Context(), id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := services.MsgServiceApproved
	if !req.Approve {
		msg = services.MsgServiceRejected
	}
	writeResult(w, http.StatusOK, msg, svc)
}
