package handlers

import (
	"net/http"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type ProfileHandler struct {
	Service *services.ProfileService
	Saved   *services.SavedService
}

func profileFilter(r *http.Request) models.ProfileFilter {
	page, limit := pageParams(r)
	return models.ProfileFilter{
		Category:    queryString(r, "category"),
		Subcategory: queryString(r, "subcategory"),
		CountyID:    queryInt64(r, "county_id"),
		Type:        queryString(r, "type"),
		Online:      queryBool(r, "online"),
		Verified:    queryBool(r, "verified"),
		Search:      queryString(r, "search"),
		Sort:        queryString(r, "sort"),
		Page:        page,
		Limit:       limit,
	}
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.List(r.Context(), profileFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get returns a public profile. Signed in viewers also learn whether they
// saved it.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetByUsername(r.Context(), getParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if viewer, ok := CurrentUser(r.Context()); ok && h.Saved != nil {
		p.Saved, _ = h.Saved.IsSaved(r.Context(), viewer.ID, models.SavedKindProfile, p.ID)
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Mine(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	p, err := h.Service.GetMine(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req models.ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Service.Upsert(r.Context(), u, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgProfileSaved, p)
}

// UploadImage takes a multipart "image" file. kind=cover replaces the cover,
// anything else the avatar.
func (h *ProfileHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var discard struct{}
	uploads, ok := decodeForm(w, r, &discard, "image")
	if !ok {
		return
	}
	if len(uploads) != 1 {
		writeError(w, r, apperr.Validation(map[string]string{"image": services.MsgInvalidImage}))
		return
	}
	kind := queryString(r, "kind")
	if kind == "" {
		kind = r.FormValue("kind")
	}
	p, err := h.Service.UploadImage(r.Context(), u.ID, kind, uploads[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgImageUploaded, p)
}

func (h *ProfileHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.ListAll(r.Context(), profileFilter(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *ProfileHandler) SetVerified(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.FlagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Service.SetVerified(r.Context(), id, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := services.MsgProfileVerified
	if !req.Value {
		msg = services.MsgProfileUnverified
	}
	writeResult(w, http.StatusOK, msg, p)
}

func (h *ProfileHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.FlagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Service.SetFeatured(r.Context(), id, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSaved, p)
}
