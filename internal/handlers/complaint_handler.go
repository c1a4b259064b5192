package handlers

import (
	"net/http"

	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

// ComplaintHandler takes content reports and contact form messages.
type ComplaintHandler struct {
	Reports        *services.ReportService
	ContactService *services.ContactService
}

// CreateReport accepts anonymous reports; signed in reporters are recorded.
func (h *ComplaintHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var reporter *models.User
	if u, ok := CurrentUser(r.Context()); ok {
		reporter = &u
	}
	rep, err := h.Reports.Create(r.Context(), reporter, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, services.MsgReportCreated, rep)
}

func (h *ComplaintHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.ContactService.Send(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgContactReceived, nil)
}

func (h *ComplaintHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	out, err := h.Reports.List(r.Context(), queryString(r, "status"), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ComplaintHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	admin, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.ResolveReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rep, err := h.Reports.Resolve(r.Context(), admin, id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgReportResolved, rep)
}
