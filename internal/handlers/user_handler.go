package handlers

import (
	"net/http"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type UserHandler struct {
	Service *services.UserService
}

type authPayload struct {
	User   models.User   `json:"user"`
	Tokens models.Tokens `json:"tokens"`
}

func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.Service.SignUp(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, services.MsgSignedUp, user)
}

func (h *UserHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.ConfirmEmail(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgEmailConfirmed, nil)
}

func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tokens, user, err := h.Service.SignIn(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSignedIn, authPayload{User: user, Tokens: tokens})
}

func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken = r.Header.Get("Refresh-Token")
	}
	tokens, err := h.Service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken = r.Header.Get("Refresh-Token")
	}
	if err := h.Service.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSignedOut, nil)
}

func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.ForgotPassword(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgResetRequested, nil)
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.ResetPassword(r.Context(), &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgPasswordChanged, nil)
}

func (h *UserHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.Service.GoogleAuthURL()
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *UserHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if e := queryString(r, "error"); e != "" {
		writeError(w, r, apperr.Unauthorized(services.MsgGoogleFailed))
		return
	}
	tokens, user, err := h.Service.GoogleCallback(r.Context(), queryString(r, "code"), queryString(r, "state"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSignedIn, authPayload{User: user, Tokens: tokens})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	user, err := h.Service.GetAccount(r.Context(), u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req models.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.Service.UpdateAccount(r.Context(), u.ID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgSaved, user)
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req models.DeleteAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.DeleteAccount(r.Context(), u.ID, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgAccountDeleted, nil)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.ChangePassword(r.Context(), u.ID, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgPasswordChanged, nil)
}

// RealtimeToken exchanges the caller's access token for a short lived token
// accepted by the websocket hub.
func (h *UserHandler) RealtimeToken(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	tok, err := h.Service.RealtimeToken(r.Context(), u.ID, u.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}
