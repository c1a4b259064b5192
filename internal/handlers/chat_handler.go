package handlers

import (
	"net/http"

	"doulitsa/internal/models"
	"doulitsa/internal/services"
)

type ChatHandler struct {
	Service *services.ChatService
}

func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req models.StartChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chat, err := h.Service.StartChat(r.Context(), u, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	chats, err := h.Service.ListChats(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) Unread(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	n, err := h.Service.UnreadTotal(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

// Messages pages backwards: ?before=<message id>&limit=N.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	chatID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	msgs, err := h.Service.ListMessages(r.Context(), u, chatID, queryInt64(r, "before"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	chatID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.Service.SendMessage(r.Context(), u, chatID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	chatID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.MarkRead(r.Context(), u, chatID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req models.MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.Service.EditMessage(r.Context(), u, id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteMessage(r.Context(), u, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, services.MsgMessageDeleted, nil)
}
