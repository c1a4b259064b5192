package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"doulitsa/internal/apperr"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
)

const (
	MsgChatNotFound    = "Η συνομιλία δεν βρέθηκε"
	MsgMessageNotFound = "Το μήνυμα δεν βρέθηκε"
	MsgNotMember       = "Δεν συμμετέχετε σε αυτή τη συνομιλία"
	MsgChatSelf        = "Δεν μπορείτε να στείλετε μήνυμα στον εαυτό σας"
	MsgChatBlocked     = "Ο χρήστης δεν είναι διαθέσιμος"
	MsgEditWindow      = "Τα μηνύματα επεξεργάζονται μόνο έως 15 λεπτά μετά την αποστολή"
	MsgMessageDeleted  = "Το μήνυμα διαγράφηκε"
)

const (
	editWindow       = 15 * time.Minute
	maxMessagesLimit = 100
	previewLength    = 120
)

type ChatStore interface {
	GetOrCreateDirect(ctx context.Context, a, b int64, serviceID *int64) (models.Chat, error)
	GetChat(ctx context.Context, id int64) (models.Chat, error)
	MemberIDs(ctx context.Context, chatID int64) ([]int64, error)
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
	ListChats(ctx context.Context, userID int64) ([]models.Chat, error)
	ListMessages(ctx context.Context, chatID, before int64, limit int) ([]models.Message, error)
	CreateMessage(ctx context.Context, chatID, authorID int64, content string) (models.Message, error)
	GetMessage(ctx context.Context, id int64) (models.Message, error)
	UpdateMessage(ctx context.Context, id int64, content string, at time.Time) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, id int64, at time.Time) error
	MarkRead(ctx context.Context, chatID, userID int64, at time.Time) error
	UnreadTotal(ctx context.Context, userID int64) (int, error)
}

type ChatService struct {
	ChatRepo ChatStore
	UserRepo interface {
		UserLookup
		GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
	}
	Push      Pusher
	Mail      Mailer
	PublicURL string
	Now       func() time.Time
}

func chatError(err error) error {
	switch {
	case errors.Is(err, models.ErrChatNotFound):
		return apperr.NotFound(MsgChatNotFound)
	case errors.Is(err, models.ErrMessageNotFound):
		return apperr.NotFound(MsgMessageNotFound)
	case errors.Is(err, models.ErrUserNotFound):
		return apperr.NotFound(MsgUserNotFound)
	}
	return apperr.Internal(err)
}

// StartChat returns the direct chat between the caller and another user.
func (s *ChatService) StartChat(ctx context.Context, user models.User, req *models.StartChatRequest) (models.Chat, error) {
	if err := validateForm(req); err != nil {
		return models.Chat{}, err
	}
	if req.UserID == user.ID {
		return models.Chat{}, apperr.BadRequest(MsgChatSelf)
	}
	other, err := s.UserRepo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return models.Chat{}, chatError(err)
	}
	if other.Blocked {
		return models.Chat{}, apperr.Forbidden(MsgChatBlocked)
	}
	chat, err := s.ChatRepo.GetOrCreateDirect(ctx, user.ID, other.ID, req.ServiceID)
	if err != nil {
		return models.Chat{}, apperr.Internal(err)
	}
	chat.Other = &models.ChatMember{UserID: other.ID, Username: other.Username, DisplayName: other.DisplayName}
	return chat, nil
}

// ListChats returns the inbox with the other member's names filled in.
func (s *ChatService) ListChats(ctx context.Context, user models.User) ([]models.Chat, error) {
	chats, err := s.ChatRepo.ListChats(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(chats) == 0 {
		return []models.Chat{}, nil
	}
	ids := make([]int64, 0, len(chats))
	for _, c := range chats {
		if c.Other != nil {
			ids = append(ids, c.Other.UserID)
		}
	}
	users, err := s.UserRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for i := range chats {
		if chats[i].Other == nil {
			continue
		}
		if u, ok := users[chats[i].Other.UserID]; ok {
			chats[i].Other.Username = u.Username
			chats[i].Other.DisplayName = u.DisplayName
		}
	}
	return chats, nil
}

func (s *ChatService) member(ctx context.Context, chatID, userID int64) error {
	ok, err := s.ChatRepo.IsMember(ctx, chatID, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Forbidden(MsgNotMember)
	}
	return nil
}

// IsMember is used by the websocket hub before subscribing a client.
func (s *ChatService) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	return s.ChatRepo.IsMember(ctx, chatID, userID)
}

// ListMessages pages backwards from before (exclusive, 0 for latest).
func (s *ChatService) ListMessages(ctx context.Context, user models.User, chatID, before int64, limit int) ([]models.Message, error) {
	if err := s.member(ctx, chatID, user.ID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxMessagesLimit {
		limit = maxMessagesLimit
	}
	msgs, err := s.ChatRepo.ListMessages(ctx, chatID, before, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (s *ChatService) SendMessage(ctx context.Context, user models.User, chatID int64, req *models.MessageRequest) (models.Message, error) {
	if err := validateForm(req); err != nil {
		return models.Message{}, err
	}
	if err := s.member(ctx, chatID, user.ID); err != nil {
		return models.Message{}, err
	}
	msg, err := s.ChatRepo.CreateMessage(ctx, chatID, user.ID, req.Content)
	if err != nil {
		return models.Message{}, apperr.Internal(err)
	}
	s.notify(ctx, user, msg)
	return msg, nil
}

// notify pushes the message to the other members. Members without a
// registered device get an email instead.
func (s *ChatService) notify(ctx context.Context, author models.User, msg models.Message) {
	members, err := s.ChatRepo.MemberIDs(ctx, msg.ChatID)
	if err != nil {
		return
	}
	preview := truncate(msg.Content, previewLength)
	data := map[string]string{
		"type":    "message",
		"chat_id": strconv.FormatInt(msg.ChatID, 10),
	}
	for _, id := range members {
		if id == author.ID {
			continue
		}
		sent := 0
		if s.Push != nil {
			sent = s.Push.NotifyUser(ctx, id, author.DisplayName, preview, data)
		}
		if sent > 0 || s.Mail == nil {
			continue
		}
		if u, err := s.UserRepo.GetUserByID(ctx, id); err == nil {
			s.Mail.Deliver(mail.TemplateNewMessage, u.Email, mail.MessageData{
				Sender:  author.DisplayName,
				Preview: preview,
				URL:     fmt.Sprintf("%s/messages/%d", s.PublicURL, msg.ChatID),
			})
		}
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func (s *ChatService) authored(ctx context.Context, user models.User, id int64) (models.Message, error) {
	msg, err := s.ChatRepo.GetMessage(ctx, id)
	if err != nil {
		return models.Message{}, chatError(err)
	}
	if msg.AuthorID != user.ID {
		return models.Message{}, apperr.Forbidden(MsgNoPermission)
	}
	if msg.Deleted() {
		return models.Message{}, apperr.NotFound(MsgMessageNotFound)
	}
	return msg, nil
}

// EditMessage changes a message within the edit window.
func (s *ChatService) EditMessage(ctx context.Context, user models.User, id int64, req *models.MessageRequest) (models.Message, error) {
	if err := validateForm(req); err != nil {
		return models.Message{}, err
	}
	msg, err := s.authored(ctx, user, id)
	if err != nil {
		return models.Message{}, err
	}
	now := clock(s.Now)
	if now.Sub(msg.CreatedAt) > editWindow {
		return models.Message{}, apperr.Forbidden(MsgEditWindow)
	}
	updated, err := s.ChatRepo.UpdateMessage(ctx, msg.ID, req.Content, now)
	if err != nil {
		return models.Message{}, chatError(err)
	}
	return updated, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, user models.User, id int64) error {
	msg, err := s.authored(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.ChatRepo.SoftDeleteMessage(ctx, msg.ID, clock(s.Now)); err != nil {
		return chatError(err)
	}
	return nil
}

func (s *ChatService) MarkRead(ctx context.Context, user models.User, chatID int64) error {
	if err := s.ChatRepo.MarkRead(ctx, chatID, user.ID, clock(s.Now)); err != nil {
		if errors.Is(err, models.ErrChatNotFound) {
			return apperr.Forbidden(MsgNotMember)
		}
		return apperr.Internal(err)
	}
	return nil
}

func (s *ChatService) UnreadTotal(ctx context.Context, user models.User) (int, error) {
	n, err := s.ChatRepo.UnreadTotal(ctx, user.ID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}
