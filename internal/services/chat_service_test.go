package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/apperr"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
)

type chatFixture struct {
	svc   *ChatService
	chats *fakeChats
	push  *fakePusher
	mail  *fakeMailer
	now   time.Time
}

func newChatFixture() *chatFixture {
	blocked := models.User{ID: 9, Username: "spam", Blocked: true}
	f := &chatFixture{chats: newFakeChats(), push: &fakePusher{devices: map[int64]int{}}, mail: &fakeMailer{}, now: testNow}
	f.svc = &ChatService{
		ChatRepo:  f.chats,
		UserRepo:  newFakeUsers(owner, stranger, blocked),
		Push:      f.push,
		Mail:      f.mail,
		PublicURL: "https://doulitsa.test",
		Now:       func() time.Time { return f.now },
	}
	return f
}

func TestStartChat(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	chat, err := f.svc.StartChat(ctx, stranger, &models.StartChatRequest{UserID: owner.ID})
	require.NoError(t, err)
	require.NotNil(t, chat.Other)
	assert.Equal(t, "maria", chat.Other.Username)

	again, err := f.svc.StartChat(ctx, owner, &models.StartChatRequest{UserID: stranger.ID})
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)

	_, err = f.svc.StartChat(ctx, stranger, &models.StartChatRequest{UserID: stranger.ID})
	assert.True(t, errors.Is(err, apperr.ErrBadRequest))

	_, err = f.svc.StartChat(ctx, stranger, &models.StartChatRequest{UserID: 9})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.StartChat(ctx, stranger, &models.StartChatRequest{UserID: 404})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSendMessagePushesOrEmails(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	chat, err := f.svc.StartChat(ctx, stranger, &models.StartChatRequest{UserID: owner.ID})
	require.NoError(t, err)

	msg, err := f.svc.SendMessage(ctx, stranger, chat.ID, &models.MessageRequest{Content: "  Γεια σας!  "})
	require.NoError(t, err)
	assert.Equal(t, "Γεια σας!", msg.Content)

	require.Len(t, f.push.calls, 1)
	assert.Equal(t, owner.ID, f.push.calls[0].UserID)
	require.Len(t, f.mail.sent, 1, "no device registered, email fallback")
	assert.Equal(t, mail.TemplateNewMessage, f.mail.sent[0].Template)

	f.push.devices[owner.ID] = 1
	_, err = f.svc.SendMessage(ctx, stranger, chat.ID, &models.MessageRequest{Content: "Είστε διαθέσιμη;"})
	require.NoError(t, err)
	assert.Len(t, f.mail.sent, 1)

	_, err = f.svc.SendMessage(ctx, admin, chat.ID, &models.MessageRequest{Content: "hi"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.SendMessage(ctx, stranger, chat.ID, &models.MessageRequest{Content: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestEditMessageWindow(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	chat, _ := f.svc.StartChat(ctx, stranger, &models.StartChatRequest{UserID: owner.ID})
	msg, err := f.svc.SendMessage(ctx, stranger, chat.ID, &models.MessageRequest{Content: "Πρώτο"})
	require.NoError(t, err)

	_, err = f.svc.EditMessage(ctx, owner, msg.ID, &models.MessageRequest{Content: "x"})
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "only the author edits")

	f.now = testNow.Add(10 * time.Minute)
	edited, err := f.svc.EditMessage(ctx, stranger, msg.ID, &models.MessageRequest{Content: "Διορθωμένο"})
	require.NoError(t, err)
	assert.Equal(t, "Διορθωμένο", edited.Content)
	assert.NotNil(t, edited.EditedAt)

	f.now = testNow.Add(16 * time.Minute)
	_, err = f.svc.EditMessage(ctx, stranger, msg.ID, &models.MessageRequest{Content: "Αργά"})
	assert.Equal(t, MsgEditWindow, apperr.Message(err))

	require.NoError(t, f.svc.DeleteMessage(ctx, stranger, msg.ID))
	assert.True(t, errors.Is(f.svc.DeleteMessage(ctx, stranger, msg.ID), apperr.ErrNotFound))
}

func TestListMessagesAndUnread(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	chat, _ := f.svc.StartChat(ctx, stranger, &models.StartChatRequest{UserID: owner.ID})
	for i := 0; i < 3; i++ {
		_, err := f.svc.SendMessage(ctx, stranger, chat.ID, &models.MessageRequest{Content: "μήνυμα"})
		require.NoError(t, err)
	}

	msgs, err := f.svc.ListMessages(ctx, owner, chat.ID, 0, 500)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	_, err = f.svc.ListMessages(ctx, admin, chat.ID, 0, 10)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	n, err := f.svc.UnreadTotal(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, f.svc.MarkRead(ctx, owner, chat.ID))
	n, err = f.svc.UnreadTotal(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, errors.Is(f.svc.MarkRead(ctx, admin, chat.ID), apperr.ErrForbidden))

	inbox, err := f.svc.ListChats(ctx, owner)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "nikos", inbox[0].Other.Username)
}

func TestTruncatePreview(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "αβγ…", truncate("αβγδε", 3))
	assert.Equal(t, previewLength+1, len([]rune(truncate(strings.Repeat("λ", 200), previewLength))))
}
