package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/messaging"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

var errStale = errors.New("registration-token-not-registered")

type fakeClient struct {
	sent []*messaging.Message
	fail map[string]error
}

func (f *fakeClient) Send(_ context.Context, m *messaging.Message) (string, error) {
	if err := f.fail[m.Token]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, m)
	return "projects/x/messages/1", nil
}

type fakeTokens struct {
	tokens  []string
	deleted []string
}

func (f *fakeTokens) TokensByUser(context.Context, int64) ([]string, error) { return f.tokens, nil }
func (f *fakeTokens) DeleteToken(_ context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	return nil
}

func TestNotifyUser(t *testing.T) {
	log, _ := test.NewNullLogger()
	client := &fakeClient{fail: map[string]error{
		"stale":  errStale,
		"broken": errors.New("unavailable"),
	}}
	tokens := &fakeTokens{tokens: []string{"ok", "stale", "broken"}}

	n := NewNotifier(client, tokens, log)
	n.unregistered = func(err error) bool { return errors.Is(err, errStale) }

	sent := n.NotifyUser(context.Background(), 7, "Νέο μήνυμα", "Γεια", map[string]string{"chat_id": "3"})
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"stale"}, tokens.deleted)
	assert.Equal(t, "Νέο μήνυμα", client.sent[0].Notification.Title)
	assert.Equal(t, "3", client.sent[0].Data["chat_id"])
}

func TestNilNotifier(t *testing.T) {
	var n *Notifier
	assert.Zero(t, n.NotifyUser(context.Background(), 1, "a", "b", nil))
}
