// Package push sends Firebase Cloud Messaging notifications to the devices a
// user registered.
package push

import (
	"context"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Client is the part of *messaging.Client the notifier uses.
type Client interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type TokenStore interface {
	TokensByUser(ctx context.Context, userID int64) ([]string, error)
	DeleteToken(ctx context.Context, token string) error
}

type Notifier struct {
	client Client
	tokens TokenStore
	log    logrus.FieldLogger
	// unregistered reports errors for tokens FCM no longer knows.
	unregistered func(error) bool
}

// NewFirebaseClient builds a messaging client from a service account file.
func NewFirebaseClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	return app.Messaging(ctx)
}

func NewNotifier(client Client, tokens TokenStore, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		client:       client,
		tokens:       tokens,
		log:          log,
		unregistered: messaging.IsRegistrationTokenNotRegistered,
	}
}

// NotifyUser sends one message per registered device and returns how many
// were delivered. Tokens rejected as unregistered are removed.
func (n *Notifier) NotifyUser(ctx context.Context, userID int64, title, body string, data map[string]string) int {
	if n == nil || n.client == nil {
		return 0
	}
	tokens, err := n.tokens.TokensByUser(ctx, userID)
	if err != nil {
		n.log.WithError(err).WithField("user_id", userID).Error("load device tokens")
		return 0
	}

	sent := 0
	for _, token := range tokens {
		_, err := n.client.Send(ctx, buildMessage(token, title, body, data))
		if err == nil {
			sent++
			continue
		}
		if n.unregistered(err) {
			if err := n.tokens.DeleteToken(ctx, token); err != nil {
				n.log.WithError(err).Warn("delete stale device token")
			}
			continue
		}
		n.log.WithError(err).WithField("user_id", userID).Warn("push send failed")
	}
	return sent
}

func buildMessage(token, title, body string, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}
}
