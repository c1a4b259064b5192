// Package mail renders and delivers transactional email through the Gmail
// REST API.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type Message struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Sender       string
	SenderName   string
}

// GmailMailer sends mail as the authorised account with users.messages.send.
type GmailMailer struct {
	svc  *gmail.Service
	from mail.Address
	now  func() time.Time
}

func NewGmailMailer(ctx context.Context, cfg GmailConfig) (*GmailMailer, error) {
	if cfg.RefreshToken == "" || cfg.Sender == "" {
		return nil, errors.New("gmail: refresh token and sender are required")
	}
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	name := cfg.SenderName
	if name == "" {
		name = "Doulitsa"
	}
	return &GmailMailer{svc: svc, from: mail.Address{Name: name, Address: cfg.Sender}, now: time.Now}, nil
}

func (g *GmailMailer) Send(ctx context.Context, msg Message) error {
	raw, err := BuildMIME(g.from, msg, g.now())
	if err != nil {
		return err
	}
	_, err = g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", msg.To, err)
	}
	return nil
}

// BuildMIME renders msg as an RFC 5322 multipart/alternative message with
// plain text and HTML parts.
func BuildMIME(from mail.Address, msg Message, date time.Time) ([]byte, error) {
	if msg.To == "" {
		return nil, errors.New("mail: empty recipient")
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("mail: recipient: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	var buf bytes.Buffer
	writeHeader(&buf, "From", from.String())
	writeHeader(&buf, "To", to.String())
	if msg.ReplyTo != "" {
		replyTo, err := mail.ParseAddress(msg.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("mail: reply-to: %w", err)
		}
		writeHeader(&buf, "Reply-To", replyTo.String())
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", date.Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	buf.WriteString("\r\n")

	if err := writePart(mw, "text/plain; charset=UTF-8", msg.Text); err != nil {
		return nil, err
	}
	if msg.HTML != "" {
		if err := writePart(mw, "text/html; charset=UTF-8", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	value = strings.NewReplacer("\r", "", "\n", "").Replace(value)
	fmt.Fprintf(buf, "%s: %s\r\n", key, value)
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (l LogMailer) Send(_ context.Context, msg Message) error {
	l.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("mail not sent: gmail is not configured")
	return nil
}
