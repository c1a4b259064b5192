package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"doulitsa/internal/locale"
)

const (
	TemplateConfirmEmail    = "confirm_email"
	TemplatePasswordReset   = "password_reset"
	TemplateNewReview       = "new_review"
	TemplateServiceRejected = "service_rejected"
	TemplateBookingUpdate   = "booking_update"
	TemplateReportReceived  = "report_received"
	TemplateContact         = "contact"
	TemplateNewMessage      = "new_message"
)

//go:embed templates/*.html
var templateFS embed.FS

type CodeData struct {
	Name      string
	Code      string
	ExpiresAt time.Time
}

type ReviewData struct {
	Author       string
	ServiceTitle string
	Rating       int
	Comment      string
	URL          string
}

type RejectionData struct {
	ServiceTitle string
	Reason       string
}

type BookingData struct {
	ServiceTitle  string
	StatusLabel   string
	Message       string
	PreferredDate *time.Time
	URL           string
}

type ReportData struct {
	TargetType    string
	TargetID      int64
	Reason        string
	Description   string
	ReporterEmail string
}

type ContactData struct {
	Name    string
	Email   string
	Subject string
	Message string
}

type MessageData struct {
	Sender  string
	Preview string
	URL     string
}

var funcs = map[string]any{
	"date":     func(t *time.Time) string { return formatDate(t) },
	"datetime": locale.FormatDateTime,
	"price":    locale.FormatPrice,
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return locale.FormatDate(*t)
}

type pair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Templates renders the embedded transactional emails.
type Templates struct {
	set map[string]pair
}

var names = []string{
	TemplateConfirmEmail, TemplatePasswordReset, TemplateNewReview, TemplateServiceRejected,
	TemplateBookingUpdate, TemplateReportReceived, TemplateContact, TemplateNewMessage,
}

func LoadTemplates() (*Templates, error) {
	t := &Templates{set: make(map[string]pair, len(names))}
	for _, name := range names {
		file := "templates/" + name + ".html"
		h, err := htmltemplate.New(name).Funcs(htmltemplate.FuncMap(funcs)).ParseFS(templateFS, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		x, err := texttemplate.New(name).Funcs(texttemplate.FuncMap(funcs)).ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		t.set[name] = pair{html: h, text: x}
	}
	return t, nil
}

// Render builds the message for template name addressed to to.
func (t *Templates) Render(name, to string, data any) (Message, error) {
	p, ok := t.set[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", name)
	}

	var subject, text, html bytes.Buffer
	if err := p.text.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := p.text.ExecuteTemplate(&text, "text", data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := p.html.ExecuteTemplate(&html, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}

	return Message{
		To:      to,
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(text.String()),
		HTML:    html.String(),
	}, nil
}
