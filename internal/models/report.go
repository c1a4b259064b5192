package models

import "time"

const (
	ReportTargetProfile = "profile"
	ReportTargetService = "service"
	ReportTargetReview  = "review"
	ReportTargetMessage = "message"

	ReportStatusOpen      = "open"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

type Report struct {
	ID             int64      `json:"id"`
	ReporterID     *int64     `json:"reporter_id,omitempty"`
	ReporterEmail  string     `json:"reporter_email,omitempty"`
	TargetType     string     `json:"target_type"`
	TargetID       int64      `json:"target_id"`
	Reason         string     `json:"reason"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	ResolutionNote *string    `json:"resolution_note,omitempty"`
	ResolvedBy     *int64     `json:"resolved_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

type ReportRequest struct {
	TargetType  string `json:"target_type" validate:"required,oneof=profile service review message"`
	TargetID    int64  `json:"target_id" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"required,oneof=spam inappropriate fraud copyright other"`
	Description string `json:"description" validate:"required,min=10,max=1000"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type ResolveReportRequest struct {
	Status string `json:"status" validate:"required,oneof=resolved dismissed"`
	Note   string `json:"note" validate:"max=1000"`
}

type ContactRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=80"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,min=3,max=150"`
	Message string `json:"message" validate:"required,min=10,max=3000"`
}
