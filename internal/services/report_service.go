package services

import (
	"context"
	"errors"
	"time"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
)

const (
	MsgReportCreated   = "Η αναφορά στάλθηκε. Ευχαριστούμε"
	MsgReportResolved  = "Η αναφορά ενημερώθηκε"
	MsgReportNotFound  = "Η αναφορά δεν βρέθηκε"
	MsgTargetNotFound  = "Το περιεχόμενο που αναφέρατε δεν βρέθηκε"
	MsgReporterEmail   = "Συμπληρώστε το email σας"
	MsgContactReceived = "Το μήνυμά σας στάλθηκε. Θα σας απαντήσουμε σύντομα"
)

type ReportStore interface {
	CreateReport(ctx context.Context, rp models.Report) (models.Report, error)
	GetReportByID(ctx context.Context, id int64) (models.Report, error)
	ListReports(ctx context.Context, status string, page, limit int) ([]models.Report, int, error)
	ResolveReport(ctx context.Context, id int64, from, to, note string, adminID int64) error
}

// TargetChecker reports whether a row of a reportable kind exists.
type TargetChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type TargetCheckerFunc func(ctx context.Context, id int64) (bool, error)

func (f TargetCheckerFunc) Exists(ctx context.Context, id int64) (bool, error) { return f(ctx, id) }

type ReportService struct {
	ReportRepo ReportStore
	// Targets maps a report target type to its existence check.
	Targets map[string]TargetChecker
	Mail    Mailer
	Cache   cache.Store
	Now     func() time.Time
}

// Create files a report. Anonymous reporters must leave an email.
func (s *ReportService) Create(ctx context.Context, reporter *models.User, req *models.ReportRequest) (models.Report, error) {
	if err := validateForm(req); err != nil {
		return models.Report{}, err
	}
	rp := models.Report{
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Reason:      req.Reason,
		Description: req.Description,
		Status:      models.ReportStatusOpen,
	}
	if reporter != nil {
		id := reporter.ID
		rp.ReporterID = &id
		rp.ReporterEmail = reporter.Email
	} else {
		if req.Email == "" {
			return models.Report{}, apperr.Validation(map[string]string{"email": MsgReporterEmail})
		}
		rp.ReporterEmail = req.Email
	}

	check, ok := s.Targets[req.TargetType]
	if !ok {
		return models.Report{}, apperr.NotFound(MsgTargetNotFound)
	}
	exists, err := check.Exists(ctx, req.TargetID)
	if err != nil {
		return models.Report{}, apperr.Internal(err)
	}
	if !exists {
		return models.Report{}, apperr.NotFound(MsgTargetNotFound)
	}

	created, err := s.ReportRepo.CreateReport(ctx, rp)
	if err != nil {
		return models.Report{}, apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.TagAdminReports, cache.TagAdminStats)

	s.Mail.DeliverAdmin(mail.TemplateReportReceived, rp.ReporterEmail, mail.ReportData{
		TargetType:    rp.TargetType,
		TargetID:      rp.TargetID,
		Reason:        rp.Reason,
		Description:   rp.Description,
		ReporterEmail: rp.ReporterEmail,
	})
	return created, nil
}

// List is the admin queue. An empty status lists open reports.
func (s *ReportService) List(ctx context.Context, status string, page, limit int) (models.Page[models.Report], error) {
	page, limit = models.NormalizePage(page, limit)
	if status == "" {
		status = models.ReportStatusOpen
	}
	items, total, err := s.ReportRepo.ListReports(ctx, status, page, limit)
	if err != nil {
		return models.Page[models.Report]{}, apperr.Internal(err)
	}
	return models.NewPage(items, page, limit, total), nil
}

func (s *ReportService) Resolve(ctx context.Context, admin models.User, id int64, req *models.ResolveReportRequest) (models.Report, error) {
	if err := validateForm(req); err != nil {
		return models.Report{}, err
	}
	rp, err := s.ReportRepo.GetReportByID(ctx, id)
	if errors.Is(err, models.ErrReportNotFound) {
		return models.Report{}, apperr.NotFound(MsgReportNotFound)
	}
	if err != nil {
		return models.Report{}, apperr.Internal(err)
	}
	if err := s.ReportRepo.ResolveReport(ctx, rp.ID, rp.Status, req.Status, req.Note, admin.ID); err != nil {
		return models.Report{}, statusError(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.TagAdminReports, cache.TagAdminStats)

	now := clock(s.Now)
	note := req.Note
	adminID := admin.ID
	rp.Status = req.Status
	rp.ResolutionNote = &note
	rp.ResolvedBy = &adminID
	rp.ResolvedAt = &now
	return rp, nil
}

type ContactService struct {
	Mail Mailer
}

// Send forwards the contact form to the admin inbox. Replies go to the
// sender.
func (s *ContactService) Send(ctx context.Context, req *models.ContactRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	s.Mail.DeliverAdmin(mail.TemplateContact, req.Email, mail.ContactData{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	return nil
}
