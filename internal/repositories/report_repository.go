package repositories

import (
	"context"
	"database/sql"
	"errors"

	"doulitsa/internal/fsm"
	"doulitsa/internal/models"
)

type ReportRepository struct {
	DB *sql.DB
}

const reportColumns = `id, reporter_id, reporter_email, target_type, target_id, reason, description, status,
    resolution_note, resolved_by, created_at, resolved_at`

func scanReport(s scanner) (models.Report, error) {
	var (
		rp         models.Report
		reporter   sql.NullInt64
		note       sql.NullString
		resolvedBy sql.NullInt64
		resolvedAt sql.NullTime
	)
	err := s.Scan(&rp.ID, &reporter, &rp.ReporterEmail, &rp.TargetType, &rp.TargetID, &rp.Reason,
		&rp.Description, &rp.Status, &note, &resolvedBy, &rp.CreatedAt, &resolvedAt)
	if err != nil {
		return models.Report{}, err
	}
	if reporter.Valid {
		v := reporter.Int64
		rp.ReporterID = &v
	}
	if resolvedBy.Valid {
		v := resolvedBy.Int64
		rp.ResolvedBy = &v
	}
	rp.ResolutionNote = nullStringPtr(note)
	rp.ResolvedAt = nullTimePtr(resolvedAt)
	return rp, nil
}

func (r *ReportRepository) CreateReport(ctx context.Context, rp models.Report) (models.Report, error) {
	res, err := r.DB.ExecContext(ctx, `
        INSERT INTO reports (reporter_id, reporter_email, target_type, target_id, reason, description, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		rp.ReporterID, rp.ReporterEmail, rp.TargetType, rp.TargetID, rp.Reason, rp.Description, models.ReportStatusOpen)
	if err != nil {
		return models.Report{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Report{}, err
	}
	return r.GetReportByID(ctx, id)
}

func (r *ReportRepository) GetReportByID(ctx context.Context, id int64) (models.Report, error) {
	rp, err := scanReport(r.DB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, models.ErrReportNotFound
	}
	return rp, err
}

func (r *ReportRepository) ListReports(ctx context.Context, status string, page, limit int) ([]models.Report, int, error) {
	page, limit = models.NormalizePage(page, limit)

	var w where
	if status != "" {
		w.add("status = ?", status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, w.args...), limit, models.Offset(page, limit))
	rows, err := r.DB.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports`+w.String()+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rp)
	}
	return out, total, rows.Err()
}

// ResolveReport closes an open report with a note.
func (r *ReportRepository) ResolveReport(ctx context.Context, id int64, from, to, note string, adminID int64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := fsm.Reports.Apply(ctx, tx, id, from, to); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE reports SET resolution_note = ?, resolved_by = ?, resolved_at = UTC_TIMESTAMP() WHERE id = ?`,
			note, adminID, id)
		return err
	})
}

func (r *ReportRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE status = ?`, models.ReportStatusOpen).Scan(&n)
	return n, err
}
