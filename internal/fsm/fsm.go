package fsm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"doulitsa/internal/models"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Machine is a status transition table bound to the table whose status column
// it guards.
type Machine struct {
	table       string
	transitions map[string]map[string]struct{}
}

var Services = &Machine{
	table: "services",
	transitions: map[string]map[string]struct{}{
		models.ServiceStatusPending: {
			models.ServiceStatusPublished: {},
			models.ServiceStatusRejected:  {},
			models.ServiceStatusCanceled:  {},
		},
		models.ServiceStatusPublished: {
			models.ServiceStatusInactive: {},
			models.ServiceStatusPending:  {},
			models.ServiceStatusCanceled: {},
		},
		models.ServiceStatusInactive: {
			models.ServiceStatusPublished: {},
			models.ServiceStatusPending:   {},
			models.ServiceStatusCanceled:  {},
		},
		models.ServiceStatusRejected: {
			models.ServiceStatusPending:  {},
			models.ServiceStatusCanceled: {},
		},
		models.ServiceStatusCanceled: {},
	},
}

var Bookings = &Machine{
	table: "bookings",
	transitions: map[string]map[string]struct{}{
		models.BookingStatusRequested: {
			models.BookingStatusAccepted: {},
			models.BookingStatusDeclined: {},
			models.BookingStatusCanceled: {},
		},
		models.BookingStatusAccepted: {
			models.BookingStatusCompleted: {},
			models.BookingStatusCanceled:  {},
		},
		models.BookingStatusDeclined:  {},
		models.BookingStatusCanceled:  {},
		models.BookingStatusCompleted: {},
	},
}

var Reports = &Machine{
	table: "reports",
	transitions: map[string]map[string]struct{}{
		models.ReportStatusOpen: {
			models.ReportStatusResolved:  {},
			models.ReportStatusDismissed: {},
		},
		models.ReportStatusResolved:  {},
		models.ReportStatusDismissed: {},
	},
}

// CanTransition returns whether a row can move from the current status to the
// target status. Staying in the same known status is allowed.
func (m *Machine) CanTransition(from, to string) bool {
	allowed, ok := m.transitions[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	_, ok = allowed[to]
	return ok
}

// Terminal reports whether no other status can follow s.
func (m *Machine) Terminal(s string) bool {
	allowed, ok := m.transitions[s]
	return ok && len(allowed) == 0
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Apply updates a row status using optimistic validation. It returns
// models.ErrStatusChanged when the row no longer has fromStatus. Staying in
// the same status writes nothing.
func (m *Machine) Apply(ctx context.Context, tx Execer, id int64, fromStatus, toStatus string) error {
	if !m.CanTransition(fromStatus, toStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, fromStatus, toStatus)
	}
	if fromStatus == toStatus {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`, m.table)
	res, err := tx.ExecContext(ctx, query, toStatus, id, fromStatus)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrStatusChanged
	}
	return nil
}
