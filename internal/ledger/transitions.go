package ledger

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/models"
)

// The functions below are the appointment state machine. They only touch
// the in-memory row; mutate decides whether the result is written.

func complete(a *models.Appointment) error {
	switch a.Status {
	case models.StatusCompleted:
		return errNoChange
	case models.StatusCancelled:
		return apperr.InvalidTransition("a cancelled appointment cannot be completed")
	}
	a.Status = models.StatusCompleted
	a.ClearReschedule()
	return nil
}

func cancel(a *models.Appointment, reason string) error {
	switch a.Status {
	case models.StatusCancelled:
		return apperr.InvalidTransition("appointment is already cancelled")
	case models.StatusCompleted:
		return apperr.InvalidTransition("a completed appointment cannot be cancelled")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Validation("cancellation reason is required")
	}
	a.Status = models.StatusCancelled
	a.CancellationReason = &reason
	a.ClearReschedule()
	return nil
}

func requestReschedule(a *models.Appointment, date, clock, reason string) error {
	if a.Status != models.StatusScheduled {
		return apperr.InvalidTransition("only scheduled appointments can be rescheduled")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Validation("reschedule reason is required")
	}
	if date == a.AppointmentDate && clock == a.AppointmentTime {
		return apperr.Validation("reschedule target is the current appointment time")
	}
	a.RescheduleDate = &date
	a.RescheduleTime = &clock
	a.RescheduleReason = &reason
	return nil
}

func acceptReschedule(a *models.Appointment) error {
	if a.Status != models.StatusScheduled {
		return apperr.InvalidTransition("only scheduled appointments can be rescheduled")
	}
	if !a.ReschedulePending() {
		return apperr.InvalidTransition("appointment has no pending reschedule request")
	}
	a.AppointmentDate = *a.RescheduleDate
	a.AppointmentTime = *a.RescheduleTime
	a.ClearReschedule()
	return nil
}

func declineReschedule(a *models.Appointment) error {
	if !a.ReschedulePending() {
		return apperr.InvalidTransition("appointment has no pending reschedule request")
	}
	a.ClearReschedule()
	return nil
}

// Complete marks a scheduled appointment completed. Completing an already
// completed appointment succeeds without writing.
func (l *Ledger) Complete(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	if err := l.requireAdmin("complete", actor, id, "only administrators can complete appointments"); err != nil {
		return nil, err
	}
	return l.mutate(ctx, "complete", actor, id, func(_ *gorm.DB, a *models.Appointment) error {
		return complete(a)
	})
}

// Cancel cancels a scheduled appointment with a reason. Patients are held
// to the cancellation lead time.
func (l *Ledger) Cancel(ctx context.Context, actor Actor, id, reason string) (*models.Appointment, error) {
	return l.mutate(ctx, "cancel", actor, id, func(_ *gorm.DB, a *models.Appointment) error {
		if err := cancel(a, reason); err != nil {
			return err
		}
		return l.checkLeadTime(actor, a)
	})
}

func (l *Ledger) checkLeadTime(actor Actor, a *models.Appointment) error {
	if actor.isAdmin() || l.leadDays <= 0 {
		return nil
	}
	days, err := l.daysUntil(a.AppointmentDate)
	if err != nil {
		return apperr.Internal("stored appointment date is unreadable", err)
	}
	if days < l.leadDays {
		return apperr.InvalidTransition("appointments can only be cancelled at least %d day(s) in advance", l.leadDays)
	}
	return nil
}

// SetStatus applies a client-requested status through the state machine.
func (l *Ledger) SetStatus(ctx context.Context, actor Actor, id, status, reason string) (*models.Appointment, error) {
	if strings.TrimSpace(status) == "" {
		err := apperr.Validation("status is required")
		l.record("set_status", actor, id, "", err)
		return nil, err
	}
	target, ok := models.ParseStatus(status)
	if !ok {
		err := apperr.Validation("status must be one of scheduled, completed, cancelled")
		l.record("set_status", actor, id, "", err)
		return nil, err
	}
	if err := l.requireAdmin("set_status", actor, id, "only administrators can change appointment status"); err != nil {
		return nil, err
	}

	switch target {
	case models.StatusCompleted:
		return l.Complete(ctx, actor, id)
	case models.StatusCancelled:
		return l.Cancel(ctx, actor, id, reason)
	}
	return l.mutate(ctx, "set_status", actor, id, func(_ *gorm.DB, a *models.Appointment) error {
		if a.Status == models.StatusScheduled {
			return errNoChange
		}
		return apperr.InvalidTransition("a %s appointment cannot be reopened", a.Status)
	})
}

// RescheduleInput is a request to move an appointment.
type RescheduleInput struct {
	Date   string
	Time   string
	Reason string
	// Accept applies the move immediately. Administrators only.
	Accept bool
}

// RequestReschedule records a pending move. The current slot stays held
// until the request is accepted.
func (l *Ledger) RequestReschedule(ctx context.Context, actor Actor, id string, in RescheduleInput) (*models.Appointment, error) {
	op := "request_reschedule"
	if in.Accept {
		op = "reschedule"
		if err := l.requireAdmin(op, actor, id, "only administrators can apply a reschedule"); err != nil {
			return nil, err
		}
	}
	if err := l.validateSlot(in.Date, in.Time); err != nil {
		l.record(op, actor, id, "", err)
		return nil, err
	}
	return l.mutate(ctx, op, actor, id, func(_ *gorm.DB, a *models.Appointment) error {
		if err := requestReschedule(a, in.Date, in.Time, in.Reason); err != nil {
			return err
		}
		if in.Accept {
			return acceptReschedule(a)
		}
		return nil
	})
}

// AcceptReschedule moves the appointment to its pending reschedule target.
// A collision with another scheduled appointment leaves the row unchanged.
func (l *Ledger) AcceptReschedule(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	if err := l.requireAdmin("accept_reschedule", actor, id, "only administrators can accept a reschedule"); err != nil {
		return nil, err
	}
	return l.mutate(ctx, "accept_reschedule", actor, id, func(_ *gorm.DB, a *models.Appointment) error {
		if a.ReschedulePending() {
			if err := l.validateSlot(*a.RescheduleDate, *a.RescheduleTime); err != nil {
				return err
			}
		}
		return acceptReschedule(a)
	})
}

// DeclineReschedule drops a pending reschedule request.
func (l *Ledger) DeclineReschedule(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	if err := l.requireAdmin("decline_reschedule", actor, id, "only administrators can decline a reschedule"); err != nil {
		return nil, err
	}
	return l.mutate(ctx, "decline_reschedule", actor, id, func(_ *gorm.DB, a *models.Appointment) error {
		return declineReschedule(a)
	})
}

// UpdateNotes replaces the free-text notes in any state.
func (l *Ledger) UpdateNotes(ctx context.Context, actor Actor, id, notes string) (*models.Appointment, error) {
	return l.mutate(ctx, "update_notes", actor, id, func(_ *gorm.DB, a *models.Appointment) error {
		a.Notes = notes
		return nil
	})
}

// DetailsInput is a full update of a scheduled appointment. Nil fields keep
// their stored value.
type DetailsInput struct {
	PatientID          *string
	DoctorID           *string
	Date               *string
	Time               *string
	Type               *string
	Reason             *string
	Notes              *string
	Status             *string
	CancellationReason *string
}

// UpdateDetails edits a scheduled appointment. A status in the input is
// applied through the state machine after the field changes, in the same
// transaction.
func (l *Ledger) UpdateDetails(ctx context.Context, actor Actor, id string, in DetailsInput) (*models.Appointment, error) {
	if err := l.requireAdmin("update", actor, id, "only administrators can edit appointments"); err != nil {
		return nil, err
	}
	return l.mutate(ctx, "update", actor, id, func(tx *gorm.DB, a *models.Appointment) error {
		if a.Status != models.StatusScheduled {
			return apperr.InvalidTransition("only scheduled appointments can be edited")
		}
		if err := l.applyDetails(tx, a, in); err != nil {
			return err
		}
		if in.Status == nil || strings.TrimSpace(*in.Status) == "" {
			return nil
		}

		target, ok := models.ParseStatus(*in.Status)
		if !ok {
			return apperr.Validation("status must be one of scheduled, completed, cancelled")
		}
		switch target {
		case models.StatusCompleted:
			return complete(a)
		case models.StatusCancelled:
			reason := ""
			if in.CancellationReason != nil {
				reason = *in.CancellationReason
			}
			return cancel(a, reason)
		}
		return nil
	})
}

func (l *Ledger) applyDetails(tx *gorm.DB, a *models.Appointment, in DetailsInput) error {
	if in.PatientID != nil && *in.PatientID != a.PatientID {
		if err := validateID("patient", *in.PatientID); err != nil {
			return err
		}
		if err := resolvePatient(tx, *in.PatientID); err != nil {
			return err
		}
		a.PatientID = *in.PatientID
	}
	if in.DoctorID != nil && *in.DoctorID != a.DoctorID {
		if err := validateID("doctor", *in.DoctorID); err != nil {
			return err
		}
		if err := resolveDoctor(tx, *in.DoctorID); err != nil {
			return err
		}
		a.DoctorID = *in.DoctorID
	}

	date, clock := a.AppointmentDate, a.AppointmentTime
	if in.Date != nil {
		date = *in.Date
	}
	if in.Time != nil {
		clock = *in.Time
	}
	if date != a.AppointmentDate || clock != a.AppointmentTime {
		if err := l.validateSlot(date, clock); err != nil {
			return err
		}
		a.AppointmentDate, a.AppointmentTime = date, clock
		a.ClearReschedule()
	}

	if in.Type != nil {
		typ, ok := models.ParseType(*in.Type)
		if !ok {
			return apperr.Validation("appointment type must be one of in-person, video, phone")
		}
		a.AppointmentType = typ
	}
	if in.Reason != nil {
		if strings.TrimSpace(*in.Reason) == "" {
			return apperr.Validation("reason for visit is required")
		}
		a.ReasonForVisit = strings.TrimSpace(*in.Reason)
	}
	if in.Notes != nil {
		a.Notes = *in.Notes
	}
	return nil
}

func (l *Ledger) requireAdmin(op string, actor Actor, id, message string) error {
	if actor.isAdmin() {
		return nil
	}
	err := apperr.Forbidden("%s", message)
	l.record(op, actor, id, "", err)
	return err
}
