// Package ledger owns appointment records. Every change goes through a
// transition that validates, checks the doctor's slot and writes in one
// transaction; a rejected transition leaves the stored row untouched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/metrics"
	"healthcare-appointment-server/internal/models"
)

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	ID   string
	Role models.Role
}

// SystemActor is used by internal callers such as the CLI.
var SystemActor = Actor{ID: "system", Role: models.RoleAdmin}

func (a Actor) isAdmin() bool { return a.Role == models.RoleAdmin }

// Options tunes ledger policy.
type Options struct {
	// CancellationLeadDays is the minimum number of calendar days between
	// today and the appointment date for a patient to cancel. Zero disables.
	CancellationLeadDays int
	Location             *time.Location
	Now                  func() time.Time
}

// Ledger is the single authority over appointment state.
type Ledger struct {
	db       *gorm.DB
	log      *logger.Logger
	cache    *cache.Cache
	metrics  *metrics.Metrics
	leadDays int
	loc      *time.Location
	now      func() time.Time
}

// New creates a Ledger. cache and m may be nil.
func New(db *gorm.DB, log *logger.Logger, c *cache.Cache, m *metrics.Metrics, opts Options) *Ledger {
	l := &Ledger{
		db:       db,
		log:      log,
		cache:    c,
		metrics:  m,
		leadDays: opts.CancellationLeadDays,
		loc:      opts.Location,
		now:      opts.Now,
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// CreateInput is a booking request.
type CreateInput struct {
	PatientID      string
	DoctorID       string
	Date           string
	Time           string
	Type           string
	Reason         string
	Notes          string
	IdempotencyKey string
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	PatientID string
	DoctorID  string
	Status    models.AppointmentStatus
	Date      string
}

func (f Filter) cacheKey() string {
	return fmt.Sprintf("list|%s|%s|%s|%s", f.PatientID, f.DoctorID, f.Status, f.Date)
}

// Create books a new scheduled appointment. The boolean result is true when
// the idempotency key matched an earlier booking and no row was inserted.
func (l *Ledger) Create(ctx context.Context, actor Actor, in CreateInput) (*models.Appointment, bool, error) {
	if in.PatientID == "" && actor.Role == models.RolePatient {
		in.PatientID = actor.ID
	}
	appointment, err := l.newAppointment(actor, in)
	if err != nil {
		l.record("create", actor, "", "", err)
		return nil, false, err
	}

	replayedID := ""
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IdempotencyKey != "" {
			id, err := findIdempotent(tx, actor.ID, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if id != "" {
				replayedID = id
				return nil
			}
		}

		if err := resolvePatient(tx, appointment.PatientID); err != nil {
			return err
		}
		if err := resolveDoctor(tx, appointment.DoctorID); err != nil {
			return err
		}
		if err := ensureSlotFree(tx, appointment); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(appointment).Error; err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			return tx.Create(&models.IdempotencyRecord{
				ID:            uuid.New().String(),
				SubjectID:     actor.ID,
				Key:           in.IdempotencyKey,
				AppointmentID: appointment.ID,
			}).Error
		}
		return nil
	})
	if err != nil {
		err = translateStorageError(err)
		l.record("create", actor, appointment.ID, "", err)
		return nil, false, err
	}

	if replayedID != "" {
		a, err := l.load(ctx, replayedID)
		return a, true, err
	}

	l.record("create", actor, appointment.ID, "", nil)
	l.invalidate()
	a, err := l.load(ctx, appointment.ID)
	return a, false, err
}

func (l *Ledger) newAppointment(actor Actor, in CreateInput) (*models.Appointment, error) {
	if actor.Role == models.RolePatient && in.PatientID != actor.ID {
		return nil, apperr.Forbidden("patients can only book appointments for themselves")
	}
	if err := validateID("patient", in.PatientID); err != nil {
		return nil, err
	}
	if err := validateID("doctor", in.DoctorID); err != nil {
		return nil, err
	}
	typ, ok := models.ParseType(in.Type)
	if !ok {
		return nil, apperr.Validation("appointment type must be one of in-person, video, phone")
	}
	if err := l.validateSlot(in.Date, in.Time); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, apperr.Validation("reason for visit is required")
	}

	a := &models.Appointment{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		AppointmentDate: in.Date,
		AppointmentTime: in.Time,
		AppointmentType: typ,
		ReasonForVisit:  strings.TrimSpace(in.Reason),
		Notes:           in.Notes,
		Status:          models.StatusScheduled,
	}
	a.SyncSlotKey()
	return a, nil
}

// Get returns one appointment with its patient and doctor loaded.
func (l *Ledger) Get(ctx context.Context, actor Actor, id string) (*models.Appointment, error) {
	if err := validateID("appointment", id); err != nil {
		return nil, err
	}
	a, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns appointment views ordered by date and time. Patients only
// ever see their own appointments.
func (l *Ledger) List(ctx context.Context, actor Actor, f Filter) ([]models.AppointmentView, error) {
	if actor.Role == models.RolePatient {
		f.PatientID = actor.ID
	}
	return cache.Fetch(l.cache, cache.Appointments, f.cacheKey(), func() ([]models.AppointmentView, error) {
		q := withRelations(l.db.WithContext(ctx)).Order("appointment_date asc").Order("appointment_time asc")
		if f.PatientID != "" {
			q = q.Where("patient_id = ?", f.PatientID)
		}
		if f.DoctorID != "" {
			q = q.Where("doctor_id = ?", f.DoctorID)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.Date != "" {
			q = q.Where("appointment_date = ?", f.Date)
		}

		var appointments []models.Appointment
		if err := q.Find(&appointments).Error; err != nil {
			return nil, apperr.Internal("failed to fetch appointments", err)
		}
		views := make([]models.AppointmentView, len(appointments))
		for i := range appointments {
			views[i] = appointments[i].View()
		}
		return views, nil
	})
}

// Delete removes an appointment row. Only administrators may delete.
func (l *Ledger) Delete(ctx context.Context, actor Actor, id string) error {
	if err := validateID("appointment", id); err != nil {
		return err
	}
	if !actor.isAdmin() {
		return apperr.Forbidden("only administrators can delete appointments")
	}

	var from models.AppointmentStatus
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Appointment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error; err != nil {
			return err
		}
		from = a.Status
		if err := tx.Where("appointment_id = ?", id).Delete(&models.IdempotencyRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Appointment{}, "id = ?", id).Error
	})
	err = translateStorageError(err)
	l.record("delete", actor, id, from, err)
	if err == nil {
		l.invalidate()
	}
	return err
}

// errNoChange aborts a mutation that would not alter the row.
var errNoChange = errors.New("no change")

// mutate loads the appointment under a row lock, applies fn and, unless fn
// rejects, re-checks the slot and saves in the same transaction.
func (l *Ledger) mutate(ctx context.Context, op string, actor Actor, id string, fn func(tx *gorm.DB, a *models.Appointment) error) (*models.Appointment, error) {
	if err := validateID("appointment", id); err != nil {
		l.record(op, actor, id, "", err)
		return nil, err
	}

	var from models.AppointmentStatus
	unchanged := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Appointment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error; err != nil {
			return err
		}
		from = a.Status
		if err := authorize(actor, &a); err != nil {
			return err
		}

		if err := fn(tx, &a); err != nil {
			if errors.Is(err, errNoChange) {
				unchanged = true
				return nil
			}
			return err
		}

		a.SyncSlotKey()
		if a.SlotKey != nil {
			if err := ensureSlotFree(tx, &a); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(&a).Error
	})
	err = translateStorageError(err)
	l.record(op, actor, id, from, err)
	if err != nil {
		return nil, err
	}

	if !unchanged {
		l.invalidate()
	}
	return l.load(ctx, id)
}

func (l *Ledger) load(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := withRelations(l.db.WithContext(ctx)).First(&a, "id = ?", id).Error; err != nil {
		return nil, translateStorageError(err)
	}
	return &a, nil
}

func (l *Ledger) invalidate() {
	l.cache.Invalidate(cache.Appointments, cache.Dashboard)
}

func (l *Ledger) record(op string, actor Actor, id string, from models.AppointmentStatus, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	l.metrics.ObserveOperation(op, outcome)

	if l.log == nil {
		return
	}
	fields := logrus.Fields{"appointment_id": id, "operation": op, "outcome": outcome}
	if from != "" {
		fields["from_status"] = from
	}
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		l.log.WithComponent("ledger").WithError(err).WithFields(fields).Error("appointment operation failed")
	}
	l.log.Audit(actor.ID, op, "appointment", err == nil, fields)
}

// validateSlot checks the date and time formats and that the slot lies in the future.
func (l *Ledger) validateSlot(date, clock string) error {
	if !models.ValidDate(date) {
		return apperr.Validation("date must be formatted YYYY-MM-DD")
	}
	if !models.ValidTime(clock) {
		return apperr.Validation("time must be formatted HH:MM")
	}
	at, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout, date+" "+clock, l.loc)
	if err != nil {
		return apperr.Validation("invalid appointment date or time")
	}
	if !at.After(l.now()) {
		return apperr.Validation("appointment must be scheduled in the future")
	}
	return nil
}

// daysUntil returns the number of calendar days from today to date.
func (l *Ledger) daysUntil(date string) (int, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, l.loc)
	if err != nil {
		return 0, err
	}
	now := l.now().In(l.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.loc)
	return int(math.Round(day.Sub(today).Hours() / 24)), nil
}

func withRelations(db *gorm.DB) *gorm.DB {
	unscoped := func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	return db.Preload("Patient", unscoped).Preload("Doctor", unscoped)
}

func authorize(actor Actor, a *models.Appointment) error {
	if actor.isAdmin() {
		return nil
	}
	if actor.Role == models.RolePatient && actor.ID == a.PatientID {
		return nil
	}
	return apperr.Forbidden("you are not authorized to access this appointment")
}

func validateID(what, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("%s id is required", what)
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Validation("invalid %s id format", what)
	}
	return nil
}
