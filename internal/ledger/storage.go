package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/models"
)

// ensureSlotFree fails with a conflict when another scheduled appointment
// holds the doctor's date and time. The unique slot_key index backs this
// check against concurrent writers.
func ensureSlotFree(tx *gorm.DB, a *models.Appointment) error {
	q := tx.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND appointment_time = ? AND status = ?",
			a.DoctorID, a.AppointmentDate, a.AppointmentTime, models.StatusScheduled)
	if a.ID != "" {
		q = q.Where("id <> ?", a.ID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return slotTaken(a)
	}
	return nil
}

func slotTaken(a *models.Appointment) error {
	return apperr.Conflict("doctor already has an appointment on %s at %s", a.AppointmentDate, a.AppointmentTime)
}

// resolvePatient requires a non-deleted, active patient.
func resolvePatient(tx *gorm.DB, id string) error {
	var p models.Patient
	if err := tx.Select("id", "account_status").First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("patient not found")
		}
		return err
	}
	if p.AccountStatus != models.AccountActive {
		return apperr.Validation("patient account is %s", p.AccountStatus)
	}
	return nil
}

// resolveDoctor requires a non-deleted doctor who is taking bookings.
func resolveDoctor(tx *gorm.DB, id string) error {
	var d models.Doctor
	if err := tx.Select("id", "status").First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("doctor not found")
		}
		return err
	}
	if d.Status != models.DoctorActive {
		return apperr.Validation("doctor is not accepting appointments")
	}
	return nil
}

func findIdempotent(tx *gorm.DB, subjectID, key string) (string, error) {
	var rec models.IdempotencyRecord
	err := tx.Where(&models.IdempotencyRecord{SubjectID: subjectID, Key: key}).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.AppointmentID, nil
}

// translateStorageError converts storage failures into the ledger's error
// taxonomy. Already classified errors pass through.
func translateStorageError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("appointment not found")
	case models.IsDuplicateKey(err):
		return apperr.Conflict("the requested slot is no longer available")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Internal("request timed out", err)
	}
	return apperr.Internal("appointment storage failure", err)
}
