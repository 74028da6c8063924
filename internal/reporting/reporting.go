// Package reporting computes the read-only dashboard projections over
// appointments, patients and doctors.
package reporting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/models"
)

// Stats are the headline dashboard counters.
type Stats struct {
	TotalPatients     int64   `json:"totalPatients"`
	TotalDoctors      int64   `json:"totalDoctors"`
	ActiveDoctors     int64   `json:"activeDoctors"`
	TotalAppointments int64   `json:"totalAppointments"`
	Scheduled         int64   `json:"scheduled"`
	Completed         int64   `json:"completed"`
	Cancelled         int64   `json:"cancelled"`
	CompletionRate    float64 `json:"completionRate"`
}

// MonthlyCount is one bucket of a twelve month series.
type MonthlyCount struct {
	Month int    `json:"month"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Reporter answers dashboard queries. It never writes.
type Reporter struct {
	db    *gorm.DB
	cache *cache.Cache
	loc   *time.Location
	now   func() time.Time
}

// New creates a Reporter. c may be nil; loc and now default to the local clock.
func New(db *gorm.DB, c *cache.Cache, loc *time.Location, now func() time.Time) *Reporter {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Reporter{db: db, cache: c, loc: loc, now: now}
}

// Stats counts patients, doctors and appointments by status.
func (r *Reporter) Stats(ctx context.Context) (Stats, error) {
	return cache.Fetch(r.cache, cache.Dashboard, "stats", func() (Stats, error) {
		db := r.db.WithContext(ctx)
		var s Stats

		if err := db.Model(&models.Patient{}).Count(&s.TotalPatients).Error; err != nil {
			return s, apperr.Internal("failed to count patients", err)
		}
		if err := db.Model(&models.Doctor{}).Count(&s.TotalDoctors).Error; err != nil {
			return s, apperr.Internal("failed to count doctors", err)
		}
		if err := db.Model(&models.Doctor{}).Where("status = ?", models.DoctorActive).Count(&s.ActiveDoctors).Error; err != nil {
			return s, apperr.Internal("failed to count doctors", err)
		}

		var rows []struct {
			Status models.AppointmentStatus
			Count  int64
		}
		err := db.Model(&models.Appointment{}).
			Select("status, COUNT(*) AS count").
			Group("status").
			Scan(&rows).Error
		if err != nil {
			return s, apperr.Internal("failed to count appointments", err)
		}
		for _, row := range rows {
			s.TotalAppointments += row.Count
			switch row.Status {
			case models.StatusScheduled:
				s.Scheduled = row.Count
			case models.StatusCompleted:
				s.Completed = row.Count
			case models.StatusCancelled:
				s.Cancelled = row.Count
			}
		}
		if closed := s.Completed + s.Cancelled; closed > 0 {
			s.CompletionRate = float64(s.Completed) / float64(closed)
		}
		return s, nil
	})
}

// AppointmentsByMonth buckets appointments by the month of their scheduled
// date. An empty patientID counts every patient.
func (r *Reporter) AppointmentsByMonth(ctx context.Context, year int, patientID string) ([]MonthlyCount, error) {
	key := fmt.Sprintf("appointments-by-month|%d|%s", year, patientID)
	return cache.Fetch(r.cache, cache.Dashboard, key, func() ([]MonthlyCount, error) {
		q := r.db.WithContext(ctx).Model(&models.Appointment{}).
			Select("SUBSTR(appointment_date, 6, 2) AS month, COUNT(*) AS count").
			Where("appointment_date LIKE ?", fmt.Sprintf("%04d-%%", year)).
			Group("month")
		if patientID != "" {
			q = q.Where("patient_id = ?", patientID)
		}

		var rows []struct {
			Month string
			Count int64
		}
		if err := q.Scan(&rows).Error; err != nil {
			return nil, apperr.Internal("failed to aggregate appointments", err)
		}

		series := emptySeries()
		for _, row := range rows {
			m, err := strconv.Atoi(row.Month)
			if err != nil || m < 1 || m > 12 {
				continue
			}
			series[m-1].Count = row.Count
		}
		return series, nil
	})
}

// RegistrationsByMonth buckets patient sign-ups by creation month.
func (r *Reporter) RegistrationsByMonth(ctx context.Context, year int) ([]MonthlyCount, error) {
	key := fmt.Sprintf("registrations-by-month|%d", year)
	return cache.Fetch(r.cache, cache.Dashboard, key, func() ([]MonthlyCount, error) {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, r.loc)
		to := from.AddDate(1, 0, 0)

		var created []time.Time
		err := r.db.WithContext(ctx).Model(&models.Patient{}).
			Where("created_at >= ? AND created_at < ?", from, to).
			Pluck("created_at", &created).Error
		if err != nil {
			return nil, apperr.Internal("failed to aggregate registrations", err)
		}

		series := emptySeries()
		for _, t := range created {
			series[t.In(r.loc).Month()-1].Count++
		}
		return series, nil
	})
}

// RecentAppointments returns the n most recently booked appointments.
func (r *Reporter) RecentAppointments(ctx context.Context, n int) ([]models.AppointmentView, error) {
	return cache.Fetch(r.cache, cache.Dashboard, fmt.Sprintf("recent-appointments|%d", n), func() ([]models.AppointmentView, error) {
		var appointments []models.Appointment
		err := withRelations(r.db.WithContext(ctx)).
			Order("created_at desc").
			Limit(n).
			Find(&appointments).Error
		if err != nil {
			return nil, apperr.Internal("failed to fetch recent appointments", err)
		}
		return views(appointments), nil
	})
}

// NewPatients returns the n most recently registered patients.
func (r *Reporter) NewPatients(ctx context.Context, n int) ([]models.PatientSanitized, error) {
	return cache.Fetch(r.cache, cache.Dashboard, fmt.Sprintf("new-patients|%d", n), func() ([]models.PatientSanitized, error) {
		var patients []models.Patient
		if err := r.db.WithContext(ctx).Order("created_at desc").Limit(n).Find(&patients).Error; err != nil {
			return nil, apperr.Internal("failed to fetch new patients", err)
		}
		out := make([]models.PatientSanitized, len(patients))
		for i := range patients {
			out[i] = patients[i].Sanitize()
		}
		return out, nil
	})
}

// Upcoming returns a patient's next n scheduled appointments from today on.
func (r *Reporter) Upcoming(ctx context.Context, patientID string, n int) ([]models.AppointmentView, error) {
	today := r.now().In(r.loc).Format(models.DateLayout)
	key := fmt.Sprintf("upcoming|%s|%s|%d", patientID, today, n)
	return cache.Fetch(r.cache, cache.Dashboard, key, func() ([]models.AppointmentView, error) {
		var appointments []models.Appointment
		err := withRelations(r.db.WithContext(ctx)).
			Where("patient_id = ? AND status = ? AND appointment_date >= ?", patientID, models.StatusScheduled, today).
			Order("appointment_date asc").
			Order("appointment_time asc").
			Limit(n).
			Find(&appointments).Error
		if err != nil {
			return nil, apperr.Internal("failed to fetch upcoming appointments", err)
		}
		return views(appointments), nil
	})
}

// Year is the current calendar year on the reporter's clock.
func (r *Reporter) Year() int {
	return r.now().In(r.loc).Year()
}

func emptySeries() []MonthlyCount {
	series := make([]MonthlyCount, 12)
	for i := range series {
		series[i] = MonthlyCount{Month: i + 1, Label: time.Month(i + 1).String()[:3]}
	}
	return series
}

func withRelations(db *gorm.DB) *gorm.DB {
	unscoped := func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	return db.Preload("Patient", unscoped).Preload("Doctor", unscoped)
}

func views(appointments []models.Appointment) []models.AppointmentView {
	out := make([]models.AppointmentView, len(appointments))
	for i := range appointments {
		out[i] = appointments[i].View()
	}
	return out
}
