package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/testutil"
)

func insertAppointment(t *testing.T, db *gorm.DB, patientID, doctorID, date string, status models.AppointmentStatus, createdAt time.Time) *models.Appointment {
	t.Helper()
	a := &models.Appointment{
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentDate: date,
		AppointmentTime: "10:00",
		AppointmentType: models.TypeInPerson,
		ReasonForVisit:  "checkup",
		Status:          status,
	}
	a.CreatedAt = createdAt
	a.SyncSlotKey()
	require.NoError(t, db.Omit("Patient", "Doctor").Create(a).Error)
	return a
}

func TestStats(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.SeedPatient(t, db, "ada")
	d := testutil.SeedDoctor(t, db, "grey", "Cardiology")
	onLeave := testutil.SeedDoctor(t, db, "house", "Diagnostics")
	require.NoError(t, db.Model(onLeave).Update("status", models.DoctorOnLeave).Error)

	insertAppointment(t, db, p.ID, d.ID, "2026-11-02", models.StatusScheduled, testutil.Now)
	insertAppointment(t, db, p.ID, d.ID, "2026-09-02", models.StatusCompleted, testutil.Now)
	insertAppointment(t, db, p.ID, d.ID, "2026-09-03", models.StatusCompleted, testutil.Now)
	insertAppointment(t, db, p.ID, d.ID, "2026-09-04", models.StatusCancelled, testutil.Now)

	r := New(db, nil, time.UTC, testutil.Clock)
	s, err := r.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), s.TotalPatients)
	assert.Equal(t, int64(2), s.TotalDoctors)
	assert.Equal(t, int64(1), s.ActiveDoctors)
	assert.Equal(t, int64(4), s.TotalAppointments)
	assert.Equal(t, int64(1), s.Scheduled)
	assert.Equal(t, int64(2), s.Completed)
	assert.Equal(t, int64(1), s.Cancelled)
	assert.InDelta(t, 2.0/3.0, s.CompletionRate, 1e-9)
}

func TestAppointmentsByMonth(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.SeedPatient(t, db, "ada")
	other := testutil.SeedPatient(t, db, "bob")
	d := testutil.SeedDoctor(t, db, "grey", "Cardiology")

	insertAppointment(t, db, p.ID, d.ID, "2026-03-02", models.StatusCompleted, testutil.Now)
	insertAppointment(t, db, p.ID, d.ID, "2026-03-09", models.StatusCompleted, testutil.Now)
	insertAppointment(t, db, other.ID, d.ID, "2026-11-02", models.StatusScheduled, testutil.Now)
	insertAppointment(t, db, p.ID, d.ID, "2025-03-02", models.StatusCompleted, testutil.Now)

	r := New(db, nil, time.UTC, testutil.Clock)
	series, err := r.AppointmentsByMonth(context.Background(), 2026, "")
	require.NoError(t, err)
	require.Len(t, series, 12)
	assert.Equal(t, "Mar", series[2].Label)
	assert.Equal(t, int64(2), series[2].Count)
	assert.Equal(t, int64(1), series[10].Count)
	assert.Equal(t, int64(0), series[0].Count)

	mine, err := r.AppointmentsByMonth(context.Background(), 2026, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine[2].Count)
	assert.Equal(t, int64(0), mine[10].Count)
}

func TestRegistrationsByMonthAndNewPatients(t *testing.T) {
	db := testutil.NewDB(t)
	jan := testutil.SeedPatient(t, db, "jan")
	feb := testutil.SeedPatient(t, db, "feb")
	old := testutil.SeedPatient(t, db, "old")
	require.NoError(t, db.Model(jan).Update("created_at", time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)).Error)
	require.NoError(t, db.Model(feb).Update("created_at", time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)).Error)
	require.NoError(t, db.Model(old).Update("created_at", time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)).Error)

	r := New(db, nil, time.UTC, testutil.Clock)
	series, err := r.RegistrationsByMonth(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), series[0].Count)
	assert.Equal(t, int64(1), series[1].Count)
	assert.Equal(t, int64(0), series[11].Count)

	newest, err := r.NewPatients(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, feb.ID, newest[0].ID)
	assert.Equal(t, jan.ID, newest[1].ID)
}

func TestRecentAndUpcoming(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.SeedPatient(t, db, "ada")
	d := testutil.SeedDoctor(t, db, "grey", "Cardiology")

	past := insertAppointment(t, db, p.ID, d.ID, "2026-09-01", models.StatusCompleted, testutil.Now.Add(-48*time.Hour))
	later := insertAppointment(t, db, p.ID, d.ID, "2026-12-01", models.StatusScheduled, testutil.Now.Add(-24*time.Hour))
	sooner := insertAppointment(t, db, p.ID, d.ID, "2026-10-05", models.StatusScheduled, testutil.Now)
	insertAppointment(t, db, p.ID, d.ID, "2026-10-06", models.StatusCancelled, testutil.Now.Add(-72*time.Hour))

	r := New(db, nil, time.UTC, testutil.Clock)
	recent, err := r.RecentAppointments(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, sooner.ID, recent[0].ID)
	assert.Equal(t, later.ID, recent[1].ID)
	assert.Equal(t, "grey", recent[0].DoctorName)

	upcoming, err := r.Upcoming(context.Background(), p.ID, 5)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, sooner.ID, upcoming[0].ID)
	assert.Equal(t, later.ID, upcoming[1].ID)
	assert.NotEqual(t, past.ID, upcoming[0].ID)
}

func TestResultsAreCachedUntilInvalidated(t *testing.T) {
	db := testutil.NewDB(t)
	c, err := cache.New(16, logger.Discard())
	require.NoError(t, err)
	r := New(db, c, time.UTC, testutil.Clock)

	s, err := r.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.TotalPatients)

	testutil.SeedPatient(t, db, "ada")
	s, err = r.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.TotalPatients)

	c.Invalidate(cache.Dashboard)
	s, err = r.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalPatients)
}
