package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/config"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/metrics"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/testutil"
	"healthcare-appointment-server/internal/utils"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type server struct {
	t       *testing.T
	db      *gorm.DB
	router  *gin.Engine
	cfg     *config.Config
	admin   *models.Admin
	patient *models.Patient
	doctor  *models.Doctor
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	c, err := cache.New(64, logger.Discard())
	require.NoError(t, err)

	cfg := &config.Config{
		Origin:                "http://localhost:3000",
		JWTSecret:             "test-secret",
		JWTExpirationMinutes:  60,
		RequestTimeoutSeconds: 5,
		CancellationLeadDays:  1,
	}
	return &server{
		t:  t,
		db: db,
		router: NewRouter(Dependencies{
			DB:      db,
			Config:  cfg,
			Log:     logger.Discard(),
			Cache:   c,
			Metrics: metrics.New(),
			Now:     testutil.Clock,
		}),
		cfg:     cfg,
		admin:   testutil.SeedAdmin(t, db, "root"),
		patient: testutil.SeedPatient(t, db, "ada"),
		doctor:  testutil.SeedDoctor(t, db, "grey", "Cardiology"),
	}
}

func (s *server) do(method, path, token, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *server) login(role, email string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/"+role+"/login", "", `{"email":"`+email+`","password":"password123"}`)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &resp))
	return resp.Token
}

func (s *server) bookingBody(date, clock string) string {
	return `{"patientId":"` + s.patient.ID + `","doctorId":"` + s.doctor.ID +
		`","appointmentDate":"` + date + `","appointmentTime":"` + clock +
		`","appointmentType":"in-person","reasonForVisit":"Annual checkup"}`
}

func (s *server) book(token, date, clock string) models.AppointmentView {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/appointments", token, s.bookingBody(date, clock))
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var view models.AppointmentView
	require.NoError(s.t, json.Unmarshal(env.Data, &view))
	return view
}

func TestLogin(t *testing.T) {
	s := newServer(t)

	w, env := s.do(http.MethodPost, "/api/v1/admin/login", "", `{"email":"`+s.admin.Email+`","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, string(env.Data), "token")

	w, _ = s.do(http.MethodPost, "/api/v1/admin/login", "", `{"email":"`+s.admin.Email+`","password":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/admin/login", "", `{"email":"nobody@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A patient's credentials do not open the admin login.
	w, _ = s.do(http.MethodPost, "/api/v1/admin/login", "", `{"email":"`+s.patient.Email+`","password":"password123"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for role, email := range map[models.Role]string{models.RoleAdmin: s.admin.Email, models.RolePatient: s.patient.Email} {
		claims, err := utils.ValidateToken(s.login(string(role), email), s.cfg.JWTSecret)
		require.NoError(t, err)
		assert.Equal(t, role, claims.Role)
		assert.Equal(t, email, claims.Email)
	}
}

func TestInactivePatientCannotLogin(t *testing.T) {
	s := newServer(t)
	adminToken := s.login("admin", s.admin.Email)

	w, _ := s.do(http.MethodPatch, "/api/v1/patient/account-status/"+s.patient.ID, adminToken, `"suspended"`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/api/v1/patient/login", "", `{"email":"`+s.patient.Email+`","password":"password123"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(http.MethodGet, "/api/v1/appointments", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAppointmentLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	adminToken := s.login("admin", s.admin.Email)
	patientToken := s.login("patient", s.patient.Email)

	created := s.book(patientToken, "2026-11-02", "09:30")
	assert.Equal(t, models.StatusScheduled, created.Status)
	assert.Equal(t, "ada", created.PatientName)
	assert.Equal(t, "Cardiology", created.Specialty)

	w, env := s.do(http.MethodPost, "/api/v1/appointments", adminToken, s.bookingBody("2026-11-02", "09:30"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, env.Error)

	w, env = s.do(http.MethodGet, "/api/v1/appointments/"+created.ID, patientToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, created.DoctorID, got.DoctorID)
	assert.Equal(t, "2026-11-02", got.AppointmentDate)
	assert.Equal(t, "09:30", got.AppointmentTime)
	assert.Equal(t, models.TypeInPerson, got.AppointmentType)
	assert.Equal(t, "Annual checkup", got.ReasonForVisit)

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/notes/"+created.ID, patientToken, `"bring x-rays"`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/status/"+created.ID, patientToken, `"completed"`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/status/"+created.ID, adminToken, `""`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPatch, "/api/v1/appointments/status/"+created.ID, adminToken, `"completed"`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "bring x-rays", got.Notes)

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/cancel-reason/"+created.ID, adminToken, `"too late"`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/v1/appointments/"+created.ID, patientToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodDelete, "/api/v1/appointments/"+created.ID, adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/api/v1/appointments/"+created.ID, adminToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAppointmentRejectsBadInput(t *testing.T) {
	s := newServer(t)
	adminToken := s.login("admin", s.admin.Email)

	unknownDoctor := strings.Replace(s.bookingBody("2026-11-02", "09:30"), s.doctor.ID, "00000000-0000-4000-8000-000000000000", 1)
	w, _ := s.do(http.MethodPost, "/api/v1/appointments", adminToken, unknownDoctor)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/appointments", adminToken, s.bookingBody("2026-11-02", "9am"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "appointmentTime")

	w, _ = s.do(http.MethodPost, "/api/v1/appointments", adminToken, s.bookingBody("2026-01-02", "09:30"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelWithReason(t *testing.T) {
	s := newServer(t)
	patientToken := s.login("patient", s.patient.Email)
	created := s.book(patientToken, "2026-11-02", "09:30")

	w, _ := s.do(http.MethodPatch, "/api/v1/appointments/cancel-reason/"+created.ID, patientToken, `""`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(http.MethodPatch, "/api/v1/appointments/cancel-reason/"+created.ID, patientToken, `{"cancellationReason":"travelling"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.StatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "travelling", *got.CancellationReason)

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/cancel-reason/"+created.ID, patientToken, `"again"`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/cancel-reason/"+created.ID, patientToken, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRescheduleOverHTTP(t *testing.T) {
	s := newServer(t)
	adminToken := s.login("admin", s.admin.Email)
	patientToken := s.login("patient", s.patient.Email)

	a := s.book(patientToken, "2026-11-02", "09:30")
	s.book(adminToken, "2026-11-03", "09:30")

	w, _ := s.do(http.MethodPatch, "/api/v1/appointments/reschedule/"+a.ID, patientToken,
		`{"rescheduleDate":"2026-11-03","rescheduleTime":"09:30","rescheduleReason":"work"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/reschedule/"+a.ID+"/accept", patientToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/reschedule/"+a.ID+"/accept", adminToken, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := s.do(http.MethodGet, "/api/v1/appointments/"+a.ID, adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "2026-11-02", got.AppointmentDate)
	assert.True(t, got.ReschedulePending)

	w, _ = s.do(http.MethodPatch, "/api/v1/appointments/reschedule/"+a.ID+"/decline", adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodPatch, "/api/v1/appointments/reschedule/"+a.ID, adminToken,
		`{"rescheduleDate":"2026-11-04","rescheduleTime":"10:00","rescheduleReason":"swap","accept":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "2026-11-04", got.AppointmentDate)
	assert.False(t, got.ReschedulePending)
}

func TestIdempotencyKeyReplaysBooking(t *testing.T) {
	s := newServer(t)
	patientToken := s.login("patient", s.patient.Email)
	body := s.bookingBody("2026-11-02", "09:30")

	w, first := s.do(http.MethodPost, "/api/v1/appointments", patientToken, body, "Idempotency-Key", "abc-1")
	require.Equal(t, http.StatusCreated, w.Code)
	w, second := s.do(http.MethodPost, "/api/v1/appointments", patientToken, body, "Idempotency-Key", "abc-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, string(first.Data), string(second.Data))
}

func TestPatientListIsScopedToCaller(t *testing.T) {
	s := newServer(t)
	adminToken := s.login("admin", s.admin.Email)
	patientToken := s.login("patient", s.patient.Email)
	s.book(patientToken, "2026-11-02", "09:30")

	other := testutil.SeedPatient(t, s.db, "bob")
	body := strings.Replace(s.bookingBody("2026-11-02", "10:30"), s.patient.ID, other.ID, 1)
	w, _ := s.do(http.MethodPost, "/api/v1/appointments", adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code)

	var views []models.AppointmentView
	_, env := s.do(http.MethodGet, "/api/v1/appointments", patientToken, "")
	require.NoError(t, json.Unmarshal(env.Data, &views))
	assert.Len(t, views, 1)

	_, env = s.do(http.MethodGet, "/api/v1/appointments", adminToken, "")
	require.NoError(t, json.Unmarshal(env.Data, &views))
	assert.Len(t, views, 2)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments?status=bogus", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountsAndDirectory(t *testing.T) {
	s := newServer(t)
	adminToken := s.login("admin", s.admin.Email)
	patientToken := s.login("patient", s.patient.Email)

	w, _ := s.do(http.MethodPost, "/api/v1/patient", "", `{"fullName":"Bob Stone","email":"bob@example.com","password":"hunter22!"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(http.MethodPost, "/api/v1/patient", "", `{"fullName":"Bob Again","email":"BOB@example.com","password":"hunter22!"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/patient", patientToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodGet, "/api/v1/patient/"+s.patient.ID, patientToken, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(http.MethodGet, "/api/v1/me", patientToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), "password")

	w, _ = s.do(http.MethodPatch, "/api/v1/patient/update-password/"+s.patient.ID, patientToken, `{"currentPassword":"nope","newPassword":"new-password-1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = s.do(http.MethodPatch, "/api/v1/patient/update-password/"+s.patient.ID, patientToken, `{"currentPassword":"password123","newPassword":"new-password-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/doctor", patientToken, `{"fullName":"Dr Who","email":"who@clinic.example.com","specialty":"Time"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(http.MethodPost, "/api/v1/doctor", adminToken, `{"fullName":"Dr Who","email":"who@clinic.example.com","specialty":"Time"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(http.MethodPatch, "/api/v1/doctor/status/"+s.doctor.ID, adminToken, `"on_leave"`)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPost, "/api/v1/appointments", adminToken, s.bookingBody("2026-11-02", "09:30"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var doctors []models.Doctor
	_, env = s.do(http.MethodGet, "/api/v1/doctor?status=active", patientToken, "")
	require.NoError(t, json.Unmarshal(env.Data, &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr Who", doctors[0].FullName)
}

func TestDashboard(t *testing.T) {
	s := newServer(t)
	adminToken := s.login("admin", s.admin.Email)
	patientToken := s.login("patient", s.patient.Email)
	s.book(patientToken, "2026-11-02", "09:30")

	w, _ := s.do(http.MethodGet, "/api/v1/dashboard/stats", patientToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodGet, "/api/v1/dashboard/stats", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		TotalAppointments int64 `json:"totalAppointments"`
		Scheduled         int64 `json:"scheduled"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalAppointments)
	assert.Equal(t, int64(1), stats.Scheduled)

	w, env = s.do(http.MethodGet, "/api/v1/dashboard/me/upcoming", patientToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var upcoming []models.AppointmentView
	require.NoError(t, json.Unmarshal(env.Data, &upcoming))
	assert.Len(t, upcoming, 1)

	w, _ = s.do(http.MethodGet, "/api/v1/dashboard/appointments-by-month?year=20x6", adminToken, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w, env := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UP", env.Message)
	assert.JSONEq(t, `{"database":"up"}`, string(env.Data))

	w, _ = s.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	s := newServer(t)
	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w, env := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)
	assert.Equal(t, "Database unavailable", env.Error)
}

func TestLoginHonoursRequestContext(t *testing.T) {
	s := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := `{"email":"` + s.admin.Email + `","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "token")
}
