package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	patient := &models.Patient{Email: "ada@example.com"}
	patient.ID = "2b1e4c7a-0000-4000-8000-000000000001"

	token, err := GenerateToken(patient, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, patient.ID, claims.UserID)
	assert.Equal(t, patient.ID, claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, models.RolePatient, claims.Role)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	admin := &models.Admin{Email: "root@example.com"}
	admin.ID = "2b1e4c7a-0000-4000-8000-000000000002"

	token, err := GenerateToken(admin, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(token, "secret")
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperr.KindValidation))
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.KindNotFound))
	assert.Equal(t, http.StatusConflict, StatusFor(apperr.KindConflict))
	assert.Equal(t, http.StatusConflict, StatusFor(apperr.KindInvalidTransition))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(apperr.KindAuth))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperr.KindForbidden))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperr.KindInternal))
}

func TestHandleErrorHidesInternalCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, apperr.Internal("appointment storage failure", assert.AnError))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "appointment storage failure")
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.Len(t, c.Errors, 1)
}

func bodyContext(body string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
	return c
}

func TestBindText(t *testing.T) {
	text, err := BindText(bodyContext(`"completed"`), nil)
	require.NoError(t, err)
	assert.Equal(t, "completed", text)

	text, err = BindText(bodyContext(`running late`), nil)
	require.NoError(t, err)
	assert.Equal(t, "running late", text)

	text, err = BindText(bodyContext(``), nil)
	require.NoError(t, err)
	assert.Empty(t, text)

	var obj struct {
		Status string `json:"status"`
	}
	text, err = BindText(bodyContext(`{"status":"cancelled"}`), &obj)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, "cancelled", obj.Status)

	_, err = BindText(bodyContext(`{"status":"cancelled"}`), nil)
	assert.Error(t, err)
}

func TestAppointmentValidators(t *testing.T) {
	type req struct {
		Date string `json:"date" binding:"required,appt_date"`
		Time string `json:"time" binding:"required,appt_time"`
	}

	assert.NoError(t, Validate(req{Date: "2026-11-02", Time: "09:30"}))

	err := Validate(req{Date: "11/02/2026", Time: "9:30"})
	require.Error(t, err)
	msg := FormatValidationError(err)
	assert.Contains(t, msg, "date must be formatted YYYY-MM-DD")
	assert.Contains(t, msg, "time must be formatted HH:MM")
}
