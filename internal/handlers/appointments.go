package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/ledger"
	"healthcare-appointment-server/internal/middleware"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/utils"
)

// AppointmentHandler exposes the appointment ledger over HTTP.
type AppointmentHandler struct {
	Ledger *ledger.Ledger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(l *ledger.Ledger) *AppointmentHandler {
	return &AppointmentHandler{Ledger: l}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	PatientID       string `json:"patientId" binding:"omitempty,uuid"` // Defaults to the caller for patients
	DoctorID        string `json:"doctorId" binding:"required,uuid"`
	AppointmentDate string `json:"appointmentDate" binding:"required,appt_date"`
	AppointmentTime string `json:"appointmentTime" binding:"required,appt_time"`
	AppointmentType string `json:"appointmentType" binding:"required"`
	ReasonForVisit  string `json:"reasonForVisit" binding:"required"`
	Notes           string `json:"notes"`
}

// UpdateAppointmentRequest is the body of a full appointment update. Absent
// fields keep their stored value.
type UpdateAppointmentRequest struct {
	PatientID          *string `json:"patientId" binding:"omitempty,uuid"`
	DoctorID           *string `json:"doctorId" binding:"omitempty,uuid"`
	AppointmentDate    *string `json:"appointmentDate" binding:"omitempty,appt_date"`
	AppointmentTime    *string `json:"appointmentTime" binding:"omitempty,appt_time"`
	AppointmentType    *string `json:"appointmentType"`
	ReasonForVisit     *string `json:"reasonForVisit"`
	Notes              *string `json:"notes"`
	AppointmentStatus  *string `json:"appointmentStatus"`
	CancellationReason *string `json:"cancellationReason"`
}

// StatusRequest is the object form of the status update body.
type StatusRequest struct {
	Status             string `json:"status"`
	AppointmentStatus  string `json:"appointmentStatus"`
	CancellationReason string `json:"cancellationReason"`
}

// RescheduleRequest represents the request body for rescheduling an appointment.
type RescheduleRequest struct {
	RescheduleDate   string `json:"rescheduleDate" binding:"required,appt_date"`
	RescheduleTime   string `json:"rescheduleTime" binding:"required,appt_time"`
	RescheduleReason string `json:"rescheduleReason" binding:"required"`
	Accept           bool   `json:"accept"`
}

func actorOrAbort(c *gin.Context) (ledger.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Authentication required")
	}
	return actor, ok
}

// CreateAppointment books an appointment. A repeated Idempotency-Key from the
// same caller returns the original booking with 200.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, replayed, err := h.Ledger.Create(c.Request.Context(), actor, ledger.CreateInput{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		Date:           req.AppointmentDate,
		Time:           req.AppointmentTime,
		Type:           req.AppointmentType,
		Reason:         req.ReasonForVisit,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		// An unknown patient or doctor is a bad request body, not a missing resource.
		if apperr.KindOf(err) == apperr.KindNotFound {
			utils.BadRequest(c, apperr.Message(err))
			return
		}
		utils.HandleError(c, err)
		return
	}

	if replayed {
		utils.Success(c, "Appointment already created", appointment.View())
		return
	}
	utils.Created(c, "Appointment created successfully", appointment.View())
}

// GetAppointments lists appointments. Patients only receive their own.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	filter := ledger.Filter{
		PatientID: c.Query("patientId"),
		DoctorID:  c.Query("doctorId"),
		Date:      c.Query("date"),
	}
	if s := c.Query("status"); s != "" {
		status, ok := models.ParseStatus(s)
		if !ok {
			utils.BadRequest(c, "status must be one of scheduled, completed, cancelled")
			return
		}
		filter.Status = status
	}

	views, err := h.Ledger.List(c.Request.Context(), actor, filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", views)
}

// GetAppointmentByID fetches one appointment.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	appointment, err := h.Ledger.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appointment.View())
}

// UpdateAppointment edits a scheduled appointment.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req UpdateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, err := h.Ledger.UpdateDetails(c.Request.Context(), actor, c.Param("id"), ledger.DetailsInput{
		PatientID:          req.PatientID,
		DoctorID:           req.DoctorID,
		Date:               req.AppointmentDate,
		Time:               req.AppointmentTime,
		Type:               req.AppointmentType,
		Reason:             req.ReasonForVisit,
		Notes:              req.Notes,
		Status:             req.AppointmentStatus,
		CancellationReason: req.CancellationReason,
	})
	h.respond(c, "Appointment updated successfully", appointment, err)
}

// UpdateAppointmentStatus accepts either a bare status string or
// {"status", "cancellationReason"}.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req StatusRequest
	status, err := utils.BindText(c, &req)
	if err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if status == "" {
		status = req.Status
	}
	if status == "" {
		status = req.AppointmentStatus
	}

	appointment, err := h.Ledger.SetStatus(c.Request.Context(), actor, c.Param("id"), status, req.CancellationReason)
	h.respond(c, "Appointment status updated successfully", appointment, err)
}

// UpdateAppointmentNotes replaces the notes of an appointment.
func (h *AppointmentHandler) UpdateAppointmentNotes(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	notes, err := utils.BindText(c, &req)
	if err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if notes == "" {
		notes = req.Notes
	}

	appointment, err := h.Ledger.UpdateNotes(c.Request.Context(), actor, c.Param("id"), notes)
	h.respond(c, "Appointment notes updated successfully", appointment, err)
}

// CancelAppointment cancels with the reason given in the body.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req struct {
		CancellationReason string `json:"cancellationReason"`
	}
	reason, err := utils.BindText(c, &req)
	if err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if reason == "" {
		reason = req.CancellationReason
	}

	appointment, err := h.Ledger.Cancel(c.Request.Context(), actor, c.Param("id"), reason)
	h.respond(c, "Appointment cancelled successfully", appointment, err)
}

// RescheduleAppointment records a reschedule request, or applies it at once
// when an admin sends accept=true.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req RescheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, err := h.Ledger.RequestReschedule(c.Request.Context(), actor, c.Param("id"), ledger.RescheduleInput{
		Date:   req.RescheduleDate,
		Time:   req.RescheduleTime,
		Reason: req.RescheduleReason,
		Accept: req.Accept,
	})
	message := "Reschedule requested successfully"
	if req.Accept {
		message = "Appointment rescheduled successfully"
	}
	h.respond(c, message, appointment, err)
}

// AcceptReschedule applies the pending reschedule request.
func (h *AppointmentHandler) AcceptReschedule(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	appointment, err := h.Ledger.AcceptReschedule(c.Request.Context(), actor, c.Param("id"))
	h.respond(c, "Appointment rescheduled successfully", appointment, err)
}

// DeclineReschedule drops the pending reschedule request.
func (h *AppointmentHandler) DeclineReschedule(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	appointment, err := h.Ledger.DeclineReschedule(c.Request.Context(), actor, c.Param("id"))
	h.respond(c, "Reschedule request declined", appointment, err)
}

// DeleteAppointment removes an appointment row.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if err := h.Ledger.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.ResponseData{Status: http.StatusOK, Message: "Appointment deleted successfully"})
}

func (h *AppointmentHandler) respond(c *gin.Context, message string, appointment *models.Appointment, err error) {
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, message, appointment.View())
}
