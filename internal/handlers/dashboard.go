package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"healthcare-appointment-server/internal/reporting"
	"healthcare-appointment-server/internal/utils"
)

const (
	defaultListLimit = 5
	maxListLimit     = 50
)

// DashboardHandler serves the read-only dashboard projections.
type DashboardHandler struct {
	Reporter *reporting.Reporter
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(r *reporting.Reporter) *DashboardHandler {
	return &DashboardHandler{Reporter: r}
}

// Stats returns the headline counters.
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.Reporter.Stats(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Dashboard stats fetched successfully", stats)
}

// AppointmentsByMonth returns twelve monthly buckets for ?year= (default this year).
func (h *DashboardHandler) AppointmentsByMonth(c *gin.Context) {
	year, ok := h.year(c)
	if !ok {
		return
	}
	series, err := h.Reporter.AppointmentsByMonth(c.Request.Context(), year, "")
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments by month fetched successfully", series)
}

// RegistrationsByMonth returns patient sign-ups per month.
func (h *DashboardHandler) RegistrationsByMonth(c *gin.Context) {
	year, ok := h.year(c)
	if !ok {
		return
	}
	series, err := h.Reporter.RegistrationsByMonth(c.Request.Context(), year)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Registrations by month fetched successfully", series)
}

// RecentAppointments returns the latest bookings.
func (h *DashboardHandler) RecentAppointments(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	views, err := h.Reporter.RecentAppointments(c.Request.Context(), limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Recent appointments fetched successfully", views)
}

// NewPatients returns the latest registrations.
func (h *DashboardHandler) NewPatients(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	patients, err := h.Reporter.NewPatients(c.Request.Context(), limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "New patients fetched successfully", patients)
}

// MyUpcoming returns the caller's next scheduled appointments.
func (h *DashboardHandler) MyUpcoming(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	views, err := h.Reporter.Upcoming(c.Request.Context(), actor.ID, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Upcoming appointments fetched successfully", views)
}

// MyAppointmentsByMonth returns the caller's own monthly series.
func (h *DashboardHandler) MyAppointmentsByMonth(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	year, ok := h.year(c)
	if !ok {
		return
	}
	series, err := h.Reporter.AppointmentsByMonth(c.Request.Context(), year, actor.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments by month fetched successfully", series)
}

func (h *DashboardHandler) year(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return h.Reporter.Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		utils.BadRequest(c, "year must be a four digit year")
		return 0, false
	}
	return year, true
}

func listLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		utils.BadRequest(c, "limit must be a positive number")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}
