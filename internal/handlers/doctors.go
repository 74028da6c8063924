package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/middleware"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/utils"
)

// DoctorHandler manages the doctor directory.
type DoctorHandler struct {
	DB    *gorm.DB
	Cache *cache.Cache
	Log   *logger.Logger
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(db *gorm.DB, c *cache.Cache, log *logger.Logger) *DoctorHandler {
	return &DoctorHandler{DB: db, Cache: c, Log: log}
}

// DoctorRequest is the body for creating or updating a doctor.
type DoctorRequest struct {
	FullName          *string `json:"fullName"`
	Email             *string `json:"email" binding:"omitempty,email"`
	Specialty         *string `json:"specialty"`
	Status            *string `json:"status" binding:"omitempty,oneof=active inactive on_leave"`
	ServiceDays       *string `json:"serviceDays"`
	AvailabilityTimes *string `json:"availabilityTimes"`
	Bio               *string `json:"bio"`
}

func (r DoctorRequest) apply(d *models.Doctor) {
	setString(&d.FullName, r.FullName)
	setString(&d.Specialty, r.Specialty)
	setString(&d.ServiceDays, r.ServiceDays)
	setString(&d.AvailabilityTimes, r.AvailabilityTimes)
	setString(&d.Bio, r.Bio)
	if r.Email != nil {
		d.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
	if r.Status != nil {
		d.Status = models.DoctorStatus(*r.Status)
	}
}

// GetDoctors lists doctors. ?status= and ?specialty= narrow the result.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	status := c.Query("status")
	specialty := c.Query("specialty")
	key := "list|" + status + "|" + strings.ToLower(specialty)

	doctors, err := cache.Fetch(h.Cache, cache.Doctors, key, func() ([]models.Doctor, error) {
		q := h.DB.WithContext(c.Request.Context()).Order("full_name asc")
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if specialty != "" {
			q = q.Where("LOWER(specialty) = ?", strings.ToLower(specialty))
		}
		var doctors []models.Doctor
		if err := q.Find(&doctors).Error; err != nil {
			return nil, storeError(err, "", "")
		}
		return doctors, nil
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

// GetDoctorByID fetches one doctor.
func (h *DoctorHandler) GetDoctorByID(c *gin.Context) {
	doctor, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Doctor fetched successfully", doctor)
}

// CreateDoctor adds a directory entry. Admin only.
func (h *DoctorHandler) CreateDoctor(c *gin.Context) {
	var req DoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	doctor := models.Doctor{Status: models.DoctorActive}
	req.apply(&doctor)
	if doctor.FullName == "" || doctor.Email == "" || doctor.Specialty == "" {
		utils.BadRequest(c, "fullName, email and specialty are required")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Create(&doctor).Error; err != nil {
		utils.HandleError(c, storeError(err, "", "A doctor with this email already exists"))
		return
	}
	h.invalidate()
	h.audit(c, "create", doctor.ID)
	utils.Created(c, "Doctor created successfully", doctor)
}

// UpdateDoctor edits a directory entry. Admin only.
func (h *DoctorHandler) UpdateDoctor(c *gin.Context) {
	var req DoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	doctor, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	req.apply(doctor)
	if doctor.FullName == "" {
		utils.BadRequest(c, "fullName is required")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(doctor).Error; err != nil {
		utils.HandleError(c, storeError(err, "Doctor not found", "A doctor with this email already exists"))
		return
	}
	h.invalidate()
	h.audit(c, "update", doctor.ID)
	utils.Success(c, "Doctor updated successfully", doctor)
}

// UpdateDoctorStatus sets whether a doctor takes bookings. The body is a
// bare status string or {"status": ...}. Admin only.
func (h *DoctorHandler) UpdateDoctorStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	raw, err := utils.BindText(c, &req)
	if err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if raw == "" {
		raw = req.Status
	}
	status := models.DoctorStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !models.ValidDoctorStatus(status) {
		utils.BadRequest(c, "status must be one of active, inactive, on_leave")
		return
	}

	doctor, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(doctor).Update("status", status).Error; err != nil {
		utils.HandleError(c, storeError(err, "Doctor not found", ""))
		return
	}
	doctor.Status = status
	h.invalidate()
	h.audit(c, "update_status", doctor.ID)
	utils.Success(c, "Doctor status updated successfully", doctor)
}

// DeleteDoctor soft-deletes a directory entry. Admin only.
func (h *DoctorHandler) DeleteDoctor(c *gin.Context) {
	doctor, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Delete(doctor).Error; err != nil {
		utils.HandleError(c, storeError(err, "Doctor not found", ""))
		return
	}
	h.invalidate()
	h.audit(c, "delete", doctor.ID)
	utils.Success(c, "Doctor deleted successfully", nil)
}

func (h *DoctorHandler) find(c *gin.Context, id string) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := h.DB.WithContext(c.Request.Context()).First(&doctor, "id = ?", id).Error; err != nil {
		return nil, storeError(err, "Doctor not found", "")
	}
	return &doctor, nil
}

func (h *DoctorHandler) invalidate() {
	h.Cache.Invalidate(cache.Doctors, cache.Appointments, cache.Dashboard)
}

func (h *DoctorHandler) audit(c *gin.Context, action, id string) {
	actor, _ := middleware.GetUserIDFromContext(c)
	h.Log.Audit(actor, action, "doctor", true, logrus.Fields{"doctor_id": id})
}
