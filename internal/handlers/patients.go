package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/cache"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/middleware"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/utils"
)

// PatientHandler manages patient accounts.
type PatientHandler struct {
	DB    *gorm.DB
	Cache *cache.Cache
	Log   *logger.Logger
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(db *gorm.DB, c *cache.Cache, log *logger.Logger) *PatientHandler {
	return &PatientHandler{DB: db, Cache: c, Log: log}
}

// CreatePatientRequest is the sign-up body.
type CreatePatientRequest struct {
	FullName             string `json:"fullName" binding:"required"`
	Username             string `json:"username"`
	Email                string `json:"email" binding:"required,email"`
	Password             string `json:"password" binding:"required,min=8"`
	ProfilePic           string `json:"profilePic"`
	PhoneNumber          string `json:"phoneNumber"`
	DateOfBirth          string `json:"dateOfBirth" binding:"omitempty,appt_date"`
	Gender               string `json:"gender"`
	Address              string `json:"address"`
	EmergencyContactName string `json:"emergencyContactName"`
	EmergencyContact     string `json:"emergencyContact"`
}

// UpdatePatientRequest carries the profile fields a patient may change.
type UpdatePatientRequest struct {
	FullName             *string `json:"fullName"`
	Username             *string `json:"username"`
	Email                *string `json:"email" binding:"omitempty,email"`
	ProfilePic           *string `json:"profilePic"`
	PhoneNumber          *string `json:"phoneNumber"`
	DateOfBirth          *string `json:"dateOfBirth" binding:"omitempty,appt_date"`
	Gender               *string `json:"gender"`
	Address              *string `json:"address"`
	EmergencyContactName *string `json:"emergencyContactName"`
	EmergencyContact     *string `json:"emergencyContact"`
}

// CreatePatient registers a patient account. Public.
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient := models.Patient{
		FullName:             strings.TrimSpace(req.FullName),
		Username:             req.Username,
		Email:                strings.ToLower(strings.TrimSpace(req.Email)),
		ProfilePic:           req.ProfilePic,
		PhoneNumber:          req.PhoneNumber,
		Gender:               req.Gender,
		Address:              req.Address,
		EmergencyContactName: req.EmergencyContactName,
		EmergencyContact:     req.EmergencyContact,
		AccountStatus:        models.AccountActive,
	}
	if req.DateOfBirth != "" {
		dob, _ := time.Parse(models.DateLayout, req.DateOfBirth)
		patient.DateOfBirth = &dob
	}
	if err := patient.SetPassword(req.Password); err != nil {
		utils.HandleError(c, apperr.Internal("failed to hash password", err))
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Create(&patient).Error; err != nil {
		utils.HandleError(c, storeError(err, "", "An account with this email already exists"))
		return
	}

	h.invalidate()
	h.Log.Audit(patient.ID, "create", "patient", true, nil)
	utils.Created(c, "Patient created successfully", patient.Sanitize())
}

// GetPatients lists every patient. Admin only.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	patients, err := cache.Fetch(h.Cache, cache.Patients, "all", func() ([]models.PatientSanitized, error) {
		var patients []models.Patient
		if err := h.DB.WithContext(c.Request.Context()).Order("created_at desc").Find(&patients).Error; err != nil {
			return nil, storeError(err, "", "")
		}
		out := make([]models.PatientSanitized, len(patients))
		for i := range patients {
			out[i] = patients[i].Sanitize()
		}
		return out, nil
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// GetPatientByID returns one patient to an admin or the patient themselves.
func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	id := c.Param("id")
	if !middleware.IsSelfOrAdmin(c, id) {
		utils.Forbidden(c, "You can only view your own profile")
		return
	}
	patient, err := h.find(c, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient fetched successfully", patient.Sanitize())
}

// UpdatePatient edits a patient profile.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	id := c.Param("id")
	if !middleware.IsSelfOrAdmin(c, id) {
		utils.Forbidden(c, "You can only update your own profile")
		return
	}
	var req UpdatePatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	patient, err := h.find(c, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	setString(&patient.FullName, req.FullName)
	setString(&patient.Username, req.Username)
	setString(&patient.ProfilePic, req.ProfilePic)
	setString(&patient.PhoneNumber, req.PhoneNumber)
	setString(&patient.Gender, req.Gender)
	setString(&patient.Address, req.Address)
	setString(&patient.EmergencyContactName, req.EmergencyContactName)
	setString(&patient.EmergencyContact, req.EmergencyContact)
	if req.Email != nil {
		patient.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.DateOfBirth != nil {
		dob, _ := time.Parse(models.DateLayout, *req.DateOfBirth)
		patient.DateOfBirth = &dob
	}
	if strings.TrimSpace(patient.FullName) == "" {
		utils.BadRequest(c, "fullName is required")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(patient).Error; err != nil {
		utils.HandleError(c, storeError(err, "Patient not found", "An account with this email already exists"))
		return
	}
	h.invalidate()
	utils.Success(c, "Patient updated successfully", patient.Sanitize())
}

// UpdateAccountStatus sets active, inactive or suspended. Admin only. The
// body is a bare status string or {"accountStatus": ...}.
func (h *PatientHandler) UpdateAccountStatus(c *gin.Context) {
	var req struct {
		AccountStatus string `json:"accountStatus"`
	}
	raw, err := utils.BindText(c, &req)
	if err != nil {
		utils.BadRequest(c, "Invalid request payload")
		return
	}
	if raw == "" {
		raw = req.AccountStatus
	}
	status := models.AccountStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !models.ValidAccountStatus(status) {
		utils.BadRequest(c, "accountStatus must be one of active, inactive, suspended")
		return
	}

	patient, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(patient).Update("account_status", status).Error; err != nil {
		utils.HandleError(c, storeError(err, "Patient not found", ""))
		return
	}
	patient.AccountStatus = status

	h.invalidate()
	actor, _ := middleware.GetUserIDFromContext(c)
	h.Log.Audit(actor, "update_account_status", "patient", true, logrus.Fields{"patient_id": patient.ID, "status": status})
	utils.Success(c, "Account status updated successfully", patient.Sanitize())
}

// UpdatePassword changes a patient password.
func (h *PatientHandler) UpdatePassword(c *gin.Context) {
	id := c.Param("id")
	if !middleware.IsSelfOrAdmin(c, id) {
		utils.Forbidden(c, "You can only change your own password")
		return
	}
	var req PasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	patient, err := h.find(c, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if !checkCurrentPassword(c, id, patient, req.CurrentPassword) {
		return
	}
	if err := patient.SetPassword(req.NewPassword); err != nil {
		utils.HandleError(c, apperr.Internal("failed to hash password", err))
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(patient).Update("password", patient.Password).Error; err != nil {
		utils.HandleError(c, storeError(err, "Patient not found", ""))
		return
	}
	actor, _ := middleware.GetUserIDFromContext(c)
	h.Log.Audit(actor, "update_password", "patient", true, logrus.Fields{"patient_id": patient.ID})
	utils.Success(c, "Password updated successfully", nil)
}

// DeletePatient soft-deletes a patient. Existing appointments keep showing
// the patient's name. Admin only.
func (h *PatientHandler) DeletePatient(c *gin.Context) {
	patient, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Delete(patient).Error; err != nil {
		utils.HandleError(c, storeError(err, "Patient not found", ""))
		return
	}
	h.invalidate()
	actor, _ := middleware.GetUserIDFromContext(c)
	h.Log.Audit(actor, "delete", "patient", true, logrus.Fields{"patient_id": patient.ID})
	utils.Success(c, "Patient deleted successfully", nil)
}

func (h *PatientHandler) find(c *gin.Context, id string) (*models.Patient, error) {
	var patient models.Patient
	if err := h.DB.WithContext(c.Request.Context()).First(&patient, "id = ?", id).Error; err != nil {
		return nil, storeError(err, "Patient not found", "")
	}
	return &patient, nil
}

// Appointment views embed patient names, so they go stale with the patient.
func (h *PatientHandler) invalidate() {
	h.Cache.Invalidate(cache.Patients, cache.Appointments, cache.Dashboard)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
