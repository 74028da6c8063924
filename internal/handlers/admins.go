package handlers

import (
	"strings"

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

// AdminHandler manages administrator accounts. Every route is admin only.
type AdminHandler struct {
	DB    *gorm.DB
	Cache *cache.Cache
	Log   *logger.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *gorm.DB, c *cache.Cache, log *logger.Logger) *AdminHandler {
	return &AdminHandler{DB: db, Cache: c, Log: log}
}

// CreateAdminRequest represents the request body for creating an admin.
type CreateAdminRequest struct {
	Name       string `json:"name" binding:"required"`
	Username   string `json:"username"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	ProfilePic string `json:"profilePic"`
}

// UpdateAdminRequest represents the request body for updating an admin.
type UpdateAdminRequest struct {
	Name       *string `json:"name"`
	Username   *string `json:"username"`
	Email      *string `json:"email" binding:"omitempty,email"`
	ProfilePic *string `json:"profilePic"`
}

// CreateAdmin adds an administrator.
func (h *AdminHandler) CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	admin, err := NewAdmin(req.Name, req.Username, req.Email, req.Password)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	admin.ProfilePic = req.ProfilePic

	if err := h.DB.WithContext(c.Request.Context()).Create(admin).Error; err != nil {
		utils.HandleError(c, storeError(err, "", "An account with this email already exists"))
		return
	}

	h.Cache.Invalidate(cache.Admins)
	actor, _ := middleware.GetUserIDFromContext(c)
	h.Log.Audit(actor, "create", "admin", true, logrus.Fields{"admin_id": admin.ID})
	utils.Created(c, "Admin created successfully", admin.Sanitize())
}

// NewAdmin builds an admin with a hashed password. Shared with the CLI.
func NewAdmin(name, username, email, password string) (*models.Admin, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if len(password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	admin := &models.Admin{
		Name:     strings.TrimSpace(name),
		Username: username,
		Email:    strings.ToLower(strings.TrimSpace(email)),
	}
	if err := admin.SetPassword(password); err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}
	return admin, nil
}

// GetAdmins lists administrators.
func (h *AdminHandler) GetAdmins(c *gin.Context) {
	admins, err := cache.Fetch(h.Cache, cache.Admins, "all", func() ([]models.AdminSanitized, error) {
		var admins []models.Admin
		if err := h.DB.WithContext(c.Request.Context()).Order("created_at asc").Find(&admins).Error; err != nil {
			return nil, storeError(err, "", "")
		}
		out := make([]models.AdminSanitized, len(admins))
		for i := range admins {
			out[i] = admins[i].Sanitize()
		}
		return out, nil
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Admins fetched successfully", admins)
}

// GetAdminByID fetches one administrator.
func (h *AdminHandler) GetAdminByID(c *gin.Context) {
	admin, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Admin fetched successfully", admin.Sanitize())
}

// UpdateAdmin edits an administrator profile.
func (h *AdminHandler) UpdateAdmin(c *gin.Context) {
	var req UpdateAdminRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	admin, err := h.find(c, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	setString(&admin.Name, req.Name)
	setString(&admin.Username, req.Username)
	setString(&admin.ProfilePic, req.ProfilePic)
	if req.Email != nil {
		admin.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if admin.Name == "" {
		utils.BadRequest(c, "name is required")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(admin).Error; err != nil {
		utils.HandleError(c, storeError(err, "Admin not found", "An account with this email already exists"))
		return
	}
	h.Cache.Invalidate(cache.Admins)
	utils.Success(c, "Admin updated successfully", admin.Sanitize())
}

// UpdatePassword changes an administrator password.
func (h *AdminHandler) UpdatePassword(c *gin.Context) {
	var req PasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	admin, err := h.find(c, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if !checkCurrentPassword(c, id, admin, req.CurrentPassword) {
		return
	}
	if err := admin.SetPassword(req.NewPassword); err != nil {
		utils.HandleError(c, apperr.Internal("failed to hash password", err))
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(admin).Update("password", admin.Password).Error; err != nil {
		utils.HandleError(c, storeError(err, "Admin not found", ""))
		return
	}
	actor, _ := middleware.GetUserIDFromContext(c)
	h.Log.Audit(actor, "update_password", "admin", true, logrus.Fields{"admin_id": admin.ID})
	utils.Success(c, "Password updated successfully", nil)
}

// DeleteAdmin soft-deletes an administrator. Admins cannot delete themselves.
func (h *AdminHandler) DeleteAdmin(c *gin.Context) {
	id := c.Param("id")
	if self, _ := middleware.GetUserIDFromContext(c); self == id {
		utils.BadRequest(c, "You cannot delete your own account")
		return
	}
	admin, err := h.find(c, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Delete(admin).Error; err != nil {
		utils.HandleError(c, storeError(err, "Admin not found", ""))
		return
	}
	h.Cache.Invalidate(cache.Admins)
	actor, _ := middleware.GetUserIDFromContext(c)
	h.Log.Audit(actor, "delete", "admin", true, logrus.Fields{"admin_id": admin.ID})
	utils.Success(c, "Admin deleted successfully", nil)
}

func (h *AdminHandler) find(c *gin.Context, id string) (*models.Admin, error) {
	var admin models.Admin
	if err := h.DB.WithContext(c.Request.Context()).First(&admin, "id = ?", id).Error; err != nil {
		return nil, storeError(err, "Admin not found", "")
	}
	return &admin, nil
}
