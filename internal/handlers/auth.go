package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"healthcare-appointment-server/internal/config"
	"healthcare-appointment-server/internal/logger"
	"healthcare-appointment-server/internal/middleware"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, log *logger.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg, Log: log}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
	User  interface{} `json:"user"`
}

// AdminLogin authenticates an administrator.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, models.RoleAdmin)
}

// PatientLogin authenticates a patient.
func (h *AuthHandler) PatientLogin(c *gin.Context) {
	h.login(c, models.RolePatient)
}

func (h *AuthHandler) login(c *gin.Context, role models.Role) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		utils.BadRequest(c, "Password is required")
		return
	}

	account, profile, err := h.findAccount(c.Request.Context(), role, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.HandleError(c, storeError(err, "", ""))
			return
		}
		models.BurnPasswordCheck(req.Password)
		h.Log.Audit("", "login", string(role), false, logrus.Fields{"reason": "unknown email"})
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	if !account.CheckPassword(req.Password) {
		h.Log.Audit(account.AccountID(), "login", string(role), false, logrus.Fields{"reason": "bad password"})
		utils.Unauthorized(c, "Invalid email or password")
		return
	}
	if !account.CanLogin() {
		h.Log.Audit(account.AccountID(), "login", string(role), false, logrus.Fields{"reason": "account not active"})
		utils.Forbidden(c, "Account is not active")
		return
	}

	token, err := utils.GenerateToken(account, h.Cfg.JWTSecret, h.Cfg.TokenTTL())
	if err != nil {
		h.Log.WithComponent("auth").WithError(err).Error("failed to sign token")
		utils.InternalServerError(c, "Failed to generate token")
		return
	}

	h.Log.Audit(account.AccountID(), "login", string(role), true, nil)
	utils.Success(c, "Login successful", LoginResponse{Token: token, Role: role, User: profile})
}

func (h *AuthHandler) findAccount(ctx context.Context, role models.Role, email string) (models.Account, interface{}, error) {
	switch role {
	case models.RoleAdmin:
		var admin models.Admin
		if err := h.DB.WithContext(ctx).Where("email = ?", email).First(&admin).Error; err != nil {
			return nil, nil, err
		}
		return &admin, admin.Sanitize(), nil
	default:
		var patient models.Patient
		if err := h.DB.WithContext(ctx).Where("email = ?", email).First(&patient).Error; err != nil {
			return nil, nil, err
		}
		return &patient, patient.Sanitize(), nil
	}
}

// Me returns the profile of the authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	switch actor.Role {
	case models.RoleAdmin:
		var admin models.Admin
		if err := h.DB.WithContext(c.Request.Context()).First(&admin, "id = ?", actor.ID).Error; err != nil {
			utils.HandleError(c, storeError(err, "Admin not found", ""))
			return
		}
		utils.Success(c, "Profile fetched successfully", admin.Sanitize())
	default:
		var patient models.Patient
		if err := h.DB.WithContext(c.Request.Context()).First(&patient, "id = ?", actor.ID).Error; err != nil {
			utils.HandleError(c, storeError(err, "Patient not found", ""))
			return
		}
		utils.Success(c, "Profile fetched successfully", patient.Sanitize())
	}
}

// PasswordRequest is the body of a password change. The current password is
// required when callers change their own password.
type PasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// checkCurrentPassword enforces the current password rule for id.
func checkCurrentPassword(c *gin.Context, id string, account models.Account, current string) bool {
	self, _ := middleware.GetUserIDFromContext(c)
	if self != id {
		return true
	}
	if !account.CheckPassword(current) {
		utils.Unauthorized(c, "Current password is incorrect")
		return false
	}
	return true
}
