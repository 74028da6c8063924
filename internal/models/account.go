package models

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePatient Role = "patient"
)

// PasswordCost is the bcrypt cost used when hashing new passwords.
var PasswordCost = bcrypt.DefaultCost

// Credential is the salted password hash shared by every account type.
type Credential struct {
	Password string `gorm:"size:255;not null" json:"-"` // Never send password in JSON
}

// SetPassword hashes a password and stores the hash
func (c *Credential) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}
	c.Password = string(hashed)
	return nil
}

// CheckPassword compares a password with the stored hash
func (c *Credential) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)) == nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// BurnPasswordCheck spends the same time a real comparison would, so an unknown
// email is not distinguishable from a wrong password by latency.
func BurnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), PasswordCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Account is implemented by every role that can log in.
type Account interface {
	AccountID() string
	AccountEmail() string
	AccountRole() Role
	CheckPassword(password string) bool
	CanLogin() bool
}

// Admin represents a back-office user
type Admin struct {
	BaseModel
	Credential
	Name       string         `gorm:"size:150;not null" json:"name"`
	Username   string         `gorm:"size:100" json:"username"`
	Email      string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	ProfilePic string         `gorm:"size:500" json:"profilePic,omitempty"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Admin) AccountID() string    { return a.ID }
func (a *Admin) AccountEmail() string { return a.Email }
func (a *Admin) AccountRole() Role    { return RoleAdmin }
func (a *Admin) CanLogin() bool       { return true }

// AdminSanitized is the admin data that is safe to send in API responses.
type AdminSanitized struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Sanitize creates an AdminSanitized, excluding sensitive data.
func (a *Admin) Sanitize() AdminSanitized {
	return AdminSanitized{
		ID:         a.ID,
		Name:       a.Name,
		Username:   a.Username,
		Email:      a.Email,
		ProfilePic: a.ProfilePic,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AccountStatus of a patient account
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
)

// ValidAccountStatus reports whether s is a known account status.
func ValidAccountStatus(s AccountStatus) bool {
	switch s {
	case AccountActive, AccountInactive, AccountSuspended:
		return true
	}
	return false
}

// Patient represents a patient account
type Patient struct {
	BaseModel
	Credential
	FullName             string         `gorm:"size:150;not null" json:"fullName"`
	Username             string         `gorm:"size:100" json:"username"`
	Email                string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	ProfilePic           string         `gorm:"size:500" json:"profilePic,omitempty"`
	PhoneNumber          string         `gorm:"size:50" json:"phoneNumber,omitempty"`
	DateOfBirth          *time.Time     `json:"dateOfBirth,omitempty"`
	Gender               string         `gorm:"size:20" json:"gender,omitempty"`
	Address              string         `gorm:"size:255" json:"address,omitempty"`
	EmergencyContactName string         `gorm:"size:150" json:"emergencyContactName,omitempty"`
	EmergencyContact     string         `gorm:"size:50" json:"emergencyContact,omitempty"`
	AccountStatus        AccountStatus  `gorm:"size:20;default:'active'" json:"accountStatus"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Patient) AccountID() string    { return p.ID }
func (p *Patient) AccountEmail() string { return p.Email }
func (p *Patient) AccountRole() Role    { return RolePatient }
func (p *Patient) CanLogin() bool       { return p.AccountStatus == AccountActive }

// PatientSanitized is the patient data that is safe to send in API responses.
type PatientSanitized struct {
	ID                   string        `json:"id"`
	FullName             string        `json:"fullName"`
	Username             string        `json:"username"`
	Email                string        `json:"email"`
	ProfilePic           string        `json:"profilePic,omitempty"`
	PhoneNumber          string        `json:"phoneNumber,omitempty"`
	DateOfBirth          *time.Time    `json:"dateOfBirth,omitempty"`
	Gender               string        `json:"gender,omitempty"`
	Address              string        `json:"address,omitempty"`
	EmergencyContactName string        `json:"emergencyContactName,omitempty"`
	EmergencyContact     string        `json:"emergencyContact,omitempty"`
	AccountStatus        AccountStatus `json:"accountStatus"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// Sanitize creates a PatientSanitized, excluding sensitive data.
func (p *Patient) Sanitize() PatientSanitized {
	return PatientSanitized{
		ID:                   p.ID,
		FullName:             p.FullName,
		Username:             p.Username,
		Email:                p.Email,
		ProfilePic:           p.ProfilePic,
		PhoneNumber:          p.PhoneNumber,
		DateOfBirth:          p.DateOfBirth,
		Gender:               p.Gender,
		Address:              p.Address,
		EmergencyContactName: p.EmergencyContactName,
		EmergencyContact:     p.EmergencyContact,
		AccountStatus:        p.AccountStatus,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}
