package models

import "gorm.io/gorm"

// DoctorStatus represents whether a doctor takes bookings
type DoctorStatus string

const (
	DoctorActive   DoctorStatus = "active"
	DoctorInactive DoctorStatus = "inactive"
	DoctorOnLeave  DoctorStatus = "on_leave"
)

// ValidDoctorStatus reports whether s is a known doctor status.
func ValidDoctorStatus(s DoctorStatus) bool {
	switch s {
	case DoctorActive, DoctorInactive, DoctorOnLeave:
		return true
	}
	return false
}

// Doctor is an entry in the doctor directory. Doctors do not log in.
type Doctor struct {
	BaseModel
	FullName          string         `gorm:"size:150;not null" json:"fullName"`
	Email             string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Specialty         string         `gorm:"size:100;index" json:"specialty"`
	Status            DoctorStatus   `gorm:"size:20;default:'active'" json:"status"`
	ServiceDays       string         `gorm:"size:100" json:"serviceDays"`       // e.g. "Mon,Wed,Fri"
	AvailabilityTimes string         `gorm:"size:100" json:"availabilityTimes"` // e.g. "09:00-17:00"
	Bio               string         `gorm:"type:text" json:"bio,omitempty"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}
