package models

import (
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ParseStatus normalises a client-supplied status string.
func ParseStatus(s string) (AppointmentStatus, bool) {
	status := AppointmentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return status, true
	}
	return "", false
}

// AppointmentType is the visit modality
type AppointmentType string

const (
	TypeInPerson AppointmentType = "in-person"
	TypeVideo    AppointmentType = "video"
	TypePhone    AppointmentType = "phone"
)

// ParseType normalises a client-supplied modality.
func ParseType(s string) (AppointmentType, bool) {
	t := AppointmentType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeInPerson, TypeVideo, TypePhone:
		return t, true
	}
	return "", false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidTime reports whether s is a 24h HH:MM time.
func ValidTime(s string) bool {
	if len(s) != len(TimeLayout) {
		return false
	}
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// Appointment is a booking of a patient with a doctor in one slot.
type Appointment struct {
	BaseModel
	PatientID          string            `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID           string            `gorm:"size:36;index;not null" json:"doctorId"`
	AppointmentDate    string            `gorm:"size:10;index;not null" json:"appointmentDate"`
	AppointmentTime    string            `gorm:"size:5;not null" json:"appointmentTime"`
	AppointmentType    AppointmentType   `gorm:"size:20;not null" json:"appointmentType"`
	ReasonForVisit     string            `gorm:"size:255" json:"reasonForVisit"`
	Status             AppointmentStatus `gorm:"size:20;not null;default:'scheduled';index" json:"appointmentStatus"`
	Notes              string            `gorm:"type:text" json:"notes"`
	CancellationReason *string           `gorm:"size:255" json:"cancellationReason,omitempty"`
	RescheduleDate     *string           `gorm:"size:10" json:"rescheduleDate,omitempty"`
	RescheduleTime     *string           `gorm:"size:5" json:"rescheduleTime,omitempty"`
	RescheduleReason   *string           `gorm:"size:255" json:"rescheduleReason,omitempty"`

	// SlotKey is doctor|date|time while the appointment is scheduled and NULL
	// otherwise. Its unique index is what serialises concurrent bookings.
	SlotKey *string `gorm:"size:100;uniqueIndex" json:"-"`

	// Relations
	Patient Patient `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  Doctor  `gorm:"foreignKey:DoctorID" json:"-"`
}

// SlotKeyFor builds the slot key of a doctor's date and time.
func SlotKeyFor(doctorID, date, clock string) string {
	return doctorID + "|" + date + "|" + clock
}

// SyncSlotKey recomputes SlotKey from status and slot fields.
func (a *Appointment) SyncSlotKey() {
	if a.Status != StatusScheduled {
		a.SlotKey = nil
		return
	}
	key := SlotKeyFor(a.DoctorID, a.AppointmentDate, a.AppointmentTime)
	a.SlotKey = &key
}

// ReschedulePending reports whether a reschedule request awaits a decision.
func (a *Appointment) ReschedulePending() bool {
	return a.RescheduleDate != nil && a.RescheduleTime != nil
}

// ClearReschedule drops any pending reschedule request.
func (a *Appointment) ClearReschedule() {
	a.RescheduleDate = nil
	a.RescheduleTime = nil
	a.RescheduleReason = nil
}

// ScheduledAt returns the appointment date and time in loc.
func (a *Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.AppointmentDate+" "+a.AppointmentTime, loc)
}

// AppointmentView is the appointment DTO with patient and doctor display fields joined in.
type AppointmentView struct {
	ID                 string            `json:"id"`
	PatientID          string            `json:"patientId"`
	PatientName        string            `json:"patientName"`
	PatientEmail       string            `json:"patientEmail"`
	PatientImage       string            `json:"patientImage,omitempty"`
	DoctorID           string            `json:"doctorId"`
	DoctorName         string            `json:"doctorName"`
	Specialty          string            `json:"specialty"`
	AppointmentDate    string            `json:"appointmentDate"`
	AppointmentTime    string            `json:"appointmentTime"`
	AppointmentType    AppointmentType   `json:"appointmentType"`
	ReasonForVisit     string            `json:"reasonForVisit"`
	Status             AppointmentStatus `json:"appointmentStatus"`
	Notes              string            `json:"notes"`
	CancellationReason *string           `json:"cancellationReason,omitempty"`
	RescheduleReason   *string           `json:"rescheduleReason,omitempty"`
	RescheduleDate     *string           `json:"rescheduleDate,omitempty"`
	RescheduleTime     *string           `json:"rescheduleTime,omitempty"`
	ReschedulePending  bool              `json:"reschedulePending"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// View projects the appointment and its preloaded relations into a DTO.
func (a *Appointment) View() AppointmentView {
	return AppointmentView{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		PatientName:        a.Patient.FullName,
		PatientEmail:       a.Patient.Email,
		PatientImage:       a.Patient.ProfilePic,
		DoctorID:           a.DoctorID,
		DoctorName:         a.Doctor.FullName,
		Specialty:          a.Doctor.Specialty,
		AppointmentDate:    a.AppointmentDate,
		AppointmentTime:    a.AppointmentTime,
		AppointmentType:    a.AppointmentType,
		ReasonForVisit:     a.ReasonForVisit,
		Status:             a.Status,
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		RescheduleReason:   a.RescheduleReason,
		RescheduleDate:     a.RescheduleDate,
		RescheduleTime:     a.RescheduleTime,
		ReschedulePending:  a.ReschedulePending(),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
