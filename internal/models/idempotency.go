package models

import "time"

// IdempotencyRecord remembers which appointment a client-supplied
// Idempotency-Key produced, so a retried booking returns the original row.
type IdempotencyRecord struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)"`
	SubjectID     string    `gorm:"size:36;not null;uniqueIndex:ux_idempotency_subject_key,priority:1"`
	Key           string    `gorm:"column:idempotency_key;size:255;not null;uniqueIndex:ux_idempotency_subject_key,priority:2"`
	AppointmentID string    `gorm:"size:36;not null;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyRecord) TableName() string { return "idempotency_records" }
