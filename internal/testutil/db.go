// Package testutil provides a migrated in-memory database and seed helpers
// for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"healthcare-appointment-server/internal/models"
)

// Now is the fixed clock tests run against.
var Now = time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)

// Clock returns Now.
func Clock() time.Time { return Now }

// NewDB opens a private in-memory SQLite database with every table migrated.
// A single connection serialises writers the way row locks do on MySQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	models.PasswordCost = 4

	db, err := models.InitDB(models.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		LogLevel:     gormlogger.Silent,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedPatient inserts an active patient with password "password123".
func SeedPatient(t testing.TB, db *gorm.DB, name string) *models.Patient {
	t.Helper()
	p := &models.Patient{
		FullName:      name,
		Username:      name,
		Email:         fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		AccountStatus: models.AccountActive,
	}
	require.NoError(t, p.SetPassword("password123"))
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedDoctor inserts an active doctor.
func SeedDoctor(t testing.TB, db *gorm.DB, name, specialty string) *models.Doctor {
	t.Helper()
	d := &models.Doctor{
		FullName:          name,
		Email:             fmt.Sprintf("%s-%s@clinic.example.com", name, uuid.NewString()[:8]),
		Specialty:         specialty,
		Status:            models.DoctorActive,
		ServiceDays:       "Mon,Tue,Wed,Thu,Fri",
		AvailabilityTimes: "09:00-17:00",
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

// SeedAdmin inserts an admin with password "password123".
func SeedAdmin(t testing.TB, db *gorm.DB, name string) *models.Admin {
	t.Helper()
	a := &models.Admin{
		Name:     name,
		Username: name,
		Email:    fmt.Sprintf("%s-%s@admin.example.com", name, uuid.NewString()[:8]),
	}
	require.NoError(t, a.SetPassword("password123"))
	require.NoError(t, db.Create(a).Error)
	return a
}
