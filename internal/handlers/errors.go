package handlers

import (
	"errors"

	"gorm.io/gorm"

	"healthcare-appointment-server/internal/apperr"
	"healthcare-appointment-server/internal/models"
)

// storeError classifies a gorm error from the account and directory handlers.
func storeError(err error, notFound, duplicate string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s", notFound)
	case models.IsDuplicateKey(err):
		return apperr.Conflict("%s", duplicate)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal("database error", err)
}
