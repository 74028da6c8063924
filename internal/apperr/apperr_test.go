package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSentinels(t *testing.T) {
	err := Conflict("doctor %s is booked", "d1")

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "doctor d1 is booked", Message(err))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("create: %w", InvalidTransition("already cancelled"))

	assert.Equal(t, KindInvalidTransition, KindOf(err))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "already cancelled", Message(err))
}

func TestUnclassifiedErrorsAreInternal(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal server error", Message(err))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("failed to save appointment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "failed to save appointment", Message(err))
}
