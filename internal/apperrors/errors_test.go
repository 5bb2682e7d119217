package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("borrow: %w", Conflict(MsgBookUnavailable))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))
	assert.Equal(t, "borrow: book unavailable", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindValidation))
}

func TestValidationMessageListsViolations(t *testing.T) {
	err := Validation("invalid book",
		Violation{Field: "title", Message: "is required"},
		Violation{Field: "totalCopies", Message: "must be at least 1"},
	)

	assert.Equal(t, "invalid book (title: is required; totalCopies: must be at least 1)", err.Error())
}

func TestUnavailableUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Unavailable("database unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUnavailable, KindOf(err))
}
