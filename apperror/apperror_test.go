package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("certificate not found")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))

	wrapped := fmt.Errorf("engine: %w", Forbidden("admin only"))
	assert.Equal(t, CodeForbidden, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeForbidden))
	assert.False(t, Is(nil, CodeForbidden))
}

func TestErrorsIsMatchesSentinel(t *testing.T) {
	sentinel := NotFound("certificate not found")
	err := fmt.Errorf("lookup: %w", NotFound("certificate not found"))

	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, NotFound("user not found")))
	assert.True(t, errors.Is(err, &Error{Code: CodeNotFound}))
}

func TestValidationFields(t *testing.T) {
	err := Validation(map[string]string{"title": "Title is required!"})

	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, "Title is required!", FieldsOf(err)["title"])
	assert.Nil(t, FieldsOf(errors.New("plain")))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Dependency("failed to store attachment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to store attachment: disk full", err.Error())
}
