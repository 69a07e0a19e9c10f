package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewf_MatchesCategory(t *testing.T) {
	err := Newf(ErrConflict, "task %s is %s", "abc", "running")

	assert.EqualError(t, err, "task abc is running")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, http.StatusConflict, err.StatusCode)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusCode(ErrNameRequired))
	assert.Equal(t, http.StatusBadRequest, StatusCode(ErrInvalidLimit))
	assert.Equal(t, http.StatusNotFound, StatusCode(fmt.Errorf("lookup: %w", ErrTaskNotFound)))
	assert.Equal(t, http.StatusForbidden, StatusCode(Newf(ErrApprovalRequired, "task x needs approval")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}

func TestValidationSentinels(t *testing.T) {
	assert.ErrorIs(t, ErrNameRequired, ErrValidation)
	assert.ErrorIs(t, ErrTypeRequired, ErrValidation)
	assert.ErrorIs(t, ErrInvalidLimit, ErrValidation)
}
