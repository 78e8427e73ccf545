package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHasCode verifies code matching through wrapped error chains.
// Invariant: HasCode must see through fmt.Errorf %w wrapping.
func TestHasCode(t *testing.T) {
	err := New(CodeInvalidInput, "bad callback")
	assert.True(t, HasCode(err, CodeInvalidInput))
	assert.False(t, HasCode(err, CodeInternal))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, HasCode(wrapped, CodeInvalidInput))

	assert.False(t, HasCode(errors.New("plain"), CodeInvalidInput))
	assert.False(t, HasCode(nil, CodeInvalidInput))
}

// TestWrap_PreservesOriginalCode verifies that wrapping a domain error keeps its code.
// Invariant: the outermost message wins, the innermost code wins.
func TestWrap_PreservesOriginalCode(t *testing.T) {
	inner := New(CodeBadRequest, "unknown agreement type")
	outer := Wrap(inner, CodeInternal, "update failed")

	require.True(t, HasCode(outer, CodeBadRequest))
	assert.Equal(t, "update failed", outer.Error())
	assert.True(t, errors.Is(errors.Unwrap(outer), inner))
}

// TestWrap_NonDomainError verifies plain errors adopt the supplied code.
func TestWrap_NonDomainError(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeInternal, "persist failed")

	assert.True(t, HasCode(err, CodeInternal))
	assert.True(t, errors.Is(err, cause))
}

// TestError_MessageFallback verifies the code is used when no message is set.
func TestError_MessageFallback(t *testing.T) {
	err := &Error{Code: CodeNotFound}
	assert.Equal(t, "not_found", err.Error())
}
