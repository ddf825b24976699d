package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outermost code", func(t *testing.T) {
		err := New(CodeNotFound, "student not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("remove: %w", New(CodeConflict, "busy"))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("matches nested coded errors", func(t *testing.T) {
		inner := New(CodeValidation, "bad address")
		outer := Wrap(inner, CodeBadRequest, "invalid request")
		assert.True(t, HasCode(outer, CodeBadRequest))
		assert.True(t, HasCode(outer, CodeValidation))
		assert.Equal(t, CodeBadRequest, CodeOf(outer))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "noop"))

	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "ledger unreachable")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ledger unreachable: connection refused", err.Error())
}
