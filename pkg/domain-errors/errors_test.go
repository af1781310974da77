package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "contact not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		inner := New(CodeRateLimited, "daily submission limit reached")
		err := fmt.Errorf("submit: %w", inner)
		assert.True(t, HasCode(err, CodeRateLimited))
	})

	t.Run("false for plain errors", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "already converted")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("unclassified")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := Wrap(cause, CodeInternal, "failed to save contact")
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to save contact")
}
