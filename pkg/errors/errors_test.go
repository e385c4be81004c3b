package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy(t *testing.T) {
	t.Run("validation carries all violations", func(t *testing.T) {
		err := NewValidation("requirement validation failed", "title is required", "IMPACTS target '999' does not exist")

		assert.True(t, IsValidation(err))
		assert.Equal(t, []string{"title is required", "IMPACTS target '999' does not exist"}, ViolationsOf(err))
		assert.Contains(t, err.Error(), "title is required")
		assert.Contains(t, err.Error(), "999")
	})

	t.Run("not found", func(t *testing.T) {
		err := NewNotFound("requirement", "abc")
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "requirement 'abc' not found")
	})

	t.Run("version conflict carries both pointers", func(t *testing.T) {
		err := NewVersionConflict("item-1", "v1", "v2")
		assert.True(t, IsVersionConflict(err))

		var appErr *AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "v1", appErr.Expected)
		assert.Equal(t, "v2", appErr.Actual)
		assert.Contains(t, err.Error(), "expected version v1, found v2")
	})

	t.Run("version conflict without known actual", func(t *testing.T) {
		err := NewVersionConflict("item-1", "v1", "")
		assert.Contains(t, err.Error(), "expected version v1")
		assert.NotContains(t, err.Error(), "found")
	})

	t.Run("unsupported", func(t *testing.T) {
		err := NewUnsupported("baseline delete")
		assert.True(t, IsUnsupported(err))
		assert.Contains(t, err.Error(), "baseline delete")
	})

	t.Run("store wraps the cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewStore("failed to commit", cause)
		assert.True(t, IsStore(err))
		assert.ErrorIs(t, err, cause)
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("preserves the original type", func(t *testing.T) {
		err := Wrap(NewNotFound("wave", "w1"), "resolving anchor")
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "resolving anchor")
	})

	t.Run("foreign errors become store errors", func(t *testing.T) {
		err := Wrap(errors.New("boom"), "something broke")
		assert.True(t, IsStore(err))
	})
}
