package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestPersistence(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Persistence("op", nil))
	})

	t.Run("driver error becomes persistence", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Persistence("insert support", cause)

		assert.True(t, errors.Is(err, ErrPersistence))
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, KindPersistence, KindOf(err))
	})

	t.Run("record not found becomes not found", func(t *testing.T) {
		err := Persistence("get campaign", fmt.Errorf("query: %w", gorm.ErrRecordNotFound))

		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrPersistence))
	})

	t.Run("business error passes through", func(t *testing.T) {
		original := NotEligible("support the campaign first")
		err := Persistence("add comment", original)

		assert.Same(t, original, err)
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("coins must be positive")))
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("wrapped: %w", Forbidden("not yours"))))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "not_eligible", KindNotEligible.String())
}
