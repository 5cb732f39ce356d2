package helper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("Wrap error with operation", func(t *testing.T) {
		err := NewError("query", errors.New("connection refused"))
		assert.EqualError(t, err, "error in query: connection refused", "Expected operation in error message")
	})

	t.Run("Nil error stays nil", func(t *testing.T) {
		assert.NoError(t, NewError("query", nil), "Expected nil for nil error")
	})

	t.Run("Kinds survive wrapping", func(t *testing.T) {
		err := NewError("embed", Wrap(ErrProviderTransient, "rate limited after %d attempts", 4))
		assert.ErrorIs(t, err, ErrProviderTransient, "Expected kind to be matchable")
		assert.Contains(t, err.Error(), "rate limited after 4 attempts", "Expected formatted message")
	})
}

func TestKindOf(t *testing.T) {
	t.Run("Return the kind of wrapped errors", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", NewError("search", Wrap(ErrIndexUnavailable, "dense")))
		assert.Equal(t, ErrIndexUnavailable, KindOf(err), "Expected index unavailable kind")
	})

	t.Run("Return nil for errors without kind", func(t *testing.T) {
		assert.Nil(t, KindOf(context.Canceled), "Expected no kind for context errors")
		assert.Nil(t, KindOf(nil), "Expected no kind for nil")
	})
}
