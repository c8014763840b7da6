package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocument(t *testing.T) {
	t.Run("accepts a valid document", func(t *testing.T) {
		assert.NoError(t, ValidateDocument(&Document{ID: "doc-1", Name: "handbook"}))
	})

	t.Run("rejects a missing id", func(t *testing.T) {
		err := ValidateDocument(&Document{Name: "handbook"})
		assert.Error(t, err)

		var de *DomainError
		assert.ErrorAs(t, err, &de)
		assert.Equal(t, ErrCodeValidation, de.Code)
	})

	t.Run("rejects a missing name", func(t *testing.T) {
		assert.Error(t, ValidateDocument(&Document{ID: "doc-1"}))
	})
}
