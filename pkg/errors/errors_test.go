package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid query", ErrInvalidQuery, http.StatusBadRequest},
		{"wrapped invalid query", fmt.Errorf("search: %w", ErrInvalidQuery), http.StatusBadRequest},
		{"not found", fmt.Errorf("recipe 7: %w", ErrRecipeNotFound), http.StatusNotFound},
		{"integrity", &DataIntegrityError{RecipeID: 3}, http.StatusInternalServerError},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error wins", New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad limit"), http.StatusUnprocessableEntity},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestDataIntegrityError(t *testing.T) {
	err := fmt.Errorf("ranking: %w", &DataIntegrityError{RecipeID: 42, Token: "cumin"})

	assert.True(t, Is(err, ErrDataIntegrity))

	var die *DataIntegrityError
	if assert.True(t, As(err, &die)) {
		assert.Equal(t, 42, die.RecipeID)
	}
	assert.Contains(t, err.Error(), `"cumin"`)
	assert.Contains(t, err.Error(), "42")
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal error", PublicMessage(&DataIntegrityError{RecipeID: 1}))
	assert.Equal(t, "recipe not found", PublicMessage(fmt.Errorf("id 9: %w", ErrRecipeNotFound)))
	assert.Equal(t, "limit too large", PublicMessage(New(ErrInvalidInput, 400, "limit too large")))
}
