package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/brewpos-backend/pkg/errors"
)

type sample struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	err := Struct(sample{Quantity: 0, Email: "nope"})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be at least 1", details["quantity"])
	assert.Equal(t, "must be a valid email", details["email"])
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "latte", Quantity: 2}))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "milk", SanitizeString(" milk ", 0))
}
