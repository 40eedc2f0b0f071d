package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv(envInstanceID, "till-2")
	assert.Equal(t, "till-2", GetID())
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv(envInstanceID, "  ")
	assert.NotEmpty(t, GetID())
}
