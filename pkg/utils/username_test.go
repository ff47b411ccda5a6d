package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("whiskers_99"))
	assert.NoError(t, ValidateUsername("abc"))

	assert.Error(t, ValidateUsername("ab"), "too short")
	assert.Error(t, ValidateUsername("this_username_is_way_too_long_to_pass"), "too long")
	assert.Error(t, ValidateUsername("has space"))
	assert.Error(t, ValidateUsername("_leading"), "must start with letter or number")
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "whiskers", NormalizeUsername("  WhisKers "))
}

func TestDefaultUsername(t *testing.T) {
	assert.Equal(t, "user_abcdef12", DefaultUsername("abcdef1234567890"))
	assert.Equal(t, "user_short", DefaultUsername("short"))
}
