package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	re := regexp.MustCompile(`^[1-9]\d{5}$`)
	for i := 0; i < 200; i++ {
		assert.Regexp(t, re, GenerateOTP())
	}
}

func TestResetTokenHashing(t *testing.T) {
	a, err := GenerateResetToken()
	require.NoError(t, err)
	b, err := GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, a, 40)
	assert.NotEqual(t, a, b)
	assert.Equal(t, HashToken(a), HashToken(a))
	assert.NotEqual(t, HashToken(a), HashToken(b))
	assert.Len(t, HashToken(a), 64)
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		HashToken("hello"))
}
