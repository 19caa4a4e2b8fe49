package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyValidate(t *testing.T) {
	policy := Policy{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireSpecial:   true,
	}

	t.Run("rejects password missing uppercase and special", func(t *testing.T) {
		violations := policy.Validate("abc12345")
		assert.Contains(t, violations, ViolationMissingUppercase)
		assert.Contains(t, violations, ViolationMissingSpecial)
	})

	t.Run("accepts compliant password", func(t *testing.T) {
		assert.Empty(t, policy.Validate("Abc123!@"))
	})

	t.Run("rejects too short", func(t *testing.T) {
		assert.Contains(t, policy.Validate("Ab1!"), ViolationTooShort)
	})

	t.Run("rejects whitespace", func(t *testing.T) {
		assert.Contains(t, policy.Validate("Abc 123!@"), ViolationWhitespace)
	})
}

func TestPolicyValidateUniqueChars(t *testing.T) {
	policy := Policy{MinLength: 8, MinUniqueChars: 4}

	assert.Contains(t, policy.Validate("aabbaabb"), ViolationTooFewUnique)
	assert.Empty(t, policy.Validate("abcdabcd"))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	assert.Equal(t, 8, policy.MinLength)
	assert.True(t, policy.RequireUppercase)
	assert.NotEmpty(t, policy.Validate("password"))
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(4) // minimal cost to keep the test fast

	hash, err := hasher.Hash("Abc123!@")
	require.NoError(t, err)
	require.NotEqual(t, "Abc123!@", hash)

	assert.True(t, hasher.Verify(hash, "Abc123!@"))
	assert.False(t, hasher.Verify(hash, "Abc123!!"))
	assert.False(t, hasher.Verify("", "Abc123!@"))

	_, err = hasher.Hash("")
	assert.Error(t, err)
}
