package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateIsUnique(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestChallengeS256(t *testing.T) {
	// RFC 7636 Appendix B example.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", ChallengeS256(verifier))
}

func TestHashTokenNeverEchoesInput(t *testing.T) {
	raw := "some-exchange-code"
	hashed := HashToken(raw)

	sum := sha256.Sum256([]byte(raw))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), hashed)
	assert.NotContains(t, hashed, raw)
}
