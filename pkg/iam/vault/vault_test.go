package vault

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestVaultRoundTrip(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	require.NotEqual(t, "JBSWY3DPEHPK3PXP", ciphertext)

	plaintext, err := v.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", plaintext)
}

func TestVaultUniqueNonces(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	first, err := v.Encrypt("secret")
	require.NoError(t, err)
	second, err := v.Encrypt("secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVaultDetectsTampering(t *testing.T) {
	v, err := New(testKey(t))
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("secret")
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString(blob))
	assert.Error(t, err)
}

func TestVaultRejectsWrongKey(t *testing.T) {
	_, err := New("not-base64!!")
	assert.Error(t, err)

	_, err = New(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestGenerateTOTPSecret(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 32) // 20 bytes in unpadded base32
	assert.NotContains(t, secret, "=")
}

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]struct{})
	for _, code := range codes {
		parts := strings.Split(code, "-")
		require.Len(t, parts, 2)
		for _, part := range parts {
			assert.Len(t, part, 5)
		}
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 10, "codes must be unique")
}

func TestHashCodeDeterministic(t *testing.T) {
	assert.Equal(t, HashCode("ABCDE-FGHJK"), HashCode("ABCDE-FGHJK"))
	assert.NotEqual(t, HashCode("ABCDE-FGHJK"), HashCode("ABCDE-FGHJM"))
}
