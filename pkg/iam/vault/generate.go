package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"math/big"
	"strings"
)

const totpSecretBytes = 20

// Alphanumeric alphabet without easily confused characters (0/O, 1/I/l).
const recoveryCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	recoveryCodeGroups    = 2
	recoveryCodeGroupSize = 5
)

// GenerateTOTPSecret returns a fresh 160-bit secret, base32-encoded without
// padding as authenticator apps expect.
func GenerateTOTPSecret() (string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", ErrRegistry.NewWithCause(CodeEncryptionFailed, err)
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(raw), nil
}

// GenerateRecoveryCodes returns n codes of the form XXXXX-XXXXX.
func GenerateRecoveryCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func generateRecoveryCode() (string, error) {
	var sb strings.Builder
	alphabetLen := big.NewInt(int64(len(recoveryCodeAlphabet)))
	for group := 0; group < recoveryCodeGroups; group++ {
		if group > 0 {
			sb.WriteByte('-')
		}
		for i := 0; i < recoveryCodeGroupSize; i++ {
			idx, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return "", ErrRegistry.NewWithCause(CodeEncryptionFailed, err)
			}
			sb.WriteByte(recoveryCodeAlphabet[idx.Int64()])
		}
	}
	return sb.String(), nil
}

// HashCode is the one-way digest used to persist single-use codes; the raw
// value never reaches storage.
func HashCode(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}
