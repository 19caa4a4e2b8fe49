package password

import (
	"github.com/veridian-id/veridian/pkg/errx"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies password digests. The comparison underneath is
// constant-time at the primitive level.
type Hasher interface {
	Hash(raw string) (string, error)
	Verify(hash, raw string) bool
}

// BcryptHasher implements Hasher on bcrypt.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(raw string) (string, error) {
	if raw == "" {
		return "", errx.Validation("password must not be empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(hash, raw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
