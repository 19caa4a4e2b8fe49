// Package refresh implements the single-use refresh token ledger. Raw
// tokens are opaque random strings handed to clients once; only their
// SHA-256 digest is ever stored, and each token can be redeemed exactly
// once before being rotated.
package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// TokenPrefix marks raw refresh tokens so they are recognizable in logs
// of misrouted values without being guessable.
const TokenPrefix = "rt_"

const rawTokenBytes = 32

// Token is the persisted ledger entry. The raw token never appears here.
type Token struct {
	kernel.Entity
	PrincipalID kernel.PrincipalID `db:"principal_id" json:"principal_id"`
	Tenant      kernel.TenantRef   `json:"tenant"`
	TokenHash   string             `db:"token_hash" json:"-"`
	ExpiresAt   time.Time          `db:"expires_at" json:"expires_at"`
	UsedAt      *time.Time         `db:"used_at" json:"used_at,omitempty"`
	RevokedAt   *time.Time         `db:"revoked_at" json:"revoked_at,omitempty"`
	ReplacedBy  *string            `db:"replaced_by" json:"replaced_by,omitempty"`
}

// Generated pairs a raw token with its ledger entry; the raw value exists
// only in memory between generation and the HTTP response.
type Generated struct {
	Raw   string
	Token Token
}

// Generate mints a fresh token for the principal. The caller persists the
// entry and returns Raw to the client.
func Generate(principalID kernel.PrincipalID, tenant kernel.TenantRef, ttl time.Duration) (*Generated, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, errx.Wrap(err, "failed to generate refresh token", errx.TypeInternal)
	}
	raw := TokenPrefix + base64.RawURLEncoding.EncodeToString(buf)

	return &Generated{
		Raw: raw,
		Token: Token{
			Entity:      kernel.NewEntity(uuid.NewString()),
			PrincipalID: principalID,
			Tenant:      tenant,
			TokenHash:   Hash(raw),
			ExpiresAt:   time.Now().UTC().Add(ttl),
		},
	}, nil
}

// Hash digests a raw token for storage and lookup. Tokens carry enough
// entropy that an unsalted digest is sufficient.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Active reports whether the token can still be redeemed at the given time.
func (t *Token) Active(now time.Time) bool {
	return t.UsedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

var ErrRegistry = errx.NewRegistry("REFRESH")

var (
	CodeTokenInvalid = ErrRegistry.Register("TOKEN_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Refresh token is invalid")
	CodeTokenExpired = ErrRegistry.Register("TOKEN_EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Refresh token has expired")
	CodeTokenReused  = ErrRegistry.Register("TOKEN_REUSED", errx.TypeAuthorization, http.StatusUnauthorized, "Refresh token has already been used")
)

func ErrTokenInvalid() *errx.Error { return ErrRegistry.New(CodeTokenInvalid) }
func ErrTokenExpired() *errx.Error { return ErrRegistry.New(CodeTokenExpired) }
func ErrTokenReused() *errx.Error  { return ErrRegistry.New(CodeTokenReused) }
