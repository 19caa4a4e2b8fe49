// Package token signs and verifies access tokens with an RS256 keypair.
// The private key signs, the public key verifies and is exposed as a JWKS
// document so external services can verify tokens independently.
package token

import (
	"net/http"
	"time"

	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// TokenType tags what a signed token may be used for.
type TokenType string

const (
	TypeAccess TokenType = "access"
)

// Claims is the logical claim set carried by an access token. Immutable
// once issued.
type Claims struct {
	Subject     kernel.PrincipalID
	Tenant      kernel.TenantRef
	Email       string
	Role        string
	Permissions []string
	TokenType   TokenType
	Issuer      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Status is the outcome of validating a token. Exactly one of the three
// values applies to any input: an expired-but-well-formed token is never
// Invalid, and a tampered one is never Expired.
type Status int

const (
	StatusValid Status = iota
	StatusExpired
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Validation is the canonical validation result. Claims is populated only
// when Status is StatusValid; Reason only when it is not.
type Validation struct {
	Status Status
	Claims *Claims
	Reason string
}

var ErrRegistry = errx.NewRegistry("TOKEN")

var (
	CodeGenerationFailed = ErrRegistry.Register("GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeInvalidKeypair   = ErrRegistry.Register("INVALID_KEYPAIR", errx.TypeInternal, http.StatusInternalServerError, "Invalid RSA keypair")
	CodeTokenExpired     = ErrRegistry.Register("EXPIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Token has expired")
	CodeTokenInvalid     = ErrRegistry.Register("INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Token is invalid")
)

func ErrTokenExpired() *errx.Error { return ErrRegistry.New(CodeTokenExpired) }
func ErrTokenInvalid() *errx.Error { return ErrRegistry.New(CodeTokenInvalid) }
