// Package oauth implements the social login broker: the state machine
// between the initial redirect and the frontend picking up its tokens.
// State parameters and exchange codes are single-use and stored hashed.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// Provider names understood by the broker.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// AuthorizationRequest is what the broker parks between Start and the
// provider callback. Keyed by the hashed state parameter.
type AuthorizationRequest struct {
	StateHash    string           `json:"state_hash"`
	Provider     string           `json:"provider"`
	Tenant       kernel.TenantRef `json:"tenant"`
	CodeVerifier string           `json:"code_verifier"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Connection ties a principal to an upstream identity. One row per
// (provider, provider user id) pair.
type Connection struct {
	kernel.Entity
	PrincipalID    kernel.PrincipalID `db:"principal_id" json:"principal_id"`
	Provider       string             `db:"provider" json:"provider"`
	ProviderUserID string             `db:"provider_user_id" json:"provider_user_id"`
	Email          string             `db:"email" json:"email"`
}

// UserInfo is the normalized identity a provider reports after exchange.
type UserInfo struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"provider_user_id"`
	Email          string `json:"email"`
	EmailVerified  bool   `json:"email_verified"`
	Name           string `json:"name"`
}

// GrantTicket is what a consumed exchange code resolves to: the principal
// the callback authenticated and where to scope the session.
type GrantTicket struct {
	PrincipalID kernel.PrincipalID `json:"principal_id"`
	Tenant      kernel.TenantRef   `json:"tenant"`
	Provider    string             `json:"provider"`
	CreatedAt   time.Time          `json:"created_at"`
}

const (
	stateBytes        = 32
	verifierBytes     = 32
	exchangeCodeBytes = 32
)

// NewState returns a fresh random state parameter.
func NewState() (string, error) {
	return randomToken(stateBytes)
}

// NewCodeVerifier returns a PKCE verifier per RFC 7636.
func NewCodeVerifier() (string, error) {
	return randomToken(verifierBytes)
}

// NewExchangeCode returns the single-use code the callback hands to the
// frontend.
func NewExchangeCode() (string, error) {
	raw, err := randomToken(exchangeCodeBytes)
	if err != nil {
		return "", err
	}
	return "oc_" + raw, nil
}

// ChallengeS256 derives the code challenge sent on the authorization URL.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashToken digests state parameters and exchange codes for storage; the
// raw values only ever transit the wire.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errx.Wrap(err, "failed to generate random token", errx.TypeInternal)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

var ErrRegistry = errx.NewRegistry("OAUTH")

var (
	CodeStateInvalid         = ErrRegistry.Register("STATE_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "OAuth state is invalid or has expired")
	CodeProviderUnsupported  = ErrRegistry.Register("PROVIDER_UNSUPPORTED", errx.TypeValidation, http.StatusBadRequest, "Unsupported OAuth provider")
	CodeProviderError        = ErrRegistry.Register("PROVIDER_ERROR", errx.TypeExternal, http.StatusBadGateway, "OAuth provider request failed")
	CodeExchangeCodeInvalid  = ErrRegistry.Register("EXCHANGE_CODE_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Exchange code is invalid or has expired")
	CodeAccountConflict      = ErrRegistry.Register("ACCOUNT_CONFLICT", errx.TypeConflict, http.StatusConflict, "An account with this email already exists and cannot be linked automatically")
)

func ErrStateInvalid() *errx.Error        { return ErrRegistry.New(CodeStateInvalid) }
func ErrProviderUnsupported() *errx.Error { return ErrRegistry.New(CodeProviderUnsupported) }
func ErrExchangeCodeInvalid() *errx.Error { return ErrRegistry.New(CodeExchangeCodeInvalid) }
func ErrAccountConflict() *errx.Error     { return ErrRegistry.New(CodeAccountConflict) }
