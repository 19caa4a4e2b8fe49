// Package auth orchestrates sessions: credential login, the MFA step-up,
// token refresh and the OAuth handoff. It owns no storage of its own; it
// composes the token codec, the refresh ledger, the MFA engine, the OAuth
// broker and the RBAC resolver.
package auth

import (
	"net/http"

	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/principal"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// LoginStatus tells the client whether a login finished or parked on the
// second factor.
type LoginStatus string

const (
	StatusAuthenticated LoginStatus = "authenticated"
	StatusMFARequired   LoginStatus = "mfa_required"
)

// TokenPair is what a completed authentication hands to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResult is the outcome of a credential or OAuth login. Tokens is set
// when Status is authenticated; MFAChallengeToken when mfa_required.
type LoginResult struct {
	Status            LoginStatus        `json:"status"`
	Tokens            *TokenPair         `json:"tokens,omitempty"`
	MFAChallengeToken string             `json:"mfa_challenge_token,omitempty"`
	Principal         *principal.Summary `json:"principal,omitempty"`
}

// Authenticated is what middleware exposes to handlers after validating an
// access token.
type Authenticated struct {
	PrincipalID kernel.PrincipalID
	Tenant      kernel.TenantRef
	Email       string
	Role        string
	Permissions []string
}

// HasPermission checks the token's permission snapshot, honoring wildcard
// actions. Authorization-critical paths should re-resolve instead of
// trusting the snapshot.
func (a *Authenticated) HasPermission(required string) bool {
	for _, p := range a.Permissions {
		if p == required {
			return true
		}
		if resource, action, ok := splitPermission(p); ok && action == "*" {
			if requiredResource, _, ok := splitPermission(required); ok && resource == requiredResource {
				return true
			}
		}
	}
	return false
}

func splitPermission(p string) (string, string, bool) {
	for i := 0; i < len(p); i++ {
		if p[i] == ':' {
			return p[:i], p[i+1:], true
		}
	}
	return "", "", false
}

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid email or password")
	CodeWeakPassword       = ErrRegistry.Register("WEAK_PASSWORD", errx.TypeValidation, http.StatusBadRequest, "Password does not meet the policy")
	CodeUnauthorized       = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Authentication required")
	CodeAccessDenied       = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Insufficient permissions")
	CodePasswordLoginOnly  = ErrRegistry.Register("PASSWORD_LOGIN_ONLY", errx.TypeValidation, http.StatusBadRequest, "This account has no password; use the linked provider")
)

func ErrInvalidCredentials() *errx.Error { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrWeakPassword() *errx.Error       { return ErrRegistry.New(CodeWeakPassword) }
func ErrUnauthorized() *errx.Error       { return ErrRegistry.New(CodeUnauthorized) }
func ErrAccessDenied() *errx.Error       { return ErrRegistry.New(CodeAccessDenied) }
