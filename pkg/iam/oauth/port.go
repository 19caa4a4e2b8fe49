package oauth

import (
	"context"

	"github.com/veridian-id/veridian/pkg/kernel"
)

// Provider abstracts one upstream identity provider.
type Provider interface {
	Name() string

	// AuthCodeURL builds the authorization redirect carrying the state
	// parameter and the S256 PKCE challenge.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange swaps the callback code for the upstream identity. The
	// verifier must match the challenge sent on the authorization URL.
	Exchange(ctx context.Context, code, codeVerifier string) (*UserInfo, error)
}

// StateStore parks authorization requests between redirect and callback.
type StateStore interface {
	Create(ctx context.Context, req AuthorizationRequest) error

	// Consume removes and returns the request for the hashed state, or
	// nil when the state is unknown or expired. Single use.
	Consume(ctx context.Context, stateHash string) (*AuthorizationRequest, error)
}

// ExchangeCodeStore holds the short-lived single-use codes the callback
// issues to the frontend.
type ExchangeCodeStore interface {
	Create(ctx context.Context, codeHash string, ticket GrantTicket) error
	Consume(ctx context.Context, codeHash string) (*GrantTicket, error)
}

// ConnectionRepository persists provider-to-principal links.
type ConnectionRepository interface {
	Create(ctx context.Context, conn Connection) error
	FindByProviderUser(ctx context.Context, provider, providerUserID string) (*Connection, error)
	FindByPrincipal(ctx context.Context, id kernel.PrincipalID) ([]Connection, error)
	Delete(ctx context.Context, id kernel.PrincipalID, provider string) error
}
