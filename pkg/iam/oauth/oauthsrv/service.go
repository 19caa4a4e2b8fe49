package oauthsrv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/eventx"
	"github.com/veridian-id/veridian/pkg/iam/oauth"
	"github.com/veridian-id/veridian/pkg/iam/principal"
	"github.com/veridian-id/veridian/pkg/kernel"
	"github.com/veridian-id/veridian/pkg/logx"
)

// OAuthService brokers the social login flow. It never issues tokens
// itself; the callback resolves to a single-use exchange code the session
// layer later redeems.
type OAuthService struct {
	providers       map[string]oauth.Provider
	states          oauth.StateStore
	exchangeCodes   oauth.ExchangeCodeStore
	connections     oauth.ConnectionRepository
	principals      principal.Repository
	publisher       eventx.Publisher
	exchangeTimeout time.Duration
}

func NewOAuthService(
	providers []oauth.Provider,
	states oauth.StateStore,
	exchangeCodes oauth.ExchangeCodeStore,
	connections oauth.ConnectionRepository,
	principals principal.Repository,
	publisher eventx.Publisher,
	exchangeTimeout time.Duration,
) *OAuthService {
	byName := make(map[string]oauth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if exchangeTimeout <= 0 {
		exchangeTimeout = 10 * time.Second
	}
	return &OAuthService{
		providers:       byName,
		states:          states,
		exchangeCodes:   exchangeCodes,
		connections:     connections,
		principals:      principals,
		publisher:       publisher,
		exchangeTimeout: exchangeTimeout,
	}
}

// StartResponse carries the redirect the client follows to the provider.
type StartResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// Start opens a flow: mints state and PKCE verifier, parks them keyed by
// the hashed state, and returns the provider redirect.
func (s *OAuthService) Start(ctx context.Context, providerName string, tenant kernel.TenantRef) (*StartResponse, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, oauth.ErrProviderUnsupported().WithDetail("provider", providerName)
	}

	state, err := oauth.NewState()
	if err != nil {
		return nil, err
	}
	verifier, err := oauth.NewCodeVerifier()
	if err != nil {
		return nil, err
	}

	if err := s.states.Create(ctx, oauth.AuthorizationRequest{
		StateHash:    oauth.HashToken(state),
		Provider:     providerName,
		Tenant:       tenant,
		CodeVerifier: verifier,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	return &StartResponse{
		AuthorizationURL: provider.AuthCodeURL(state, oauth.ChallengeS256(verifier)),
	}, nil
}

// CallbackResponse is the single-use code the frontend swaps for tokens.
type CallbackResponse struct {
	ExchangeCode string `json:"exchange_code"`
}

// HandleCallback consumes the state, exchanges the provider code under a
// bounded timeout, resolves the upstream identity to a principal and mints
// an exchange code. The state burns whether or not the exchange succeeds.
func (s *OAuthService) HandleCallback(ctx context.Context, providerName, state, code string) (*CallbackResponse, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, oauth.ErrProviderUnsupported().WithDetail("provider", providerName)
	}

	req, err := s.states.Consume(ctx, oauth.HashToken(state))
	if err != nil {
		return nil, err
	}
	if req == nil || req.Provider != providerName {
		return nil, oauth.ErrStateInvalid()
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancel()
	info, err := provider.Exchange(exchangeCtx, code, req.CodeVerifier)
	if err != nil {
		return nil, err
	}

	resolved, err := s.resolvePrincipal(ctx, req.Tenant, info)
	if err != nil {
		return nil, err
	}

	exchangeCode, err := oauth.NewExchangeCode()
	if err != nil {
		return nil, err
	}
	if err := s.exchangeCodes.Create(ctx, oauth.HashToken(exchangeCode), oauth.GrantTicket{
		PrincipalID: resolved.PrincipalID(),
		Tenant:      req.Tenant,
		Provider:    providerName,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	return &CallbackResponse{ExchangeCode: exchangeCode}, nil
}

// Exchange redeems a single-use exchange code for the grant it represents.
func (s *OAuthService) Exchange(ctx context.Context, exchangeCode string) (*oauth.GrantTicket, error) {
	ticket, err := s.exchangeCodes.Consume(ctx, oauth.HashToken(exchangeCode))
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, oauth.ErrExchangeCodeInvalid()
	}
	return ticket, nil
}

// Unlink removes a provider connection from a principal.
func (s *OAuthService) Unlink(ctx context.Context, principalID kernel.PrincipalID, providerName string) error {
	return s.connections.Delete(ctx, principalID, providerName)
}

// Connections lists the providers linked to a principal.
func (s *OAuthService) Connections(ctx context.Context, principalID kernel.PrincipalID) ([]oauth.Connection, error) {
	return s.connections.FindByPrincipal(ctx, principalID)
}

// resolvePrincipal applies the linking policy, in order: an existing
// connection wins outright; otherwise a tenant-local principal with a
// matching address gets linked, but only when both sides have the email
// verified; otherwise a new principal is provisioned. A matching principal
// with an unverified address on either side is a conflict, never an
// automatic link.
func (s *OAuthService) resolvePrincipal(ctx context.Context, tenant kernel.TenantRef, info *oauth.UserInfo) (*principal.Principal, error) {
	conn, err := s.connections.FindByProviderUser(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		p, err := s.principals.FindByID(ctx, conn.PrincipalID)
		if err != nil {
			return nil, err
		}
		if !p.Tenant.Equals(tenant) {
			return nil, oauth.ErrAccountConflict().WithDetail("reason", "connection belongs to a different tenant")
		}
		// A linked provider attesting the same address upgrades a still
		// unverified principal. Linking policy is untouched; the connection
		// already existed.
		if !p.EmailVerified && info.EmailVerified {
			if email, err := principal.NormalizeEmail(info.Email); err == nil && email == p.Email {
				if err := s.principals.MarkEmailVerified(ctx, p.PrincipalID()); err != nil {
					return nil, err
				}
				p.EmailVerified = true
			}
		}
		return p, nil
	}

	email, err := principal.NormalizeEmail(info.Email)
	if err != nil {
		return nil, oauth.ErrAccountConflict().WithDetail("reason", "provider returned no usable email")
	}

	existing, err := s.principals.FindByEmail(ctx, email, tenant)
	switch {
	case err == nil:
		if !info.EmailVerified || !existing.EmailVerified {
			return nil, oauth.ErrAccountConflict().WithDetail("email", email)
		}
		if err := s.link(ctx, existing, info); err != nil {
			return nil, err
		}
		return existing, nil
	case errx.HasCode(err, "PRINCIPAL_NOT_FOUND"):
		return s.provision(ctx, tenant, email, info)
	default:
		return nil, err
	}
}

func (s *OAuthService) link(ctx context.Context, p *principal.Principal, info *oauth.UserInfo) error {
	if err := s.connections.Create(ctx, oauth.Connection{
		Entity:         kernel.NewEntity(uuid.NewString()),
		PrincipalID:    p.PrincipalID(),
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		Email:          p.Email,
	}); err != nil {
		return err
	}

	s.publish(ctx, eventx.New(eventx.TypeOAuthLinked, map[string]interface{}{
		"principal_id": p.ID,
		"provider":     info.Provider,
	}))
	return nil
}

func (s *OAuthService) provision(ctx context.Context, tenant kernel.TenantRef, email string, info *oauth.UserInfo) (*principal.Principal, error) {
	p, err := principal.New(principal.KindEndUser, tenant, email, info.Name, "")
	if err != nil {
		return nil, err
	}
	p.EmailVerified = info.EmailVerified

	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.link(ctx, p, info); err != nil {
		return nil, err
	}

	s.publish(ctx, eventx.New(eventx.TypePrincipalCreated, map[string]interface{}{
		"principal_id": p.ID,
		"tenant_id":    tenant.ID,
		"provider":     info.Provider,
	}))
	return p, nil
}

func (s *OAuthService) publish(ctx context.Context, event eventx.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logx.WithError(err).WithField("event_type", event.Type).
			Warn("⚠️ failed to publish security event")
	}
}
