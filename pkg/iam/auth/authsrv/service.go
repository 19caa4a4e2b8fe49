package authsrv

import (
	"context"

	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/auth"
	"github.com/veridian-id/veridian/pkg/iam/mfa/mfasrv"
	"github.com/veridian-id/veridian/pkg/iam/oauth/oauthsrv"
	"github.com/veridian-id/veridian/pkg/iam/principal"
	"github.com/veridian-id/veridian/pkg/iam/rbac"
	"github.com/veridian-id/veridian/pkg/iam/rbac/rbacsrv"
	"github.com/veridian-id/veridian/pkg/iam/refresh/refreshsrv"
	"github.com/veridian-id/veridian/pkg/iam/token"
	"github.com/veridian-id/veridian/pkg/kernel"
	"github.com/veridian-id/veridian/pkg/obs"
	"github.com/veridian-id/veridian/pkg/password"
)

// AuthService is the session orchestrator. Every way into a session goes
// through here: password login, the MFA step-up, refresh rotation and the
// OAuth exchange.
type AuthService struct {
	principals principal.Repository
	codec      *token.Codec
	refresh    *refreshsrv.RefreshService
	mfa        *mfasrv.MFAService
	oauth      *oauthsrv.OAuthService
	rbac       *rbacsrv.RBACService
	hasher     password.Hasher
	policy     password.Policy
	audit      auth.AuditService
}

func NewAuthService(
	principals principal.Repository,
	codec *token.Codec,
	refreshSvc *refreshsrv.RefreshService,
	mfaSvc *mfasrv.MFAService,
	oauthSvc *oauthsrv.OAuthService,
	rbacSvc *rbacsrv.RBACService,
	hasher password.Hasher,
	policy password.Policy,
	audit auth.AuditService,
) *AuthService {
	return &AuthService{
		principals: principals,
		codec:      codec,
		refresh:    refreshSvc,
		mfa:        mfaSvc,
		oauth:      oauthSvc,
		rbac:       rbacSvc,
		hasher:     hasher,
		policy:     policy,
		audit:      audit,
	}
}

type RegisterRequest struct {
	Tenant   kernel.TenantRef `json:"tenant"`
	Kind     principal.Kind   `json:"kind"`
	Email    string           `json:"email"`
	Name     string           `json:"name"`
	Password string           `json:"password"`
}

// Register provisions a password-credentialed principal. The password must
// clear the policy before it is hashed.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*principal.Summary, error) {
	if violations := s.policy.Validate(req.Password); len(violations) > 0 {
		return nil, auth.ErrWeakPassword().WithDetail("violations", violations)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = principal.KindEndUser
	}
	p, err := principal.New(kind, req.Tenant, req.Email, req.Name, hash)
	if err != nil {
		return nil, err
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}

	s.audit.LogAccountCreated(ctx, p.PrincipalID(), req.Tenant, "password")
	summary := p.Summary()
	return &summary, nil
}

type LoginRequest struct {
	Tenant   kernel.TenantRef `json:"tenant"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
}

// Login verifies credentials. Unknown address and wrong password collapse
// into the same error so the endpoint cannot be used to probe for
// accounts. MFA-enabled principals get a challenge token instead of a
// token pair.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*auth.LoginResult, error) {
	email, err := principal.NormalizeEmail(req.Email)
	if err != nil {
		obs.RecordLogin("invalid")
		return nil, auth.ErrInvalidCredentials()
	}

	p, err := s.principals.FindByEmail(ctx, email, req.Tenant)
	if err != nil {
		if errx.HasCode(err, "PRINCIPAL_NOT_FOUND") {
			obs.RecordLogin("invalid")
			return nil, auth.ErrInvalidCredentials()
		}
		return nil, err
	}

	if p.PasswordHash == "" {
		obs.RecordLogin("invalid")
		return nil, auth.ErrRegistry.New(auth.CodePasswordLoginOnly)
	}
	if !s.hasher.Verify(p.PasswordHash, req.Password) {
		s.audit.LogLoginAttempt(ctx, p.PrincipalID(), req.Tenant, "password", false)
		obs.RecordLogin("invalid")
		return nil, auth.ErrInvalidCredentials()
	}

	if p.MFAEnabled() {
		challenge, err := s.mfa.CreateChallenge(ctx, p.PrincipalID(), p.Tenant)
		if err != nil {
			return nil, err
		}
		obs.RecordLogin("mfa_required")
		summary := p.Summary()
		return &auth.LoginResult{
			Status:            auth.StatusMFARequired,
			MFAChallengeToken: challenge.Token,
			Principal:         &summary,
		}, nil
	}

	pair, err := s.issuePair(ctx, p)
	if err != nil {
		return nil, err
	}

	s.audit.LogLoginAttempt(ctx, p.PrincipalID(), req.Tenant, "password", true)
	obs.RecordLogin("success")
	summary := p.Summary()
	return &auth.LoginResult{
		Status:    auth.StatusAuthenticated,
		Tokens:    pair,
		Principal: &summary,
	}, nil
}

type CompleteMFARequest struct {
	ChallengeToken  string `json:"challenge_token"`
	Code            string `json:"code"`
	UseRecoveryCode bool   `json:"use_recovery_code"`
}

// CompleteMFA finishes a parked login. The challenge burns regardless of
// outcome; a wrong code means starting over at the password step.
func (s *AuthService) CompleteMFA(ctx context.Context, req CompleteMFARequest) (*auth.LoginResult, error) {
	method := "totp"
	if req.UseRecoveryCode {
		method = "recovery_code"
	}

	challenge, err := s.mfa.ConsumeChallenge(ctx, req.ChallengeToken, req.Code, req.UseRecoveryCode)
	if err != nil {
		obs.RecordMFAVerification(method, "failure")
		return nil, err
	}
	s.audit.LogMFAVerification(ctx, challenge.PrincipalID, method, true)
	obs.RecordMFAVerification(method, "success")

	p, err := s.principals.FindByID(ctx, challenge.PrincipalID)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, p)
	if err != nil {
		return nil, err
	}

	s.audit.LogLoginAttempt(ctx, p.PrincipalID(), p.Tenant, method, true)
	obs.RecordLogin("success")
	summary := p.Summary()
	return &auth.LoginResult{
		Status:    auth.StatusAuthenticated,
		Tokens:    pair,
		Principal: &summary,
	}, nil
}

// Refresh rotates a refresh token into a fresh pair. A replayed token has
// already triggered the revoke cascade by the time the error surfaces.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*auth.TokenPair, error) {
	replacement, consumed, err := s.refresh.Redeem(ctx, rawRefreshToken)
	if err != nil {
		if errx.HasCode(err, "REFRESH_TOKEN_REUSED") {
			obs.RecordRefreshReuse()
			obs.RecordRefreshRedemption("reused")
		} else {
			obs.RecordRefreshRedemption("invalid")
		}
		return nil, err
	}
	obs.RecordRefreshRedemption("success")

	p, err := s.principals.FindByID(ctx, consumed.PrincipalID)
	if err != nil {
		return nil, err
	}

	access, err := s.issueAccessToken(ctx, p)
	if err != nil {
		return nil, err
	}

	s.audit.LogTokenRefresh(ctx, p.PrincipalID(), p.Tenant)
	return &auth.TokenPair{
		AccessToken:  access,
		RefreshToken: replacement.Raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes every refresh token of the principal. Outstanding access
// tokens ride out their short TTL.
func (s *AuthService) Logout(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) error {
	count, err := s.refresh.RevokeAll(ctx, principalID)
	if err != nil {
		return err
	}
	s.audit.LogLogout(ctx, principalID, tenant)
	s.audit.LogSessionsRevoked(ctx, principalID, count)
	return nil
}

// ValidateAccess classifies an access token: valid, expired or invalid.
func (s *AuthService) ValidateAccess(tokenString string) token.Validation {
	validation := s.codec.Validate(tokenString)
	obs.RecordTokenValidation(validation.Status.String())
	return validation
}

type ChangePasswordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

// ChangePassword rotates the credential and kills every session; clients
// re-authenticate with the new password.
func (s *AuthService) ChangePassword(ctx context.Context, principalID kernel.PrincipalID, req ChangePasswordRequest) error {
	p, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		return err
	}
	if p.PasswordHash == "" || !s.hasher.Verify(p.PasswordHash, req.Current) {
		return auth.ErrInvalidCredentials()
	}
	if violations := s.policy.Validate(req.New); len(violations) > 0 {
		return auth.ErrWeakPassword().WithDetail("violations", violations)
	}

	hash, err := s.hasher.Hash(req.New)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	if err := s.principals.Save(ctx, p); err != nil {
		return err
	}

	count, err := s.refresh.RevokeAll(ctx, principalID)
	if err != nil {
		return err
	}
	s.audit.LogSessionsRevoked(ctx, principalID, count)
	return nil
}

// StartOAuth opens a social login flow for the tenant.
func (s *AuthService) StartOAuth(ctx context.Context, provider string, tenant kernel.TenantRef) (*oauthsrv.StartResponse, error) {
	resp, err := s.oauth.Start(ctx, provider, tenant)
	if err != nil {
		return nil, err
	}
	obs.RecordOAuthFlow(provider, "start")
	return resp, nil
}

// CompleteOAuthCallback lands the provider redirect and returns the
// single-use exchange code for the frontend.
func (s *AuthService) CompleteOAuthCallback(ctx context.Context, provider, state, code string) (*oauthsrv.CallbackResponse, error) {
	resp, err := s.oauth.HandleCallback(ctx, provider, state, code)
	if err != nil {
		obs.RecordOAuthFlow(provider, "callback_failed")
		return nil, err
	}
	obs.RecordOAuthFlow(provider, "callback")
	return resp, nil
}

// ExchangeOAuthCode redeems an exchange code for a session. MFA-enabled
// principals still owe the second factor.
func (s *AuthService) ExchangeOAuthCode(ctx context.Context, exchangeCode string) (*auth.LoginResult, error) {
	ticket, err := s.oauth.Exchange(ctx, exchangeCode)
	if err != nil {
		return nil, err
	}

	p, err := s.principals.FindByID(ctx, ticket.PrincipalID)
	if err != nil {
		return nil, err
	}

	if p.MFAEnabled() {
		challenge, err := s.mfa.CreateChallenge(ctx, p.PrincipalID(), p.Tenant)
		if err != nil {
			return nil, err
		}
		obs.RecordLogin("mfa_required")
		summary := p.Summary()
		return &auth.LoginResult{
			Status:            auth.StatusMFARequired,
			MFAChallengeToken: challenge.Token,
			Principal:         &summary,
		}, nil
	}

	pair, err := s.issuePair(ctx, p)
	if err != nil {
		return nil, err
	}

	s.audit.LogLoginAttempt(ctx, p.PrincipalID(), p.Tenant, ticket.Provider, true)
	obs.RecordLogin("success")
	obs.RecordOAuthFlow(ticket.Provider, "exchange")
	summary := p.Summary()
	return &auth.LoginResult{
		Status:    auth.StatusAuthenticated,
		Tokens:    pair,
		Principal: &summary,
	}, nil
}

// ResolvePermissions exposes the RBAC resolver for the current session.
func (s *AuthService) ResolvePermissions(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) ([]rbac.Permission, error) {
	return s.rbac.ResolvePermissions(ctx, principalID, tenant)
}

// MFA returns the MFA engine for enrollment management endpoints.
func (s *AuthService) MFA() *mfasrv.MFAService { return s.mfa }

// OAuth returns the broker for connection management endpoints.
func (s *AuthService) OAuth() *oauthsrv.OAuthService { return s.oauth }

func (s *AuthService) issuePair(ctx context.Context, p *principal.Principal) (*auth.TokenPair, error) {
	access, err := s.issueAccessToken(ctx, p)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.Issue(ctx, p.PrincipalID(), p.Tenant)
	if err != nil {
		return nil, err
	}

	return &auth.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken.Raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.codec.AccessTTL().Seconds()),
	}, nil
}

func (s *AuthService) issueAccessToken(ctx context.Context, p *principal.Principal) (string, error) {
	permissions, err := s.rbac.ResolvePermissions(ctx, p.PrincipalID(), p.Tenant)
	if err != nil {
		return "", err
	}
	permStrings := make([]string, 0, len(permissions))
	for _, perm := range permissions {
		permStrings = append(permStrings, perm.String())
	}

	return s.codec.Issue(token.IssueRequest{
		Subject:     p.PrincipalID(),
		Tenant:      p.Tenant,
		Email:       p.Email,
		Role:        p.Role,
		Permissions: permStrings,
	})
}
