package refreshsrv

import (
	"context"
	"time"

	"github.com/veridian-id/veridian/pkg/eventx"
	"github.com/veridian-id/veridian/pkg/iam/refresh"
	"github.com/veridian-id/veridian/pkg/kernel"
	"github.com/veridian-id/veridian/pkg/logx"
)

// RefreshService owns the refresh token lifecycle: issue, single-use
// rotation and the reuse kill switch.
type RefreshService struct {
	ledger    refresh.Ledger
	publisher eventx.Publisher
	ttl       time.Duration
}

func NewRefreshService(ledger refresh.Ledger, publisher eventx.Publisher, ttl time.Duration) *RefreshService {
	return &RefreshService{
		ledger:    ledger,
		publisher: publisher,
		ttl:       ttl,
	}
}

// Issue mints a fresh refresh token for the principal and records it in
// the ledger. The returned raw value is shown to the client exactly once.
func (s *RefreshService) Issue(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) (*refresh.Generated, error) {
	generated, err := refresh.Generate(principalID, tenant, s.ttl)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Create(ctx, generated.Token); err != nil {
		return nil, err
	}
	return generated, nil
}

// Redeem rotates a raw refresh token: the presented token is consumed and
// a replacement is issued atomically. Presenting an already-used or
// already-revoked token is treated as theft evidence: every live token of
// the principal is revoked and a token_reused event goes out.
func (s *RefreshService) Redeem(ctx context.Context, raw string) (*refresh.Generated, *refresh.Token, error) {
	hash := refresh.Hash(raw)

	// Look the entry up first to stamp the replacement with the right
	// principal and tenant. The lookup is advisory; only Rotate decides
	// who actually consumes the token.
	prev, err := s.ledger.FindByHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if prev == nil {
		return nil, nil, refresh.ErrTokenInvalid()
	}

	replacement, err := refresh.Generate(prev.PrincipalID, prev.Tenant, s.ttl)
	if err != nil {
		return nil, nil, err
	}

	consumed, rotated, err := s.ledger.Rotate(ctx, hash, replacement.Token)
	if err != nil {
		return nil, nil, err
	}
	if rotated {
		return replacement, consumed, nil
	}

	// The conditional consume lost. Classify why from the entry state; a
	// previously-used or already-revoked token means the raw value leaked
	// or a replay raced us, and either way the whole session family dies.
	now := time.Now().UTC()
	switch {
	case consumed == nil:
		return nil, nil, refresh.ErrTokenInvalid()
	case consumed.UsedAt != nil, consumed.RevokedAt != nil:
		s.killSessions(ctx, consumed)
		return nil, nil, refresh.ErrTokenReused()
	case !now.Before(consumed.ExpiresAt):
		return nil, nil, refresh.ErrTokenExpired()
	default:
		return nil, nil, refresh.ErrTokenInvalid()
	}
}

// RevokeAll invalidates every live refresh token of the principal.
func (s *RefreshService) RevokeAll(ctx context.Context, principalID kernel.PrincipalID) (int64, error) {
	revoked, err := s.ledger.RevokeAllForPrincipal(ctx, principalID)
	if err != nil {
		return 0, err
	}
	if revoked > 0 {
		s.publish(ctx, eventx.New(eventx.TypeSessionsRevoked, map[string]interface{}{
			"principal_id": principalID.String(),
			"revoked":      revoked,
		}))
	}
	return revoked, nil
}

// PurgeExpired removes ledger entries whose expiry passed before cutoff.
func (s *RefreshService) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.ledger.DeleteExpiredBefore(ctx, cutoff)
}

func (s *RefreshService) killSessions(ctx context.Context, token *refresh.Token) {
	revoked, err := s.ledger.RevokeAllForPrincipal(ctx, token.PrincipalID)
	if err != nil {
		logx.WithError(err).WithField("principal_id", token.PrincipalID.String()).
			Error("❌ failed to revoke sessions after token reuse")
	}

	logx.WithFields(logx.Fields{
		"principal_id": token.PrincipalID.String(),
		"tenant_id":    token.Tenant.ID,
		"revoked":      revoked,
	}).Warn("🚨 refresh token reuse detected, all sessions revoked")

	s.publish(ctx, eventx.New(eventx.TypeTokenReused, map[string]interface{}{
		"principal_id": token.PrincipalID.String(),
		"tenant_type":  token.Tenant.Type.String(),
		"tenant_id":    token.Tenant.ID,
		"token_id":     token.ID,
		"revoked":      revoked,
	}))
}

func (s *RefreshService) publish(ctx context.Context, event eventx.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logx.WithError(err).WithField("event_type", event.Type).
			Warn("⚠️ failed to publish security event")
	}
}
