package auth

import (
	"context"

	"github.com/veridian-id/veridian/pkg/kernel"
)

// AuditService records authentication facts for compliance trails. It is
// fire-and-forget; implementations must never fail the request path.
type AuditService interface {
	LogLoginAttempt(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef, method string, success bool)
	LogLogout(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef)
	LogTokenRefresh(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef)
	LogMFAVerification(ctx context.Context, principalID kernel.PrincipalID, method string, success bool)
	LogAccountCreated(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef, method string)
	LogSessionsRevoked(ctx context.Context, principalID kernel.PrincipalID, count int64)
}
