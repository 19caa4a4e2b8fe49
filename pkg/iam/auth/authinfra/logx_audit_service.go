package authinfra

import (
	"context"
	"time"

	"github.com/veridian-id/veridian/pkg/kernel"
	"github.com/veridian-id/veridian/pkg/logx"
)

// LogxAuditService implements auth.AuditService using structured logx logging.
type LogxAuditService struct{}

func NewLogxAuditService() *LogxAuditService {
	return &LogxAuditService{}
}

func (s *LogxAuditService) LogLoginAttempt(_ context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef, method string, success bool) {
	logx.WithFields(logx.Fields{
		"audit_event":  "login_attempt",
		"principal_id": principalID.String(),
		"tenant_type":  tenant.Type.String(),
		"tenant_id":    tenant.ID,
		"method":       method,
		"success":      success,
		"timestamp":    time.Now(),
	}).Info("Audit: login attempt")
}

func (s *LogxAuditService) LogLogout(_ context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) {
	logx.WithFields(logx.Fields{
		"audit_event":  "logout",
		"principal_id": principalID.String(),
		"tenant_id":    tenant.ID,
		"timestamp":    time.Now(),
	}).Info("Audit: logout")
}

func (s *LogxAuditService) LogTokenRefresh(_ context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) {
	logx.WithFields(logx.Fields{
		"audit_event":  "token_refresh",
		"principal_id": principalID.String(),
		"tenant_id":    tenant.ID,
		"timestamp":    time.Now(),
	}).Info("Audit: token refresh")
}

func (s *LogxAuditService) LogMFAVerification(_ context.Context, principalID kernel.PrincipalID, method string, success bool) {
	logx.WithFields(logx.Fields{
		"audit_event":  "mfa_verification",
		"principal_id": principalID.String(),
		"method":       method,
		"success":      success,
		"timestamp":    time.Now(),
	}).Info("Audit: MFA verification")
}

func (s *LogxAuditService) LogAccountCreated(_ context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef, method string) {
	logx.WithFields(logx.Fields{
		"audit_event":  "account_created",
		"principal_id": principalID.String(),
		"tenant_type":  tenant.Type.String(),
		"tenant_id":    tenant.ID,
		"method":       method,
		"timestamp":    time.Now(),
	}).Info("Audit: account created")
}

func (s *LogxAuditService) LogSessionsRevoked(_ context.Context, principalID kernel.PrincipalID, count int64) {
	logx.WithFields(logx.Fields{
		"audit_event":  "sessions_revoked",
		"principal_id": principalID.String(),
		"count":        count,
		"timestamp":    time.Now(),
	}).Info("Audit: sessions revoked")
}
