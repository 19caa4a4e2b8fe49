// Package eventx carries the security event stream: lifecycle facts other
// systems subscribe to (token reuse, MFA changes, new sign-ins).
package eventx

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types emitted by the identity core.
const (
	TypeTokenReused        = "token_reused"
	TypeTokenRefreshed     = "token_refreshed"
	TypeLoginSucceeded     = "login_succeeded"
	TypeLoginFailed        = "login_failed"
	TypeMFAEnabled         = "mfa_enabled"
	TypeMFADisabled        = "mfa_disabled"
	TypeRecoveryCodeUsed   = "recovery_code_used"
	TypeOAuthLinked        = "oauth_account_linked"
	TypePrincipalCreated   = "principal_created"
	TypeSessionsRevoked    = "sessions_revoked"
)

// Event is a single immutable security fact. Payload values must be
// JSON-serializable; never put secrets or raw tokens in them.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// New stamps an event with a monotonic-friendly ULID and the current time.
func New(eventType string, payload map[string]interface{}) Event {
	return Event{
		ID:         ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events to whatever sink the deployment configures.
// Publishing is best-effort from the caller's point of view; services log
// and continue when a publish fails rather than failing the user request.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
