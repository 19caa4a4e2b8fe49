// Package mfa implements the second authentication factor: TOTP secrets,
// one-shot recovery codes and the short-lived login challenge that bridges
// password verification and code verification.
package mfa

import (
	"net/http"
	"time"

	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// Secret is the per-principal TOTP enrollment. The secret itself is stored
// encrypted; the plaintext exists only while verifying a code.
type Secret struct {
	PrincipalID     kernel.PrincipalID `db:"principal_id" json:"principal_id"`
	EncryptedSecret string             `db:"encrypted_secret" json:"-"`
	ConfirmedAt     *time.Time         `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
}

// Confirmed reports whether setup finished with a valid code.
func (s *Secret) Confirmed() bool { return s.ConfirmedAt != nil }

// RecoveryCode is a persisted one-shot fallback credential. Only the hash
// is stored; consumption is a conditional update so each code works once.
type RecoveryCode struct {
	ID          string             `db:"id" json:"id"`
	PrincipalID kernel.PrincipalID `db:"principal_id" json:"principal_id"`
	CodeHash    string             `db:"code_hash" json:"-"`
	UsedAt      *time.Time         `db:"used_at" json:"used_at,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
}

// Challenge is the short-lived handle a password-authenticated login holds
// while it waits for the second factor. Single use, Redis-backed.
type Challenge struct {
	Token       string             `json:"token"`
	PrincipalID kernel.PrincipalID `json:"principal_id"`
	Tenant      kernel.TenantRef   `json:"tenant"`
	CreatedAt   time.Time          `json:"created_at"`
}

var ErrRegistry = errx.NewRegistry("MFA")

var (
	CodeNotEnrolled      = ErrRegistry.Register("NOT_ENROLLED", errx.TypeValidation, http.StatusBadRequest, "MFA is not enabled for this account")
	CodeAlreadyEnrolled  = ErrRegistry.Register("ALREADY_ENROLLED", errx.TypeConflict, http.StatusConflict, "MFA is already enabled for this account")
	CodeSetupNotStarted  = ErrRegistry.Register("SETUP_NOT_STARTED", errx.TypeValidation, http.StatusBadRequest, "MFA setup has not been started")
	CodeInvalidCode      = ErrRegistry.Register("INVALID_CODE", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid verification code")
	CodeInvalidRecovery  = ErrRegistry.Register("INVALID_RECOVERY_CODE", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or already used recovery code")
	CodeChallengeInvalid = ErrRegistry.Register("CHALLENGE_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "MFA challenge is invalid or has expired")
)

func ErrNotEnrolled() *errx.Error      { return ErrRegistry.New(CodeNotEnrolled) }
func ErrAlreadyEnrolled() *errx.Error  { return ErrRegistry.New(CodeAlreadyEnrolled) }
func ErrSetupNotStarted() *errx.Error  { return ErrRegistry.New(CodeSetupNotStarted) }
func ErrInvalidCode() *errx.Error      { return ErrRegistry.New(CodeInvalidCode) }
func ErrInvalidRecovery() *errx.Error  { return ErrRegistry.New(CodeInvalidRecovery) }
func ErrChallengeInvalid() *errx.Error { return ErrRegistry.New(CodeChallengeInvalid) }
