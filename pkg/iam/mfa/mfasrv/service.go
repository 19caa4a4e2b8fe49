package mfasrv

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/veridian-id/veridian/pkg/eventx"
	"github.com/veridian-id/veridian/pkg/iam/mfa"
	"github.com/veridian-id/veridian/pkg/iam/principal"
	"github.com/veridian-id/veridian/pkg/iam/vault"
	"github.com/veridian-id/veridian/pkg/kernel"
	"github.com/veridian-id/veridian/pkg/logx"
)

// MFAService drives TOTP enrollment, verification, recovery codes and the
// pending-login challenge flow.
type MFAService struct {
	secrets       mfa.SecretRepository
	recoveryCodes mfa.RecoveryCodeRepository
	challenges    mfa.ChallengeStore
	principals    principal.Repository
	vault         *vault.Vault
	publisher     eventx.Publisher
	totp          mfa.TOTPConfig
	codeCount     int
}

func NewMFAService(
	secrets mfa.SecretRepository,
	recoveryCodes mfa.RecoveryCodeRepository,
	challenges mfa.ChallengeStore,
	principals principal.Repository,
	v *vault.Vault,
	publisher eventx.Publisher,
	totp mfa.TOTPConfig,
	codeCount int,
) *MFAService {
	if codeCount <= 0 {
		codeCount = 10
	}
	return &MFAService{
		secrets:       secrets,
		recoveryCodes: recoveryCodes,
		challenges:    challenges,
		principals:    principals,
		vault:         v,
		publisher:     publisher,
		totp:          totp,
		codeCount:     codeCount,
	}
}

// SetupResponse carries the freshly minted secret back to the client. The
// secret is shown exactly once, during setup.
type SetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// BeginSetup mints a TOTP secret for the principal and stores it encrypted
// and unconfirmed. Calling it again before confirmation rotates the
// pending secret.
func (s *MFAService) BeginSetup(ctx context.Context, principalID kernel.PrincipalID, account string) (*SetupResponse, error) {
	existing, err := s.secrets.FindByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Confirmed() {
		return nil, mfa.ErrAlreadyEnrolled()
	}

	secret, err := vault.GenerateTOTPSecret()
	if err != nil {
		return nil, err
	}
	encrypted, err := s.vault.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	if err := s.secrets.Upsert(ctx, mfa.Secret{
		PrincipalID:     principalID,
		EncryptedSecret: encrypted,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	if err := s.principals.UpdateMFAState(ctx, principalID, principal.MFAPendingSetup); err != nil {
		return nil, err
	}

	return &SetupResponse{
		Secret:          secret,
		ProvisioningURI: mfa.ProvisioningURI(secret, account, s.totp),
	}, nil
}

// ConfirmSetup finishes enrollment: the submitted code proves the
// authenticator holds the secret. On success the principal flips to
// enabled and receives a fresh batch of recovery codes, returned raw
// exactly once.
func (s *MFAService) ConfirmSetup(ctx context.Context, principalID kernel.PrincipalID, code string) ([]string, error) {
	secret, err := s.secrets.FindByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, mfa.ErrSetupNotStarted()
	}
	if secret.Confirmed() {
		return nil, mfa.ErrAlreadyEnrolled()
	}

	if err := s.verifyAgainst(secret, code); err != nil {
		return nil, err
	}

	if err := s.secrets.Confirm(ctx, principalID); err != nil {
		return nil, err
	}

	rawCodes, err := s.mintRecoveryCodes(ctx, principalID)
	if err != nil {
		return nil, err
	}

	if err := s.principals.UpdateMFAState(ctx, principalID, principal.MFAEnabled); err != nil {
		return nil, err
	}

	s.publish(ctx, eventx.New(eventx.TypeMFAEnabled, map[string]interface{}{
		"principal_id": principalID.String(),
	}))
	return rawCodes, nil
}

// VerifyCode checks a TOTP code against the principal's confirmed secret.
func (s *MFAService) VerifyCode(ctx context.Context, principalID kernel.PrincipalID, code string) error {
	secret, err := s.secrets.FindByPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	if secret == nil || !secret.Confirmed() {
		return mfa.ErrNotEnrolled()
	}
	return s.verifyAgainst(secret, code)
}

// UseRecoveryCode spends a one-shot fallback code. A spent or unknown code
// fails; success emits a recovery_code_used event carrying how many codes
// remain.
func (s *MFAService) UseRecoveryCode(ctx context.Context, principalID kernel.PrincipalID, code string) error {
	consumed, err := s.recoveryCodes.Consume(ctx, principalID, vault.HashCode(code))
	if err != nil {
		return err
	}
	if !consumed {
		return mfa.ErrInvalidRecovery()
	}

	remaining, err := s.recoveryCodes.CountRemaining(ctx, principalID)
	if err != nil {
		logx.WithError(err).Warn("⚠️ failed to count remaining recovery codes")
		remaining = -1
	}

	s.publish(ctx, eventx.New(eventx.TypeRecoveryCodeUsed, map[string]interface{}{
		"principal_id": principalID.String(),
		"remaining":    remaining,
	}))
	return nil
}

// RegenerateRecoveryCodes replaces the whole batch. Unused codes from the
// previous batch stop working immediately.
func (s *MFAService) RegenerateRecoveryCodes(ctx context.Context, principalID kernel.PrincipalID) ([]string, error) {
	secret, err := s.secrets.FindByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if secret == nil || !secret.Confirmed() {
		return nil, mfa.ErrNotEnrolled()
	}
	return s.mintRecoveryCodes(ctx, principalID)
}

// Disable tears enrollment down: secret, recovery codes and state.
func (s *MFAService) Disable(ctx context.Context, principalID kernel.PrincipalID) error {
	if err := s.secrets.Delete(ctx, principalID); err != nil {
		return err
	}
	if err := s.recoveryCodes.DeleteAll(ctx, principalID); err != nil {
		return err
	}
	if err := s.principals.UpdateMFAState(ctx, principalID, principal.MFADisabled); err != nil {
		return err
	}

	s.publish(ctx, eventx.New(eventx.TypeMFADisabled, map[string]interface{}{
		"principal_id": principalID.String(),
	}))
	return nil
}

// CreateChallenge parks a password-authenticated login until the second
// factor arrives. The returned token is what the client presents together
// with a code.
func (s *MFAService) CreateChallenge(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) (*mfa.Challenge, error) {
	challenge := mfa.Challenge{
		Token:       ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		PrincipalID: principalID,
		Tenant:      tenant,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// ConsumeChallenge redeems a challenge token and verifies the accompanying
// code, TOTP by default or a recovery code when useRecovery is set. The
// challenge burns on consumption either way; a wrong code forces a fresh
// login.
func (s *MFAService) ConsumeChallenge(ctx context.Context, token, code string, useRecovery bool) (*mfa.Challenge, error) {
	challenge, err := s.challenges.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, mfa.ErrChallengeInvalid()
	}

	if useRecovery {
		err = s.UseRecoveryCode(ctx, challenge.PrincipalID, code)
	} else {
		err = s.VerifyCode(ctx, challenge.PrincipalID, code)
	}
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

func (s *MFAService) verifyAgainst(secret *mfa.Secret, code string) error {
	plaintext, err := s.vault.Decrypt(secret.EncryptedSecret)
	if err != nil {
		return err
	}
	ok, err := mfa.VerifyTOTP(plaintext, code, time.Now(), s.totp)
	if err != nil {
		return err
	}
	if !ok {
		return mfa.ErrInvalidCode()
	}
	return nil
}

func (s *MFAService) mintRecoveryCodes(ctx context.Context, principalID kernel.PrincipalID) ([]string, error) {
	rawCodes, err := vault.GenerateRecoveryCodes(s.codeCount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	records := make([]mfa.RecoveryCode, 0, len(rawCodes))
	for _, raw := range rawCodes {
		records = append(records, mfa.RecoveryCode{
			ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
			PrincipalID: principalID,
			CodeHash:    vault.HashCode(raw),
			CreatedAt:   now,
		})
	}
	if err := s.recoveryCodes.ReplaceAll(ctx, principalID, records); err != nil {
		return nil, err
	}
	return rawCodes, nil
}

func (s *MFAService) publish(ctx context.Context, event eventx.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logx.WithError(err).WithField("event_type", event.Type).
			Warn("⚠️ failed to publish security event")
	}
}
