package mfasrv

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/eventx"
	"github.com/veridian-id/veridian/pkg/iam/mfa"
	"github.com/veridian-id/veridian/pkg/iam/principal"
	"github.com/veridian-id/veridian/pkg/iam/vault"
	"github.com/veridian-id/veridian/pkg/kernel"
)

type memorySecrets struct {
	mu      sync.Mutex
	secrets map[string]mfa.Secret
}

func (m *memorySecrets) Upsert(_ context.Context, secret mfa.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[secret.PrincipalID.String()] = secret
	return nil
}

func (m *memorySecrets) FindByPrincipal(_ context.Context, id kernel.PrincipalID) (*mfa.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[id.String()]
	if !ok {
		return nil, nil
	}
	return &secret, nil
}

func (m *memorySecrets) Confirm(_ context.Context, id kernel.PrincipalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[id.String()]
	if !ok || secret.Confirmed() {
		return mfa.ErrSetupNotStarted()
	}
	now := time.Now().UTC()
	secret.ConfirmedAt = &now
	m.secrets[id.String()] = secret
	return nil
}

func (m *memorySecrets) Delete(_ context.Context, id kernel.PrincipalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, id.String())
	return nil
}

type memoryRecoveryCodes struct {
	mu    sync.Mutex
	codes map[string][]mfa.RecoveryCode
}

func (m *memoryRecoveryCodes) ReplaceAll(_ context.Context, id kernel.PrincipalID, codes []mfa.RecoveryCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[id.String()] = append([]mfa.RecoveryCode(nil), codes...)
	return nil
}

func (m *memoryRecoveryCodes) Consume(_ context.Context, id kernel.PrincipalID, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.codes[id.String()]
	for i := range codes {
		if codes[i].CodeHash == codeHash && codes[i].UsedAt == nil {
			now := time.Now().UTC()
			codes[i].UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRecoveryCodes) CountRemaining(_ context.Context, id kernel.PrincipalID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var remaining int
	for _, code := range m.codes[id.String()] {
		if code.UsedAt == nil {
			remaining++
		}
	}
	return remaining, nil
}

func (m *memoryRecoveryCodes) DeleteAll(_ context.Context, id kernel.PrincipalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, id.String())
	return nil
}

type memoryChallenges struct {
	mu         sync.Mutex
	challenges map[string]mfa.Challenge
}

func (m *memoryChallenges) Create(_ context.Context, challenge mfa.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[challenge.Token] = challenge
	return nil
}

func (m *memoryChallenges) Consume(_ context.Context, token string) (*mfa.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.challenges[token]
	if !ok {
		return nil, nil
	}
	delete(m.challenges, token)
	return &challenge, nil
}

type memoryPrincipals struct {
	mu     sync.Mutex
	states map[string]principal.MFAState
}

func (m *memoryPrincipals) Create(context.Context, *principal.Principal) error { return nil }
func (m *memoryPrincipals) FindByID(context.Context, kernel.PrincipalID) (*principal.Principal, error) {
	return nil, principal.ErrNotFound()
}
func (m *memoryPrincipals) FindByEmail(context.Context, string, kernel.TenantRef) (*principal.Principal, error) {
	return nil, principal.ErrNotFound()
}
func (m *memoryPrincipals) MarkEmailVerified(context.Context, kernel.PrincipalID) error { return nil }
func (m *memoryPrincipals) Save(context.Context, *principal.Principal) error            { return nil }

func (m *memoryPrincipals) UpdateMFAState(_ context.Context, id kernel.PrincipalID, state principal.MFAState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id.String()] = state
	return nil
}

func (m *memoryPrincipals) stateOf(id kernel.PrincipalID) principal.MFAState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id.String()]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventx.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event eventx.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc        *MFAService
	principals *memoryPrincipals
	publisher  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	v, err := vault.New(key)
	require.NoError(t, err)

	principals := &memoryPrincipals{states: make(map[string]principal.MFAState)}
	publisher := &recordingPublisher{}
	svc := NewMFAService(
		&memorySecrets{secrets: make(map[string]mfa.Secret)},
		&memoryRecoveryCodes{codes: make(map[string][]mfa.RecoveryCode)},
		&memoryChallenges{challenges: make(map[string]mfa.Challenge)},
		principals,
		v,
		publisher,
		mfa.TOTPConfig{Issuer: "Veridian", Skew: 1},
		10,
	)
	return &fixture{svc: svc, principals: principals, publisher: publisher}
}

func enroll(t *testing.T, f *fixture, id kernel.PrincipalID) (secret string, recoveryCodes []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := f.svc.BeginSetup(ctx, id, "user@example.com")
	require.NoError(t, err)

	code, err := mfa.TOTPCode(setup.Secret, time.Now(), mfa.TOTPConfig{})
	require.NoError(t, err)

	codes, err := f.svc.ConfirmSetup(ctx, id, code)
	require.NoError(t, err)
	return setup.Secret, codes
}

var principalID = kernel.NewPrincipalID("p-1")

func TestSetupFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	setup, err := f.svc.BeginSetup(ctx, principalID, "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.ProvisioningURI, "otpauth://totp/")
	assert.Equal(t, principal.MFAPendingSetup, f.principals.stateOf(principalID))

	// Wrong code leaves enrollment pending.
	_, err = f.svc.ConfirmSetup(ctx, principalID, "000000")
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, "MFA_INVALID_CODE"))

	code, err := mfa.TOTPCode(setup.Secret, time.Now(), mfa.TOTPConfig{})
	require.NoError(t, err)
	recoveryCodes, err := f.svc.ConfirmSetup(ctx, principalID, code)
	require.NoError(t, err)
	assert.Len(t, recoveryCodes, 10)
	assert.Equal(t, principal.MFAEnabled, f.principals.stateOf(principalID))
	assert.Contains(t, f.publisher.types(), eventx.TypeMFAEnabled)

	// Confirming twice is a conflict.
	_, err = f.svc.ConfirmSetup(ctx, principalID, code)
	assert.True(t, errx.HasCode(err, "MFA_ALREADY_ENROLLED"))
}

func TestConfirmWithoutSetup(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmSetup(context.Background(), principalID, "123456")
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, "MFA_SETUP_NOT_STARTED"))
}

func TestVerifyCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret, _ := enroll(t, f, principalID)

	code, err := mfa.TOTPCode(secret, time.Now(), mfa.TOTPConfig{})
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyCode(ctx, principalID, code))

	err = f.svc.VerifyCode(ctx, principalID, "000000")
	assert.True(t, errx.HasCode(err, "MFA_INVALID_CODE"))

	err = f.svc.VerifyCode(ctx, kernel.NewPrincipalID("stranger"), code)
	assert.True(t, errx.HasCode(err, "MFA_NOT_ENROLLED"))
}

func TestRecoveryCodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, codes := enroll(t, f, principalID)

	require.NoError(t, f.svc.UseRecoveryCode(ctx, principalID, codes[0]))
	assert.Contains(t, f.publisher.types(), eventx.TypeRecoveryCodeUsed)

	err := f.svc.UseRecoveryCode(ctx, principalID, codes[0])
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, "MFA_INVALID_RECOVERY_CODE"))

	// The other codes still work.
	require.NoError(t, f.svc.UseRecoveryCode(ctx, principalID, codes[1]))
}

func TestRegenerateInvalidatesOldCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, oldCodes := enroll(t, f, principalID)

	newCodes, err := f.svc.RegenerateRecoveryCodes(ctx, principalID)
	require.NoError(t, err)
	assert.Len(t, newCodes, 10)
	assert.NotEqual(t, oldCodes, newCodes)

	err = f.svc.UseRecoveryCode(ctx, principalID, oldCodes[0])
	assert.True(t, errx.HasCode(err, "MFA_INVALID_RECOVERY_CODE"))
	require.NoError(t, f.svc.UseRecoveryCode(ctx, principalID, newCodes[0]))
}

func TestDisable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret, codes := enroll(t, f, principalID)

	require.NoError(t, f.svc.Disable(ctx, principalID))
	assert.Equal(t, principal.MFADisabled, f.principals.stateOf(principalID))
	assert.Contains(t, f.publisher.types(), eventx.TypeMFADisabled)

	code, err := mfa.TOTPCode(secret, time.Now(), mfa.TOTPConfig{})
	require.NoError(t, err)
	err = f.svc.VerifyCode(ctx, principalID, code)
	assert.True(t, errx.HasCode(err, "MFA_NOT_ENROLLED"))

	err = f.svc.UseRecoveryCode(ctx, principalID, codes[0])
	assert.True(t, errx.HasCode(err, "MFA_INVALID_RECOVERY_CODE"))
}

func TestChallengeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := kernel.OrgTenant(kernel.NewOrgID("org-1"))
	secret, _ := enroll(t, f, principalID)

	challenge, err := f.svc.CreateChallenge(ctx, principalID, tenant)
	require.NoError(t, err)

	code, err := mfa.TOTPCode(secret, time.Now(), mfa.TOTPConfig{})
	require.NoError(t, err)

	redeemed, err := f.svc.ConsumeChallenge(ctx, challenge.Token, code, false)
	require.NoError(t, err)
	assert.Equal(t, principalID, redeemed.PrincipalID)
	assert.Equal(t, tenant, redeemed.Tenant)

	// Replaying the token fails even with a valid code.
	_, err = f.svc.ConsumeChallenge(ctx, challenge.Token, code, false)
	assert.True(t, errx.HasCode(err, "MFA_CHALLENGE_INVALID"))
}

func TestChallengeBurnsOnWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := kernel.OrgTenant(kernel.NewOrgID("org-1"))
	secret, _ := enroll(t, f, principalID)

	challenge, err := f.svc.CreateChallenge(ctx, principalID, tenant)
	require.NoError(t, err)

	_, err = f.svc.ConsumeChallenge(ctx, challenge.Token, "000000", false)
	assert.True(t, errx.HasCode(err, "MFA_INVALID_CODE"))

	// The challenge burned with the failed attempt.
	code, err := mfa.TOTPCode(secret, time.Now(), mfa.TOTPConfig{})
	require.NoError(t, err)
	_, err = f.svc.ConsumeChallenge(ctx, challenge.Token, code, false)
	assert.True(t, errx.HasCode(err, "MFA_CHALLENGE_INVALID"))
}

func TestChallengeWithRecoveryCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenant := kernel.OrgTenant(kernel.NewOrgID("org-1"))
	_, codes := enroll(t, f, principalID)

	challenge, err := f.svc.CreateChallenge(ctx, principalID, tenant)
	require.NoError(t, err)

	redeemed, err := f.svc.ConsumeChallenge(ctx, challenge.Token, codes[0], true)
	require.NoError(t, err)
	assert.Equal(t, principalID, redeemed.PrincipalID)
}
