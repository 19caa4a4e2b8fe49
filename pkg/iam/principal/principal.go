// Package principal models the authenticated identities of the platform:
// organization members and project end-users.
package principal

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// Kind distinguishes the two principal flavors.
type Kind string

const (
	KindOrgMember Kind = "org_member"
	KindEndUser   Kind = "end_user"
)

// MFAState is the per-principal multi-factor lifecycle.
type MFAState string

const (
	MFADisabled     MFAState = "disabled"
	MFAPendingSetup MFAState = "pending_setup"
	MFAEnabled      MFAState = "enabled"
)

// Principal is an authenticated identity scoped to exactly one tenant.
// Org members additionally carry a role name; end-users get their
// permissions resolved through role assignments.
type Principal struct {
	kernel.Entity
	Kind          Kind             `db:"kind" json:"kind"`
	Tenant        kernel.TenantRef `json:"tenant"`
	Email         string           `db:"email" json:"email"`
	Name          string           `db:"name" json:"name"`
	PasswordHash  string           `db:"password_hash" json:"-"`
	Role          string           `db:"role" json:"role,omitempty"`
	EmailVerified bool             `db:"email_verified" json:"email_verified"`
	MFAState      MFAState         `db:"mfa_state" json:"mfa_state"`
}

// Summary is the caller-facing projection returned from login flows.
type Summary struct {
	ID            kernel.PrincipalID `json:"id"`
	Email         string             `json:"email"`
	Name          string             `json:"name"`
	Kind          Kind               `json:"kind"`
	EmailVerified bool               `json:"email_verified"`
	MFAEnabled    bool               `json:"mfa_enabled"`
}

// New creates a principal with a fresh id and normalized email.
func New(kind Kind, tenant kernel.TenantRef, email, name, passwordHash string) (*Principal, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return &Principal{
		Entity:       kernel.NewEntity(uuid.NewString()),
		Kind:         kind,
		Tenant:       tenant,
		Email:        normalized,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		MFAState:     MFADisabled,
	}, nil
}

// PrincipalID returns the typed id.
func (p *Principal) PrincipalID() kernel.PrincipalID {
	return kernel.NewPrincipalID(p.ID)
}

// MFAEnabled reports whether a login must pass an MFA challenge.
func (p *Principal) MFAEnabled() bool {
	return p.MFAState == MFAEnabled
}

// Summary renders the caller-facing projection.
func (p *Principal) Summary() Summary {
	return Summary{
		ID:            p.PrincipalID(),
		Email:         p.Email,
		Name:          p.Name,
		Kind:          p.Kind,
		EmailVerified: p.EmailVerified,
		MFAEnabled:    p.MFAEnabled(),
	}
}

// NormalizeEmail lowercases and trims an address; empty input is a
// validation error.
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", ErrRegistry.New(CodeInvalidEmail).WithDetail("email", email)
	}
	return normalized, nil
}

var ErrRegistry = errx.NewRegistry("PRINCIPAL")

var (
	CodeNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Principal not found")
	CodeEmailTaken   = ErrRegistry.Register("EMAIL_TAKEN", errx.TypeConflict, http.StatusConflict, "Email is already registered in this tenant")
	CodeInvalidEmail = ErrRegistry.Register("INVALID_EMAIL", errx.TypeValidation, http.StatusBadRequest, "Invalid email address")
)

func ErrNotFound() *errx.Error   { return ErrRegistry.New(CodeNotFound) }
func ErrEmailTaken() *errx.Error { return ErrRegistry.New(CodeEmailTaken) }
