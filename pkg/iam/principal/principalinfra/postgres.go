// Package principalinfra provides the PostgreSQL implementation of the
// principal repository.
package principalinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/principal"
	"github.com/veridian-id/veridian/pkg/kernel"
)

type PostgresPrincipalRepository struct {
	db *sqlx.DB
}

func NewPostgresPrincipalRepository(db *sqlx.DB) principal.Repository {
	return &PostgresPrincipalRepository{db: db}
}

func (r *PostgresPrincipalRepository) Create(ctx context.Context, p *principal.Principal) error {
	query := `
		INSERT INTO principals (
			id, kind, tenant_type, tenant_id, email, name, password_hash,
			role, email_verified, mfa_state, created_at, updated_at
		) VALUES (
			:id, :kind, :tenant_type, :tenant_id, :email, :name, :password_hash,
			:role, :email_verified, :mfa_state, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(p))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return principal.ErrEmailTaken().WithDetail("email", p.Email)
		}
		return errx.Wrap(err, "failed to create principal", errx.TypeInternal).
			WithDetail("principal_id", p.ID)
	}
	return nil
}

func (r *PostgresPrincipalRepository) FindByID(ctx context.Context, id kernel.PrincipalID) (*principal.Principal, error) {
	var row principalPersistence
	query := `SELECT * FROM principals WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find principal by id", errx.TypeInternal)
	}
	domain := toDomain(row)
	return &domain, nil
}

func (r *PostgresPrincipalRepository) FindByEmail(ctx context.Context, email string, tenant kernel.TenantRef) (*principal.Principal, error) {
	var row principalPersistence
	query := `SELECT * FROM principals WHERE email = $1 AND tenant_type = $2 AND tenant_id = $3`
	err := r.db.GetContext(ctx, &row, query, email, tenant.Type.String(), tenant.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find principal by email", errx.TypeInternal)
	}
	domain := toDomain(row)
	return &domain, nil
}

func (r *PostgresPrincipalRepository) UpdateMFAState(ctx context.Context, id kernel.PrincipalID, state principal.MFAState) error {
	query := `UPDATE principals SET mfa_state = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, string(state), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to update MFA state", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return principal.ErrNotFound()
	}
	return nil
}

func (r *PostgresPrincipalRepository) MarkEmailVerified(ctx context.Context, id kernel.PrincipalID) error {
	query := `UPDATE principals SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to mark email verified", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresPrincipalRepository) Save(ctx context.Context, p *principal.Principal) error {
	query := `
		UPDATE principals SET
			name = :name,
			password_hash = :password_hash,
			role = :role,
			email_verified = :email_verified,
			mfa_state = :mfa_state,
			updated_at = :updated_at
		WHERE id = :id`

	p.Touch()
	result, err := r.db.NamedExecContext(ctx, query, toPersistence(p))
	if err != nil {
		return errx.Wrap(err, "failed to save principal", errx.TypeInternal).
			WithDetail("principal_id", p.ID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return principal.ErrNotFound()
	}
	return nil
}

type principalPersistence struct {
	ID            string         `db:"id"`
	Kind          string         `db:"kind"`
	TenantType    string         `db:"tenant_type"`
	TenantID      string         `db:"tenant_id"`
	Email         string         `db:"email"`
	Name          sql.NullString `db:"name"`
	PasswordHash  string         `db:"password_hash"`
	Role          sql.NullString `db:"role"`
	EmailVerified bool           `db:"email_verified"`
	MFAState      string         `db:"mfa_state"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toPersistence(p *principal.Principal) principalPersistence {
	return principalPersistence{
		ID:            p.ID,
		Kind:          string(p.Kind),
		TenantType:    p.Tenant.Type.String(),
		TenantID:      p.Tenant.ID,
		Email:         p.Email,
		Name:          sql.NullString{String: p.Name, Valid: p.Name != ""},
		PasswordHash:  p.PasswordHash,
		Role:          sql.NullString{String: p.Role, Valid: p.Role != ""},
		EmailVerified: p.EmailVerified,
		MFAState:      string(p.MFAState),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toDomain(row principalPersistence) principal.Principal {
	return principal.Principal{
		Entity: kernel.Entity{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		},
		Kind: principal.Kind(row.Kind),
		Tenant: kernel.TenantRef{
			Type: kernel.TenantType(row.TenantType),
			ID:   row.TenantID,
		},
		Email:         row.Email,
		Name:          row.Name.String,
		PasswordHash:  row.PasswordHash,
		Role:          row.Role.String,
		EmailVerified: row.EmailVerified,
		MFAState:      principal.MFAState(row.MFAState),
	}
}
