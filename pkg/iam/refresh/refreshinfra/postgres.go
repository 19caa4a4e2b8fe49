// Package refreshinfra provides the PostgreSQL implementation of the
// refresh token ledger.
package refreshinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/refresh"
	"github.com/veridian-id/veridian/pkg/kernel"
)

type PostgresRefreshLedger struct {
	db *sqlx.DB
}

func NewPostgresRefreshLedger(db *sqlx.DB) refresh.Ledger {
	return &PostgresRefreshLedger{db: db}
}

func (l *PostgresRefreshLedger) Create(ctx context.Context, token refresh.Token) error {
	query := `
		INSERT INTO refresh_tokens (
			id, principal_id, tenant_type, tenant_id, token_hash,
			expires_at, used_at, revoked_at, replaced_by, created_at, updated_at
		) VALUES (
			:id, :principal_id, :tenant_type, :tenant_id, :token_hash,
			:expires_at, :used_at, :revoked_at, :replaced_by, :created_at, :updated_at
		)`

	_, err := l.db.NamedExecContext(ctx, query, toPersistence(token))
	if err != nil {
		return errx.Wrap(err, "failed to create refresh token", errx.TypeInternal)
	}
	return nil
}

// Rotate consumes the entry for oldHash and inserts the replacement in one
// transaction. The consume is a conditional update: of N concurrent calls
// for the same hash, exactly one sees rows_affected == 1.
func (l *PostgresRefreshLedger) Rotate(ctx context.Context, oldHash string, replacement refresh.Token) (*refresh.Token, bool, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, errx.Wrap(err, "failed to begin rotation", errx.TypeInternal)
	}
	defer tx.Rollback()

	consume := `
		UPDATE refresh_tokens
		SET used_at = NOW(), replaced_by = $1, updated_at = NOW()
		WHERE token_hash = $2
		  AND used_at IS NULL
		  AND revoked_at IS NULL
		  AND expires_at > NOW()`

	result, err := tx.ExecContext(ctx, consume, replacement.ID, oldHash)
	if err != nil {
		return nil, false, errx.Wrap(err, "failed to consume refresh token", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	var row tokenPersistence
	if err := tx.GetContext(ctx, &row, `SELECT * FROM refresh_tokens WHERE token_hash = $1`, oldHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errx.Wrap(err, "failed to load refresh token", errx.TypeInternal)
	}
	consumed := toDomain(row)

	if affected == 0 {
		// Lost the consume. Surface the entry so the caller can tell
		// reuse apart from expiry; nothing to commit.
		return &consumed, false, nil
	}

	insert := `
		INSERT INTO refresh_tokens (
			id, principal_id, tenant_type, tenant_id, token_hash,
			expires_at, used_at, revoked_at, replaced_by, created_at, updated_at
		) VALUES (
			:id, :principal_id, :tenant_type, :tenant_id, :token_hash,
			:expires_at, :used_at, :revoked_at, :replaced_by, :created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, insert, toPersistence(replacement)); err != nil {
		return nil, false, errx.Wrap(err, "failed to insert replacement token", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, errx.Wrap(err, "failed to commit rotation", errx.TypeInternal)
	}
	return &consumed, true, nil
}

func (l *PostgresRefreshLedger) FindByHash(ctx context.Context, hash string) (*refresh.Token, error) {
	var row tokenPersistence
	err := l.db.GetContext(ctx, &row, `SELECT * FROM refresh_tokens WHERE token_hash = $1`, hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to find refresh token", errx.TypeInternal)
	}
	token := toDomain(row)
	return &token, nil
}

func (l *PostgresRefreshLedger) RevokeAllForPrincipal(ctx context.Context, id kernel.PrincipalID) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), updated_at = NOW()
		WHERE principal_id = $1
		  AND revoked_at IS NULL
		  AND used_at IS NULL
		  AND expires_at > NOW()`

	result, err := l.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return 0, errx.Wrap(err, "failed to revoke refresh tokens", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	return affected, nil
}

func (l *PostgresRefreshLedger) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, errx.Wrap(err, "failed to delete expired refresh tokens", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	return affected, nil
}

type tokenPersistence struct {
	ID          string         `db:"id"`
	PrincipalID string         `db:"principal_id"`
	TenantType  string         `db:"tenant_type"`
	TenantID    string         `db:"tenant_id"`
	TokenHash   string         `db:"token_hash"`
	ExpiresAt   time.Time      `db:"expires_at"`
	UsedAt      *time.Time     `db:"used_at"`
	RevokedAt   *time.Time     `db:"revoked_at"`
	ReplacedBy  sql.NullString `db:"replaced_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toPersistence(t refresh.Token) tokenPersistence {
	p := tokenPersistence{
		ID:          t.ID,
		PrincipalID: t.PrincipalID.String(),
		TenantType:  t.Tenant.Type.String(),
		TenantID:    t.Tenant.ID,
		TokenHash:   t.TokenHash,
		ExpiresAt:   t.ExpiresAt,
		UsedAt:      t.UsedAt,
		RevokedAt:   t.RevokedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.ReplacedBy != nil {
		p.ReplacedBy = sql.NullString{String: *t.ReplacedBy, Valid: true}
	}
	return p
}

func toDomain(row tokenPersistence) refresh.Token {
	t := refresh.Token{
		Entity: kernel.Entity{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		},
		PrincipalID: kernel.NewPrincipalID(row.PrincipalID),
		Tenant: kernel.TenantRef{
			Type: kernel.TenantType(row.TenantType),
			ID:   row.TenantID,
		},
		TokenHash: row.TokenHash,
		ExpiresAt: row.ExpiresAt,
		UsedAt:    row.UsedAt,
		RevokedAt: row.RevokedAt,
	}
	if row.ReplacedBy.Valid {
		replacedBy := row.ReplacedBy.String
		t.ReplacedBy = &replacedBy
	}
	return t
}
