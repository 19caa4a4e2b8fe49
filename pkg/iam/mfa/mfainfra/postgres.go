// Package mfainfra provides persistence for MFA enrollments: encrypted
// secrets and recovery codes in PostgreSQL, pending challenges in Redis.
package mfainfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/mfa"
	"github.com/veridian-id/veridian/pkg/kernel"
)

type PostgresSecretRepository struct {
	db *sqlx.DB
}

func NewPostgresSecretRepository(db *sqlx.DB) mfa.SecretRepository {
	return &PostgresSecretRepository{db: db}
}

func (r *PostgresSecretRepository) Upsert(ctx context.Context, secret mfa.Secret) error {
	query := `
		INSERT INTO mfa_secrets (principal_id, encrypted_secret, confirmed_at, created_at)
		VALUES ($1, $2, NULL, $3)
		ON CONFLICT (principal_id)
		DO UPDATE SET encrypted_secret = EXCLUDED.encrypted_secret, confirmed_at = NULL, created_at = EXCLUDED.created_at`

	_, err := r.db.ExecContext(ctx, query, secret.PrincipalID.String(), secret.EncryptedSecret, secret.CreatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to upsert mfa secret", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSecretRepository) FindByPrincipal(ctx context.Context, id kernel.PrincipalID) (*mfa.Secret, error) {
	var row secretPersistence
	query := `SELECT * FROM mfa_secrets WHERE principal_id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to find mfa secret", errx.TypeInternal)
	}
	secret := mfa.Secret(row)
	return &secret, nil
}

func (r *PostgresSecretRepository) Confirm(ctx context.Context, id kernel.PrincipalID) error {
	query := `UPDATE mfa_secrets SET confirmed_at = NOW() WHERE principal_id = $1 AND confirmed_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to confirm mfa secret", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return mfa.ErrSetupNotStarted()
	}
	return nil
}

func (r *PostgresSecretRepository) Delete(ctx context.Context, id kernel.PrincipalID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_secrets WHERE principal_id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete mfa secret", errx.TypeInternal)
	}
	return nil
}

type secretPersistence struct {
	PrincipalID     kernel.PrincipalID `db:"principal_id"`
	EncryptedSecret string             `db:"encrypted_secret"`
	ConfirmedAt     *time.Time         `db:"confirmed_at"`
	CreatedAt       time.Time          `db:"created_at"`
}

type PostgresRecoveryCodeRepository struct {
	db *sqlx.DB
}

func NewPostgresRecoveryCodeRepository(db *sqlx.DB) mfa.RecoveryCodeRepository {
	return &PostgresRecoveryCodeRepository{db: db}
}

func (r *PostgresRecoveryCodeRepository) ReplaceAll(ctx context.Context, id kernel.PrincipalID, codes []mfa.RecoveryCode) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin recovery code replacement", errx.TypeInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mfa_recovery_codes WHERE principal_id = $1`, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete old recovery codes", errx.TypeInternal)
	}

	insert := `
		INSERT INTO mfa_recovery_codes (id, principal_id, code_hash, used_at, created_at)
		VALUES ($1, $2, $3, NULL, $4)`
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, insert, code.ID, code.PrincipalID.String(), code.CodeHash, code.CreatedAt); err != nil {
			return errx.Wrap(err, "failed to insert recovery code", errx.TypeInternal)
		}
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit recovery code replacement", errx.TypeInternal)
	}
	return nil
}

// Consume is a conditional update; concurrent submissions of the same code
// race on used_at IS NULL and at most one wins.
func (r *PostgresRecoveryCodeRepository) Consume(ctx context.Context, id kernel.PrincipalID, codeHash string) (bool, error) {
	query := `
		UPDATE mfa_recovery_codes
		SET used_at = NOW()
		WHERE principal_id = $1 AND code_hash = $2 AND used_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id.String(), codeHash)
	if err != nil {
		return false, errx.Wrap(err, "failed to consume recovery code", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	return affected == 1, nil
}

func (r *PostgresRecoveryCodeRepository) CountRemaining(ctx context.Context, id kernel.PrincipalID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM mfa_recovery_codes WHERE principal_id = $1 AND used_at IS NULL`
	if err := r.db.GetContext(ctx, &count, query, id.String()); err != nil {
		return 0, errx.Wrap(err, "failed to count recovery codes", errx.TypeInternal)
	}
	return count, nil
}

func (r *PostgresRecoveryCodeRepository) DeleteAll(ctx context.Context, id kernel.PrincipalID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_recovery_codes WHERE principal_id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete recovery codes", errx.TypeInternal)
	}
	return nil
}
