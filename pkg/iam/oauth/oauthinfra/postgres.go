package oauthinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/oauth"
	"github.com/veridian-id/veridian/pkg/kernel"
)

type PostgresConnectionRepository struct {
	db *sqlx.DB
}

func NewPostgresConnectionRepository(db *sqlx.DB) oauth.ConnectionRepository {
	return &PostgresConnectionRepository{db: db}
}

func (r *PostgresConnectionRepository) Create(ctx context.Context, conn oauth.Connection) error {
	query := `
		INSERT INTO oauth_connections (
			id, principal_id, provider, provider_user_id, email, created_at, updated_at
		) VALUES (
			:id, :principal_id, :provider, :provider_user_id, :email, :created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(conn))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return oauth.ErrAccountConflict().WithDetail("provider", conn.Provider)
		}
		return errx.Wrap(err, "failed to create oauth connection", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresConnectionRepository) FindByProviderUser(ctx context.Context, provider, providerUserID string) (*oauth.Connection, error) {
	var row connectionPersistence
	query := `SELECT * FROM oauth_connections WHERE provider = $1 AND provider_user_id = $2`
	err := r.db.GetContext(ctx, &row, query, provider, providerUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to find oauth connection", errx.TypeInternal)
	}
	conn := toDomain(row)
	return &conn, nil
}

func (r *PostgresConnectionRepository) FindByPrincipal(ctx context.Context, id kernel.PrincipalID) ([]oauth.Connection, error) {
	var rows []connectionPersistence
	query := `SELECT * FROM oauth_connections WHERE principal_id = $1 ORDER BY provider`
	if err := r.db.SelectContext(ctx, &rows, query, id.String()); err != nil {
		return nil, errx.Wrap(err, "failed to list oauth connections", errx.TypeInternal)
	}

	conns := make([]oauth.Connection, 0, len(rows))
	for _, row := range rows {
		conns = append(conns, toDomain(row))
	}
	return conns, nil
}

func (r *PostgresConnectionRepository) Delete(ctx context.Context, id kernel.PrincipalID, provider string) error {
	query := `DELETE FROM oauth_connections WHERE principal_id = $1 AND provider = $2`
	_, err := r.db.ExecContext(ctx, query, id.String(), provider)
	if err != nil {
		return errx.Wrap(err, "failed to delete oauth connection", errx.TypeInternal)
	}
	return nil
}

type connectionPersistence struct {
	ID             string    `db:"id"`
	PrincipalID    string    `db:"principal_id"`
	Provider       string    `db:"provider"`
	ProviderUserID string    `db:"provider_user_id"`
	Email          string    `db:"email"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toPersistence(conn oauth.Connection) connectionPersistence {
	return connectionPersistence{
		ID:             conn.ID,
		PrincipalID:    conn.PrincipalID.String(),
		Provider:       conn.Provider,
		ProviderUserID: conn.ProviderUserID,
		Email:          conn.Email,
		CreatedAt:      conn.CreatedAt,
		UpdatedAt:      conn.UpdatedAt,
	}
}

func toDomain(row connectionPersistence) oauth.Connection {
	return oauth.Connection{
		Entity: kernel.Entity{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		},
		PrincipalID:    kernel.NewPrincipalID(row.PrincipalID),
		Provider:       row.Provider,
		ProviderUserID: row.ProviderUserID,
		Email:          row.Email,
	}
}
