package principalinfra

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/principal"
	"github.com/veridian-id/veridian/pkg/kernel"
)

func newMockRepo(t *testing.T) (principal.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresPrincipalRepository(sqlx.NewDb(db, "postgres")), mock
}

func testPrincipal(t *testing.T) *principal.Principal {
	t.Helper()
	p, err := principal.New(
		principal.KindEndUser,
		kernel.ProjectTenant(kernel.NewProjectID("proj-1")),
		"User@Example.com",
		"Test User",
		"$2a$10$hash",
	)
	require.NoError(t, err)
	return p
}

func principalRows(p *principal.Principal) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kind", "tenant_type", "tenant_id", "email", "name",
		"password_hash", "role", "email_verified", "mfa_state",
		"created_at", "updated_at",
	}).AddRow(
		p.ID, string(p.Kind), p.Tenant.Type.String(), p.Tenant.ID,
		p.Email, p.Name, p.PasswordHash, p.Role, p.EmailVerified,
		string(p.MFAState), p.CreatedAt, p.UpdatedAt,
	)
}

func TestCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := testPrincipal(t)

	mock.ExpectExec("INSERT INTO principals").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := testPrincipal(t)

	mock.ExpectExec("INSERT INTO principals").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, "PRINCIPAL_EMAIL_TAKEN"))
}

func TestFindByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := testPrincipal(t)

	mock.ExpectQuery("SELECT \\* FROM principals WHERE id").
		WithArgs(p.ID).
		WillReturnRows(principalRows(p))

	found, err := repo.FindByID(context.Background(), p.PrincipalID())
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Equal(t, "user@example.com", found.Email)
	assert.Equal(t, principal.KindEndUser, found.Kind)
	assert.Equal(t, kernel.TenantProject, found.Tenant.Type)
}

func TestFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT \\* FROM principals WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), kernel.NewPrincipalID("missing"))
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, "PRINCIPAL_NOT_FOUND"))
}

func TestFindByEmailScopedToTenant(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := testPrincipal(t)

	mock.ExpectQuery("SELECT \\* FROM principals WHERE email").
		WithArgs(p.Email, "project", "proj-1").
		WillReturnRows(principalRows(p))

	found, err := repo.FindByEmail(context.Background(), p.Email, p.Tenant)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMFAState(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE principals SET mfa_state").
		WithArgs("enabled", "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateMFAState(context.Background(), kernel.NewPrincipalID("p-1"), principal.MFAEnabled)
	require.NoError(t, err)
}

func TestUpdateMFAStateMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE principals SET mfa_state").
		WithArgs("enabled", "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateMFAState(context.Background(), kernel.NewPrincipalID("nope"), principal.MFAEnabled)
	assert.True(t, errx.HasCode(err, "PRINCIPAL_NOT_FOUND"))
}

func TestSaveBumpsUpdatedAt(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := testPrincipal(t)
	before := p.UpdatedAt

	mock.ExpectExec("UPDATE principals SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	time.Sleep(time.Millisecond)
	err := repo.Save(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, p.UpdatedAt.After(before))
}
