// Package rbacinfra provides the PostgreSQL implementation of role and
// assignment persistence.
package rbacinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/rbac"
	"github.com/veridian-id/veridian/pkg/kernel"
)

type PostgresRoleRepository struct {
	db *sqlx.DB
}

func NewPostgresRoleRepository(db *sqlx.DB) rbac.RoleRepository {
	return &PostgresRoleRepository{db: db}
}

func (r *PostgresRoleRepository) CreateRole(ctx context.Context, role rbac.Role) error {
	query := `
		INSERT INTO roles (
			id, tenant_type, tenant_id, name, description, permissions,
			created_at, updated_at
		) VALUES (
			:id, :tenant_type, :tenant_id, :name, :description, :permissions,
			:created_at, :updated_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(role))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return rbac.ErrRegistry.New(rbac.CodeRoleNameTaken).WithDetail("name", role.Name)
		}
		return errx.Wrap(err, "failed to create role", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRoleRepository) FindRole(ctx context.Context, id kernel.RoleID, tenant kernel.TenantRef) (*rbac.Role, error) {
	var row rolePersistence
	query := `SELECT * FROM roles WHERE id = $1 AND tenant_type = $2 AND tenant_id = $3`
	err := r.db.GetContext(ctx, &row, query, id.String(), tenant.Type.String(), tenant.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rbac.ErrRoleNotFound()
		}
		return nil, errx.Wrap(err, "failed to find role", errx.TypeInternal)
	}
	role := toDomain(row)
	return &role, nil
}

func (r *PostgresRoleRepository) FindRoleByName(ctx context.Context, name string, tenant kernel.TenantRef) (*rbac.Role, error) {
	var row rolePersistence
	query := `SELECT * FROM roles WHERE name = $1 AND tenant_type = $2 AND tenant_id = $3`
	err := r.db.GetContext(ctx, &row, query, name, tenant.Type.String(), tenant.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rbac.ErrRoleNotFound()
		}
		return nil, errx.Wrap(err, "failed to find role by name", errx.TypeInternal)
	}
	role := toDomain(row)
	return &role, nil
}

func (r *PostgresRoleRepository) ListRoles(ctx context.Context, tenant kernel.TenantRef, opts kernel.PaginationOptions) (*kernel.Paginated[rbac.Role], error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM roles WHERE tenant_type = $1 AND tenant_id = $2`
	if err := r.db.GetContext(ctx, &total, countQuery, tenant.Type.String(), tenant.ID); err != nil {
		return nil, errx.Wrap(err, "failed to count roles", errx.TypeInternal)
	}

	var rows []rolePersistence
	query := `
		SELECT * FROM roles
		WHERE tenant_type = $1 AND tenant_id = $2
		ORDER BY name
		LIMIT $3 OFFSET $4`
	if err := r.db.SelectContext(ctx, &rows, query, tenant.Type.String(), tenant.ID, opts.PageSize, opts.Offset()); err != nil {
		return nil, errx.Wrap(err, "failed to list roles", errx.TypeInternal)
	}

	roles := make([]rbac.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, toDomain(row))
	}
	paginated := kernel.NewPaginated(roles, opts.Page, opts.PageSize, total)
	return &paginated, nil
}

func (r *PostgresRoleRepository) SaveRole(ctx context.Context, role rbac.Role) error {
	query := `
		UPDATE roles SET
			name = :name,
			description = :description,
			permissions = :permissions,
			updated_at = :updated_at
		WHERE id = :id AND tenant_type = :tenant_type AND tenant_id = :tenant_id`

	result, err := r.db.NamedExecContext(ctx, query, toPersistence(role))
	if err != nil {
		return errx.Wrap(err, "failed to save role", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return rbac.ErrRoleNotFound()
	}
	return nil
}

func (r *PostgresRoleRepository) DeleteRole(ctx context.Context, id kernel.RoleID, tenant kernel.TenantRef) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin role deletion", errx.TypeInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_assignments WHERE role_id = $1`, id.String()); err != nil {
		return errx.Wrap(err, "failed to delete role assignments", errx.TypeInternal)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM roles WHERE id = $1 AND tenant_type = $2 AND tenant_id = $3`,
		id.String(), tenant.Type.String(), tenant.ID)
	if err != nil {
		return errx.Wrap(err, "failed to delete role", errx.TypeInternal)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}
	if affected == 0 {
		return rbac.ErrRoleNotFound()
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit role deletion", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRoleRepository) Assign(ctx context.Context, principalID kernel.PrincipalID, roleID kernel.RoleID, tenant kernel.TenantRef) error {
	query := `
		INSERT INTO role_assignments (principal_id, role_id, tenant_type, tenant_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (principal_id, role_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, principalID.String(), roleID.String(), tenant.Type.String(), tenant.ID)
	if err != nil {
		return errx.Wrap(err, "failed to assign role", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRoleRepository) Unassign(ctx context.Context, principalID kernel.PrincipalID, roleID kernel.RoleID, tenant kernel.TenantRef) error {
	query := `
		DELETE FROM role_assignments
		WHERE principal_id = $1 AND role_id = $2 AND tenant_type = $3 AND tenant_id = $4`

	_, err := r.db.ExecContext(ctx, query, principalID.String(), roleID.String(), tenant.Type.String(), tenant.ID)
	if err != nil {
		return errx.Wrap(err, "failed to unassign role", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRoleRepository) RolesForPrincipal(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) ([]rbac.Role, error) {
	var rows []rolePersistence
	query := `
		SELECT r.* FROM roles r
		JOIN role_assignments a ON a.role_id = r.id
		WHERE a.principal_id = $1 AND r.tenant_type = $2 AND r.tenant_id = $3`

	if err := r.db.SelectContext(ctx, &rows, query, principalID.String(), tenant.Type.String(), tenant.ID); err != nil {
		return nil, errx.Wrap(err, "failed to load principal roles", errx.TypeInternal)
	}

	roles := make([]rbac.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, toDomain(row))
	}
	return roles, nil
}

type rolePersistence struct {
	ID          string         `db:"id"`
	TenantType  string         `db:"tenant_type"`
	TenantID    string         `db:"tenant_id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Permissions pq.StringArray `db:"permissions"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toPersistence(role rbac.Role) rolePersistence {
	perms := make(pq.StringArray, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		perms = append(perms, p.String())
	}
	return rolePersistence{
		ID:          role.ID,
		TenantType:  role.Tenant.Type.String(),
		TenantID:    role.Tenant.ID,
		Name:        role.Name,
		Description: sql.NullString{String: role.Description, Valid: role.Description != ""},
		Permissions: perms,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func toDomain(row rolePersistence) rbac.Role {
	perms := make([]rbac.Permission, 0, len(row.Permissions))
	for _, p := range row.Permissions {
		perms = append(perms, rbac.Permission(p))
	}
	return rbac.Role{
		Entity: kernel.Entity{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		},
		Tenant: kernel.TenantRef{
			Type: kernel.TenantType(row.TenantType),
			ID:   row.TenantID,
		},
		Name:        row.Name,
		Description: row.Description.String,
		Permissions: perms,
	}
}
