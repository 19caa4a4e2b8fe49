package rbac

import (
	"context"

	"github.com/veridian-id/veridian/pkg/kernel"
)

// RoleRepository persists roles and principal assignments. Every read and
// write is tenant-scoped; implementations must never return a role or
// assignment from another tenant.
type RoleRepository interface {
	CreateRole(ctx context.Context, role Role) error
	FindRole(ctx context.Context, id kernel.RoleID, tenant kernel.TenantRef) (*Role, error)
	FindRoleByName(ctx context.Context, name string, tenant kernel.TenantRef) (*Role, error)
	ListRoles(ctx context.Context, tenant kernel.TenantRef, opts kernel.PaginationOptions) (*kernel.Paginated[Role], error)
	SaveRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id kernel.RoleID, tenant kernel.TenantRef) error

	Assign(ctx context.Context, principalID kernel.PrincipalID, roleID kernel.RoleID, tenant kernel.TenantRef) error
	Unassign(ctx context.Context, principalID kernel.PrincipalID, roleID kernel.RoleID, tenant kernel.TenantRef) error

	// RolesForPrincipal returns every role assigned to the principal
	// within the tenant, permissions included.
	RolesForPrincipal(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) ([]Role, error)
}
