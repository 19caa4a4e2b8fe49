package rbacsrv

import (
	"context"

	"github.com/veridian-id/veridian/pkg/iam/rbac"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// RBACService resolves effective permissions and manages roles. All
// operations are tenant-scoped; a role from one tenant is invisible to
// every other.
type RBACService struct {
	roles rbac.RoleRepository
}

func NewRBACService(roles rbac.RoleRepository) *RBACService {
	return &RBACService{roles: roles}
}

// ResolvePermissions computes the principal's effective permission set:
// the union over every assigned role, deduplicated and sorted. A principal
// with no roles resolves to an empty set, not an error.
func (s *RBACService) ResolvePermissions(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef) ([]rbac.Permission, error) {
	roles, err := s.roles.RolesForPrincipal(ctx, principalID, tenant)
	if err != nil {
		return nil, err
	}

	sets := make([][]rbac.Permission, 0, len(roles))
	for _, role := range roles {
		sets = append(sets, role.Permissions)
	}
	return rbac.Union(sets...), nil
}

// HasPermission reports whether the principal's effective set grants the
// required permission, wildcard actions included.
func (s *RBACService) HasPermission(ctx context.Context, principalID kernel.PrincipalID, tenant kernel.TenantRef, required string) (bool, error) {
	requiredPerm, err := rbac.ParsePermission(required)
	if err != nil {
		return false, err
	}

	effective, err := s.ResolvePermissions(ctx, principalID, tenant)
	if err != nil {
		return false, err
	}
	for _, p := range effective {
		if p.Grants(requiredPerm) {
			return true, nil
		}
	}
	return false, nil
}

type CreateRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (s *RBACService) CreateRole(ctx context.Context, tenant kernel.TenantRef, req CreateRoleRequest) (*rbac.Role, error) {
	role, err := rbac.NewRole(tenant, req.Name, req.Description, req.Permissions)
	if err != nil {
		return nil, err
	}
	if err := s.roles.CreateRole(ctx, *role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RBACService) GetRole(ctx context.Context, id kernel.RoleID, tenant kernel.TenantRef) (*rbac.Role, error) {
	return s.roles.FindRole(ctx, id, tenant)
}

func (s *RBACService) ListRoles(ctx context.Context, tenant kernel.TenantRef, opts kernel.PaginationOptions) (*kernel.Paginated[rbac.Role], error) {
	return s.roles.ListRoles(ctx, tenant, opts.Normalized())
}

type UpdateRoleRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
}

func (s *RBACService) UpdateRole(ctx context.Context, id kernel.RoleID, tenant kernel.TenantRef, req UpdateRoleRequest) (*rbac.Role, error) {
	role, err := s.roles.FindRole(ctx, id, tenant)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Permissions != nil {
		normalized, err := rbac.NormalizeAll(*req.Permissions)
		if err != nil {
			return nil, err
		}
		role.Permissions = normalized
	}

	role.Touch()
	if err := s.roles.SaveRole(ctx, *role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RBACService) DeleteRole(ctx context.Context, id kernel.RoleID, tenant kernel.TenantRef) error {
	return s.roles.DeleteRole(ctx, id, tenant)
}

// AssignRole attaches a role to a principal. The role must live in the
// same tenant as the assignment; FindRole enforces that by scoping the
// lookup.
func (s *RBACService) AssignRole(ctx context.Context, principalID kernel.PrincipalID, roleID kernel.RoleID, tenant kernel.TenantRef) error {
	if _, err := s.roles.FindRole(ctx, roleID, tenant); err != nil {
		return err
	}
	return s.roles.Assign(ctx, principalID, roleID, tenant)
}

func (s *RBACService) UnassignRole(ctx context.Context, principalID kernel.PrincipalID, roleID kernel.RoleID, tenant kernel.TenantRef) error {
	return s.roles.Unassign(ctx, principalID, roleID, tenant)
}
