// Package rbac models roles, permissions and their resolution. Permissions
// are flat "resource:action" strings; a principal's effective set is the
// union over every role assigned to it within its tenant.
package rbac

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// Permission is a normalized "resource:action" pair. The wildcard action
// "*" grants every action on the resource.
type Permission string

const WildcardAction = "*"

// ParsePermission normalizes and validates a raw permission string.
// Matching is case-insensitive, so "Users:Read" and "users:read" are the
// same permission.
func ParsePermission(raw string) (Permission, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	parts := strings.Split(normalized, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrRegistry.New(CodeInvalidPermission).WithDetail("permission", raw)
	}
	return Permission(normalized), nil
}

func (p Permission) String() string { return string(p) }

// Resource returns the segment before the colon.
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// Action returns the segment after the colon.
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ":")
	return action
}

// Grants reports whether this permission satisfies the required one,
// honoring the wildcard action.
func (p Permission) Grants(required Permission) bool {
	if p == required {
		return true
	}
	return p.Action() == WildcardAction && p.Resource() == required.Resource()
}

// Role is a named permission bundle owned by exactly one tenant.
type Role struct {
	kernel.Entity
	Tenant      kernel.TenantRef `json:"tenant"`
	Name        string           `db:"name" json:"name"`
	Description string           `db:"description" json:"description,omitempty"`
	Permissions []Permission     `json:"permissions"`
}

// NewRole creates a role after normalizing every permission. Duplicate
// permissions collapse.
func NewRole(tenant kernel.TenantRef, name, description string, rawPermissions []string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrRegistry.New(CodeInvalidRole).WithDetail("reason", "name is required")
	}

	permissions, err := NormalizeAll(rawPermissions)
	if err != nil {
		return nil, err
	}

	return &Role{
		Entity:      kernel.NewEntity(uuid.NewString()),
		Tenant:      tenant,
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: permissions,
	}, nil
}

// RoleID returns the typed id.
func (r *Role) RoleID() kernel.RoleID {
	return kernel.NewRoleID(r.ID)
}

// NormalizeAll parses every raw permission, deduplicates and sorts the
// result. The input order carries no meaning.
func NormalizeAll(raw []string) ([]Permission, error) {
	seen := make(map[Permission]struct{}, len(raw))
	out := make([]Permission, 0, len(raw))
	for _, r := range raw {
		perm, err := ParsePermission(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[perm]; ok {
			continue
		}
		seen[perm] = struct{}{}
		out = append(out, perm)
	}
	sortPermissions(out)
	return out, nil
}

// Union merges permission sets, deduplicating and sorting.
func Union(sets ...[]Permission) []Permission {
	seen := make(map[Permission]struct{})
	var out []Permission
	for _, set := range sets {
		for _, p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sortPermissions(out)
	return out
}

func sortPermissions(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
}

var ErrRegistry = errx.NewRegistry("RBAC")

var (
	CodeRoleNotFound      = ErrRegistry.Register("ROLE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Role not found")
	CodeRoleNameTaken     = ErrRegistry.Register("ROLE_NAME_TAKEN", errx.TypeConflict, http.StatusConflict, "A role with this name already exists in the tenant")
	CodeInvalidPermission = ErrRegistry.Register("INVALID_PERMISSION", errx.TypeValidation, http.StatusBadRequest, "Permission must be of the form resource:action")
	CodeInvalidRole       = ErrRegistry.Register("INVALID_ROLE", errx.TypeValidation, http.StatusBadRequest, "Invalid role definition")
	CodeCrossTenant       = ErrRegistry.Register("CROSS_TENANT", errx.TypeAuthorization, http.StatusForbidden, "Role belongs to a different tenant")
)

func ErrRoleNotFound() *errx.Error { return ErrRegistry.New(CodeRoleNotFound) }
func ErrCrossTenant() *errx.Error  { return ErrRegistry.New(CodeCrossTenant) }
