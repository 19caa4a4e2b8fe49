package kernel

// TenantType distinguishes the two tenancy scopes in the platform.
type TenantType string

const (
	// TenantOrganization scopes organization members.
	TenantOrganization TenantType = "organization"
	// TenantProject scopes application end-users.
	TenantProject TenantType = "project"
)

func (t TenantType) String() string { return string(t) }

func (t TenantType) IsValid() bool {
	return t == TenantOrganization || t == TenantProject
}

// TenantRef points at the tenant a principal, token or role belongs to.
// Every tenant-scoped read and write must carry one; cross-tenant access is
// a correctness violation, not a policy decision.
type TenantRef struct {
	Type TenantType `db:"tenant_type" json:"tenant_type"`
	ID   string     `db:"tenant_id" json:"tenant_id"`
}

func OrgTenant(id OrgID) TenantRef {
	return TenantRef{Type: TenantOrganization, ID: id.String()}
}

func ProjectTenant(id ProjectID) TenantRef {
	return TenantRef{Type: TenantProject, ID: id.String()}
}

func (t TenantRef) IsEmpty() bool { return t.ID == "" }

func (t TenantRef) Equals(other TenantRef) bool {
	return t.Type == other.Type && t.ID == other.ID
}
