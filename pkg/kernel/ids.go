package kernel

// PrincipalID identifies an authenticated identity: an organization member
// or a project end-user.
type PrincipalID string

func NewPrincipalID(id string) PrincipalID { return PrincipalID(id) }
func (p PrincipalID) String() string       { return string(p) }
func (p PrincipalID) IsEmpty() bool        { return string(p) == "" }

type OrgID string

func NewOrgID(id string) OrgID { return OrgID(id) }
func (o OrgID) String() string { return string(o) }
func (o OrgID) IsEmpty() bool  { return string(o) == "" }

type ProjectID string

func NewProjectID(id string) ProjectID { return ProjectID(id) }
func (p ProjectID) String() string     { return string(p) }
func (p ProjectID) IsEmpty() bool      { return string(p) == "" }

type RoleID string

func NewRoleID(id string) RoleID { return RoleID(id) }
func (r RoleID) String() string  { return string(r) }
func (r RoleID) IsEmpty() bool   { return string(r) == "" }
