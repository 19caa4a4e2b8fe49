package principal

import (
	"context"

	"github.com/veridian-id/veridian/pkg/kernel"
)

// Repository defines the contract for principal persistence.
type Repository interface {
	Create(ctx context.Context, p *Principal) error
	FindByID(ctx context.Context, id kernel.PrincipalID) (*Principal, error)
	FindByEmail(ctx context.Context, email string, tenant kernel.TenantRef) (*Principal, error)
	UpdateMFAState(ctx context.Context, id kernel.PrincipalID, state MFAState) error
	MarkEmailVerified(ctx context.Context, id kernel.PrincipalID) error
	Save(ctx context.Context, p *Principal) error
}
