package refresh

import (
	"context"
	"time"

	"github.com/veridian-id/veridian/pkg/kernel"
)

// Ledger is the persistence contract for refresh tokens. Rotate is the
// load-bearing operation: the conditional consume of the old entry and the
// insert of its replacement must commit atomically, so a concurrent redeem
// of the same raw token rotates at most once.
type Ledger interface {
	Create(ctx context.Context, token Token) error

	// Rotate marks the entry matching oldHash as used and records the
	// replacement in one transaction. It returns the pre-existing entry
	// when one matched the hash (whatever its state) and whether this
	// call won the consume. A nil entry means the hash is unknown.
	Rotate(ctx context.Context, oldHash string, replacement Token) (*Token, bool, error)

	// FindByHash returns the entry matching the hash, or nil when none
	// exists. Unknown hashes are not an error at this layer.
	FindByHash(ctx context.Context, hash string) (*Token, error)

	// RevokeAllForPrincipal invalidates every live token of the principal
	// and returns how many were revoked.
	RevokeAllForPrincipal(ctx context.Context, id kernel.PrincipalID) (int64, error)

	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
