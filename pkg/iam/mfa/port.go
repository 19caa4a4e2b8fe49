package mfa

import (
	"context"

	"github.com/veridian-id/veridian/pkg/kernel"
)

// SecretRepository persists encrypted TOTP enrollments, one per principal.
type SecretRepository interface {
	// Upsert replaces any existing unconfirmed enrollment for the
	// principal. Confirmed enrollments must be deleted before a new
	// setup can begin.
	Upsert(ctx context.Context, secret Secret) error
	FindByPrincipal(ctx context.Context, id kernel.PrincipalID) (*Secret, error)
	Confirm(ctx context.Context, id kernel.PrincipalID) error
	Delete(ctx context.Context, id kernel.PrincipalID) error
}

// RecoveryCodeRepository persists hashed one-shot recovery codes.
type RecoveryCodeRepository interface {
	// ReplaceAll atomically deletes the principal's existing codes and
	// inserts the new batch.
	ReplaceAll(ctx context.Context, id kernel.PrincipalID, codes []RecoveryCode) error

	// Consume marks the code matching the hash as used. Exactly one of N
	// concurrent calls for the same hash succeeds; false means the code
	// is unknown or already spent.
	Consume(ctx context.Context, id kernel.PrincipalID, codeHash string) (bool, error)

	CountRemaining(ctx context.Context, id kernel.PrincipalID) (int, error)
	DeleteAll(ctx context.Context, id kernel.PrincipalID) error
}

// ChallengeStore holds pending login challenges. Consume is destructive:
// a challenge token authenticates at most one code submission.
type ChallengeStore interface {
	Create(ctx context.Context, challenge Challenge) error
	Consume(ctx context.Context, token string) (*Challenge, error)
}
