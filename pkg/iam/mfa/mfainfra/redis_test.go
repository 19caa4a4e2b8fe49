package mfainfra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-id/veridian/pkg/iam/mfa"
	"github.com/veridian-id/veridian/pkg/kernel"
)

func newChallengeStore(t *testing.T) (mfa.ChallengeStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisChallengeStore(client, 5*time.Minute), mr
}

func TestChallengeRoundtrip(t *testing.T) {
	store, _ := newChallengeStore(t)
	ctx := context.Background()

	challenge := mfa.Challenge{
		Token:       "tok-1",
		PrincipalID: kernel.NewPrincipalID("p-1"),
		Tenant:      kernel.OrgTenant(kernel.NewOrgID("org-1")),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, challenge))

	got, err := store.Consume(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, challenge.PrincipalID, got.PrincipalID)
	assert.Equal(t, challenge.Tenant, got.Tenant)

	// Consumption removed the key.
	got, err = store.Consume(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChallengeExpires(t *testing.T) {
	store, mr := newChallengeStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, mfa.Challenge{
		Token:       "tok-ttl",
		PrincipalID: kernel.NewPrincipalID("p-1"),
	}))

	mr.FastForward(6 * time.Minute)

	got, err := store.Consume(ctx, "tok-ttl")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConsumeUnknownToken(t *testing.T) {
	store, _ := newChallengeStore(t)

	got, err := store.Consume(context.Background(), "never-created")
	require.NoError(t, err)
	assert.Nil(t, got)
}
