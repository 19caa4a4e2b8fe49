package oauthinfra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-id/veridian/pkg/iam/oauth"
	"github.com/veridian-id/veridian/pkg/kernel"
)

func newRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestStateStoreSingleUse(t *testing.T) {
	client, _ := newRedisClient(t)
	store := NewRedisStateStore(client, 10*time.Minute)
	ctx := context.Background()

	req := oauth.AuthorizationRequest{
		StateHash:    "state-hash",
		Provider:     oauth.ProviderGoogle,
		Tenant:       kernel.ProjectTenant(kernel.NewProjectID("proj-1")),
		CodeVerifier: "verifier",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, req))

	got, err := store.Consume(ctx, "state-hash")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, req.Provider, got.Provider)
	assert.Equal(t, req.CodeVerifier, got.CodeVerifier)
	assert.Equal(t, req.Tenant, got.Tenant)

	got, err = store.Consume(ctx, "state-hash")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateExpires(t *testing.T) {
	client, mr := newRedisClient(t)
	store := NewRedisStateStore(client, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, oauth.AuthorizationRequest{StateHash: "h"}))
	mr.FastForward(11 * time.Minute)

	got, err := store.Consume(ctx, "h")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExchangeCodeStoreSingleUse(t *testing.T) {
	client, _ := newRedisClient(t)
	store := NewRedisExchangeCodeStore(client, time.Minute)
	ctx := context.Background()

	ticket := oauth.GrantTicket{
		PrincipalID: kernel.NewPrincipalID("p-1"),
		Tenant:      kernel.ProjectTenant(kernel.NewProjectID("proj-1")),
		Provider:    oauth.ProviderGitHub,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Create(ctx, "code-hash", ticket))

	got, err := store.Consume(ctx, "code-hash")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ticket.PrincipalID, got.PrincipalID)

	got, err = store.Consume(ctx, "code-hash")
	require.NoError(t, err)
	assert.Nil(t, got)
}
