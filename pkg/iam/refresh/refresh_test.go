package refresh

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-id/veridian/pkg/kernel"
)

func TestGenerate(t *testing.T) {
	tenant := kernel.OrgTenant(kernel.NewOrgID("org-1"))
	generated, err := Generate(kernel.NewPrincipalID("p-1"), tenant, time.Hour)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(generated.Raw, TokenPrefix))
	assert.Greater(t, len(generated.Raw), 40)
	assert.Equal(t, Hash(generated.Raw), generated.Token.TokenHash)
	assert.NotContains(t, generated.Token.TokenHash, generated.Raw)
	assert.True(t, generated.Token.Active(time.Now()))

	other, err := Generate(kernel.NewPrincipalID("p-1"), tenant, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, generated.Raw, other.Raw)
}

func TestHashIsDeterministic(t *testing.T) {
	assert.Equal(t, Hash("rt_abc"), Hash("rt_abc"))
	assert.NotEqual(t, Hash("rt_abc"), Hash("rt_abd"))
}

func TestActive(t *testing.T) {
	now := time.Now().UTC()
	used := now.Add(-time.Minute)

	token := Token{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, token.Active(now))

	token.UsedAt = &used
	assert.False(t, token.Active(now))

	token = Token{ExpiresAt: now.Add(-time.Second)}
	assert.False(t, token.Active(now))

	token = Token{ExpiresAt: now.Add(time.Hour), RevokedAt: &used}
	assert.False(t, token.Active(now))
}
