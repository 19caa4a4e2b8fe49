package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veridian-id/veridian/pkg/kernel"
)

func testCodec(t *testing.T, ttl time.Duration) *Codec {
	t.Helper()
	key, err := GenerateKeypair(2048)
	require.NoError(t, err)
	return NewCodecWithKeys(key, "veridian-test", "test-1", ttl)
}

func issueRequest() IssueRequest {
	return IssueRequest{
		Subject:     kernel.NewPrincipalID("7e6f0a08-8f3a-4c8e-9f20-1b6c2b6f2a11"),
		Tenant:      kernel.ProjectTenant(kernel.NewProjectID("p-1")),
		Email:       "user@example.com",
		Permissions: []string{"articles:read", "articles:write"},
	}
}

func TestIssueAndValidate(t *testing.T) {
	codec := testCodec(t, 15*time.Minute)

	signed, err := codec.Issue(issueRequest())
	require.NoError(t, err)

	result := codec.Validate(signed)
	require.Equal(t, StatusValid, result.Status)
	require.NotNil(t, result.Claims)
	assert.Empty(t, result.Reason)

	assert.Equal(t, "7e6f0a08-8f3a-4c8e-9f20-1b6c2b6f2a11", result.Claims.Subject.String())
	assert.Equal(t, kernel.TenantProject, result.Claims.Tenant.Type)
	assert.Equal(t, "p-1", result.Claims.Tenant.ID)
	assert.Equal(t, []string{"articles:read", "articles:write"}, result.Claims.Permissions)
	assert.Equal(t, TypeAccess, result.Claims.TokenType)
	assert.Equal(t, "veridian-test", result.Claims.Issuer)
}

func TestValidateExpiredIsNotInvalid(t *testing.T) {
	codec := testCodec(t, 15*time.Minute)

	signed, err := codec.Issue(IssueRequest{
		Subject: kernel.NewPrincipalID("sub"),
		Tenant:  kernel.OrgTenant(kernel.NewOrgID("o-1")),
		TTL:     -time.Minute,
	})
	require.NoError(t, err)

	result := codec.Validate(signed)
	assert.Equal(t, StatusExpired, result.Status)
	assert.Nil(t, result.Claims)
}

func TestValidateTamperedIsNeverExpired(t *testing.T) {
	codec := testCodec(t, 15*time.Minute)

	// Expired AND tampered: signature failure must win.
	signed, err := codec.Issue(IssueRequest{
		Subject: kernel.NewPrincipalID("sub"),
		Tenant:  kernel.OrgTenant(kernel.NewOrgID("o-1")),
		TTL:     -time.Minute,
	})
	require.NoError(t, err)

	tampered := signed[:len(signed)-4] + "AAAA"
	result := codec.Validate(tampered)
	assert.Equal(t, StatusInvalid, result.Status)
}

func TestValidateWrongIssuer(t *testing.T) {
	key, err := GenerateKeypair(2048)
	require.NoError(t, err)

	issuing := NewCodecWithKeys(key, "other-issuer", "k", time.Minute)
	verifying := NewCodecWithKeys(key, "veridian-test", "k", time.Minute)

	signed, err := issuing.Issue(issueRequest())
	require.NoError(t, err)

	// Well-formed, correctly signed, but rejected: invalid, not expired.
	result := verifying.Validate(signed)
	assert.Equal(t, StatusInvalid, result.Status)
}

func TestValidateWrongKey(t *testing.T) {
	codec := testCodec(t, time.Minute)
	other := testCodec(t, time.Minute)

	signed, err := codec.Issue(issueRequest())
	require.NoError(t, err)

	result := other.Validate(signed)
	assert.Equal(t, StatusInvalid, result.Status)
}

func TestValidateGarbage(t *testing.T) {
	codec := testCodec(t, time.Minute)

	for _, input := range []string{"", "garbage", "a.b.c"} {
		result := codec.Validate(input)
		assert.Equal(t, StatusInvalid, result.Status, "input %q", input)
	}
}

func TestJWKSDocument(t *testing.T) {
	codec := testCodec(t, time.Minute)

	doc := codec.JWKS()
	require.Len(t, doc.Keys, 1)
	key := doc.Keys[0]
	assert.Equal(t, "RSA", key.Kty)
	assert.Equal(t, "RS256", key.Alg)
	assert.Equal(t, "sig", key.Use)
	assert.Equal(t, "test-1", key.Kid)
	assert.NotEmpty(t, key.N)
	assert.NotEmpty(t, key.E)
}

func TestPEMRoundTrip(t *testing.T) {
	key, err := GenerateKeypair(2048)
	require.NoError(t, err)

	privPEM := MarshalPrivateKey(key)
	pubPEM := MarshalPublicKey(&key.PublicKey)

	codec, err := NewCodec(privPEM, pubPEM, "veridian-test", "k", time.Minute)
	require.NoError(t, err)

	signed, err := codec.Issue(issueRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusValid, codec.Validate(signed).Status)
}
