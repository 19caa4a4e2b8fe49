package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/token"
	"github.com/veridian-id/veridian/pkg/kernel"
)

var testKey *rsa.PrivateKey

func init() {
	var err error
	testKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
}

func newTestApp(t *testing.T) (*fiber.App, *token.Codec) {
	t.Helper()

	codec := token.NewCodecWithKeys(testKey, "veridian-test", "test-1", 15*time.Minute)
	mw := NewMiddleware(codec)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			e := errx.FromError(err)
			return c.Status(e.HTTPStatus).JSON(e.ToHTTPResponse())
		},
	})

	app.Get("/whoami", mw.RequireAuth(), func(c *fiber.Ctx) error {
		authed := FromContext(c)
		return c.JSON(fiber.Map{"principal_id": authed.PrincipalID, "email": authed.Email})
	})
	app.Delete("/roles", mw.RequireAuth(), mw.RequirePermission("roles:write"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	return app, codec
}

func issueToken(t *testing.T, codec *token.Codec, permissions []string) string {
	t.Helper()
	signed, err := codec.Issue(token.IssueRequest{
		Subject:     kernel.NewPrincipalID("prn_1"),
		Tenant:      kernel.TenantRef{Type: kernel.TenantProject, ID: "proj_1"},
		Email:       "alice@example.com",
		Permissions: permissions,
	})
	require.NoError(t, err)
	return signed
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	app, codec := newTestApp(t)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, codec, nil))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "prn_1", body["principal_id"])
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestRequireAuthFallsBackToCookie(t *testing.T) {
	app, codec := newTestApp(t)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: issueToken(t, codec, nil)})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuthRejectsTamperedToken(t *testing.T) {
	app, codec := newTestApp(t)

	signed := issueToken(t, codec, nil)
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed+"x")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequirePermission(t *testing.T) {
	app, codec := newTestApp(t)

	t.Run("denied without the permission", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/roles", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, codec, []string{"documents:read"}))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("granted with the exact permission", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/roles", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, codec, []string{"roles:write"}))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})

	t.Run("granted via wildcard action", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/roles", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, codec, []string{"roles:*"}))

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})
}
