package authapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/veridian-id/veridian/pkg/errx"
	"github.com/veridian-id/veridian/pkg/iam/auth"
	"github.com/veridian-id/veridian/pkg/iam/auth/authsrv"
	"github.com/veridian-id/veridian/pkg/iam/rbac/rbacsrv"
	"github.com/veridian-id/veridian/pkg/iam/token"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// Handlers exposes the authentication surface over HTTP.
type Handlers struct {
	service *authsrv.AuthService
	rbac    *rbacsrv.RBACService
	codec   *token.Codec
}

func NewHandlers(service *authsrv.AuthService, rbacSvc *rbacsrv.RBACService, codec *token.Codec) *Handlers {
	return &Handlers{service: service, rbac: rbacSvc, codec: codec}
}

// RegisterRoutes mounts every endpoint on the app. Protected routes run
// behind the middleware; management routes additionally require a
// permission.
func (h *Handlers) RegisterRoutes(app *fiber.App, mw *auth.Middleware) {
	app.Get("/.well-known/jwks.json", h.jwks)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", h.register)
	authGroup.Post("/login", h.login)
	authGroup.Post("/refresh", h.refresh)
	authGroup.Post("/mfa/complete", h.completeMFA)

	authGroup.Get("/oauth/:provider/start", h.oauthStart)
	authGroup.Get("/oauth/:provider/callback", h.oauthCallback)
	authGroup.Post("/oauth/exchange", h.oauthExchange)

	requireAuth := mw.RequireAuth()
	authGroup.Get("/me", requireAuth, h.me)
	authGroup.Post("/logout", requireAuth, h.logout)
	authGroup.Post("/password", requireAuth, h.changePassword)

	authGroup.Post("/mfa/setup", requireAuth, h.mfaSetup)
	authGroup.Post("/mfa/confirm", requireAuth, h.mfaConfirm)
	authGroup.Post("/mfa/disable", requireAuth, h.mfaDisable)
	authGroup.Post("/mfa/recovery-codes", requireAuth, h.mfaRegenerateRecoveryCodes)

	authGroup.Get("/oauth/connections", requireAuth, h.oauthConnections)
	authGroup.Delete("/oauth/connections/:provider", requireAuth, h.oauthUnlink)

	roles := app.Group("/api/v1/roles", mw.RequireAuth())
	roles.Get("/", mw.RequirePermission("roles:read"), h.listRoles)
	roles.Post("/", mw.RequirePermission("roles:write"), h.createRole)
	roles.Get("/:id", mw.RequirePermission("roles:read"), h.getRole)
	roles.Put("/:id", mw.RequirePermission("roles:write"), h.updateRole)
	roles.Delete("/:id", mw.RequirePermission("roles:write"), h.deleteRole)
	roles.Post("/:id/assignments", mw.RequirePermission("roles:assign"), h.assignRole)
	roles.Delete("/:id/assignments/:principal_id", mw.RequirePermission("roles:assign"), h.unassignRole)
}

func (h *Handlers) jwks(c *fiber.Ctx) error {
	return c.JSON(h.codec.JWKS())
}

func (h *Handlers) register(c *fiber.Ctx) error {
	var req authsrv.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	summary, err := h.service.Register(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(summary)
}

func (h *Handlers) login(c *fiber.Ctx) error {
	var req authsrv.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	result, err := h.service.Login(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handlers) completeMFA(c *fiber.Ctx) error {
	var req authsrv.CompleteMFARequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	result, err := h.service.CompleteMFA(c.Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handlers) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	pair, err := h.service.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

func (h *Handlers) logout(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	if err := h.service.Logout(c.Context(), authed.PrincipalID, authed.Tenant); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) me(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	permissions, err := h.service.ResolvePermissions(c.Context(), authed.PrincipalID, authed.Tenant)
	if err != nil {
		return err
	}
	permStrings := make([]string, 0, len(permissions))
	for _, perm := range permissions {
		permStrings = append(permStrings, perm.String())
	}
	return c.JSON(fiber.Map{
		"principal_id": authed.PrincipalID,
		"tenant":       authed.Tenant,
		"email":        authed.Email,
		"role":         authed.Role,
		"permissions":  permStrings,
	})
}

func (h *Handlers) changePassword(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	var req authsrv.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	if err := h.service.ChangePassword(c.Context(), authed.PrincipalID, req); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ----------------------------------------------------------------------------
// MFA management
// ----------------------------------------------------------------------------

func (h *Handlers) mfaSetup(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	resp, err := h.service.MFA().BeginSetup(c.Context(), authed.PrincipalID, authed.Email)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *Handlers) mfaConfirm(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	var req mfaCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	recoveryCodes, err := h.service.MFA().ConfirmSetup(c.Context(), authed.PrincipalID, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recovery_codes": recoveryCodes})
}

func (h *Handlers) mfaDisable(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	if err := h.service.MFA().Disable(c.Context(), authed.PrincipalID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) mfaRegenerateRecoveryCodes(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	recoveryCodes, err := h.service.MFA().RegenerateRecoveryCodes(c.Context(), authed.PrincipalID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recovery_codes": recoveryCodes})
}

// ----------------------------------------------------------------------------
// OAuth
// ----------------------------------------------------------------------------

func (h *Handlers) oauthStart(c *fiber.Ctx) error {
	tenant, err := tenantFromQuery(c)
	if err != nil {
		return err
	}
	resp, err := h.service.StartOAuth(c.Context(), c.Params("provider"), tenant)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *Handlers) oauthCallback(c *fiber.Ctx) error {
	if providerErr := c.Query("error"); providerErr != "" {
		return errx.Validation("provider returned an error").WithDetail("provider_error", providerErr)
	}
	resp, err := h.service.CompleteOAuthCallback(c.Context(), c.Params("provider"), c.Query("state"), c.Query("code"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

type oauthExchangeRequest struct {
	ExchangeCode string `json:"exchange_code"`
}

func (h *Handlers) oauthExchange(c *fiber.Ctx) error {
	var req oauthExchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	result, err := h.service.ExchangeOAuthCode(c.Context(), req.ExchangeCode)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handlers) oauthConnections(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	connections, err := h.service.OAuth().Connections(c.Context(), authed.PrincipalID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"connections": connections})
}

func (h *Handlers) oauthUnlink(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	if err := h.service.OAuth().Unlink(c.Context(), authed.PrincipalID, c.Params("provider")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ----------------------------------------------------------------------------
// Roles
// ----------------------------------------------------------------------------

func (h *Handlers) listRoles(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}
	page, err := h.rbac.ListRoles(c.Context(), authed.Tenant, opts)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *Handlers) createRole(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	var req rbacsrv.CreateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	role, err := h.rbac.CreateRole(c.Context(), authed.Tenant, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(role)
}

func (h *Handlers) getRole(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	role, err := h.rbac.GetRole(c.Context(), kernel.NewRoleID(c.Params("id")), authed.Tenant)
	if err != nil {
		return err
	}
	return c.JSON(role)
}

func (h *Handlers) updateRole(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	var req rbacsrv.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	role, err := h.rbac.UpdateRole(c.Context(), kernel.NewRoleID(c.Params("id")), authed.Tenant, req)
	if err != nil {
		return err
	}
	return c.JSON(role)
}

func (h *Handlers) deleteRole(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	if err := h.rbac.DeleteRole(c.Context(), kernel.NewRoleID(c.Params("id")), authed.Tenant); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type assignRoleRequest struct {
	PrincipalID string `json:"principal_id"`
}

func (h *Handlers) assignRole(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	var req assignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	if err := h.rbac.AssignRole(c.Context(), kernel.NewPrincipalID(req.PrincipalID), kernel.NewRoleID(c.Params("id")), authed.Tenant); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) unassignRole(c *fiber.Ctx) error {
	authed := auth.FromContext(c)
	if err := h.rbac.UnassignRole(c.Context(), kernel.NewPrincipalID(c.Params("principal_id")), kernel.NewRoleID(c.Params("id")), authed.Tenant); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func tenantFromQuery(c *fiber.Ctx) (kernel.TenantRef, error) {
	tenantType := kernel.TenantType(c.Query("tenant_type", string(kernel.TenantProject)))
	if !tenantType.IsValid() {
		return kernel.TenantRef{}, errx.Validation("unknown tenant_type")
	}
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		return kernel.TenantRef{}, errx.Validation("tenant_id is required")
	}
	return kernel.TenantRef{Type: tenantType, ID: tenantID}, nil
}
