// Package iam (Identity and Access Management) provides authentication,
// authorization, and multi-tenant principal management for the platform.
//
// # Overview
//
// The iam package is organized into sub-packages that work together to
// provide the full identity core:
//
//   - iam/auth      — session orchestration, fiber middleware, HTTP handlers
//   - iam/principal — principal entity (org members and end users)
//   - iam/token     — RS256 access token codec and JWKS document
//   - iam/refresh   — single-use refresh token ledger with reuse detection
//   - iam/mfa       — TOTP enrollment, recovery codes, login challenges
//   - iam/oauth     — authorization-code + PKCE broker for Google and GitHub
//   - iam/rbac      — role storage and permission resolution
//   - iam/vault     — AES-256-GCM encryption for TOTP secrets at rest
//
// # Architecture
//
// Each sub-domain follows the same layered layout:
//
//	HTTP Handler  →  Service Layer  →  Repository Interface  →  Infrastructure (Postgres/Redis)
//
// Domain types and repository interfaces live in the domain package, the
// service in <domain>srv, and the Postgres/Redis adapters in <domain>infra.
// Every sub-domain exposes its own error registry (e.g. "AUTH", "REFRESH",
// "MFA") with stable machine codes.
//
// # Authentication Methods
//
// Three ways into a session, all producing the same token pair:
//
//  1. Password — bcrypt-verified credentials with a configurable policy.
//
//  2. OAuth — Google or GitHub authorization-code flow with PKCE. The
//     callback mints a single-use exchange code the frontend swaps for
//     tokens, so tokens never ride on a redirect URL.
//
//  3. MFA step-up — principals with TOTP enabled receive a single-use
//     challenge token after the first factor and finish the login with a
//     code or a recovery code.
//
// # Multi-Tenancy
//
// Every principal belongs to exactly one tenant, either an organization
// (staff) or a project (application end-users). The same email can exist
// independently in different tenants. Every tenant-scoped read and write
// carries a kernel.TenantRef; cross-tenant access is a correctness
// violation, not a policy decision.
//
// # Tokens
//
// Access tokens are short-lived RS256 JWTs carrying the principal's tenant,
// role and resolved permissions. The public key is served as a JWKS
// document so other services can verify tokens without calling back.
// Refresh tokens are opaque, stored hashed, and strictly single-use:
// redeeming one rotates it, and redeeming it twice revokes every session of
// the principal.
//
// # Permissions
//
// Authorization is permission-based. Permissions follow the pattern
// "resource:action" (e.g. "documents:read"); the wildcard action
// "resource:*" grants every action on the resource. Roles bundle
// permissions per tenant and a principal's effective set is the union over
// its assigned roles.
//
// # Middleware
//
// auth.Middleware validates Bearer tokens (with an access_token cookie
// fallback) and stores the authenticated identity in the request context.
// RequirePermission gates route groups on a single permission:
//
//	api := app.Group("/api", mw.RequireAuth())
//	api.Post("/roles", mw.RequirePermission("roles:write"), createRole)
//
// Read the identity inside a handler with auth.FromContext(c).
package iam
