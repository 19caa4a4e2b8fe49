package iamcontainer

import (
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/veridian-id/veridian/pkg/config"
	"github.com/veridian-id/veridian/pkg/eventx"
	"github.com/veridian-id/veridian/pkg/iam/auth"
	"github.com/veridian-id/veridian/pkg/iam/auth/authapi"
	"github.com/veridian-id/veridian/pkg/iam/auth/authinfra"
	"github.com/veridian-id/veridian/pkg/iam/auth/authsrv"
	"github.com/veridian-id/veridian/pkg/iam/mfa"
	"github.com/veridian-id/veridian/pkg/iam/mfa/mfainfra"
	"github.com/veridian-id/veridian/pkg/iam/mfa/mfasrv"
	"github.com/veridian-id/veridian/pkg/iam/oauth"
	"github.com/veridian-id/veridian/pkg/iam/oauth/oauthinfra"
	"github.com/veridian-id/veridian/pkg/iam/oauth/oauthsrv"
	"github.com/veridian-id/veridian/pkg/iam/principal/principalinfra"
	"github.com/veridian-id/veridian/pkg/iam/rbac/rbacinfra"
	"github.com/veridian-id/veridian/pkg/iam/rbac/rbacsrv"
	"github.com/veridian-id/veridian/pkg/iam/refresh/refreshinfra"
	"github.com/veridian-id/veridian/pkg/iam/refresh/refreshsrv"
	"github.com/veridian-id/veridian/pkg/iam/token"
	"github.com/veridian-id/veridian/pkg/iam/vault"
	"github.com/veridian-id/veridian/pkg/logx"
	"github.com/veridian-id/veridian/pkg/password"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// No hidden globals, no ambient state — everything comes through here.
// ---------------------------------------------------------------------------

type Deps struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Cfg   *config.Config
}

// ---------------------------------------------------------------------------
// Container: the public surface of the identity module.
// Only expose what cmd/ actually needs; repos and infra stay private.
// ---------------------------------------------------------------------------

type Container struct {
	AuthService    *authsrv.AuthService
	RefreshService *refreshsrv.RefreshService
	RBACService    *rbacsrv.RBACService
	Codec          *token.Codec

	Handlers   *authapi.Handlers
	Middleware *auth.Middleware
}

// New constructs the whole identity dependency graph.
// Order matters: infra → repos → services → handlers → middleware.
func New(deps Deps) (*Container, error) {
	logx.Info("🔧 Initializing identity container...")

	cfg := deps.Cfg

	// ── Repositories ─────────────────────────────────────────────────────

	principalRepo := principalinfra.NewPostgresPrincipalRepository(deps.DB)
	refreshLedger := refreshinfra.NewPostgresRefreshLedger(deps.DB)
	roleRepo := rbacinfra.NewPostgresRoleRepository(deps.DB)
	secretRepo := mfainfra.NewPostgresSecretRepository(deps.DB)
	recoveryRepo := mfainfra.NewPostgresRecoveryCodeRepository(deps.DB)
	connectionRepo := oauthinfra.NewPostgresConnectionRepository(deps.DB)

	challengeStore := mfainfra.NewRedisChallengeStore(deps.Redis, cfg.MFA.ChallengeTTL)
	stateStore := oauthinfra.NewRedisStateStore(deps.Redis, cfg.OAuth.StateTTL)
	exchangeStore := oauthinfra.NewRedisExchangeCodeStore(deps.Redis, cfg.OAuth.ExchangeCodeTTL)

	// ── Infrastructure services ──────────────────────────────────────────

	codec, err := token.NewCodecFromConfig(&cfg.JWT)
	if err != nil {
		return nil, err
	}

	secretVault, err := vault.New(cfg.MFA.EncryptionKey)
	if err != nil {
		return nil, err
	}

	var publisher eventx.Publisher
	if cfg.Events.Publisher == "redis" {
		publisher = eventx.NewRedisPublisher(deps.Redis, cfg.Events.Channel)
		logx.Info("  ✅ Publishing security events to Redis")
	} else {
		publisher = eventx.NewConsolePublisher()
		logx.Warn("  ⚠️  Publishing security events to the log only")
	}

	var providers []oauth.Provider
	if cfg.OAuth.Google.Enabled {
		providers = append(providers, oauth.NewGoogleProvider(
			cfg.OAuth.Google.ClientID,
			cfg.OAuth.Google.ClientSecret,
			cfg.OAuth.Google.RedirectURL,
		))
		logx.Info("  ✅ Google OAuth provider enabled")
	}
	if cfg.OAuth.GitHub.Enabled {
		providers = append(providers, oauth.NewGitHubProvider(
			cfg.OAuth.GitHub.ClientID,
			cfg.OAuth.GitHub.ClientSecret,
			cfg.OAuth.GitHub.RedirectURL,
		))
		logx.Info("  ✅ GitHub OAuth provider enabled")
	}

	// ── Domain services ──────────────────────────────────────────────────

	refreshSvc := refreshsrv.NewRefreshService(refreshLedger, publisher, cfg.JWT.RefreshTokenTTL)

	mfaSvc := mfasrv.NewMFAService(
		secretRepo,
		recoveryRepo,
		challengeStore,
		principalRepo,
		secretVault,
		publisher,
		mfa.TOTPConfig{
			Issuer: cfg.MFA.Issuer,
			Digits: cfg.MFA.TOTPDigits,
			Period: cfg.MFA.TOTPPeriod,
			Skew:   cfg.MFA.TOTPSkew,
		},
		cfg.MFA.RecoveryCodeCount,
	)

	oauthSvc := oauthsrv.NewOAuthService(
		providers,
		stateStore,
		exchangeStore,
		connectionRepo,
		principalRepo,
		publisher,
		cfg.OAuth.ExchangeTimeout,
	)

	rbacSvc := rbacsrv.NewRBACService(roleRepo)

	authSvc := authsrv.NewAuthService(
		principalRepo,
		codec,
		refreshSvc,
		mfaSvc,
		oauthSvc,
		rbacSvc,
		password.NewBcryptHasher(cfg.Password.BcryptCost),
		password.PolicyFromConfig(cfg.Password),
		authinfra.NewLogxAuditService(),
	)

	// ── HTTP surface ─────────────────────────────────────────────────────

	middleware := auth.NewMiddleware(codec)
	handlers := authapi.NewHandlers(authSvc, rbacSvc, codec)

	logx.Info("✅ Identity container ready")

	return &Container{
		AuthService:    authSvc,
		RefreshService: refreshSvc,
		RBACService:    rbacSvc,
		Codec:          codec,
		Handlers:       handlers,
		Middleware:     middleware,
	}, nil
}
