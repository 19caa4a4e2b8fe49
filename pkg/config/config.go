package config

import (
	"fmt"
	"time"
)

// Config is the full application configuration, loaded once from the
// environment at startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OAuth    OAuthConfig
	MFA      MFAConfig
	Password PasswordConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig carries the RS256 signing material and token lifetimes.
// Keys are PEM blocks; escaped newlines are tolerated so keys can be passed
// through environment variables.
type JWTConfig struct {
	PrivateKeyPEM   string
	PublicKeyPEM    string
	Issuer          string
	KeyID           string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// OAuthProviderConfig configures one upstream identity provider.
type OAuthProviderConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type OAuthConfig struct {
	Google          OAuthProviderConfig
	GitHub          OAuthProviderConfig
	StateTTL        time.Duration
	ExchangeCodeTTL time.Duration
	ExchangeTimeout time.Duration
}

type MFAConfig struct {
	// EncryptionKey is the base64-encoded 32-byte AES key protecting TOTP
	// secrets at rest.
	EncryptionKey     string
	Issuer            string
	TOTPDigits        int
	TOTPPeriod        int
	TOTPSkew          int
	RecoveryCodeCount int
	ChallengeTTL      time.Duration
}

type PasswordConfig struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	MinUniqueChars   int
	BcryptCost       int
}

type EventsConfig struct {
	// Publisher selects the event sink: "redis" or "console".
	Publisher string
	Channel   string
}

// Load reads the whole configuration from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvInt("SERVER_PORT", 8080),
			CORSOrigins: getEnvStringSlice("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "veridian"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "veridian"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			PrivateKeyPEM:   getEnv("JWT_PRIVATE_KEY", ""),
			PublicKeyPEM:    getEnv("JWT_PUBLIC_KEY", ""),
			Issuer:          getEnv("JWT_ISSUER", "veridian"),
			KeyID:           getEnv("JWT_KEY_ID", "veridian-1"),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		OAuth: OAuthConfig{
			Google: OAuthProviderConfig{
				Enabled:      getEnvBool("OAUTH_GOOGLE_ENABLED", false),
				ClientID:     getEnv("OAUTH_GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("OAUTH_GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("OAUTH_GOOGLE_REDIRECT_URL", ""),
			},
			GitHub: OAuthProviderConfig{
				Enabled:      getEnvBool("OAUTH_GITHUB_ENABLED", false),
				ClientID:     getEnv("OAUTH_GITHUB_CLIENT_ID", ""),
				ClientSecret: getEnv("OAUTH_GITHUB_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("OAUTH_GITHUB_REDIRECT_URL", ""),
			},
			StateTTL:        getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
			ExchangeCodeTTL: getEnvDuration("OAUTH_EXCHANGE_CODE_TTL", 60*time.Second),
			ExchangeTimeout: getEnvDuration("OAUTH_EXCHANGE_TIMEOUT", 10*time.Second),
		},
		MFA: MFAConfig{
			EncryptionKey:     getEnv("MFA_ENCRYPTION_KEY", ""),
			Issuer:            getEnv("MFA_ISSUER", "Veridian"),
			TOTPDigits:        getEnvInt("MFA_TOTP_DIGITS", 6),
			TOTPPeriod:        getEnvInt("MFA_TOTP_PERIOD", 30),
			TOTPSkew:          getEnvInt("MFA_TOTP_SKEW", 1),
			RecoveryCodeCount: getEnvInt("MFA_RECOVERY_CODE_COUNT", 10),
			ChallengeTTL:      getEnvDuration("MFA_CHALLENGE_TTL", 5*time.Minute),
		},
		Password: PasswordConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			MaxLength:        getEnvInt("PASSWORD_MAX_LENGTH", 128),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", true),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", true),
			RequireDigit:     getEnvBool("PASSWORD_REQUIRE_DIGIT", true),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", true),
			MinUniqueChars:   getEnvInt("PASSWORD_MIN_UNIQUE_CHARS", 4),
			BcryptCost:       getEnvInt("PASSWORD_BCRYPT_COST", 12),
		},
		Events: EventsConfig{
			Publisher: getEnv("EVENTS_PUBLISHER", "console"),
			Channel:   getEnv("EVENTS_CHANNEL", "veridian.events"),
		},
	}
}
