package token

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/veridian-id/veridian/pkg/config"
	"github.com/veridian-id/veridian/pkg/kernel"
)

// Codec signs and validates access tokens. The keypair is loaded once and
// read-only afterwards, safe for concurrent use.
type Codec struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	keyID      string
	accessTTL  time.Duration
}

// jwtClaims is the wire shape of the claim set.
type jwtClaims struct {
	TenantID    string   `json:"tenant_id"`
	TenantType  string   `json:"tenant_type"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"token_type"`
	jwt.RegisteredClaims
}

// NewCodec builds a codec from raw PEM material.
func NewCodec(privateKeyPEM, publicKeyPEM, issuer, keyID string, accessTTL time.Duration) (*Codec, error) {
	privateKey, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	publicKey, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return newCodec(privateKey, publicKey, issuer, keyID, accessTTL), nil
}

// NewCodecFromConfig builds a codec from the loaded configuration.
func NewCodecFromConfig(cfg *config.JWTConfig) (*Codec, error) {
	return NewCodec(cfg.PrivateKeyPEM, cfg.PublicKeyPEM, cfg.Issuer, cfg.KeyID, cfg.AccessTokenTTL)
}

// NewCodecWithKeys builds a codec from an in-memory keypair, mainly for
// tests.
func NewCodecWithKeys(key *rsa.PrivateKey, issuer, keyID string, accessTTL time.Duration) *Codec {
	return newCodec(key, &key.PublicKey, issuer, keyID, accessTTL)
}

func newCodec(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, issuer, keyID string, accessTTL time.Duration) *Codec {
	if issuer == "" {
		issuer = "veridian"
	}
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	return &Codec{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		keyID:      keyID,
		accessTTL:  accessTTL,
	}
}

// IssueRequest carries everything the caller decides about a new token.
type IssueRequest struct {
	Subject     kernel.PrincipalID
	Tenant      kernel.TenantRef
	Email       string
	Role        string
	Permissions []string
	TTL         time.Duration
}

// Issue signs a new access token. No side effects.
func (c *Codec) Issue(req IssueRequest) (string, error) {
	ttl := req.TTL
	if ttl == 0 {
		ttl = c.accessTTL
	}
	now := time.Now()

	claims := jwtClaims{
		TenantID:    req.Tenant.ID,
		TenantType:  req.Tenant.Type.String(),
		Email:       req.Email,
		Role:        req.Role,
		Permissions: req.Permissions,
		TokenType:   string(TypeAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   req.Subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if c.keyID != "" {
		tok.Header["kid"] = c.keyID
	}

	signed, err := tok.SignedString(c.privateKey)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeGenerationFailed, err)
	}
	return signed, nil
}

// Validate classifies a token as valid, expired or invalid. The three
// outcomes are exhaustive and mutually exclusive; callers branch on Status,
// never on the reason text.
func (c *Codec) Validate(tokenString string) Validation {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.publicKey, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())

	if err != nil {
		// A bad signature always wins over expiry: a tampered token must
		// never look merely expired.
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Validation{Status: StatusInvalid, Reason: "signature verification failed"}
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Validation{Status: StatusExpired, Reason: "token has expired"}
		}
		return Validation{Status: StatusInvalid, Reason: err.Error()}
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return Validation{Status: StatusInvalid, Reason: "unexpected claims shape"}
	}
	if claims.TokenType != string(TypeAccess) {
		return Validation{Status: StatusInvalid, Reason: "not an access token"}
	}
	tenantType := kernel.TenantType(claims.TenantType)
	if !tenantType.IsValid() {
		return Validation{Status: StatusInvalid, Reason: "unknown tenant type"}
	}

	return Validation{
		Status: StatusValid,
		Claims: &Claims{
			Subject:     kernel.NewPrincipalID(claims.Subject),
			Tenant:      kernel.TenantRef{Type: tenantType, ID: claims.TenantID},
			Email:       claims.Email,
			Role:        claims.Role,
			Permissions: claims.Permissions,
			TokenType:   TokenType(claims.TokenType),
			Issuer:      claims.Issuer,
			IssuedAt:    claims.IssuedAt.Time,
			ExpiresAt:   claims.ExpiresAt.Time,
		},
	}
}

// AccessTTL exposes the default access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// PublicKey exposes the verification key for the JWKS document.
func (c *Codec) PublicKey() *rsa.PublicKey { return c.publicKey }
