package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
)

// ParsePrivateKey decodes a PKCS#8 or PKCS#1 RSA private key from a PEM
// block. Escaped newlines are tolerated so keys survive being passed
// through environment variables.
func ParsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(normalizePEM(pemData)))
	if block == nil {
		return nil, ErrRegistry.New(CodeInvalidKeypair).WithDetail("reason", "no PEM block found")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrRegistry.New(CodeInvalidKeypair).WithDetail("reason", "not an RSA key")
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeInvalidKeypair, err)
	}
	return key, nil
}

// ParsePublicKey decodes a PKIX RSA public key from a PEM block.
func ParsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(normalizePEM(pemData)))
	if block == nil {
		return nil, ErrRegistry.New(CodeInvalidKeypair).WithDetail("reason", "no PEM block found")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeInvalidKeypair, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, ErrRegistry.New(CodeInvalidKeypair).WithDetail("reason", "not an RSA key")
	}
	return rsaKey, nil
}

// GenerateKeypair creates a fresh RSA keypair, mainly for tests and local
// development.
func GenerateKeypair(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeInvalidKeypair, err)
	}
	return key, nil
}

// MarshalPrivateKey renders a private key as a PKCS#8 PEM block.
func MarshalPrivateKey(key *rsa.PrivateKey) string {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return ""
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// MarshalPublicKey renders a public key as a PKIX PEM block.
func MarshalPublicKey(key *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return ""
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func normalizePEM(pemData string) string {
	return strings.ReplaceAll(pemData, `\n`, "\n")
}
