// Package keys manages the RSA signing key for access tokens: loading or
// generating the keypair, RS256 signing with a stable kid header, and the
// public JWKS document.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Manager holds the process signing keypair. One Manager is constructed in
// main and injected; there is exactly one active key per process.
type Manager struct {
	private *rsa.PrivateKey
	kid     string
}

// Generate creates an ephemeral RSA-2048 keypair. Used in development and
// tests; production loads a persistent key so tokens survive restarts.
func Generate() (*Manager, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return newManager(key)
}

// Load reads an RSA private key from a PEM file. Both PKCS#1
// ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") encodings are accepted.
func Load(path string) (*Manager, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key %s: %w", path, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signing key %s: no PEM block found", path)
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#1 key: %w", err)
		}
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#8 key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key %s: not an RSA key", path)
		}
		key = rsaKey
	default:
		return nil, fmt.Errorf("signing key %s: unsupported PEM type %q", path, block.Type)
	}

	return newManager(key)
}

func newManager(key *rsa.PrivateKey) (*Manager, error) {
	kid, err := computeKID(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Manager{private: key, kid: kid}, nil
}

// computeKID derives the key ID as the base64url SHA-256 of the DER-encoded
// public key. Stable for a given key across restarts.
func computeKID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// WritePEM persists the private key as PKCS#8 PEM, readable only by the
// owner.
func (m *Manager) WritePEM(path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(m.private)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write signing key %s: %w", path, err)
	}
	return nil
}

// KID returns the key ID carried in token headers and the JWKS.
func (m *Manager) KID() string {
	return m.kid
}

// Sign produces a compact RS256 JWT over the given claims with the kid header
// set.
func (m *Manager) Sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = m.kid
	signed, err := tok.SignedString(m.private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerificationKey is a jwt keyfunc for parsing tokens this manager signed.
func (m *Manager) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return &m.private.PublicKey, nil
}

// JWK is a single JSON Web Key as served on the JWKS endpoint.
type JWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the RFC 7517 key set document.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS returns the public key set for /jwks. n and e are base64url-encoded
// big-endian integers.
func (m *Manager) JWKS() JWKSet {
	pub := m.private.PublicKey
	return JWKSet{
		Keys: []JWK{{
			Kty: "RSA",
			Alg: "RS256",
			Use: "sig",
			Kid: m.kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
}
