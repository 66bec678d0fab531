package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"time"
)

// GenerateTestKeyPEM returns a fresh ECDSA P-256 pair as PKCS#8 and PKIX PEM. For tests only.
func GenerateTestKeyPEM() (privatePEM, publicPEM string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return "", "", err
	}
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return privatePEM, publicPEM, nil
}

// NewTestGrantIssuer returns a GrantIssuer over a generated ES256 key pair with a 10 minute TTL.
// For unit tests only.
func NewTestGrantIssuer() (*GrantIssuer, error) {
	privPEM, pubPEM, err := GenerateTestKeyPEM()
	if err != nil {
		return nil, err
	}
	signer, pub, err := LoadKeyPair(privPEM, pubPEM)
	if err != nil {
		return nil, err
	}
	return NewGrantIssuer(signer, pub, "test-issuer", "test-audience", 10*time.Minute), nil
}
