package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ResetScope is the scope claim carried by password-reset grants.
const ResetScope = "password_reset"

var (
	// ErrInvalidToken is returned when a grant is malformed, expired, or signed for another issuer or audience.
	ErrInvalidToken = errors.New("invalid token")
)

// ResetClaims holds JWT claims for a short-lived password-reset grant.
type ResetClaims struct {
	jwt.RegisteredClaims
	ProcessID string `json:"process_id"`
	Scope     string `json:"scope"`
}

// ResetGrant is a validated reset grant.
type ResetGrant struct {
	AccountID string
	ProcessID string
	ID        string
	ExpiresAt time.Time
}

// GrantIssuer mints and validates reset grants using RS256 or ES256 (private/public key).
type GrantIssuer struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewGrantIssuer returns a GrantIssuer that signs with privateKey. issuer and audience are set on
// claims and checked on validation.
func NewGrantIssuer(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *GrantIssuer {
	return &GrantIssuer{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}
}

// IssueResetGrant mints a grant for accountID bound to the verified challenge processID.
func (g *GrantIssuer) IssueResetGrant(accountID, processID string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := g.now().UTC()
	expiresAt = now.Add(g.ttl)
	claims := ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			Issuer:    g.issuer,
			Audience:  jwt.ClaimStrings{g.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		ProcessID: processID,
		Scope:     ResetScope,
	}
	token, err = g.sign(claims)
	return token, expiresAt, err
}

// ValidateResetGrant parses and validates a reset grant (signature, exp, iss, aud, scope).
func (g *GrantIssuer) ValidateResetGrant(tokenString string) (*ResetGrant, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ResetClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return g.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return g.publicKey, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*ResetClaims)
	if !ok || !token.Valid || claims.Scope != ResetScope {
		return nil, ErrInvalidToken
	}
	return &ResetGrant{
		AccountID: claims.Subject,
		ProcessID: claims.ProcessID,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (g *GrantIssuer) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch g.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	return jwt.NewWithClaims(method, claims).SignedString(g.privateKey)
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
