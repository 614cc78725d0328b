package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/chorus/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the validity window for issued credentials.
const DefaultTTL = 7 * 24 * time.Hour

// NowFunc returns the current time. It can be overridden in tests.
var NowFunc = time.Now

// Claims is the typed payload of an issued credential.
//
// Subject (from [jwt.RegisteredClaims]) holds the internal user ID. The
// upstream tokens ride inside the credential so each request can rebuild an
// upstream client without server-side session state.
type Claims struct {
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"name,omitempty"`
	AccessToken  string `json:"spotify_access_token"`
	RefreshToken string `json:"spotify_refresh_token,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller identity extracted from a credential.
type Identity struct {
	UserID       string
	Email        string
	DisplayName  string
	AccessToken  string
	RefreshToken string
}

// Issuer mints and verifies credentials with a symmetric signing secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. An empty secret is a configuration error and
// must abort startup, not be discovered per-request.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: auth secret is required", shared.ErrInvalidConfig)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the validity window applied to issued credentials.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed credential for the given identity and upstream tokens.
func (i *Issuer) Issue(identity Identity) (string, error) {
	if identity.UserID == "" {
		return "", fmt.Errorf("%w: identity is required", shared.ErrInvalidArgument)
	}

	now := NowFunc()
	claims := Claims{
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		AccessToken:  identity.AccessToken,
		RefreshToken: identity.RefreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a credential, returning the caller identity.
//
// Signature, signing method, and expiry are always checked. There is no
// decode-only variant: callers that need the embedded upstream tokens get
// them from the verified result.
func (i *Issuer) Verify(credential string) (*Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: empty credential", shared.ErrUnauthorized)
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return NowFunc() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: credential missing subject", shared.ErrTokenInvalid)
	}

	return &Identity{
		UserID:       claims.Subject,
		Email:        claims.Email,
		DisplayName:  claims.DisplayName,
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
	}, nil
}
