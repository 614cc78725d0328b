package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/chorus/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

func testIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("test-secret", DefaultTTL)
	if err != nil {
		t.Fatalf("expected issuer, got error %v", err)
	}
	return issuer
}

func TestIssuer(t *testing.T) {
	identity := Identity{
		UserID:       "user-123",
		Email:        "listener@example.com",
		DisplayName:  "Listener",
		AccessToken:  "spotify-access",
		RefreshToken: "spotify-refresh",
	}

	t.Run("NewIssuer", func(t *testing.T) {
		t.Run("Missing Secret", func(t *testing.T) {
			if _, err := NewIssuer("", DefaultTTL); err == nil {
				t.Error("expected error for empty secret")
			}
		})

		t.Run("Default TTL", func(t *testing.T) {
			issuer, err := NewIssuer("secret", 0)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if issuer.TTL() != DefaultTTL {
				t.Errorf("expected default TTL %v, got %v", DefaultTTL, issuer.TTL())
			}
		})
	})

	t.Run("Issue", func(t *testing.T) {
		issuer := testIssuer(t)

		t.Run("Round Trip", func(t *testing.T) {
			credential, err := issuer.Issue(identity)
			if err != nil {
				t.Fatalf("expected credential, got %v", err)
			}

			verified, err := issuer.Verify(credential)
			if err != nil {
				t.Fatalf("expected valid credential, got %v", err)
			}

			if verified.UserID != identity.UserID {
				t.Errorf("expected subject %s, got %s", identity.UserID, verified.UserID)
			}
			if verified.AccessToken != identity.AccessToken {
				t.Errorf("expected access token to round trip, got %s", verified.AccessToken)
			}
			if verified.RefreshToken != identity.RefreshToken {
				t.Errorf("expected refresh token to round trip, got %s", verified.RefreshToken)
			}
		})

		t.Run("Missing Identity", func(t *testing.T) {
			if _, err := issuer.Issue(Identity{AccessToken: "tok"}); err == nil {
				t.Error("expected error for empty identity")
			}
		})
	})

	t.Run("Verify", func(t *testing.T) {
		issuer := testIssuer(t)

		t.Run("Empty Credential", func(t *testing.T) {
			if _, err := issuer.Verify(""); !errors.Is(err, shared.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})

		t.Run("Malformed Credential", func(t *testing.T) {
			if _, err := issuer.Verify("not.a.jwt"); !errors.Is(err, shared.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid, got %v", err)
			}
		})

		t.Run("Expired Credential", func(t *testing.T) {
			NowFunc = func() time.Time { return time.Now().Add(-14 * 24 * time.Hour) }
			credential, err := issuer.Issue(identity)
			NowFunc = time.Now
			if err != nil {
				t.Fatalf("expected credential, got %v", err)
			}

			if _, err := issuer.Verify(credential); !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired for correctly signed but expired credential, got %v", err)
			}
		})

		t.Run("Tampered Signature", func(t *testing.T) {
			credential, err := issuer.Issue(identity)
			if err != nil {
				t.Fatalf("expected credential, got %v", err)
			}

			parts := strings.Split(credential, ".")
			if len(parts) != 3 {
				t.Fatalf("expected three JWT segments, got %d", len(parts))
			}
			tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

			if _, err := issuer.Verify(tampered); !errors.Is(err, shared.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid for tampered credential, got %v", err)
			}
		})

		t.Run("Wrong Secret", func(t *testing.T) {
			other, err := NewIssuer("another-secret", DefaultTTL)
			if err != nil {
				t.Fatalf("expected issuer, got %v", err)
			}
			credential, err := other.Issue(identity)
			if err != nil {
				t.Fatalf("expected credential, got %v", err)
			}

			if _, err := issuer.Verify(credential); !errors.Is(err, shared.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid for foreign signature, got %v", err)
			}
		})

		t.Run("Unsigned Credential", func(t *testing.T) {
			token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
				AccessToken: "stolen",
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "user-123",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			})
			unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			if err != nil {
				t.Fatalf("expected unsigned token, got %v", err)
			}

			if _, err := issuer.Verify(unsigned); !errors.Is(err, shared.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid for alg=none credential, got %v", err)
			}
		})

		t.Run("Missing Subject", func(t *testing.T) {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
				AccessToken: "tok",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			})
			signed, err := token.SignedString([]byte("test-secret"))
			if err != nil {
				t.Fatalf("expected token, got %v", err)
			}

			if _, err := issuer.Verify(signed); !errors.Is(err, shared.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid for missing subject, got %v", err)
			}
		})
	})
}
