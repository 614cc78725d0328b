package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/chorus/internal/models"
	"github.com/desertthunder/chorus/internal/services"
	"golang.org/x/oauth2"
)

// stubExchanger satisfies CodeExchanger without touching the network.
type stubExchanger struct {
	token *oauth2.Token
	err   error

	gotCode string
}

func (s *stubExchanger) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (s *stubExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	s.gotCode = code
	return s.token, s.err
}

// stubUserStore records upserts and returns a fixed user.
type stubUserStore struct {
	upserts int
	err     error
}

func (s *stubUserStore) Upsert(spotifyID, email, displayName string) (*models.User, error) {
	s.upserts++
	if s.err != nil {
		return nil, s.err
	}
	user := models.NewUser(1, spotifyID, email, displayName)
	user.SetID("local-user-1")
	return user, nil
}

func newOAuthHandler(t *testing.T, exchanger *stubExchanger, users *stubUserStore) *OAuthHandler {
	t.Helper()
	handler := NewOAuthHandler(exchanger, users, newTestIssuer(t), "http://localhost:3000/callback", nil)
	handler.fetchProfile = func(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
		return &services.SpotifyUser{ID: "spotify-9", Email: "u@example.com", DisplayName: "U"}, nil
	}
	return handler
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Login Sets State And Redirects", func(t *testing.T) {
		handler := newOAuthHandler(t, &stubExchanger{}, &stubUserStore{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

		if w.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", w.Code)
		}

		var state string
		for _, cookie := range w.Result().Cookies() {
			if cookie.Name == stateCookieName {
				state = cookie.Value
				if !cookie.HttpOnly {
					t.Error("expected HttpOnly state cookie")
				}
			}
		}
		if state == "" {
			t.Fatal("expected state cookie to be set")
		}

		location := w.Header().Get("Location")
		if !strings.Contains(location, "state="+url.QueryEscape(state)) {
			t.Errorf("expected redirect to carry the cookie state, got %s", location)
		}
	})

	t.Run("Callback", func(t *testing.T) {
		t.Run("State Mismatch", func(t *testing.T) {
			exchanger := &stubExchanger{}
			users := &stubUserStore{}
			handler := newOAuthHandler(t, exchanger, users)

			r := httptest.NewRequest(http.MethodGet, "/auth/callback?state=other&code=abc", nil)
			r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "expected"})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if exchanger.gotCode != "" {
				t.Error("expected no exchange on state mismatch")
			}
			if users.upserts != 0 {
				t.Error("expected no upsert on state mismatch")
			}
		})

		t.Run("Missing Cookie", func(t *testing.T) {
			handler := newOAuthHandler(t, &stubExchanger{}, &stubUserStore{})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?state=abc&code=xyz", nil))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})

		t.Run("Provider Denied", func(t *testing.T) {
			handler := newOAuthHandler(t, &stubExchanger{}, &stubUserStore{})

			r := httptest.NewRequest(http.MethodGet, "/auth/callback?state=s1&error=access_denied", nil)
			r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s1"})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), "access_denied") {
				t.Errorf("expected provider error in details, got %s", w.Body.String())
			}
		})

		t.Run("Exchange Failure", func(t *testing.T) {
			exchanger := &stubExchanger{err: errors.New("invalid_grant")}
			handler := newOAuthHandler(t, exchanger, &stubUserStore{})

			r := httptest.NewRequest(http.MethodGet, "/auth/callback?state=s1&code=bad", nil)
			r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s1"})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != http.StatusInternalServerError {
				t.Errorf("expected 500, got %d", w.Code)
			}
		})

		t.Run("Completes And Issues Credential", func(t *testing.T) {
			exchanger := &stubExchanger{
				token: &oauth2.Token{AccessToken: "spotify-access", RefreshToken: "spotify-refresh"},
			}
			users := &stubUserStore{}
			handler := newOAuthHandler(t, exchanger, users)

			r := httptest.NewRequest(http.MethodGet, "/auth/callback?state=s1&code=good", nil)
			r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "s1"})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
			}
			if exchanger.gotCode != "good" {
				t.Errorf("expected code exchanged, got %q", exchanger.gotCode)
			}
			if users.upserts != 1 {
				t.Errorf("expected one upsert, got %d", users.upserts)
			}

			location, err := url.Parse(w.Header().Get("Location"))
			if err != nil {
				t.Fatalf("failed to parse redirect: %v", err)
			}
			if !strings.HasPrefix(location.String(), "http://localhost:3000/callback") {
				t.Errorf("expected front-end redirect, got %s", location)
			}

			credential := location.Query().Get("token")
			if credential == "" {
				t.Fatal("expected credential in redirect")
			}

			identity, err := newTestIssuer(t).Verify(credential)
			if err != nil {
				t.Fatalf("expected verifiable credential, got %v", err)
			}
			if identity.UserID != "local-user-1" || identity.AccessToken != "spotify-access" {
				t.Errorf("unexpected identity %+v", identity)
			}
			if identity.RefreshToken != "spotify-refresh" {
				t.Errorf("expected refresh token carried, got %q", identity.RefreshToken)
			}

			// The state cookie is consumed by a successful callback.
			for _, cookie := range w.Result().Cookies() {
				if cookie.Name == stateCookieName && cookie.MaxAge >= 0 {
					t.Error("expected state cookie to be cleared")
				}
			}
		})
	})
}
