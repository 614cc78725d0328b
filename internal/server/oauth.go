package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/auth"
	"github.com/desertthunder/chorus/internal/models"
	"github.com/desertthunder/chorus/internal/services"
	"github.com/desertthunder/chorus/internal/shared"
	"golang.org/x/oauth2"
)

const stateCookieName = "chorus_oauth_state"

// CodeExchanger abstracts the authorization-code flow for testing.
type CodeExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// UserStore persists caller identities resolved at login completion.
type UserStore interface {
	Upsert(spotifyID, email, displayName string) (*models.User, error)
}

// OAuthHandler drives the federated login handshake: a login redirect out to
// the provider and a callback that exchanges the code, records the user, and
// issues the bearer credential.
//
// The issuance endpoint is reachable only as the terminal step of this
// handshake; the credential returns to the browser as a URL parameter on the
// front-end redirect.
type OAuthHandler struct {
	exchanger   CodeExchanger
	users       UserStore
	issuer      *auth.Issuer
	frontendURL string
	logger      *log.Logger

	// fetchProfile resolves the upstream profile for a fresh access token.
	// Overridable in tests.
	fetchProfile func(ctx context.Context, accessToken string) (*services.SpotifyUser, error)
}

// NewOAuthHandler creates the login/callback handler.
func NewOAuthHandler(exchanger CodeExchanger, users UserStore, issuer *auth.Issuer, frontendURL string, logger *log.Logger) *OAuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &OAuthHandler{
		exchanger:   exchanger,
		users:       users,
		issuer:      issuer,
		frontendURL: frontendURL,
		logger:      logger,
		fetchProfile: func(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
			return services.NewSpotifyService(accessToken).Profile(ctx)
		},
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /auth/login", "GET /auth/callback"}
}

// ServeHTTP dispatches between the login redirect and the callback.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login":
		h.login(w, r)
	case "/auth/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login sets a fresh state cookie and redirects to the provider.
func (h *OAuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(10 * time.Minute),
	})

	http.Redirect(w, r, h.exchanger.AuthURL(state), http.StatusFound)
}

// callback validates state, exchanges the code, records the user, and
// redirects back to the front end with the issued credential attached.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		h.logger.Warn("oauth callback with bad state")
		writeError(w, http.StatusBadRequest, "login failed", shared.ErrStateMismatch.Error())
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/auth", MaxAge: -1})

	code := query.Get("code")
	if code == "" {
		errParam := query.Get("error")
		h.logger.Warn("oauth callback without code", "error", errParam)
		writeError(w, http.StatusBadRequest, "login failed",
			fmt.Sprintf("authorization failed: %s", errParam))
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed", err.Error())
		return
	}

	profile, err := h.fetchProfile(r.Context(), token.AccessToken)
	if err != nil {
		h.logger.Error("profile fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed", err.Error())
		return
	}

	user, err := h.users.Upsert(profile.ID, profile.Email, profile.DisplayName)
	if err != nil {
		h.logger.Error("user upsert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed", err.Error())
		return
	}

	credential, err := h.issuer.Issue(auth.Identity{
		UserID:       user.ID(),
		Email:        user.Email(),
		DisplayName:  user.DisplayName(),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	})
	if err != nil {
		h.logger.Error("credential issuance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed", err.Error())
		return
	}

	h.logger.Info("login completed", "user", user.ID())

	redirect := h.frontendURL + "?token=" + url.QueryEscape(credential)
	http.Redirect(w, r, redirect, http.StatusFound)
}
