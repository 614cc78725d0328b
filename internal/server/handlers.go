package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/auth"
	"github.com/desertthunder/chorus/internal/services"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/tasks"
)

// SpotifyClient is the upstream surface the API handlers drive. Implemented
// by [services.SpotifyService]; faked in tests.
type SpotifyClient interface {
	services.Searcher

	Profile(ctx context.Context) (*services.SpotifyUser, error)
	Playlists(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedPlaylists, error)
	PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*services.SpotifyPaginatedPlaylistTracks, error)
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*services.SpotifySimplePlaylist, error)
	UpdatePlaylist(ctx context.Context, playlistID, name, description string) error
	UnfollowPlaylist(ctx context.Context, playlistID string) error
	AddTracks(ctx context.Context, playlistID string, uris []string) error
	RemoveTracks(ctx context.Context, playlistID string, uris []string) error
	SavedTracks(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedTracks, error)
	SaveTracks(ctx context.Context, trackIDs []string) error
	RemoveSavedTracks(ctx context.Context, trackIDs []string) error
	Search(ctx context.Context, query, types string, limit int) (*services.SearchResults, error)
	Devices(ctx context.Context) ([]services.SpotifyDevice, error)
	Play(ctx context.Context, deviceID, contextURI string, uris []string) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

// SpotifyFactory builds a per-request upstream client from the verified
// caller's access token.
type SpotifyFactory func(accessToken string) SpotifyClient

// APIHandler serves the resource endpoints: profile, playlists, liked songs,
// search, playback, and playlist generation. Every route expects a verified
// identity in the request context (see [RequireAuth]).
type APIHandler struct {
	mux      *http.ServeMux
	spotify  SpotifyFactory
	engine   *tasks.GeneratorEngine
	sessions SessionStore
	logger   *log.Logger
}

// NewAPIHandler creates the resource handler. A nil factory uses the real
// Spotify client; sessions may be nil when no session layer is wired.
func NewAPIHandler(engine *tasks.GeneratorEngine, sessions SessionStore, spotify SpotifyFactory, logger *log.Logger) *APIHandler {
	if spotify == nil {
		spotify = func(accessToken string) SpotifyClient {
			return services.NewSpotifyService(accessToken)
		}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	h := &APIHandler{
		mux:      http.NewServeMux(),
		spotify:  spotify,
		engine:   engine,
		sessions: sessions,
		logger:   logger,
	}
	h.routes()
	return h
}

func (h *APIHandler) routes() {
	h.mux.HandleFunc("GET /api/auth/verify", h.verify)
	h.mux.HandleFunc("POST /api/auth/logout", h.logout)

	h.mux.HandleFunc("GET /api/me", h.me)

	h.mux.HandleFunc("GET /api/playlists", h.listPlaylists)
	h.mux.HandleFunc("POST /api/playlists", h.createPlaylist)
	h.mux.HandleFunc("POST /api/playlists/generate", h.generatePlaylist)
	h.mux.HandleFunc("PUT /api/playlists/{id}", h.updatePlaylist)
	h.mux.HandleFunc("DELETE /api/playlists/{id}", h.deletePlaylist)
	h.mux.HandleFunc("GET /api/playlists/{id}/tracks", h.playlistTracks)
	h.mux.HandleFunc("POST /api/playlists/{id}/tracks", h.addPlaylistTracks)
	h.mux.HandleFunc("DELETE /api/playlists/{id}/tracks", h.removePlaylistTracks)

	h.mux.HandleFunc("GET /api/tracks/liked", h.likedTracks)
	h.mux.HandleFunc("POST /api/tracks/liked", h.saveTracks)
	h.mux.HandleFunc("DELETE /api/tracks/liked", h.removeSavedTracks)

	h.mux.HandleFunc("GET /api/search", h.search)

	h.mux.HandleFunc("GET /api/player/devices", h.devices)
	h.mux.HandleFunc("PUT /api/player/play", h.play)
	h.mux.HandleFunc("PUT /api/player/pause", h.pause)
	h.mux.HandleFunc("POST /api/player/next", h.next)
	h.mux.HandleFunc("POST /api/player/previous", h.previous)
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/api/"}
}

// ServeHTTP implements [http.Handler] by delegating to the internal mux.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// client rebuilds the per-request upstream client from the verified identity.
func (h *APIHandler) client(r *http.Request) (SpotifyClient, *auth.Identity, bool) {
	identity, _, ok := IdentityFromContext(r.Context())
	if !ok {
		return nil, nil, false
	}
	return h.spotify(identity.AccessToken), identity, true
}

// pagination reads limit/offset query parameters with upstream defaults.
func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *APIHandler) verify(w http.ResponseWriter, r *http.Request) {
	_, method, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "method": method})
}

// logout clears the session side when a store is wired. Bearer credentials
// are stateless and cannot be revoked server-side.
func (h *APIHandler) logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		h.sessions.Clear(w, r)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) me(w http.ResponseWriter, r *http.Request) {
	client, identity, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	profile, err := client.Profile(r.Context())
	if err != nil {
		writeOperationError(w, "fetch profile", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          identity.UserID,
		"spotifyId":   profile.ID,
		"displayName": profile.DisplayName,
		"email":       profile.Email,
		"country":     profile.Country,
		"product":     profile.Product,
		"images":      profile.Images,
	})
}

func (h *APIHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	limit, offset := pagination(r)
	page, err := client.Playlists(r.Context(), limit, offset)
	if err != nil {
		writeOperationError(w, "list playlists", err)
		return
	}

	items := make([]services.Playlist, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, services.Playlist{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			TrackCount:  item.Tracks.Total,
			Public:      item.Public,
			URI:         item.URI,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (h *APIHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Public      *bool  `json:"public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "create playlist", "name is required")
		return
	}

	// Visibility defaults to private when unspecified.
	public := body.Public != nil && *body.Public

	playlist, err := client.CreatePlaylist(r.Context(), body.Name, body.Description, public)
	if err != nil {
		writeOperationError(w, "create playlist", err)
		return
	}

	writeJSON(w, http.StatusCreated, services.Playlist{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Description: playlist.Description,
		TrackCount:  playlist.Tracks.Total,
		Public:      playlist.Public,
		URI:         playlist.URI,
	})
}

func (h *APIHandler) updatePlaylist(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "update playlist", "invalid body")
		return
	}

	if err := client.UpdatePlaylist(r.Context(), r.PathValue("id"), body.Name, body.Description); err != nil {
		writeOperationError(w, "update playlist", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := client.UnfollowPlaylist(r.Context(), r.PathValue("id")); err != nil {
		writeOperationError(w, "delete playlist", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) playlistTracks(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	limit, offset := pagination(r)
	page, err := client.PlaylistTracks(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeOperationError(w, "playlist tracks", err)
		return
	}

	items := make([]services.Track, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, item.Track.AsTrack())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// trackURIs decodes a body of the form {"uris": [...]}, rejecting absent or
// non-array values before anything reaches upstream.
func trackURIs(r *http.Request, field string) ([]string, bool) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, false
	}

	raw, present := body[field]
	if !present {
		return nil, false
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	return values, true
}

func (h *APIHandler) addPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	uris, ok := trackURIs(r, "uris")
	if !ok || len(uris) == 0 {
		writeError(w, http.StatusBadRequest, "add tracks", "uris must be a non-empty array")
		return
	}

	if err := client.AddTracks(r.Context(), r.PathValue("id"), uris); err != nil {
		writeOperationError(w, "add tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) removePlaylistTracks(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	uris, ok := trackURIs(r, "uris")
	if !ok || len(uris) == 0 {
		writeError(w, http.StatusBadRequest, "remove tracks", "uris must be a non-empty array")
		return
	}

	if err := client.RemoveTracks(r.Context(), r.PathValue("id"), uris); err != nil {
		writeOperationError(w, "remove tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) likedTracks(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	limit, offset := pagination(r)
	page, err := client.SavedTracks(r.Context(), limit, offset)
	if err != nil {
		writeOperationError(w, "liked tracks", err)
		return
	}

	items := make([]services.Track, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, item.Track.AsTrack())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (h *APIHandler) saveTracks(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ids, ok := trackURIs(r, "trackIds")
	if !ok || len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "save tracks", "trackIds must be a non-empty array")
		return
	}

	if err := client.SaveTracks(r.Context(), ids); err != nil {
		writeOperationError(w, "save tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) removeSavedTracks(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	ids, ok := trackURIs(r, "trackIds")
	if !ok || len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "remove liked tracks", "trackIds must be a non-empty array")
		return
	}

	if err := client.RemoveSavedTracks(r.Context(), ids); err != nil {
		writeOperationError(w, "remove liked tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) search(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	results, err := client.Search(r.Context(), query.Get("q"), query.Get("type"), limit)
	if err != nil {
		writeOperationError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) generatePlaylist(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var body struct {
		Prompt    string `json:"prompt"`
		SongCount int    `json:"songCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "generate playlist", "invalid body")
		return
	}

	playlist, err := h.engine.Generate(r.Context(), client, body.Prompt, body.SongCount)
	if err != nil {
		writeOperationError(w, "generate playlist", err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (h *APIHandler) devices(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	devices, err := client.Devices(r.Context())
	if err != nil {
		writeOperationError(w, "player devices", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (h *APIHandler) play(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var body struct {
		DeviceID   string   `json:"deviceId"`
		ContextURI string   `json:"contextUri"`
		URIs       []string `json:"uris"`
	}
	// An empty body resumes playback on the active device.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := client.Play(r.Context(), body.DeviceID, body.ContextURI, body.URIs); err != nil {
		writeOperationError(w, "play", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) pause(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := client.Pause(r.Context()); err != nil {
		writeOperationError(w, "pause", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) next(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := client.Next(r.Context()); err != nil {
		writeOperationError(w, "next", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *APIHandler) previous(w http.ResponseWriter, r *http.Request) {
	client, _, ok := h.client(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := client.Previous(r.Context()); err != nil {
		writeOperationError(w, "previous", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
