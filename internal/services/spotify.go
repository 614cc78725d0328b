// Spotify Web API client.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/chorus/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// One attempt per upstream call; a slow upstream is reported, not waited out.
	spotifyTimeout = 10 * time.Second
)

// spotifyScopes covers profile, playlist read/write, library read/write, and playback control.
var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-library-read",
	"user-library-modify",
	"user-read-playback-state",
	"user-modify-playback-state",
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

// SpotifyPaginatedPlaylistTracks represents a page of tracks within a playlist.
type SpotifyPaginatedPlaylistTracks struct {
	Items    []SpotifyPlaylistTrack `json:"items"`
	Total    int                    `json:"total"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
	Next     *string                `json:"next"`
	Previous *string                `json:"previous"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifyDevice represents a playback device.
type SpotifyDevice struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent int    `json:"volume_percent"`
}

// TrackPage, ArtistPage, AlbumPage, and PlaylistPage hold one search
// result category. Items is never nil so empty categories render as [].
type TrackPage struct {
	Items []SpotifyTrack `json:"items"`
}

type ArtistPage struct {
	Items []SpotifyArtist `json:"items"`
}

type AlbumPage struct {
	Items []SpotifyAlbum `json:"items"`
}

type PlaylistPage struct {
	Items []SpotifySimplePlaylist `json:"items"`
}

// SearchResults is the reshaped four-category search response. All four
// categories are always present, regardless of the requested type filter.
type SearchResults struct {
	Tracks    TrackPage    `json:"tracks"`
	Artists   ArtistPage   `json:"artists"`
	Albums    AlbumPage    `json:"albums"`
	Playlists PlaylistPage `json:"playlists"`
}

// EmptySearchResults returns the stable all-empty search shape.
func EmptySearchResults() *SearchResults {
	return &SearchResults{
		Tracks:    TrackPage{Items: []SpotifyTrack{}},
		Artists:   ArtistPage{Items: []SpotifyArtist{}},
		Albums:    AlbumPage{Items: []SpotifyAlbum{}},
		Playlists: PlaylistPage{Items: []SpotifySimplePlaylist{}},
	}
}

// searchResponse mirrors the raw upstream search payload. Items decode as
// pointers so null entries can be dropped during reshaping.
type searchResponse struct {
	Tracks struct {
		Items []*SpotifyTrack `json:"items"`
	} `json:"tracks"`
	Artists struct {
		Items []*SpotifyArtist `json:"items"`
	} `json:"artists"`
	Albums struct {
		Items []*SpotifyAlbum `json:"items"`
	} `json:"albums"`
	Playlists struct {
		Items []*SpotifySimplePlaylist `json:"items"`
	} `json:"playlists"`
}

// SpotifyOAuth wraps the authorization-code flow configuration used by the
// login handshake.
type SpotifyOAuth struct {
	config *oauth2.Config
}

// NewSpotifyOAuth creates the OAuth2 configuration for the login flow.
func NewSpotifyOAuth(clientID, clientSecret, redirectURI string) (*SpotifyOAuth, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/auth/callback"
	}

	return &SpotifyOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyAuthURL,
				TokenURL: spotifyTokenURL,
			},
		},
	}, nil
}

// AuthURL returns the authorization URL for user login.
func (o *SpotifyOAuth) AuthURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for upstream tokens.
func (o *SpotifyOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// SpotifyService is a Spotify Web API client bound to one caller's access
// token. Instances are built per request from a verified credential and
// discarded with the request; nothing here is shared across requests.
type SpotifyService struct {
	accessToken string
	httpClient  *http.Client
}

// NewSpotifyService creates a client for the given access token.
func NewSpotifyService(accessToken string) *SpotifyService {
	return &SpotifyService{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: spotifyTimeout},
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetHTTPClient overrides the HTTP client, used by tests to inject transports.
func (s *SpotifyService) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// doRequest performs an authenticated HTTP request to the Spotify API.
// A nil result skips decoding, which covers 204-style responses.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.accessToken == "" {
		return fmt.Errorf("%w: no access token", shared.ErrUnauthorized)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, spotifyBaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload spotifyErrorBody
		message := ""
		if err := json.Unmarshal(raw, &payload); err == nil {
			message = payload.Error.Message
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", shared.ErrUpstream, resp.StatusCode, message)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Profile retrieves the current authenticated user's profile.
func (s *SpotifyService) Profile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlists retrieves the current user's playlists with pagination.
func (s *SpotifyService) Playlists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// PlaylistTracks retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedPlaylistTracks, error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var response SpotifyPaginatedPlaylistTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// CreatePlaylist creates a playlist owned by the current user.
// Visibility defaults to private. Repeated calls create duplicate playlists;
// that is upstream behavior.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*SpotifySimplePlaylist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}

	user, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// UpdatePlaylist renames a playlist and/or replaces its description.
func (s *SpotifyService) UpdatePlaylist(ctx context.Context, playlistID, name, description string) error {
	if strings.TrimSpace(name) == "" && description == "" {
		return fmt.Errorf("%w: nothing to update", shared.ErrInvalidInput)
	}

	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	if description != "" {
		body["description"] = description
	}

	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
}

// UnfollowPlaylist removes the playlist from the user's library. Spotify has
// no hard delete; unfollowing is how playlists are removed.
func (s *SpotifyService) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// AddTracks appends track URIs to a playlist.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track uris provided", shared.ErrInvalidInput)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, nil)
}

// RemoveTracks removes track URIs from a playlist.
func (s *SpotifyService) RemoveTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track uris provided", shared.ErrInvalidInput)
	}

	tracks := make([]map[string]string, 0, len(uris))
	for _, uri := range uris {
		tracks = append(tracks, map[string]string{"uri": uri})
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodDelete, endpoint, map[string]any{"tracks": tracks}, nil)
}

// SavedTracks retrieves the user's liked songs with pagination.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// SaveTracks adds track IDs to the user's liked songs.
func (s *SpotifyService) SaveTracks(ctx context.Context, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: no track ids provided", shared.ErrInvalidInput)
	}
	endpoint := "/me/tracks?ids=" + url.QueryEscape(strings.Join(trackIDs, ","))
	return s.doRequest(ctx, http.MethodPut, endpoint, nil, nil)
}

// RemoveSavedTracks removes track IDs from the user's liked songs.
func (s *SpotifyService) RemoveSavedTracks(ctx context.Context, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: no track ids provided", shared.ErrInvalidInput)
	}
	endpoint := "/me/tracks?ids=" + url.QueryEscape(strings.Join(trackIDs, ","))
	return s.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Search queries the upstream catalog and reshapes the response.
//
// An empty or whitespace-only query returns the stable all-empty shape
// without an upstream call. Items that are null or lack an identifier are
// dropped; order is otherwise preserved.
func (s *SpotifyService) Search(ctx context.Context, query, types string, limit int) (*SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return EmptySearchResults(), nil
	}

	if types == "" {
		types = "track,artist,album,playlist"
	}
	limit = clampLimit(limit)

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", types)
	params.Set("limit", fmt.Sprintf("%d", limit))

	var raw searchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	results := EmptySearchResults()
	for _, item := range raw.Tracks.Items {
		if item != nil && item.ID != "" {
			results.Tracks.Items = append(results.Tracks.Items, *item)
		}
	}
	for _, item := range raw.Artists.Items {
		if item != nil && item.ID != "" {
			results.Artists.Items = append(results.Artists.Items, *item)
		}
	}
	for _, item := range raw.Albums.Items {
		if item != nil && item.ID != "" {
			results.Albums.Items = append(results.Albums.Items, *item)
		}
	}
	for _, item := range raw.Playlists.Items {
		if item != nil && item.ID != "" {
			results.Playlists.Items = append(results.Playlists.Items, *item)
		}
	}

	return results, nil
}

// SearchTrack searches for a track by title and artist, returning the first hit.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*Track, error) {
	query := strings.TrimSpace(title + " " + artist)
	if query == "" {
		return nil, fmt.Errorf("%w: empty track query", shared.ErrInvalidInput)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", "1")

	var raw searchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	for _, item := range raw.Tracks.Items {
		if item != nil && item.ID != "" {
			track := item.AsTrack()
			return &track, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", shared.ErrTrackNotFound, query)
}

// Devices lists the user's available playback devices.
func (s *SpotifyService) Devices(ctx context.Context) ([]SpotifyDevice, error) {
	var response struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}
	return response.Devices, nil
}

// Play starts or resumes playback, optionally targeting a device and a
// context URI (album/playlist) or explicit track URIs.
func (s *SpotifyService) Play(ctx context.Context, deviceID, contextURI string, uris []string) error {
	endpoint := "/me/player/play"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}

	var body map[string]any
	if contextURI != "" {
		body = map[string]any{"context_uri": contextURI}
	} else if len(uris) > 0 {
		body = map[string]any{"uris": uris}
	}

	return s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
}

// Pause pauses playback.
func (s *SpotifyService) Pause(ctx context.Context) error {
	return s.doRequest(ctx, http.MethodPut, "/me/player/pause", nil, nil)
}

// Next skips to the next track.
func (s *SpotifyService) Next(ctx context.Context) error {
	return s.doRequest(ctx, http.MethodPost, "/me/player/next", nil, nil)
}

// Previous skips to the previous track.
func (s *SpotifyService) Previous(ctx context.Context) error {
	return s.doRequest(ctx, http.MethodPost, "/me/player/previous", nil, nil)
}

// AsTrack converts a Spotify track to the application shape.
func (t SpotifyTrack) AsTrack() Track {
	track := Track{
		ID:         t.ID,
		Title:      t.Name,
		Album:      t.Album.Name,
		URI:        t.URI,
		DurationMS: t.DurationMS,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	return track
}

// clampLimit keeps page sizes within upstream bounds.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 50 {
		return 50
	}
	return limit
}

var _ Searcher = (*SpotifyService)(nil)
