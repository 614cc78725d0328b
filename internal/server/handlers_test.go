package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/chorus/internal/auth"
	"github.com/desertthunder/chorus/internal/services"
	"github.com/desertthunder/chorus/internal/shared"
	"github.com/desertthunder/chorus/internal/tasks"
)

// fakeSpotify implements SpotifyClient with per-method hooks. Unset hooks
// record the call and return zero values.
type fakeSpotify struct {
	calls []string

	profileFunc     func(ctx context.Context) (*services.SpotifyUser, error)
	savedTracksFunc func(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedTracks, error)
	saveTracksFunc  func(ctx context.Context, trackIDs []string) error
	searchFunc      func(ctx context.Context, query, types string, limit int) (*services.SearchResults, error)
	searchTrackFunc func(ctx context.Context, title, artist string) (*services.Track, error)
	createFunc      func(ctx context.Context, name, description string, public bool) (*services.SpotifySimplePlaylist, error)
}

func (f *fakeSpotify) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeSpotify) Name() string { return "fake" }

func (f *fakeSpotify) SearchTrack(ctx context.Context, title, artist string) (*services.Track, error) {
	f.record("SearchTrack")
	if f.searchTrackFunc != nil {
		return f.searchTrackFunc(ctx, title, artist)
	}
	return &services.Track{ID: "t-" + title, Title: title, Artist: artist}, nil
}

func (f *fakeSpotify) Profile(ctx context.Context) (*services.SpotifyUser, error) {
	f.record("Profile")
	if f.profileFunc != nil {
		return f.profileFunc(ctx)
	}
	return &services.SpotifyUser{ID: "spotify-1", DisplayName: "Fake User"}, nil
}

func (f *fakeSpotify) Playlists(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedPlaylists, error) {
	f.record("Playlists")
	return &services.SpotifyPaginatedPlaylists{}, nil
}

func (f *fakeSpotify) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*services.SpotifyPaginatedPlaylistTracks, error) {
	f.record("PlaylistTracks:" + playlistID)
	return &services.SpotifyPaginatedPlaylistTracks{}, nil
}

func (f *fakeSpotify) CreatePlaylist(ctx context.Context, name, description string, public bool) (*services.SpotifySimplePlaylist, error) {
	f.record("CreatePlaylist")
	if f.createFunc != nil {
		return f.createFunc(ctx, name, description, public)
	}
	return &services.SpotifySimplePlaylist{ID: "pl-new", Name: name, Public: public}, nil
}

func (f *fakeSpotify) UpdatePlaylist(ctx context.Context, playlistID, name, description string) error {
	f.record("UpdatePlaylist:" + playlistID)
	return nil
}

func (f *fakeSpotify) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	f.record("UnfollowPlaylist:" + playlistID)
	return nil
}

func (f *fakeSpotify) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	f.record(fmt.Sprintf("AddTracks:%s:%d", playlistID, len(uris)))
	return nil
}

func (f *fakeSpotify) RemoveTracks(ctx context.Context, playlistID string, uris []string) error {
	f.record(fmt.Sprintf("RemoveTracks:%s:%d", playlistID, len(uris)))
	return nil
}

func (f *fakeSpotify) SavedTracks(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedTracks, error) {
	f.record("SavedTracks")
	if f.savedTracksFunc != nil {
		return f.savedTracksFunc(ctx, limit, offset)
	}
	return &services.SpotifyPaginatedTracks{}, nil
}

func (f *fakeSpotify) SaveTracks(ctx context.Context, trackIDs []string) error {
	f.record(fmt.Sprintf("SaveTracks:%d", len(trackIDs)))
	if f.saveTracksFunc != nil {
		return f.saveTracksFunc(ctx, trackIDs)
	}
	return nil
}

func (f *fakeSpotify) RemoveSavedTracks(ctx context.Context, trackIDs []string) error {
	f.record(fmt.Sprintf("RemoveSavedTracks:%d", len(trackIDs)))
	return nil
}

func (f *fakeSpotify) Search(ctx context.Context, query, types string, limit int) (*services.SearchResults, error) {
	f.record("Search:" + query)
	if f.searchFunc != nil {
		return f.searchFunc(ctx, query, types, limit)
	}
	return services.EmptySearchResults(), nil
}

func (f *fakeSpotify) Devices(ctx context.Context) ([]services.SpotifyDevice, error) {
	f.record("Devices")
	return []services.SpotifyDevice{{ID: "d1", Name: "Speaker", IsActive: true}}, nil
}

func (f *fakeSpotify) Play(ctx context.Context, deviceID, contextURI string, uris []string) error {
	f.record("Play")
	return nil
}

func (f *fakeSpotify) Pause(ctx context.Context) error {
	f.record("Pause")
	return nil
}

func (f *fakeSpotify) Next(ctx context.Context) error {
	f.record("Next")
	return nil
}

func (f *fakeSpotify) Previous(ctx context.Context) error {
	f.record("Previous")
	return nil
}

// fakeGenerator returns a canned response for the playlist engine.
type fakeGenerator struct {
	response string
	err      error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.response, g.err
}

func newTestHandler(t *testing.T, client *fakeSpotify, llm services.TextGenerator) *APIHandler {
	t.Helper()
	engine := tasks.NewGeneratorEngine(llm, nil)
	factory := func(accessToken string) SpotifyClient { return client }
	return NewAPIHandler(engine, nil, factory, nil)
}

// authedRequest builds a request carrying a verified identity, as RequireAuth
// would have installed it.
func authedRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	identity := &auth.Identity{UserID: "user-1", AccessToken: "access-token"}
	ctx := context.WithValue(r.Context(), identityKey, identity)
	ctx = context.WithValue(ctx, methodKey, AuthMethodToken)
	return r.WithContext(ctx)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestAPIHandler(t *testing.T) {
	t.Run("Rejects Missing Identity", func(t *testing.T) {
		client := &fakeSpotify{}
		handler := newTestHandler(t, client, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
		if len(client.calls) != 0 {
			t.Errorf("expected no upstream calls, got %v", client.calls)
		}
	})

	t.Run("Verify Reports Method", func(t *testing.T) {
		handler := newTestHandler(t, &fakeSpotify{}, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/auth/verify", ""))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		body := decodeBody(t, w)
		if body["ok"] != true || body["method"] != AuthMethodToken {
			t.Errorf("unexpected verify body %v", body)
		}
	})

	t.Run("Me Merges Local And Upstream Identity", func(t *testing.T) {
		client := &fakeSpotify{}
		handler := newTestHandler(t, client, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/me", ""))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["id"] != "user-1" || body["spotifyId"] != "spotify-1" {
			t.Errorf("unexpected profile body %v", body)
		}
	})

	t.Run("Liked Tracks Body Validation", func(t *testing.T) {
		cases := []struct {
			name string
			body string
		}{
			{"Non Array Value", `{"trackIds": "not-an-array"}`},
			{"Missing Field", `{"ids": ["a"]}`},
			{"Empty Array", `{"trackIds": []}`},
			{"Invalid JSON", `{"trackIds": `},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				client := &fakeSpotify{}
				handler := newTestHandler(t, client, &fakeGenerator{})

				w := httptest.NewRecorder()
				handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/tracks/liked", tc.body))

				if w.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", w.Code)
				}
				if len(client.calls) != 0 {
					t.Errorf("expected no upstream call, got %v", client.calls)
				}
			})
		}
	})

	t.Run("Save Tracks Forwards IDs", func(t *testing.T) {
		client := &fakeSpotify{}
		handler := newTestHandler(t, client, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/tracks/liked", `{"trackIds": ["a", "b"]}`))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if len(client.calls) != 1 || client.calls[0] != "SaveTracks:2" {
			t.Errorf("expected one SaveTracks call, got %v", client.calls)
		}
	})

	t.Run("Create Playlist Defaults Private", func(t *testing.T) {
		var gotPublic bool
		client := &fakeSpotify{
			createFunc: func(ctx context.Context, name, description string, public bool) (*services.SpotifySimplePlaylist, error) {
				gotPublic = public
				return &services.SpotifySimplePlaylist{ID: "pl", Name: name}, nil
			},
		}
		handler := newTestHandler(t, client, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/playlists", `{"name": "Mix"}`))

		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
		if gotPublic {
			t.Error("expected private playlist by default")
		}
	})

	t.Run("Playlist Track Routes Use Path ID", func(t *testing.T) {
		client := &fakeSpotify{}
		handler := newTestHandler(t, client, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/playlists/pl42/tracks", `{"uris": ["spotify:track:a"]}`))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if len(client.calls) != 1 || client.calls[0] != "AddTracks:pl42:1" {
			t.Errorf("expected AddTracks with path id, got %v", client.calls)
		}
	})

	t.Run("Generate Playlist", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			client := &fakeSpotify{}
			llm := &fakeGenerator{response: `[
				{"title": "One", "artist": "A"},
				{"title": "Two", "artist": "B"},
				{"title": "Three", "artist": "C"}
			]`}
			handler := newTestHandler(t, client, llm)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/playlists/generate",
				`{"prompt": "rainy day", "songCount": 3}`))

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}

			var playlist tasks.GeneratedPlaylist
			if err := json.Unmarshal(w.Body.Bytes(), &playlist); err != nil {
				t.Fatalf("failed to decode playlist: %v", err)
			}
			if len(playlist.Tracks) != 3 {
				t.Errorf("expected 3 tracks, got %d", len(playlist.Tracks))
			}
			if playlist.Prompt != "rainy day" {
				t.Errorf("expected prompt echoed, got %q", playlist.Prompt)
			}
		})

		t.Run("Insufficient Matches Is 400", func(t *testing.T) {
			client := &fakeSpotify{
				searchTrackFunc: func(ctx context.Context, title, artist string) (*services.Track, error) {
					return nil, fmt.Errorf("%w: nope", shared.ErrTrackNotFound)
				},
			}
			llm := &fakeGenerator{response: `[
				{"title": "One", "artist": "A"},
				{"title": "Two", "artist": "B"},
				{"title": "Three", "artist": "C"},
				{"title": "Four", "artist": "D"}
			]`}
			handler := newTestHandler(t, client, llm)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/playlists/generate",
				`{"prompt": "impossible", "songCount": 4}`))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			details, ok := body["details"].(map[string]any)
			if !ok {
				t.Fatalf("expected structured details, got %v", body)
			}
			if details["found"] != float64(0) || details["requested"] != float64(4) {
				t.Errorf("unexpected details %v", details)
			}
		})

		t.Run("Unparseable Output Is 500", func(t *testing.T) {
			handler := newTestHandler(t, &fakeSpotify{}, &fakeGenerator{response: "no json here at all"})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/playlists/generate",
				`{"prompt": "anything"}`))

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", w.Code)
			}
			body := decodeBody(t, w)
			details, ok := body["details"].(map[string]any)
			if !ok || details["excerpt"] == "" {
				t.Errorf("expected excerpt in details, got %v", body)
			}
		})

		t.Run("Missing Prompt Is 400", func(t *testing.T) {
			handler := newTestHandler(t, &fakeSpotify{}, &fakeGenerator{})

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/playlists/generate", `{}`))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	})

	t.Run("Search Passes Query Through", func(t *testing.T) {
		client := &fakeSpotify{}
		handler := newTestHandler(t, client, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/search?q=hello&type=track&limit=5", ""))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if len(client.calls) != 1 || client.calls[0] != "Search:hello" {
			t.Errorf("expected one search call, got %v", client.calls)
		}
	})

	t.Run("Upstream Failure Is 500", func(t *testing.T) {
		client := &fakeSpotify{
			savedTracksFunc: func(ctx context.Context, limit, offset int) (*services.SpotifyPaginatedTracks, error) {
				return nil, fmt.Errorf("%w: status 502: Bad Gateway", shared.ErrUpstream)
			},
		}
		handler := newTestHandler(t, client, &fakeGenerator{})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/api/tracks/liked", ""))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})

	t.Run("Player Endpoints", func(t *testing.T) {
		client := &fakeSpotify{}
		handler := newTestHandler(t, client, &fakeGenerator{})

		endpoints := []struct {
			method string
			path   string
			call   string
		}{
			{http.MethodGet, "/api/player/devices", "Devices"},
			{http.MethodPut, "/api/player/play", "Play"},
			{http.MethodPut, "/api/player/pause", "Pause"},
			{http.MethodPost, "/api/player/next", "Next"},
			{http.MethodPost, "/api/player/previous", "Previous"},
		}

		for _, ep := range endpoints {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, authedRequest(ep.method, ep.path, ""))
			if w.Code != http.StatusOK {
				t.Errorf("%s %s: expected 200, got %d", ep.method, ep.path, w.Code)
			}
		}

		want := []string{"Devices", "Play", "Pause", "Next", "Previous"}
		if len(client.calls) != len(want) {
			t.Fatalf("expected %d calls, got %v", len(want), client.calls)
		}
		for i, call := range want {
			if client.calls[i] != call {
				t.Errorf("call %d: expected %s, got %s", i, call, client.calls[i])
			}
		}
	})
}
