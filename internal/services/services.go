package services

import (
	"context"
)

// Searcher is the subset of the Spotify client the playlist generator needs:
// resolving one {title, artist} suggestion to a concrete upstream track.
type Searcher interface {
	// SearchTrack searches for a track by title and artist.
	// Returns the best match or shared.ErrTrackNotFound if nothing matched.
	SearchTrack(ctx context.Context, title, artist string) (*Track, error)

	// Name returns the name of the upstream service (e.g. "Spotify")
	Name() string
}

// TextGenerator issues a single natural-language generation call and returns
// the raw response text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Track represents a music track in the application's own shape,
// independent of upstream response structure.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	URI        string `json:"uri"`
	DurationMS int    `json:"durationMs,omitempty"`
}

// Playlist represents a playlist in the application's own shape.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"trackCount"`
	Public      bool   `json:"public"`
	URI         string `json:"uri,omitempty"`
}
