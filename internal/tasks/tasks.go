package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chorus/internal/services"
	"github.com/desertthunder/chorus/internal/shared"
)

const (
	// DefaultSongCount is used when the request names no count.
	DefaultSongCount = 20

	// excerptLimit bounds the diagnostic excerpt attached to parse failures.
	excerptLimit = 500
)

// Candidate is one song suggestion from the generative call.
type Candidate struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Genre  string `json:"genre"`
	Reason string `json:"reason"`
}

// CandidateMatch is the result of resolving a single candidate upstream.
type CandidateMatch struct {
	Candidate Candidate       // Original suggestion from the generative step
	Track     *services.Track // Matched upstream track (nil if not found)
	Err       error           // Error if the lookup failed
}

// GeneratedTrack is a resolved track annotated with the generative rationale.
type GeneratedTrack struct {
	services.Track
	Genre  string `json:"genre,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// GeneratedPlaylist is the final aggregation result.
type GeneratedPlaylist struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Prompt      string           `json:"prompt"`
	Tracks      []GeneratedTrack `json:"tracks"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// InsufficientMatchesError reports a generation whose resolved tracks fell
// below half the requested count.
type InsufficientMatchesError struct {
	Found     int
	Requested int
}

func (e *InsufficientMatchesError) Error() string {
	return fmt.Sprintf("%v: found %d of %d requested", shared.ErrInsufficientMatches, e.Found, e.Requested)
}

func (e *InsufficientMatchesError) Unwrap() error {
	return shared.ErrInsufficientMatches
}

// ParseError reports an unrecoverable generative response, carrying a bounded
// excerpt of the raw text for diagnostics.
type ParseError struct {
	Excerpt string
	cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", shared.ErrParseFailed, e.cause)
}

func (e *ParseError) Unwrap() error {
	return shared.ErrParseFailed
}

// GeneratorEngine turns a free-text prompt into a playlist of upstream tracks.
type GeneratorEngine struct {
	llm    services.TextGenerator
	logger *log.Logger
}

// NewGeneratorEngine creates a GeneratorEngine with the provided generator.
func NewGeneratorEngine(llm services.TextGenerator, logger *log.Logger) *GeneratorEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &GeneratorEngine{llm: llm, logger: logger}
}

// buildPrompt renders the fixed instruction template for songCount suggestions.
func buildPrompt(prompt string, songCount int) string {
	return fmt.Sprintf(
		`You are a music curator. Based on the following description, suggest exactly %d songs.

Description: %s

Respond with ONLY a raw JSON array, no markdown formatting or surrounding text.
Each element must be an object with these string fields:
  "title": the song title
  "artist": the primary artist
  "genre": the song's genre
  "reason": one sentence on why the song fits the description`,
		songCount, prompt)
}

// Generate runs the full pipeline: one generative call, candidate parsing
// with recovery, one search per candidate in order, the sufficiency gate,
// and final assembly.
func (e *GeneratorEngine) Generate(ctx context.Context, searcher services.Searcher, prompt string, songCount int) (*GeneratedPlaylist, error) {
	if e.llm == nil {
		return nil, fmt.Errorf("%w: text generator not configured", shared.ErrServiceUnavailable)
	}
	if searcher == nil {
		return nil, fmt.Errorf("%w: upstream service not initialized", shared.ErrServiceUnavailable)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", shared.ErrInvalidInput)
	}
	if songCount <= 0 {
		songCount = DefaultSongCount
	}

	raw, err := e.llm.Generate(ctx, buildPrompt(prompt, songCount))
	if err != nil {
		return nil, err
	}

	candidates, err := ParseCandidates(raw)
	if err != nil {
		return nil, err
	}

	matches := make([]CandidateMatch, len(candidates))
	resolved := 0

	for i, candidate := range candidates {
		track, err := searcher.SearchTrack(ctx, candidate.Title, candidate.Artist)
		matches[i] = CandidateMatch{Candidate: candidate, Track: track, Err: err}

		if err != nil {
			e.logger.Warn("candidate lookup failed",
				"title", candidate.Title, "artist", candidate.Artist, "error", err)
			continue
		}
		resolved++
	}

	// A playlist under half the requested size is not useful enough to
	// return silently; the caller should get counts it can react to.
	if resolved < (songCount+1)/2 {
		return nil, &InsufficientMatchesError{Found: resolved, Requested: songCount}
	}

	tracks := make([]GeneratedTrack, 0, resolved)
	for _, match := range matches {
		if match.Track == nil {
			continue
		}
		tracks = append(tracks, GeneratedTrack{
			Track:  *match.Track,
			Genre:  match.Candidate.Genre,
			Reason: match.Candidate.Reason,
		})
		if len(tracks) == songCount {
			break
		}
	}

	return &GeneratedPlaylist{
		Name:        playlistName(prompt),
		Description: fmt.Sprintf("Generated from prompt: %s", truncate(prompt, 120)),
		Prompt:      prompt,
		Tracks:      tracks,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ParseCandidates decodes the generative response into candidates.
//
// If the text is not a bare JSON array, a recovery pass extracts the first
// top-level array substring. Both failing yields a [ParseError] with a
// bounded excerpt.
func ParseCandidates(raw string) ([]Candidate, error) {
	var candidates []Candidate
	if err := json.Unmarshal([]byte(raw), &candidates); err == nil {
		return candidates, nil
	}

	extracted, ok := ExtractJSONArray(raw)
	if !ok {
		return nil, &ParseError{
			Excerpt: truncate(raw, excerptLimit),
			cause:   fmt.Errorf("no JSON array found in response"),
		}
	}

	if err := json.Unmarshal([]byte(extracted), &candidates); err != nil {
		return nil, &ParseError{
			Excerpt: truncate(raw, excerptLimit),
			cause:   err,
		}
	}
	return candidates, nil
}

// ExtractJSONArray returns the first top-level JSON array substring,
// respecting string literals and escapes while balancing brackets.
func ExtractJSONArray(raw string) (string, bool) {
	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	return "", false
}

// playlistName derives a short display name from the prompt.
func playlistName(prompt string) string {
	return truncate(strings.TrimSpace(prompt), 40) + " Mix"
}

// truncate bounds s to max bytes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
