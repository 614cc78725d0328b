// Gemini text-generation client.
//
// One call shape: POST models/{model}:generateContent with a single user
// prompt, returning the first candidate's text.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/chorus/internal/shared"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiTimeout = 30 * time.Second

	// DefaultGeminiModel is used when the config names no model.
	DefaultGeminiModel = "gemini-1.5-flash"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiService issues generateContent calls against the Gemini API.
type GeminiService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiService creates a Gemini client. A missing API key is reported
// here so requests fail before any generation is attempted.
func NewGeminiService(apiKey, model string) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api_key is required", shared.ErrMissingCredentials)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiService{
		apiKey:     apiKey,
		model:      model,
		baseURL:    geminiBaseURL,
		httpClient: &http.Client{Timeout: geminiTimeout},
	}, nil
}

// SetBaseURL overrides the API endpoint, used by tests.
func (g *GeminiService) SetBaseURL(baseURL string) {
	g.baseURL = baseURL
}

// SetHTTPClient overrides the HTTP client, used by tests to inject transports.
func (g *GeminiService) SetHTTPClient(client *http.Client) {
	g.httpClient = client
}

// Generate sends one prompt and returns the raw response text.
func (g *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", shared.ErrUpstream, resp.StatusCode, message)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty generation response", shared.ErrUpstream)
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

var _ TextGenerator = (*GeminiService)(nil)
