// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/desertthunder/chorus/internal/services"
)

// MockSearcher is a test double for [services.Searcher].
type MockSearcher struct {
	Track *services.Track
	Err   error
	Calls int
}

func (m *MockSearcher) SearchTrack(ctx context.Context, title, artist string) (*services.Track, error) {
	m.Calls++
	return m.Track, m.Err
}

func (m *MockSearcher) Name() string { return "mock" }

// MockGenerator is a test double for [services.TextGenerator].
type MockGenerator struct {
	Response string
	Err      error
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Response, m.Err
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// RoundTripFunc adapts a function to [http.RoundTripper] so tests can
// inspect requests and vary responses per call.
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// JSONResponse builds an *http.Response with a JSON body.
func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}
