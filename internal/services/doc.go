// Package services contains the upstream API clients the companion service
// aggregates: the Spotify Web API and the Gemini text-generation API.
//
// The Spotify client is constructed per request from the verified caller's
// access token and is never shared across requests; see [NewSpotifyService].
// OAuth authorization-code plumbing for the login flow lives in
// [SpotifyOAuth].
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package services
