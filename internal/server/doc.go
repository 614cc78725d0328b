// Package server provides HTTP routing, middleware, and the handler families
// for the companion web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Authentication Boundary
//
// [RequireAuth] is the single authorization decision point: an active session
// (when a [SessionStore] is wired) or a bearer credential verified by
// [auth.Issuer.Verify]. Handlers read the verified identity from the request
// context and rebuild a per-request upstream client from its access token.
// Authorization and validation failures are rejected here, before any
// upstream call.
//
// # Handler Families
//
// [OAuthHandler] drives the federated login handshake and is the only place
// credentials are issued. [APIHandler] serves the resource endpoints:
// profile, playlists, liked songs, search, playback control, and
// prompt-to-playlist generation. Every operation resolves to a success
// payload or a structured {error, details} payload.
package server
