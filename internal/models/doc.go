// Package models defines domain entities and persistence interfaces for the chorus companion service.
//
// The package contains the persistent entities backing the authentication
// boundary:
//   - [User] : accounts resolved at federated login completion
//
// Persistent entities implement the [Model] interface providing ID generation,
// timestamps, validation, and soft delete support. The [Repository] interface
// defines standard CRUD operations for database access.
//
// Upstream data shapes (playlists, tracks, search results) are not persisted
// and live with the clients that produce them in internal/services.
package models
