// Package repositories provides sqlite persistence for the companion
// service's account records.
//
// The only stored artifact is the [models.User] row written when a federated
// login completes; issued credentials are self-contained and never stored.
package repositories
