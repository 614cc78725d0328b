package models

import (
	"fmt"
	"strings"
	"time"
)

// User represents an account resolved at the end of a federated login.
//
// The upstream (Spotify) user ID is the natural key; the internal ID is
// assigned at creation and embedded in issued credentials as the subject.
type User struct {
	id          string
	sequence    int
	spotifyID   string
	email       string
	displayName string
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewUser creates a User from upstream profile fields.
func NewUser(sequence int, spotifyID, email, displayName string) *User {
	now := time.Now().UTC()
	return &User{
		sequence:    sequence,
		spotifyID:   spotifyID,
		email:       email,
		displayName: displayName,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (u *User) ID() string            { return u.id }
func (u *User) Sequence() int         { return u.sequence }
func (u *User) SpotifyID() string     { return u.spotifyID }
func (u *User) Email() string         { return u.email }
func (u *User) DisplayName() string   { return u.displayName }
func (u *User) CreatedAt() time.Time  { return u.createdAt }
func (u *User) UpdatedAt() time.Time  { return u.updatedAt }
func (u *User) DeletedAt() *time.Time { return u.deletedAt }

func (u *User) SetID(id string)             { u.id = id }
func (u *User) SetEmail(email string)       { u.email = email }
func (u *User) SetDisplayName(name string)  { u.displayName = name }
func (u *User) SetUpdatedAt(t time.Time)    { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time)   { u.deletedAt = t }
func (u *User) SetCreatedAt(t time.Time)    { u.createdAt = t }
func (u *User) SetSequence(sequence int)    { u.sequence = sequence }
func (u *User) SetSpotifyID(spotifyID string) { u.spotifyID = spotifyID }

// Validate checks that the user carries the fields persistence requires.
func (u *User) Validate() error {
	if strings.TrimSpace(u.spotifyID) == "" {
		return fmt.Errorf("user requires a spotify id")
	}
	if strings.TrimSpace(u.id) == "" {
		return fmt.Errorf("user requires an id")
	}
	return nil
}
