package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chorus/internal/models"
	"github.com/desertthunder/chorus/internal/shared"
)

// UserRepository persists [models.User] accounts resolved at login.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated ID and sequence.
func (r *UserRepository) Create(user *models.User) error {
	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.SetID(shared.GenerateID())
	user.SetSequence(sequence)

	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (id, sequence, spotify_id, email, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, user.ID(), user.Sequence(), user.SpotifyID(), user.Email(),
		user.DisplayName(), user.CreatedAt(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by internal ID, excluding soft-deleted users.
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `
		SELECT id, sequence, spotify_id, email, display_name, created_at, updated_at, deleted_at
		FROM users
		WHERE id = ? AND deleted_at IS NULL
	`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetBySpotifyID retrieves a user by the upstream identifier.
func (r *UserRepository) GetBySpotifyID(spotifyID string) (*models.User, error) {
	query := `
		SELECT id, sequence, spotify_id, email, display_name, created_at, updated_at, deleted_at
		FROM users
		WHERE spotify_id = ? AND deleted_at IS NULL
	`
	return r.scanUser(r.db.QueryRow(query, spotifyID))
}

// Upsert records a login completion: a new account for an unseen upstream
// identity, or refreshed profile fields for a returning one.
func (r *UserRepository) Upsert(spotifyID, email, displayName string) (*models.User, error) {
	existing, err := r.GetBySpotifyID(spotifyID)
	if err == nil {
		existing.SetEmail(email)
		existing.SetDisplayName(displayName)
		existing.SetUpdatedAt(time.Now().UTC())
		if err := r.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, shared.ErrUserNotFound) {
		return nil, err
	}

	user := models.NewUser(0, spotifyID, email, displayName)
	if err := r.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update modifies an existing user's profile fields.
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE users SET email = ?, display_name = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.Email(), user.DisplayName(), user.UpdatedAt(), user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())
	}

	return nil
}

// Delete soft-deletes a user by ID.
func (r *UserRepository) Delete(id string) error {
	query := `UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}

	return nil
}

// List retrieves users, optionally filtered by spotify_id or email.
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `
		SELECT id, sequence, spotify_id, email, display_name, created_at, updated_at, deleted_at
		FROM users
		WHERE deleted_at IS NULL
	`
	args := []any{}

	for _, field := range []string{"spotify_id", "email"} {
		if value, ok := criteria[field]; ok {
			query += fmt.Sprintf(" AND %s = ?", field)
			args = append(args, value)
		}
	}
	query += " ORDER BY sequence"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (*models.User, error) {
	user, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, shared.ErrUserNotFound
	}
	return user, err
}

func scanUserRow(row rowScanner) (*models.User, error) {
	var (
		id          string
		sequence    int
		spotifyID   string
		email       string
		displayName string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &spotifyID, &email, &displayName, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	user := models.NewUser(sequence, spotifyID, email, displayName)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}
	return user, nil
}
