package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tasktracker/internal/models"
)

const profileColumns = "id, user_id, role, display_name, profile_picture"

func scanProfile(row *sql.Row) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.UserID, &p.Role, &p.DisplayName, &p.ProfilePicture); err != nil {
		return nil, err
	}
	return &p, nil
}

// ensureProfile is used inside the registration transaction, where the user
// row is not yet visible to anyone else.
func ensureProfile(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetOrCreateProfile returns the user's profile, creating it on first access.
// Concurrent first accesses race on the unique user_id column; the loser
// sees a unique violation and reads the winner's row instead.
func (s *Store) GetOrCreateProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	selectQuery := "SELECT " + profileColumns + " FROM profiles WHERE user_id = $1"

	p, err := scanProfile(s.db.QueryRowContext(ctx, selectQuery, userID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	p, err = scanProfile(s.db.QueryRowContext(ctx,
		"INSERT INTO profiles (user_id) VALUES ($1) RETURNING "+profileColumns, userID))
	switch {
	case err == nil:
		return p, nil
	case isUniqueViolation(err):
		p, err = scanProfile(s.db.QueryRowContext(ctx, selectQuery, userID))
		if err != nil {
			return nil, notFound(err)
		}
		return p, nil
	case isForeignKeyViolation(err):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("create profile: %w", err)
	}
}

// UpdateProfile stores the editable profile fields.
func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET display_name = $1, profile_picture = $2 WHERE user_id = $3",
		p.DisplayName, p.ProfilePicture, p.UserID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
