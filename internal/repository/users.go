package repository

import (
	"context"
	"fmt"

	"tasktracker/internal/models"
)

const userColumns = "id, username, email, is_staff, created_at"

func scanUser(row interface{ Scan(...any) error }, u *models.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.IsStaff, &u.CreatedAt)
}

// CreateUser registers an account and its profile in one transaction, so a
// user never exists without exactly one profile.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var u models.User
	err = scanUser(tx.QueryRowContext(ctx,
		"INSERT INTO users (username, email, password) VALUES ($1, $2, $3) RETURNING "+userColumns,
		username, email, passwordHash,
	), &u)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if err := ensureProfile(ctx, tx, u.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserCredentials returns the user and its password hash for login.
func (s *Store) UserCredentials(ctx context.Context, username string) (*models.User, string, error) {
	var u models.User
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+", password FROM users WHERE username = $1", username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.IsStaff, &u.CreatedAt, &hash)
	if err != nil {
		return nil, "", notFound(err)
	}
	return &u, hash, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id), &u)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
