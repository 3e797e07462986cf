package repository

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"tasktracker/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username VARCHAR(150) NOT NULL UNIQUE,
    email VARCHAR(254) NOT NULL DEFAULT '',
    password VARCHAR(255) NOT NULL,
    is_staff BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS profiles (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
    role VARCHAR(20) NOT NULL DEFAULT 'Officer'
        CHECK (role IN ('Manager', 'Sub-Manager', 'Officer')),
    display_name VARCHAR(100),
    profile_picture VARCHAR(255)
);

CREATE TABLE IF NOT EXISTS categories (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS tags (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS tasks (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    due_date DATE NOT NULL,
    priority VARCHAR(10) NOT NULL DEFAULT 'Medium'
        CHECK (priority IN ('Low', 'Medium', 'High')),
    status VARCHAR(15) NOT NULL DEFAULT 'Pending'
        CHECK (status IN ('Pending', 'In Progress', 'Completed')),
    category_id BIGINT REFERENCES categories (id) ON DELETE SET NULL,
    created_by BIGINT REFERENCES users (id) ON DELETE SET NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_assignees (
    task_id BIGINT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    PRIMARY KEY (task_id, user_id)
);

CREATE TABLE IF NOT EXISTS task_tags (
    task_id BIGINT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    tag_id BIGINT NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
    PRIMARY KEY (task_id, tag_id)
);

CREATE TABLE IF NOT EXISTS comments (
    id BIGSERIAL PRIMARY KEY,
    task_id BIGINT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS attachments (
    id BIGSERIAL PRIMARY KEY,
    task_id BIGINT NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
    uploaded_by BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    file VARCHAR(255) NOT NULL,
    original_name VARCHAR(255) NOT NULL,
    content_type VARCHAR(100) NOT NULL,
    size BIGINT NOT NULL DEFAULT 0,
    uploaded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS task_assignees_user_idx ON task_assignees (user_id);
CREATE INDEX IF NOT EXISTS task_tags_tag_idx ON task_tags (tag_id);
CREATE INDEX IF NOT EXISTS comments_task_idx ON comments (task_id);
CREATE INDEX IF NOT EXISTS attachments_task_idx ON attachments (task_id);
`

// CreateTableIfNotExists applies the schema. It is safe to run on every start.
func CreateTableIfNotExists(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// DeleteAllTable drops every table, children first.
func DeleteAllTable(db *sql.DB) error {
	_, err := db.Exec(`
    DROP TABLE IF EXISTS attachments;
    DROP TABLE IF EXISTS comments;
    DROP TABLE IF EXISTS task_tags;
    DROP TABLE IF EXISTS task_assignees;
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS tags;
    DROP TABLE IF EXISTS categories;
    DROP TABLE IF EXISTS profiles;
    DROP TABLE IF EXISTS users;
    `)
	if err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}

// TruncateAll empties every table and resets the id sequences.
func TruncateAll(db *sql.DB) error {
	_, err := db.Exec(`TRUNCATE attachments, comments, task_tags, task_assignees, tasks,
        tags, categories, profiles, users RESTART IDENTITY CASCADE`)
	return err
}

// CreateAdminUser makes sure a staff account with the given credentials
// exists. An existing user with that name is promoted and gets the password.
func (s *Store) CreateAdminUser(ctx context.Context, username, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var u models.User
	err = tx.QueryRowContext(ctx, `
        INSERT INTO users (username, password, is_staff) VALUES ($1, $2, TRUE)
        ON CONFLICT (username) DO UPDATE SET password = EXCLUDED.password, is_staff = TRUE
        RETURNING id, username, email, is_staff, created_at`,
		username, string(hashedPassword),
	).Scan(&u.ID, &u.Username, &u.Email, &u.IsStaff, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert admin user: %w", err)
	}
	if err := ensureProfile(ctx, tx, u.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &u, nil
}
