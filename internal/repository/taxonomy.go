package repository

import (
	"context"
	"fmt"
	"strings"

	"tasktracker/internal/models"
	"tasktracker/internal/validation"
)

const maxNameLength = 100

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if errs := checkName(name); !errs.Empty() {
		return nil, errs
	}

	c := models.Category{Name: name}
	err := s.db.QueryRowContext(ctx, "INSERT INTO categories (name) VALUES ($1) RETURNING id", name).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, validation.Errors{"name": {"Category with this Name already exists."}}
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &c, nil
}

// DeleteCategory removes the category. Tasks that referenced it keep
// existing with no category.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM tags ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// getOrCreateTag returns the id of the tag with this exact name. The no-op
// update makes RETURNING yield the existing row on conflict.
func getOrCreateTag(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
        INSERT INTO tags (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get or create tag %q: %w", name, err)
	}
	return id, nil
}

func checkName(name string) validation.Errors {
	errs := validation.Errors{}
	switch {
	case name == "":
		errs.Add("name", "This field is required.")
	case len([]rune(name)) > maxNameLength:
		errs.Add("name", fmt.Sprintf("Ensure this value has at most %d characters.", maxNameLength))
	}
	return errs
}
