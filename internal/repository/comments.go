package repository

import (
	"context"
	"fmt"
	"strings"

	"tasktracker/internal/models"
	"tasktracker/internal/validation"
)

func (s *Store) AddComment(ctx context.Context, taskID, userID int64, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, validation.Errors{"content": {"This field is required."}}
	}
	return insertComment(ctx, s.db, taskID, userID, content)
}

func insertComment(ctx context.Context, q querier, taskID, userID int64, content string) (*models.Comment, error) {
	c := models.Comment{TaskID: taskID, Content: content}
	err := q.QueryRowContext(ctx, `
        WITH ins AS (
            INSERT INTO comments (task_id, user_id, content) VALUES ($1, $2, $3)
            RETURNING id, user_id, created_at
        )
        SELECT ins.id, u.id, u.username, ins.created_at FROM ins JOIN users u ON u.id = ins.user_id`,
		taskID, userID, content,
	).Scan(&c.ID, &c.User.ID, &c.User.Username, &c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, foreignKeyError(err)
		}
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &c, nil
}

// AddTaskNotes stores a comment, an attachment or both in one transaction.
// Either may be left empty, but not both.
func (s *Store) AddTaskNotes(ctx context.Context, taskID, userID int64, content string, a *models.Attachment) (*models.Comment, error) {
	hasComment := strings.TrimSpace(content) != ""
	if !hasComment && a == nil {
		return nil, validation.Errors{validation.NonField: {"Add a comment or choose a file to upload."}}
	}
	if a != nil {
		if err := validation.AttachmentType(a.OriginalName); err != nil {
			return nil, validation.Errors{"file": {err.Error()}}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var c *models.Comment
	if hasComment {
		if c, err = insertComment(ctx, tx, taskID, userID, content); err != nil {
			return nil, err
		}
	}
	if a != nil {
		a.TaskID, a.UploadedBy.ID = taskID, userID
		if err := insertAttachment(ctx, tx, a); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, taskID int64) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT c.id, c.task_id, u.id, u.username, c.content, c.created_at
        FROM comments c JOIN users u ON u.id = c.user_id
        WHERE c.task_id = $1
        ORDER BY c.created_at, c.id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.User.ID, &c.User.Username, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
