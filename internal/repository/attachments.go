package repository

import (
	"context"
	"fmt"

	"tasktracker/internal/models"
	"tasktracker/internal/validation"
)

// AddAttachment records an uploaded file. The file type rule is checked
// here as well as in the form, so no save path can skip it.
func (s *Store) AddAttachment(ctx context.Context, a *models.Attachment) error {
	if err := validation.AttachmentType(a.OriginalName); err != nil {
		return validation.Errors{"file": {err.Error()}}
	}

	return insertAttachment(ctx, s.db, a)
}

func insertAttachment(ctx context.Context, q querier, a *models.Attachment) error {
	err := q.QueryRowContext(ctx, `
        WITH ins AS (
            INSERT INTO attachments (task_id, uploaded_by, file, original_name, content_type, size)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, uploaded_by, uploaded_at
        )
        SELECT ins.id, u.username, ins.uploaded_at FROM ins JOIN users u ON u.id = ins.uploaded_by`,
		a.TaskID, a.UploadedBy.ID, a.File, a.OriginalName, a.ContentType, a.Size,
	).Scan(&a.ID, &a.UploadedBy.Username, &a.UploadedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return foreignKeyError(err)
		}
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *Store) ListAttachments(ctx context.Context, taskID int64) ([]models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT a.id, a.task_id, u.id, u.username, a.file, a.original_name, a.content_type, a.size, a.uploaded_at
        FROM attachments a JOIN users u ON u.id = a.uploaded_by
        WHERE a.task_id = $1
        ORDER BY a.uploaded_at, a.id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UploadedBy.ID, &a.UploadedBy.Username,
			&a.File, &a.OriginalName, &a.ContentType, &a.Size, &a.UploadedAt); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
