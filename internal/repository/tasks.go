package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"tasktracker/internal/models"
	"tasktracker/internal/validation"
)

// TaskInput is everything a task form submits.
type TaskInput struct {
	Title       string
	Description string
	DueDate     models.Date
	Priority    models.Priority
	Status      models.Status
	CategoryID  *int64
	AssignedTo  []int64
	TagIDs      []int64
	NewTags     []string
}

const taskSelect = `
SELECT t.id, t.title, t.description, t.due_date, t.priority, t.status,
       t.category_id, t.created_by, t.created_at, t.updated_at, c.name
FROM tasks t
LEFT JOIN categories c ON c.id = t.category_id`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	var categoryID, createdBy sql.NullInt64
	var categoryName sql.NullString
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Status,
		&categoryID, &createdBy, &t.CreatedAt, &t.UpdatedAt, &categoryName)
	if err != nil {
		return t, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
		t.Category = &models.Category{ID: id, Name: categoryName.String}
	}
	if createdBy.Valid {
		id := createdBy.Int64
		t.CreatedBy = &id
	}
	t.AssignedTo = []models.UserRef{}
	t.Tags = []models.Tag{}
	return t, nil
}

// CreateTask stores a new task with its assignees and tags.
func (s *Store) CreateTask(ctx context.Context, in TaskInput, createdBy int64) (*models.Task, error) {
	id, err := s.saveTask(ctx, 0, in, createdBy)
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// UpdateTask replaces the task's fields, assignees and tags. New tags are
// added on top of the selected ones.
func (s *Store) UpdateTask(ctx context.Context, id int64, in TaskInput) (*models.Task, error) {
	if _, err := s.saveTask(ctx, id, in, 0); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// saveTask writes the task row and every association in one transaction,
// then checks the resulting assignee set. A task without assignees is
// rolled back, so it never becomes visible.
func (s *Store) saveTask(ctx context.Context, id int64, in TaskInput, createdBy int64) (int64, error) {
	errs := validation.TaskFields(in.Title, in.DueDate, in.Priority, in.Status, s.Now())
	newTags := cleanTagNames(in.NewTags, errs)
	if !errs.Empty() {
		return 0, errs
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if id == 0 {
		err = tx.QueryRowContext(ctx, `
            INSERT INTO tasks (title, description, due_date, priority, status, category_id, created_by)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING id`,
			in.Title, in.Description, in.DueDate, in.Priority, in.Status, in.CategoryID, nullID(createdBy),
		).Scan(&id)
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
            UPDATE tasks
            SET title = $1, description = $2, due_date = $3, priority = $4, status = $5,
                category_id = $6, updated_at = CURRENT_TIMESTAMP
            WHERE id = $7`,
			in.Title, in.Description, in.DueDate, in.Priority, in.Status, in.CategoryID, id)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return 0, ErrNotFound
			}
		}
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			if foreignKeyError(err) == ErrUnknownUser {
				return 0, ErrUnknownUser
			}
			return 0, validation.Errors{"category": {"Select a valid choice. That choice is not one of the available choices."}}
		}
		return 0, fmt.Errorf("save task: %w", err)
	}

	if err := replaceLinks(ctx, tx, "task_assignees", "user_id", id, in.AssignedTo); err != nil {
		if isForeignKeyViolation(err) {
			return 0, validation.Errors{"assigned_to": {"Select a valid choice. That user does not exist."}}
		}
		return 0, fmt.Errorf("save assignees: %w", err)
	}

	tagIDs := append([]int64(nil), in.TagIDs...)
	for _, name := range newTags {
		tagID, err := getOrCreateTag(ctx, tx, name)
		if err != nil {
			return 0, err
		}
		tagIDs = append(tagIDs, tagID)
	}
	if err := replaceLinks(ctx, tx, "task_tags", "tag_id", id, tagIDs); err != nil {
		if isForeignKeyViolation(err) {
			return 0, validation.Errors{"tags": {"Select a valid choice. That tag does not exist."}}
		}
		return 0, fmt.Errorf("save tags: %w", err)
	}

	var assignees int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM task_assignees WHERE task_id = $1", id).Scan(&assignees); err != nil {
		return 0, err
	}
	if assignees == 0 {
		return 0, validation.Errors{"assigned_to": {validation.ErrNoAssignees.Error()}}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// replaceLinks sets the many-to-many rows of one task to exactly ids.
func replaceLinks(ctx context.Context, tx *sql.Tx, table, column string, taskID int64, ids []int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE task_id = $1", taskID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO "+table+" (task_id, "+column+") SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING",
		taskID, pq.Array(ids))
	return err
}

func cleanTagNames(names []string, errs validation.Errors) []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if len([]rune(name)) > maxNameLength {
			errs.Add("new_tags", fmt.Sprintf("Tag names may have at most %d characters.", maxNameLength))
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func (s *Store) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, taskSelect+" WHERE t.id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	tasks := []models.Task{t}
	if err := s.loadRelations(ctx, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// ListTasks returns the tasks matching f, ordered by id.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	where, args, err := f.Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, taskSelect+" WHERE "+where+" ORDER BY t.id", args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadRelations(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadRelations fills assignees and tags with one query each.
func (s *Store) loadRelations(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]int64, len(tasks))
	index := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		index[t.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT ta.task_id, u.id, u.username
        FROM task_assignees ta JOIN users u ON u.id = ta.user_id
        WHERE ta.task_id = ANY($1)
        ORDER BY u.username`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load assignees: %w", err)
	}
	for rows.Next() {
		var taskID int64
		var u models.UserRef
		if err := rows.Scan(&taskID, &u.ID, &u.Username); err != nil {
			rows.Close()
			return err
		}
		i := index[taskID]
		tasks[i].AssignedTo = append(tasks[i].AssignedTo, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `
        SELECT tt.task_id, g.id, g.name
        FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
        WHERE tt.task_id = ANY($1)
        ORDER BY g.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID int64
		var g models.Tag
		if err := rows.Scan(&taskID, &g.ID, &g.Name); err != nil {
			return err
		}
		i := index[taskID]
		tasks[i].Tags = append(tasks[i].Tags, g)
	}
	return rows.Err()
}

// DeleteTask removes the task; comments, attachments and links cascade.
// It returns the stored attachment paths so the caller can remove the files.
func (s *Store) DeleteTask(ctx context.Context, id int64) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT file FROM attachments WHERE task_id = $1", id)
	if err != nil {
		return nil, err
	}
	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return nil, err
		}
		files = append(files, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return files, nil
}

// CanDelete reports whether the user created the task or is staff.
func CanDelete(t *models.Task, userID int64, isStaff bool) bool {
	if isStaff {
		return true
	}
	return t.CreatedBy != nil && *t.CreatedBy == userID
}

// IsNotFound is a convenience for handlers.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
