package repository

import (
	"context"
	"fmt"

	"tasktracker/internal/models"
)

// DashboardStats counts the user's assigned tasks. Each count is taken over
// the same base set independently, so overdue may overlap with pending.
func (s *Store) DashboardStats(ctx context.Context, userID int64) (models.DashboardStats, error) {
	var st models.DashboardStats
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE t.status = $2),
               COUNT(*) FILTER (WHERE t.due_date < $3 AND t.status <> $2),
               COUNT(*) FILTER (WHERE t.status = $4)
        FROM tasks t
        JOIN task_assignees ta ON ta.task_id = t.id
        WHERE ta.user_id = $1`,
		userID, models.StatusCompleted, s.today(), models.StatusPending,
	).Scan(&st.Total, &st.Completed, &st.Overdue, &st.Pending)
	if err != nil {
		return st, fmt.Errorf("dashboard stats: %w", err)
	}
	return st, nil
}

// AssignedTasks lists every task assigned to the user.
func (s *Store) AssignedTasks(ctx context.Context, userID int64) ([]models.Task, error) {
	return s.ListTasks(ctx, TaskFilter{AssigneeID: userID})
}
