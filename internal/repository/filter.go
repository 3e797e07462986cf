package repository

import (
	"fmt"
	"strings"

	"tasktracker/internal/models"
	"tasktracker/internal/validation"
)

// TaskFilter holds the optional listing criteria. Empty fields are left out
// of the query entirely; the rest are combined with AND.
type TaskFilter struct {
	Status     string `query:"status" json:"status"`
	Priority   string `query:"priority" json:"priority"`
	Category   string `query:"category" json:"category"`
	Tag        string `query:"tag" json:"tag"`
	DueDate    string `query:"due_date" json:"due_date"`
	AssignedTo string `query:"assigned_to" json:"assigned_to"`
	Search     string `query:"search" json:"search"`

	// AssigneeID restricts to tasks assigned to one user id. It is not
	// reachable from the query string.
	AssigneeID int64 `query:"-" json:"-"`
}

// Build renders the WHERE clause (without the keyword) and its arguments.
// Related-row criteria use EXISTS so a task matching through several rows
// still comes back once.
func (f TaskFilter) Build() (string, []any, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		conds = append(conds, "t.status = "+arg(f.Status))
	}
	if f.Priority != "" {
		conds = append(conds, "t.priority = "+arg(f.Priority))
	}
	if f.Category != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM categories fc WHERE fc.id = t.category_id AND fc.name = "+arg(f.Category)+")")
	}
	if f.Tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM task_tags ftt JOIN tags ft ON ft.id = ftt.tag_id WHERE ftt.task_id = t.id AND ft.name = "+arg(f.Tag)+")")
	}
	if f.DueDate != "" {
		due, err := models.ParseDate(f.DueDate)
		if err != nil {
			return "", nil, validation.Errors{"due_date": {"Enter a valid date."}}
		}
		conds = append(conds, "t.due_date = "+arg(due))
	}
	if f.AssignedTo != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM task_assignees fta JOIN users fu ON fu.id = fta.user_id WHERE fta.task_id = t.id AND fu.username = "+arg(f.AssignedTo)+")")
	}
	if f.AssigneeID != 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM task_assignees fta WHERE fta.task_id = t.id AND fta.user_id = "+arg(f.AssigneeID)+")")
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		conds = append(conds, "(t.title ILIKE "+p+" OR t.description ILIKE "+p+")")
	}

	if len(conds) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

// escapeLike makes the search term match literally inside ILIKE.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
