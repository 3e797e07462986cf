package models

import (
	"database/sql"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

type Role string

const (
	RoleManager    Role = "Manager"
	RoleSubManager Role = "Sub-Manager"
	RoleOfficer    Role = "Officer"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRef is the short form of a user embedded in other records.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Profile struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	Role           Role           `json:"role"`
	DisplayName    sql.NullString `json:"-"`
	ProfilePicture sql.NullString `json:"-"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     Date      `json:"due_date"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	CategoryID  *int64    `json:"category_id"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Category   *Category `json:"category"`    // joined
	AssignedTo []UserRef `json:"assigned_to"` // loaded after the main query
	Tags       []Tag     `json:"tags"`        // loaded after the main query
}

// IsOverdue reports whether the task is past due on the given day and not completed.
func (t Task) IsOverdue(today Date) bool {
	return t.DueDate.Before(today) && t.Status != StatusCompleted
}

type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	User      UserRef   `json:"user"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Attachment struct {
	ID           int64     `json:"id"`
	TaskID       int64     `json:"task_id"`
	UploadedBy   UserRef   `json:"uploaded_by"`
	File         string    `json:"file"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// DashboardStats are counted over the tasks assigned to one user.
type DashboardStats struct {
	Total     int `json:"total_tasks"`
	Completed int `json:"completed_tasks"`
	Overdue   int `json:"overdue_tasks"`
	Pending   int `json:"pending_tasks"`
}
