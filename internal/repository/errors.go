package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrUnknownUser means the acting user was deleted while holding a session.
	ErrUnknownUser = errors.New("user no longer exists")
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Foreign keys that point at the acting user rather than at the target record.
var actorConstraints = map[string]bool{
	"tasks_created_by_fkey":        true,
	"comments_user_id_fkey":        true,
	"attachments_uploaded_by_fkey": true,
}

func pqConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// foreignKeyError tells a vanished actor apart from a vanished target.
func foreignKeyError(err error) error {
	if actorConstraints[pqConstraint(err)] {
		return ErrUnknownUser
	}
	return ErrNotFound
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pqCode(err) == codeForeignKeyViolation
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
