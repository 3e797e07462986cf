// Package validation holds the business rules a record must satisfy before
// it is persisted. Forms and the repository both call into it, so every
// rule is enforced on each save path independently.
package validation

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tasktracker/internal/models"
)

// NonField collects errors that do not belong to a single field.
const NonField = "__all__"

var (
	ErrDueDatePast  = errors.New("Due date cannot be in the past.")
	ErrNoAssignees  = errors.New("At least one user must be assigned to the task.")
	ErrFileTypeForm = errors.New("Only JPG, PNG, and PDF files are allowed.")
)

// AllowedAttachmentTypes is the MIME whitelist for task attachments.
var AllowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// Errors maps a field name to its messages.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Merge(other Errors) {
	for field, msgs := range other {
		e[field] = append(e[field], msgs...)
	}
}

func (e Errors) Empty() bool {
	return len(e) == 0
}

// Err returns e as an error, or nil when there is nothing to report.
func (e Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e[f], " ")))
	}
	return strings.Join(parts, "; ")
}

// AsErrors unwraps err into field errors when it carries any.
func AsErrors(err error) (Errors, bool) {
	var ve Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// DueDate rejects days before today. A due date equal to today is fine.
func DueDate(due models.Date, now time.Time) error {
	if due.Before(models.DateOf(now)) {
		return ErrDueDatePast
	}
	return nil
}

// AttachmentMIME infers the MIME type from the file name, the way the
// upload is described to the user, and without looking at the content.
func AttachmentMIME(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	ct := mime.TypeByExtension(ext)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// AttachmentType rejects files whose name implies a type outside the whitelist.
func AttachmentType(filename string) error {
	ct := AttachmentMIME(filename)
	if !AllowedAttachmentTypes[ct] {
		if ct == "" {
			ct = "unknown"
		}
		return fmt.Errorf("Invalid file type: %s. Allowed types: JPG, PNG, PDF.", ct)
	}
	return nil
}

// TaskFields checks the scalar task fields. Assignees are checked by the
// repository inside the write transaction.
func TaskFields(title string, due models.Date, priority models.Priority, status models.Status, now time.Time) Errors {
	errs := Errors{}
	if strings.TrimSpace(title) == "" {
		errs.Add("title", "This field is required.")
	} else if len([]rune(title)) > 200 {
		errs.Add("title", "Ensure this value has at most 200 characters.")
	}
	if due.IsZero() {
		errs.Add("due_date", "This field is required.")
	} else if err := DueDate(due, now); err != nil {
		errs.Add("due_date", err.Error())
	}
	if !priority.Valid() {
		errs.Add("priority", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", priority))
	}
	if !status.Valid() {
		errs.Add("status", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", status))
	}
	return errs
}

// Register installs the domain rules on v:
//
//	notpast     string date (YYYY-MM-DD) not before today
//	isodate     string parses as YYYY-MM-DD
//	taskstatus  one of the task statuses
//	priority    one of the task priorities
//	attachment  file name implies an allowed attachment type
//	username    letters, digits and @/./+/-/_
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	rules := map[string]validator.Func{
		"isodate": func(fl validator.FieldLevel) bool {
			_, err := models.ParseDate(fl.Field().String())
			return err == nil
		},
		"notpast": func(fl validator.FieldLevel) bool {
			d, err := models.ParseDate(fl.Field().String())
			if err != nil {
				// isodate reports the format problem
				return true
			}
			return DueDate(d, time.Now()) == nil
		},
		"taskstatus": func(fl validator.FieldLevel) bool {
			return models.Status(fl.Field().String()).Valid()
		},
		"priority": func(fl validator.FieldLevel) bool {
			return models.Priority(fl.Field().String()).Valid()
		},
		"attachment": func(fl validator.FieldLevel) bool {
			return AttachmentType(fl.Field().String()) == nil
		},
		"username": func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// FromValidator turns validator errors into field errors keyed by the
// form field name.
func FromValidator(err error) Errors {
	errs := Errors{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add(NonField, err.Error())
		return errs
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "The two password fields didn't match."
	case "isodate":
		return "Enter a valid date."
	case "notpast":
		return ErrDueDatePast.Error()
	case "taskstatus", "priority":
		return fmt.Sprintf("Select a valid choice. %v is not one of the available choices.", fe.Value())
	case "attachment":
		return ErrFileTypeForm.Error()
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	default:
		return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
	}
}
