package forms

import (
	"strconv"
	"strings"

	"tasktracker/internal/config"
	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/internal/validation"
)

// TaskForm is the create/edit task submission.
type TaskForm struct {
	Title       string  `form:"title" json:"title" validate:"required,max=200"`
	Description string  `form:"description" json:"description"`
	DueDate     string  `form:"due_date" json:"due_date" validate:"required,isodate,notpast"`
	Priority    string  `form:"priority" json:"priority" validate:"required,priority"`
	Status      string  `form:"status" json:"status" validate:"required,taskstatus"`
	AssignedTo  []int64 `form:"assigned_to" json:"assigned_to"`
	Category    *int64  `form:"category" json:"category"`
	Tags        []int64 `form:"tags" json:"tags"`
	NewTags     string  `form:"new_tags" json:"new_tags"`
}

// TaskFormFrom fills the form from an existing task for editing.
func TaskFormFrom(t *models.Task) TaskForm {
	f := TaskForm{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate.String(),
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Category:    t.CategoryID,
	}
	for _, u := range t.AssignedTo {
		f.AssignedTo = append(f.AssignedTo, u.ID)
	}
	for _, g := range t.Tags {
		f.Tags = append(f.Tags, g.ID)
	}
	return f
}

// Clean validates the form and converts it to repository input.
func (f TaskForm) Clean() (repository.TaskInput, validation.Errors) {
	errs := Validate(f)
	if len(f.AssignedTo) == 0 {
		errs.Add("assigned_to", validation.ErrNoAssignees.Error())
	}
	if !errs.Empty() {
		return repository.TaskInput{}, errs
	}

	due, _ := models.ParseDate(f.DueDate)
	return repository.TaskInput{
		Title:       strings.TrimSpace(f.Title),
		Description: f.Description,
		DueDate:     due,
		Priority:    models.Priority(f.Priority),
		Status:      models.Status(f.Status),
		CategoryID:  f.Category,
		AssignedTo:  f.AssignedTo,
		TagIDs:      f.Tags,
		NewTags:     SplitTags(f.NewTags),
	}, nil
}

// SplitTags splits a comma separated list, dropping blank entries.
func SplitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Fields renders the descriptor with f as the current values.
func (f TaskForm) Fields(categories []models.Category, tags []models.Tag, users []models.User) []Field {
	priorities := make([]Choice, len(models.Priorities))
	for i, p := range models.Priorities {
		priorities[i] = Choice{Value: string(p), Label: string(p)}
	}
	statuses := make([]Choice, len(models.Statuses))
	for i, s := range models.Statuses {
		statuses[i] = Choice{Value: string(s), Label: string(s)}
	}
	userChoices := make([]Choice, len(users))
	for i, u := range users {
		userChoices[i] = Choice{Value: strconv.FormatInt(u.ID, 10), Label: u.Username}
	}
	categoryChoices := []Choice{{Value: "", Label: "---------"}}
	for _, c := range categories {
		categoryChoices = append(categoryChoices, Choice{Value: strconv.FormatInt(c.ID, 10), Label: c.Name})
	}
	tagChoices := make([]Choice, len(tags))
	for i, g := range tags {
		tagChoices[i] = Choice{Value: strconv.FormatInt(g.ID, 10), Label: g.Name}
	}

	priority := f.Priority
	if priority == "" {
		priority = string(models.PriorityMedium)
	}
	status := f.Status
	if status == "" {
		status = string(models.StatusPending)
	}

	return []Field{
		field("title", "Title", KindText, true).withValue(f.Title),
		field("description", "Description", KindTextarea, false).withValue(f.Description),
		field("due_date", "Due date", KindDate, true).withValue(f.DueDate),
		field("priority", "Priority", KindSelect, true).withChoices(priorities).withValue(priority),
		field("status", "Status", KindSelect, true).withChoices(statuses).withValue(status),
		field("assigned_to", "Assigned to", KindCheckboxMultiple, true).withChoices(userChoices).withValue(f.AssignedTo),
		field("category", "Category", KindSelect, false).withChoices(categoryChoices).withValue(f.Category),
		field("tags", "Tags", KindCheckboxMultiple, false).withChoices(tagChoices).withValue(f.Tags),
		field("new_tags", "New tags", KindText, false).withPlaceholder("Enter new tags separated by commas").withValue(f.NewTags),
	}
}

type CommentForm struct {
	Content string `form:"content" json:"content" validate:"required"`
}

func (f CommentForm) Fields() []Field {
	return []Field{field("content", "Content", KindTextarea, true).withValue(f.Content)}
}

// AttachmentForm checks the name of an uploaded file.
type AttachmentForm struct {
	File string `form:"file" validate:"required,attachment"`
}

func (AttachmentForm) Fields() []Field {
	return []Field{field("file", "File", KindFile, true)}
}

type ProfileForm struct {
	DisplayName string `form:"display_name" json:"display_name" validate:"max=100"`
}

func ProfileFormFrom(p *models.Profile) ProfileForm {
	return ProfileForm{DisplayName: p.DisplayName.String}
}

func (f ProfileForm) Fields() []Field {
	return []Field{
		field("display_name", "Display name", KindText, false).withValue(f.DisplayName),
		field("profile_picture", "Profile picture", KindFile, false),
	}
}

type RegisterForm struct {
	Username  string `form:"username" json:"username" validate:"required,max=150,username"`
	Email     string `form:"email" json:"email" validate:"omitempty,email"`
	Password1 string `form:"password1" json:"password1" validate:"required,min=8"`
	Password2 string `form:"password2" json:"password2" validate:"required,eqfield=Password1"`
}

func (RegisterForm) Fields() []Field {
	return []Field{
		field("username", "Username", KindText, true),
		field("email", "Email", KindEmail, false),
		field("password1", "Password", KindPassword, true),
		field("password2", "Password confirmation", KindPassword, true),
	}
}

type LoginForm struct {
	Username string `form:"username" json:"username" validate:"required"`
	Password string `form:"password" json:"password" validate:"required"`
}

// Validate runs the shared validator over a form struct.
func Validate(form any) validation.Errors {
	if err := config.Validate.Struct(form); err != nil {
		return validation.FromValidator(err)
	}
	return validation.Errors{}
}
