package repository_test

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/internal/testutil"
	"tasktracker/internal/validation"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	db, purge, err := testutil.StartPostgres()
	if err != nil {
		log.Printf("integration tests skipped: %v", err)
	} else {
		testDB = db
	}

	code := m.Run()
	if purge != nil {
		purge()
	}
	os.Exit(code)
}

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	if testDB == nil {
		t.Skip("no database available")
	}
	require.NoError(t, repository.TruncateAll(testDB))
	return repository.NewStore(testDB)
}

func createUser(t *testing.T, s *repository.Store, name string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, name+"@example.com", "hash")
	require.NoError(t, err)
	return u
}

func taskInput(title string, assignees ...int64) repository.TaskInput {
	return repository.TaskInput{
		Title:      title,
		DueDate:    models.Today().AddDays(7),
		Priority:   models.PriorityMedium,
		Status:     models.StatusPending,
		AssignedTo: assignees,
	}
}

func countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, testDB.QueryRow(query, args...).Scan(&n))
	return n
}

func ids(tasks []models.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCreateUserCreatesProfile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u := createUser(t, s, "alice")
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM profiles WHERE user_id = $1", u.ID))

	p, err := s.GetOrCreateProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOfficer, p.Role)
	assert.False(t, p.DisplayName.Valid)

	_, err = s.CreateUser(ctx, "alice", "", "hash")
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestGetOrCreateProfileConcurrent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var userID int64
	require.NoError(t, testDB.QueryRow(
		"INSERT INTO users (username, password) VALUES ('bob', 'x') RETURNING id").Scan(&userID))

	const workers = 8
	var wg sync.WaitGroup
	profiles := make([]*models.Profile, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			profiles[i], errs[i] = s.GetOrCreateProfile(ctx, userID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, profiles[0].ID, profiles[i].ID)
	}
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM profiles WHERE user_id = $1", userID))
}

func TestGetOrCreateProfileUnknownUser(t *testing.T) {
	s := newStore(t)
	_, err := s.GetOrCreateProfile(context.Background(), 9999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "carol")

	p, err := s.GetOrCreateProfile(ctx, u.ID)
	require.NoError(t, err)
	p.DisplayName = sql.NullString{String: "Carol C.", Valid: true}
	p.ProfilePicture = sql.NullString{String: "profile_pics/x.png", Valid: true}
	require.NoError(t, s.UpdateProfile(ctx, p))

	got, err := s.GetOrCreateProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol C.", got.DisplayName.String)
	assert.Equal(t, "profile_pics/x.png", got.ProfilePicture.String)
}

func TestCreateTaskRequiresAssignee(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "dave")

	_, err := s.CreateTask(ctx, taskInput("Nobody owns this"), u.ID)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.ErrNoAssignees.Error()}, errs["assigned_to"])

	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM tasks"), "rolled back")
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM tags"))
}

func TestUpdateTaskCannotDropAllAssignees(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "erin")

	task, err := s.CreateTask(ctx, taskInput("Keep me assigned", u.ID), u.ID)
	require.NoError(t, err)

	in := taskInput("Renamed")
	_, err = s.UpdateTask(ctx, task.ID, in)
	_, ok := validation.AsErrors(err)
	require.True(t, ok)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Keep me assigned", got.Title)
	require.Len(t, got.AssignedTo, 1)
	assert.Equal(t, u.ID, got.AssignedTo[0].ID)
}

func TestCreateTaskUnknownAssignee(t *testing.T) {
	s := newStore(t)
	u := createUser(t, s, "frank")

	_, err := s.CreateTask(context.Background(), taskInput("Ghost", u.ID, 4242), u.ID)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "assigned_to")
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM tasks"))
}

func TestDueDateRevalidatedOnUpdate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "gina")

	in := taskInput("Due today", u.ID)
	in.DueDate = models.Today()
	task, err := s.CreateTask(ctx, in, u.ID)
	require.NoError(t, err, "due today is allowed")

	// A day later the same due date is in the past.
	s.Now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	_, err = s.UpdateTask(ctx, task.ID, in)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.ErrDueDatePast.Error()}, errs["due_date"])
}

func TestTaskTagsAndNewTags(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "hank")

	in := taskInput("Tagged", u.ID)
	in.NewTags = []string{" urgent ", "backend", "", "urgent"}
	task, err := s.CreateTask(ctx, in, u.ID)
	require.NoError(t, err)
	require.Len(t, task.Tags, 2)
	assert.Equal(t, "backend", task.Tags[0].Name)
	assert.Equal(t, "urgent", task.Tags[1].Name)

	// Existing tag names are reused, not duplicated.
	in2 := taskInput("Also urgent", u.ID)
	in2.NewTags = []string{"urgent"}
	_, err = s.CreateTask(ctx, in2, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, "SELECT COUNT(*) FROM tags"))

	// Update keeps only the selected tags plus the new ones.
	in.TagIDs = []int64{task.Tags[1].ID}
	in.NewTags = []string{"frontend"}
	updated, err := s.UpdateTask(ctx, task.ID, in)
	require.NoError(t, err)
	var names []string
	for _, g := range updated.Tags {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"frontend", "urgent"}, names)
}

func TestFilterComposition(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "ivan")
	other := createUser(t, s, "judy")

	work, err := s.CreateCategory(ctx, "Work")
	require.NoError(t, err)

	t1in := taskInput("Fix login bug", u.ID)
	t1in.Priority = models.PriorityHigh
	t1in.NewTags = []string{"urgent", "urgent-2", "backend"}
	t1in.CategoryID = &work.ID
	t1, err := s.CreateTask(ctx, t1in, u.ID)
	require.NoError(t, err)

	t2in := taskInput("Write docs", other.ID)
	t2in.Priority = models.PriorityLow
	t2in.Status = models.StatusCompleted
	t2in.Description = "Document the LOGIN flow"
	t2, err := s.CreateTask(ctx, t2in, u.ID)
	require.NoError(t, err)

	cases := []struct {
		name   string
		filter repository.TaskFilter
		want   []int64
	}{
		{"no filter", repository.TaskFilter{}, []int64{t1.ID, t2.ID}},
		{"status and priority", repository.TaskFilter{Status: "Pending", Priority: "High"}, []int64{t1.ID}},
		{"status mismatch", repository.TaskFilter{Status: "Completed", Priority: "High"}, []int64{}},
		{"tag", repository.TaskFilter{Tag: "urgent"}, []int64{t1.ID}},
		{"category", repository.TaskFilter{Category: "Work"}, []int64{t1.ID}},
		{"assignee", repository.TaskFilter{AssignedTo: "judy"}, []int64{t2.ID}},
		{"due date", repository.TaskFilter{DueDate: t1.DueDate.String()}, []int64{t1.ID, t2.ID}},
		{"search title", repository.TaskFilter{Search: "login"}, []int64{t1.ID, t2.ID}},
		{"search case", repository.TaskFilter{Search: "BUG"}, []int64{t1.ID}},
		{"search miss", repository.TaskFilter{Search: "zzz"}, []int64{}},
		{"search and status", repository.TaskFilter{Search: "login", Status: "Completed"}, []int64{t2.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListTasks(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestFilterTagDeduplicates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "kim")
	v := createUser(t, s, "leo")

	in := taskInput("Shared", u.ID, v.ID)
	in.NewTags = []string{"urgent", "later"}
	task, err := s.CreateTask(ctx, in, u.ID)
	require.NoError(t, err)

	got, err := s.ListTasks(ctx, repository.TaskFilter{Tag: "urgent", Search: "shared"})
	require.NoError(t, err)
	assert.Equal(t, []int64{task.ID}, ids(got))
	assert.Len(t, got[0].AssignedTo, 2)
}

func TestDashboardStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "mia")
	other := createUser(t, s, "ned")

	// Create the overdue task while "today" is in the past.
	s.Now = func() time.Time { return time.Now().AddDate(0, 0, -10) }
	past := taskInput("Overdue pending", u.ID)
	past.DueDate = models.Today().AddDays(-3)
	_, err := s.CreateTask(ctx, past, u.ID)
	require.NoError(t, err)
	s.Now = time.Now

	done := taskInput("Done", u.ID)
	done.Status = models.StatusCompleted
	_, err = s.CreateTask(ctx, done, u.ID)
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, taskInput("Future pending", u.ID), u.ID)
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, taskInput("Not mine", other.ID), u.ID)
	require.NoError(t, err)

	st, err := s.DashboardStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{Total: 3, Completed: 1, Overdue: 1, Pending: 2}, st)

	tasks, err := s.AssignedTasks(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestDeleteTaskCascades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "olga")

	in := taskInput("Delete me", u.ID)
	in.NewTags = []string{"temp"}
	task, err := s.CreateTask(ctx, in, u.ID)
	require.NoError(t, err)

	_, err = s.AddComment(ctx, task.ID, u.ID, "first")
	require.NoError(t, err)
	a := &models.Attachment{TaskID: task.ID, UploadedBy: models.UserRef{ID: u.ID},
		File: "task_attachments/a.pdf", OriginalName: "a.pdf", ContentType: "application/pdf", Size: 10}
	require.NoError(t, s.AddAttachment(ctx, a))

	files, err := s.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"task_attachments/a.pdf"}, files)

	for _, table := range []string{"tasks", "comments", "attachments", "task_tags", "task_assignees"} {
		assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM "+table), table)
	}
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM tags"), "tags themselves survive")

	_, err = s.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteCategoryNullsReference(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "pete")

	c, err := s.CreateCategory(ctx, "Home")
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, "Home")
	_, ok := validation.AsErrors(err)
	assert.True(t, ok, "duplicate name is a validation error")

	in := taskInput("Clean", u.ID)
	in.CategoryID = &c.ID
	task, err := s.CreateTask(ctx, in, u.ID)
	require.NoError(t, err)
	require.NotNil(t, task.Category)
	assert.Equal(t, "Home", task.Category.Name)

	require.NoError(t, s.DeleteCategory(ctx, c.ID))
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.Nil(t, got.Category)
}

func TestAddAttachmentRejectsType(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "quinn")
	task, err := s.CreateTask(ctx, taskInput("Files", u.ID), u.ID)
	require.NoError(t, err)

	a := &models.Attachment{TaskID: task.ID, UploadedBy: models.UserRef{ID: u.ID},
		File: "task_attachments/x.txt", OriginalName: "notes.txt", ContentType: "text/plain"}
	err = s.AddAttachment(ctx, a)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "file")
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM attachments"))

	list, err := s.ListAttachments(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCommentsOrdered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "rita")
	task, err := s.CreateTask(ctx, taskInput("Talk", u.ID), u.ID)
	require.NoError(t, err)

	_, err = s.AddComment(ctx, task.ID, u.ID, "   ")
	_, ok := validation.AsErrors(err)
	assert.True(t, ok)

	c1, err := s.AddComment(ctx, task.ID, u.ID, "one")
	require.NoError(t, err)
	assert.Equal(t, "rita", c1.User.Username)
	_, err = s.AddComment(ctx, task.ID, u.ID, "two")
	require.NoError(t, err)

	comments, err := s.ListComments(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "one", comments[0].Content)

	_, err = s.AddComment(ctx, 9999, u.ID, "lost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAddTaskNotesIsAtomic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := createUser(t, s, "sven")
	task, err := s.CreateTask(ctx, taskInput("Notes", u.ID), u.ID)
	require.NoError(t, err)

	_, err = s.AddTaskNotes(ctx, task.ID, u.ID, " ", nil)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, validation.NonField)

	// The attachment row fails after the comment row was written.
	bad := &models.Attachment{File: strings.Repeat("x", 300), OriginalName: "scan.pdf", ContentType: "application/pdf"}
	_, err = s.AddTaskNotes(ctx, task.ID, u.ID, "see attached", bad)
	require.Error(t, err)
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM comments"))
	assert.Equal(t, 0, countRows(t, "SELECT COUNT(*) FROM attachments"))

	good := &models.Attachment{File: "task_attachments/a.pdf", OriginalName: "scan.pdf", ContentType: "application/pdf", Size: 12}
	c, err := s.AddTaskNotes(ctx, task.ID, u.ID, "see attached", good)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "sven", c.User.Username)
	assert.NotZero(t, good.ID)
	assert.Equal(t, task.ID, good.TaskID)
	assert.Equal(t, "sven", good.UploadedBy.Username)

	c, err = s.AddTaskNotes(ctx, task.ID, u.ID, "", &models.Attachment{File: "task_attachments/b.png", OriginalName: "b.png", ContentType: "image/png"})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM comments"))
	assert.Equal(t, 2, countRows(t, "SELECT COUNT(*) FROM attachments"))

	_, err = s.AddTaskNotes(ctx, 9999, u.ID, "lost", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeletedUserWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	gone := createUser(t, s, "gone")
	stays := createUser(t, s, "stays")
	task, err := s.CreateTask(ctx, taskInput("Kept", stays.ID), stays.ID)
	require.NoError(t, err)

	_, err = testDB.Exec("DELETE FROM users WHERE id = $1", gone.ID)
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, taskInput("Orphan", stays.ID), gone.ID)
	assert.ErrorIs(t, err, repository.ErrUnknownUser)
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM tasks"))

	_, err = s.AddTaskNotes(ctx, task.ID, gone.ID, "hello", nil)
	assert.ErrorIs(t, err, repository.ErrUnknownUser)

	cat := int64(424242)
	in := taskInput("Bad category", stays.ID)
	in.CategoryID = &cat
	_, err = s.CreateTask(ctx, in, stays.ID)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, errs, "category")
}

func TestCreateAdminUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	createUser(t, s, "root")

	u, err := s.CreateAdminUser(ctx, "root", "adminpass")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.Equal(t, 1, countRows(t, "SELECT COUNT(*) FROM profiles WHERE user_id = $1", u.ID))

	_, hash, err := s.UserCredentials(ctx, "root")
	require.NoError(t, err)
	assert.NotEqual(t, "hash", hash)
}

func TestCanDelete(t *testing.T) {
	creator := int64(1)
	task := &models.Task{CreatedBy: &creator}
	assert.True(t, repository.CanDelete(task, 1, false))
	assert.False(t, repository.CanDelete(task, 2, false))
	assert.True(t, repository.CanDelete(task, 2, true))
	assert.False(t, repository.CanDelete(&models.Task{}, 1, false))
}

func TestResetSchema(t *testing.T) {
	s := newStore(t)
	createUser(t, s, "before-reset")

	require.NoError(t, repository.DeleteAllTable(testDB))
	require.NoError(t, repository.CreateTableIfNotExists(testDB))

	assert.Equal(t, 0, countRows(t, `SELECT COUNT(*) FROM users`))
	createUser(t, s, "after-reset")
	assert.Equal(t, 1, countRows(t, `SELECT COUNT(*) FROM profiles`))
}
