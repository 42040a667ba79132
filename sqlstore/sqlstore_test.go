package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var base = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newTask(id, title, desc string, age time.Duration) domain.Task {
	created := base.Add(-age)
	return domain.Task{
		ID:          id,
		Title:       title,
		Description: desc,
		Status:      domain.StatusPending,
		Priority:    domain.PriorityMedium,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestListTasksOrderSearchAndOwnership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, task := range []domain.Task{
		newTask("1", "Fix login bug", "Users cannot sign in", 3*time.Hour),
		newTask("2", "Write docs", "Describe the API", 2*time.Hour),
		newTask("3", "Review PR", "Check the BUG fix", time.Hour),
	} {
		_, err := s.InsertTask(ctx, "alice", task)
		require.NoError(t, err)
	}
	_, err := s.InsertTask(ctx, "bob", newTask("4", "Bug hunt", "bob's", 0))
	require.NoError(t, err)

	all, err := s.ListTasks(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"3", "2", "1"}, ids(all))

	found, err := s.ListTasks(ctx, "alice", "bug")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, ids(found))

	none, err := s.ListTasks(ctx, "carol", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSearchEscapesWildcards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTask(ctx, "alice", newTask("1", "Reach 1000 users", "growth", 0))
	require.NoError(t, err)
	_, err = s.InsertTask(ctx, "alice", newTask("2", "Coverage at 100%", "quality", time.Minute))
	require.NoError(t, err)

	found, err := s.ListTasks(ctx, "alice", "100%")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(found))
}

func TestInsertTaskRoundTripsOptionalFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	task := newTask("1", "Plan sprint", "Pick stories", 0)
	due := base.Add(24 * time.Hour)
	cat := "work"
	pos := 0
	task.DueDate = &due
	task.Tags = []string{"planning", "team"}
	task.Category = &cat
	task.Position = &pos

	stored, err := s.InsertTask(ctx, "alice", task)
	require.NoError(t, err)
	require.NotNil(t, stored.DueDate)
	assert.True(t, stored.DueDate.Equal(due))
	assert.Equal(t, []string{"planning", "team"}, stored.Tags)
	require.NotNil(t, stored.Category)
	assert.Equal(t, "work", *stored.Category)
	require.NotNil(t, stored.Position)
	assert.Equal(t, 0, *stored.Position)
	assert.True(t, stored.CreatedAt.Equal(task.CreatedAt))
}

func TestInsertTaskRejectsInvalidRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTask(ctx, "alice", newTask("1", "", "desc", 0))
	assert.True(t, domain.IsValidation(err), "got %v", err)

	_, err = s.InsertTask(ctx, "alice", newTask("2", "ok", "desc", 0))
	require.NoError(t, err)
	_, err = s.InsertTask(ctx, "alice", newTask("2", "again", "desc", 0))
	assert.True(t, domain.IsValidation(err), "got %v", err)
}

func TestUpdateTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTask(ctx, "alice", newTask("1", "Draft", "first pass", 0))
	require.NoError(t, err)

	status := domain.StatusInProgress
	pos := 4
	noCategory := ""
	later := base.Add(time.Hour)
	updated, err := s.UpdateTask(ctx, "alice", "1", domain.TaskPatch{Status: &status, Position: &pos, Category: &noCategory}, later)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Equal(t, "Draft", updated.Title)
	assert.True(t, updated.UpdatedAt.Equal(later))

	listed, err := s.ListTasks(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.StatusInProgress, listed[0].Status)
	require.NotNil(t, listed[0].Position)
	assert.Equal(t, 4, *listed[0].Position)

	empty := " "
	_, err = s.UpdateTask(ctx, "alice", "1", domain.TaskPatch{Title: &empty}, later)
	assert.True(t, domain.IsValidation(err), "got %v", err)
}

func TestUpdateTaskErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.InsertTask(ctx, "alice", newTask("1", "Mine", "alice's", 0))
	require.NoError(t, err)

	title := "stolen"
	_, err = s.UpdateTask(ctx, "alice", "missing", domain.TaskPatch{Title: &title}, base)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)

	_, err = s.UpdateTask(ctx, "mallory", "1", domain.TaskPatch{Title: &title}, base)
	assert.True(t, domain.IsAuth(err), "got %v", err)

	listed, err := s.ListTasks(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "Mine", listed[0].Title)
}

func TestDeleteTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.InsertTask(ctx, "alice", newTask("1", "Mine", "alice's", 0))
	require.NoError(t, err)

	assert.True(t, domain.IsAuth(s.DeleteTask(ctx, "mallory", "1")))
	require.NoError(t, s.DeleteTask(ctx, "alice", "1"))
	assert.True(t, domain.IsNotFound(s.DeleteTask(ctx, "alice", "1")))
}

func TestDeleteOwnerTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		_, err := s.InsertTask(ctx, "alice", newTask(id, "t"+id, "d", 0))
		require.NoError(t, err)
	}
	_, err := s.InsertTask(ctx, "bob", newTask("4", "t4", "d", 0))
	require.NoError(t, err)

	n, err := s.DeleteOwnerTasks(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	left, err := s.ListTasks(ctx, "bob", "")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestAccounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	acct := domain.Account{UserID: "u1", Email: "Ada@Example.com", PasswordHash: "h1", CreatedAt: base}
	require.NoError(t, s.InsertAccount(ctx, acct))

	err := s.InsertAccount(ctx, domain.Account{UserID: "u2", Email: "ada@example.com ", PasswordHash: "h2", CreatedAt: base})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email")

	got, err := s.GetAccount(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "h1", got.PasswordHash)

	require.NoError(t, s.UpdatePasswordHash(ctx, "ada@example.com", "h3"))
	got, err = s.GetAccount(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h3", got.PasswordHash)

	require.NoError(t, s.DeleteAccount(ctx, "ada@example.com"))
	_, err = s.GetAccount(ctx, "ada@example.com")
	assert.True(t, domain.IsNotFound(err))
	assert.True(t, domain.IsNotFound(s.UpdatePasswordHash(ctx, "ada@example.com", "h4")))
}

func TestProfilesAndSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := domain.Profile{UserID: "u1", Email: "ada@example.com", FullName: "Ada L", Username: "ada", CreatedAt: base}
	require.NoError(t, s.UpsertProfile(ctx, p))
	p.FullName = "Ada Lovelace"
	require.NoError(t, s.UpsertProfile(ctx, p))

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)

	require.NoError(t, s.DeleteProfile(ctx, "u1"))
	require.NoError(t, s.DeleteProfile(ctx, "u1"))
	_, err = s.GetProfile(ctx, "u1")
	assert.True(t, domain.IsNotFound(err))

	theme, err := s.GetTheme(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.Theme(""), theme)

	require.NoError(t, s.SaveTheme(ctx, "u1", domain.ThemeDark))
	require.NoError(t, s.SaveTheme(ctx, "u1", domain.ThemeLight))
	theme, err = s.GetTheme(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeLight, theme)
}

func TestCommandQueue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueMail(ctx, domain.Command{ID: "m1", Type: domain.CommandPasswordReset}))
	require.NoError(t, s.EnqueueCommand(ctx, domain.Command{ID: "c1", Type: domain.CommandDeleteUser, UserID: "u1"}))
	require.NoError(t, s.EnqueueCommand(ctx, domain.Command{ID: "c2", Type: domain.CommandDeleteUser, UserID: "u2"}))

	first, err := s.DequeueCommand(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, domain.CommandDeleteUser, first.Type)

	again, err := s.DequeueCommand(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.MessageID, again.MessageID, "unacked commands are redelivered")

	require.NoError(t, s.AckCommand(ctx, *first))
	second, err := s.DequeueCommand(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.MessageID, second.MessageID)
	require.NoError(t, s.AckCommand(ctx, *second))

	empty, err := s.DequeueCommand(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty, "mail requests are not account commands")
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func ids(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
