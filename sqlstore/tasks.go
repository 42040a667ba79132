package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"taskboard/domain"
)

const taskColumns = `id, title, description, status, priority, created_at, updated_at, due_date, tags, category, position`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (domain.Task, error) {
	var (
		t                   domain.Task
		status, priority    string
		created, updated    string
		due, tags, category sql.NullString
		position            sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &created, &updated, &due, &tags, &category, &position); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return domain.Task{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Task{}, err
	}
	if due.Valid {
		d, err := parseTime(due.String)
		if err != nil {
			return domain.Task{}, err
		}
		t.DueDate = &d
	}
	if tags.Valid && tags.String != "" {
		if err := sonic.UnmarshalString(tags.String, &t.Tags); err != nil {
			return domain.Task{}, err
		}
	}
	if category.Valid {
		c := category.String
		t.Category = &c
	}
	if position.Valid {
		p := int(position.Int64)
		t.Position = &p
	}
	return t, nil
}

func taskArgs(t domain.Task) ([]any, error) {
	var due, tags, category sql.NullString
	var position sql.NullInt64
	if t.DueDate != nil {
		due = sql.NullString{String: formatTime(*t.DueDate), Valid: true}
	}
	if len(t.Tags) > 0 {
		data, err := sonic.MarshalString(t.Tags)
		if err != nil {
			return nil, err
		}
		tags = sql.NullString{String: data, Valid: true}
	}
	if t.Category != nil {
		category = sql.NullString{String: *t.Category, Valid: true}
	}
	if t.Position != nil {
		position = sql.NullInt64{Int64: int64(*t.Position), Valid: true}
	}
	return []any{t.Title, t.Description, string(t.Status), string(t.Priority), formatTime(t.CreatedAt), formatTime(t.UpdatedAt), due, tags, category, position}, nil
}

// likePattern escapes LIKE wildcards in search and wraps it for a substring match.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(search)) + "%"
}

// ListTasks selects the owner's rows, newest first, optionally matching search
// against title or description.
func (s *Store) ListTasks(ctx context.Context, owner, search string) ([]domain.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{owner}
	if search != "" {
		q += ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`
		p := likePattern(search)
		args = append(args, p, p)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, mapErr("list tasks", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, mapErr("list tasks", rows.Err())
}

// InsertTask stores t for owner and returns the stored row.
func (s *Store) InsertTask(ctx context.Context, owner string, t domain.Task) (domain.Task, error) {
	if err := domain.ValidateRecord(t); err != nil {
		return domain.Task{}, err
	}
	args, err := taskArgs(t)
	if err != nil {
		return domain.Task{}, err
	}
	args = append([]any{t.ID, owner}, args...)
	_, err = s.exec(ctx, `INSERT INTO tasks (id, user_id, title, description, status, priority, created_at, updated_at, due_date, tags, category, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Task{}, &domain.ValidationError{Fields: map[string]string{"id": "Task already exists"}}
		}
		return domain.Task{}, mapErr("insert task", err)
	}
	return s.getTask(ctx, owner, t.ID)
}

// getTask loads one row. A row owned by someone else is an AuthError.
func (s *Store) getTask(ctx context.Context, owner, id string) (domain.Task, error) {
	var rowOwner string
	row := s.queryRow(ctx, `SELECT user_id, `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(ownerScanner{row: row, owner: &rowOwner})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, &domain.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return domain.Task{}, mapErr("get task", err)
	}
	if rowOwner != owner {
		return domain.Task{}, &domain.AuthError{Reason: "task belongs to another user"}
	}
	return t, nil
}

// ownerScanner reads the leading user_id column before the task columns.
type ownerScanner struct {
	row   scanner
	owner *string
}

func (o ownerScanner) Scan(dest ...any) error {
	return o.row.Scan(append([]any{o.owner}, dest...)...)
}

// UpdateTask applies patch to the owner's row and returns the result.
func (s *Store) UpdateTask(ctx context.Context, owner, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error) {
	current, err := s.getTask(ctx, owner, id)
	if err != nil {
		return domain.Task{}, err
	}
	next := patch.Apply(current)
	next.UpdatedAt = updatedAt
	if err := domain.ValidateRecord(next); err != nil {
		return domain.Task{}, err
	}
	args, err := taskArgs(next)
	if err != nil {
		return domain.Task{}, err
	}
	args = append(args, id, owner)
	res, err := s.exec(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, created_at = ?, updated_at = ?,
		due_date = ?, tags = ?, category = ?, position = ? WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return domain.Task{}, mapErr("update task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Task{}, &domain.NotFoundError{Kind: "task", ID: id}
	}
	return next, nil
}

// DeleteTask removes the owner's row permanently.
func (s *Store) DeleteTask(ctx context.Context, owner, id string) error {
	if _, err := s.getTask(ctx, owner, id); err != nil {
		return err
	}
	if _, err := s.exec(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, owner); err != nil {
		return mapErr("delete task", err)
	}
	return nil
}

// DeleteOwnerTasks removes every row of owner.
func (s *Store) DeleteOwnerTasks(ctx context.Context, owner string) (int, error) {
	res, err := s.exec(ctx, `DELETE FROM tasks WHERE user_id = ?`, owner)
	if err != nil {
		return 0, mapErr("delete tasks", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr("delete tasks", err)
	}
	return int(n), nil
}
