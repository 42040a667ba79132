// Package gateway translates the four task operations of the board into
// owner-scoped record store calls.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// RecordStore is the capability a task backend must provide.
type RecordStore interface {
	// ListTasks returns the owner's tasks, newest first. A non-empty search
	// keeps only rows whose title or description contains it, ignoring case.
	ListTasks(ctx context.Context, owner, search string) ([]domain.Task, error)
	// InsertTask stores t and returns the stored row.
	InsertTask(ctx context.Context, owner string, t domain.Task) (domain.Task, error)
	// UpdateTask applies patch to the row and returns it.
	UpdateTask(ctx context.Context, owner, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error)
	DeleteTask(ctx context.Context, owner, id string) error
}

// FetchError reports that the task list could not be loaded.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch tasks: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// Gateway is safe for concurrent use.
type Gateway struct {
	store  RecordStore
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a Gateway over store.
func New(store RecordStore, logger *log.Logger) *Gateway {
	if store == nil {
		panic("gateway.New: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gateway{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func requireOwner(owner string) error {
	if owner == "" {
		return &domain.AuthError{Reason: "you must be logged in"}
	}
	return nil
}

// FetchTasks loads the owner's tasks ordered by creation time, newest first.
func (g *Gateway) FetchTasks(ctx context.Context, owner, search string) (tasks []domain.Task, err error) {
	defer observe(opFetch, time.Now(), &err)
	if err := requireOwner(owner); err != nil {
		return nil, &FetchError{Err: err}
	}
	tasks, err = g.store.ListTasks(ctx, owner, search)
	if err != nil {
		g.logger.WithError(err).WithField("owner", owner).Error("fetch tasks failed")
		return nil, &FetchError{Err: err}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

// CreateTask stores a new task with defaults applied and both timestamps set.
func (g *Gateway) CreateTask(ctx context.Context, owner string, fields domain.TaskFields) (_ domain.Task, err error) {
	defer observe(opCreate, time.Now(), &err)
	if err := requireOwner(owner); err != nil {
		return domain.Task{}, err
	}
	fields = fields.WithDefaults()
	now := g.now()
	t := domain.Task{
		ID:          g.newID(),
		Title:       fields.Title,
		Description: fields.Description,
		Status:      fields.Status,
		Priority:    fields.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     fields.DueDate,
		Tags:        fields.Tags,
		Category:    fields.Category,
		Position:    fields.Position,
	}
	created, err := g.store.InsertTask(ctx, owner, t)
	if err != nil {
		return domain.Task{}, wrap("create task", err)
	}
	g.logger.WithFields(log.Fields{"owner": owner, "task": created.ID}).Debug("task created")
	return created, nil
}

// UpdateTask applies a partial change and refreshes updated_at.
func (g *Gateway) UpdateTask(ctx context.Context, owner, id string, patch domain.TaskPatch) (_ domain.Task, err error) {
	defer observe(opUpdate, time.Now(), &err)
	if err := requireOwner(owner); err != nil {
		return domain.Task{}, err
	}
	if id == "" {
		return domain.Task{}, &domain.NotFoundError{Kind: "task", ID: id}
	}
	updated, err := g.store.UpdateTask(ctx, owner, id, patch, g.now())
	if err != nil {
		return domain.Task{}, wrap("update task", err)
	}
	return updated, nil
}

// DeleteTask removes the task permanently.
func (g *Gateway) DeleteTask(ctx context.Context, owner, id string) (err error) {
	defer observe(opDelete, time.Now(), &err)
	if err := requireOwner(owner); err != nil {
		return err
	}
	if id == "" {
		return &domain.NotFoundError{Kind: "task", ID: id}
	}
	if err := g.store.DeleteTask(ctx, owner, id); err != nil {
		return wrap("delete task", err)
	}
	return nil
}

// wrap keeps typed domain errors as they are so callers can match them.
func wrap(op string, err error) error {
	if domain.IsAuth(err) || domain.IsNotFound(err) || domain.IsValidation(err) || domain.IsNetwork(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
