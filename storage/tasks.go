package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"taskboard/domain"
)

// transactionLimit is the most actions Table Storage accepts in one batch.
const transactionLimit = 100

type taskEntity struct {
	entity
	Title       string  `json:"Title"`
	Description string  `json:"Description"`
	Status      string  `json:"Status"`
	Priority    string  `json:"Priority"`
	CreatedAt   string  `json:"CreatedAt"`
	UpdatedAt   string  `json:"UpdatedAt"`
	DueDate     string  `json:"DueDate,omitempty"`
	Tags        string  `json:"Tags,omitempty"`
	Category    *string `json:"Category,omitempty"`
	Position    *int    `json:"Position,omitempty"`
}

func encodeTask(owner string, t domain.Task) ([]byte, error) {
	ent := taskEntity{
		entity:      entity{PartitionKey: owner, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Category:    t.Category,
		Position:    t.Position,
	}
	if t.DueDate != nil {
		ent.DueDate = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if len(t.Tags) > 0 {
		tags, err := sonic.MarshalString(t.Tags)
		if err != nil {
			return nil, err
		}
		ent.Tags = tags
	}
	return sonic.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      domain.Status(ent.Status),
		Priority:    domain.Priority(ent.Priority),
		Category:    ent.Category,
		Position:    ent.Position,
	}
	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, ent.CreatedAt); err != nil {
		return domain.Task{}, err
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, ent.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	if ent.DueDate != "" {
		due, err := time.Parse(time.RFC3339Nano, ent.DueDate)
		if err != nil {
			return domain.Task{}, err
		}
		t.DueDate = &due
	}
	if ent.Tags != "" {
		if err := sonic.UnmarshalString(ent.Tags, &t.Tags); err != nil {
			return domain.Task{}, err
		}
	}
	return t, nil
}

// matchesSearch is the OR substring match the query surface offers on title and description.
func matchesSearch(t domain.Task, search string) bool {
	q := strings.ToLower(search)
	return strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q)
}

// ListTasks retrieves the owner's tasks, newest first. Table Storage has no
// substring operator, so search is applied to the decoded rows.
func (s *Storage) ListTasks(ctx context.Context, owner, search string) ([]domain.Task, error) {
	filter := partitionFilter(owner)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapErr("list tasks", "task", owner, err)
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			if search != "" && !matchesSearch(t, search) {
				continue
			}
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

// InsertTask adds a new row and returns it as stored.
func (s *Storage) InsertTask(ctx context.Context, owner string, t domain.Task) (domain.Task, error) {
	if err := domain.ValidateRecord(t); err != nil {
		return domain.Task{}, err
	}
	payload, err := encodeTask(owner, t)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		if code, _, ok := statusCode(err); ok && code == 409 {
			return domain.Task{}, &domain.ValidationError{Fields: map[string]string{"id": "Task already exists"}}
		}
		return domain.Task{}, mapErr("insert task", "task", t.ID, err)
	}
	return t, nil
}

// UpdateTask reads the row, applies patch and replaces it guarded by the row's ETag.
func (s *Storage) UpdateTask(ctx context.Context, owner, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, owner, id, nil)
	if err != nil {
		return domain.Task{}, mapErr("get task", "task", id, err)
	}
	current, err := decodeTask(resp.Value)
	if err != nil {
		return domain.Task{}, err
	}
	next := patch.Apply(current)
	next.UpdatedAt = updatedAt
	if err := domain.ValidateRecord(next); err != nil {
		return domain.Task{}, err
	}
	payload, err := encodeTask(owner, next)
	if err != nil {
		return domain.Task{}, err
	}
	etag := resp.ETag
	if _, err := s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return domain.Task{}, mapErr("update task", "task", id, err)
	}
	return next, nil
}

// DeleteTask removes the row permanently.
func (s *Storage) DeleteTask(ctx context.Context, owner, id string) error {
	et := azcore.ETagAny
	if _, err := s.taskTable.DeleteEntity(ctx, owner, id, &aztables.DeleteEntityOptions{IfMatch: &et}); err != nil {
		return mapErr("delete task", "task", id, err)
	}
	return nil
}

// DeleteOwnerTasks removes every task of owner in batched transactions and
// returns how many rows were deleted.
func (s *Storage) DeleteOwnerTasks(ctx context.Context, owner string) (int, error) {
	filter := partitionFilter(owner)
	sel := "PartitionKey,RowKey"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Select: &sel})
	var keys []entity
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return 0, mapErr("list tasks", "task", owner, err)
		}
		for _, e := range resp.Entities {
			var k entity
			if err := sonic.Unmarshal(e, &k); err != nil {
				return 0, err
			}
			keys = append(keys, k)
		}
	}
	deleted := 0
	for _, batch := range deleteBatches(keys) {
		if _, err := s.taskTable.SubmitTransaction(ctx, batch, nil); err != nil {
			return deleted, mapErr("delete tasks", "task", owner, err)
		}
		deleted += len(batch)
	}
	return deleted, nil
}

func deleteBatches(keys []entity) [][]aztables.TransactionAction {
	var batches [][]aztables.TransactionAction
	et := azcore.ETagAny
	for start := 0; start < len(keys); start += transactionLimit {
		end := start + transactionLimit
		if end > len(keys) {
			end = len(keys)
		}
		batch := make([]aztables.TransactionAction, 0, end-start)
		for _, k := range keys[start:end] {
			payload, _ := sonic.Marshal(k)
			batch = append(batch, aztables.TransactionAction{
				ActionType: aztables.TransactionTypeDelete,
				Entity:     payload,
				IfMatch:    &et,
			})
		}
		batches = append(batches, batch)
	}
	return batches
}
