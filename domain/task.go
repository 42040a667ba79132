package domain

import (
	"strings"
	"time"
)

// Status is the board column a task belongs to.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists the board columns in display order.
var Statuses = [...]Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority ranks a task for the list and dashboard views.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// MaxTitleLength is the longest title accepted by the task form.
const MaxTitleLength = 100

// Task is the single persisted entity of the board.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Position    *int       `json:"position,omitempty"`
}

// Overdue reports whether the due date has passed on an unfinished task.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusCompleted
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Task) Clone() Task {
	c := t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.Category != nil {
		s := *t.Category
		c.Category = &s
	}
	if t.Position != nil {
		p := *t.Position
		c.Position = &p
	}
	return c
}

// TaskFields carries the values submitted when creating a task.
type TaskFields struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Position    *int       `json:"position,omitempty"`
}

// WithDefaults fills the status and priority a new task starts with.
func (f TaskFields) WithDefaults() TaskFields {
	if f.Status == "" {
		f.Status = StatusPending
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	f.Tags = NormalizeTags(f.Tags)
	return f
}

// TaskPatch is a partial update; only non-nil fields change.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ClearDue    bool       `json:"clear_due_date,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Position    *int       `json:"position,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && !p.ClearDue && p.Tags == nil && p.Category == nil && p.Position == nil
}

// Apply merges the patch into t and returns the result.
func (p TaskPatch) Apply(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.ClearDue {
		out.DueDate = nil
	}
	if p.DueDate != nil {
		d := *p.DueDate
		out.DueDate = &d
	}
	if p.Tags != nil {
		out.Tags = NormalizeTags(*p.Tags)
	}
	if p.Category != nil {
		if *p.Category == "" {
			out.Category = nil
		} else {
			c := *p.Category
			out.Category = &c
		}
	}
	if p.Position != nil {
		pos := *p.Position
		out.Position = &pos
	}
	return out
}

// NormalizeTags trims labels, drops blanks and suppresses repeats, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// AddTag appends tag unless it is blank or already present.
func AddTag(tags []string, tag string) []string {
	return NormalizeTags(append(append([]string(nil), tags...), tag))
}
