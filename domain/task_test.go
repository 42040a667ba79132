package domain

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalIncludesZeroPosition(t *testing.T) {
	pos := 0
	task := Task{ID: "t1", Title: "Title", Status: StatusPending, Priority: PriorityMedium, Position: &pos}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	if !strings.Contains(string(payload), "\"position\":0") {
		t.Fatalf("expected position field to be present, got %s", payload)
	}
	if strings.Contains(string(payload), "due_date") {
		t.Fatalf("expected absent due date to be omitted, got %s", payload)
	}
}

func TestFieldsWithDefaults(t *testing.T) {
	f := TaskFields{Title: "a", Description: "b", Tags: []string{"x", "x", " ", "y"}}.WithDefaults()
	if f.Status != StatusPending || f.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults: %s %s", f.Status, f.Priority)
	}
	if !reflect.DeepEqual(f.Tags, []string{"x", "y"}) {
		t.Fatalf("unexpected tags: %v", f.Tags)
	}

	f = TaskFields{Status: StatusCompleted, Priority: PriorityHigh}.WithDefaults()
	if f.Status != StatusCompleted || f.Priority != PriorityHigh {
		t.Fatalf("explicit values overwritten: %s %s", f.Status, f.Priority)
	}
}

func TestPatchApplyOnlyChangesProvidedFields(t *testing.T) {
	due := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	cat := "work"
	orig := Task{ID: "1", Title: "old", Description: "desc", Status: StatusPending, Priority: PriorityLow, DueDate: &due, Category: &cat, Tags: []string{"a"}}

	title := "new"
	status := StatusInProgress
	got := TaskPatch{Title: &title, Status: &status}.Apply(orig)

	if got.Title != "new" || got.Status != StatusInProgress {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.Description != "desc" || got.Priority != PriorityLow || *got.Category != "work" || !got.DueDate.Equal(due) {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if orig.Title != "old" {
		t.Fatalf("original mutated")
	}

	empty := ""
	cleared := TaskPatch{Category: &empty, ClearDue: true}.Apply(orig)
	if cleared.Category != nil || cleared.DueDate != nil {
		t.Fatalf("expected category and due date cleared: %+v", cleared)
	}
}

func TestPatchEmpty(t *testing.T) {
	if !(TaskPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
	pos := 3
	if (TaskPatch{Position: &pos}).Empty() {
		t.Fatal("position patch should not be empty")
	}
}

func TestOverdue(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := map[string]struct {
		task Task
		want bool
	}{
		"no due date":      {Task{Status: StatusPending}, false},
		"past pending":     {Task{Status: StatusPending, DueDate: &past}, true},
		"past in progress": {Task{Status: StatusInProgress, DueDate: &past}, true},
		"past completed":   {Task{Status: StatusCompleted, DueDate: &past}, false},
		"future pending":   {Task{Status: StatusPending, DueDate: &future}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := tc.task.Overdue(now); got != tc.want {
				t.Fatalf("Overdue() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAddTagSuppressesDuplicates(t *testing.T) {
	tags := AddTag([]string{"bug", "ui"}, "bug")
	tags = AddTag(tags, "backend")
	if !reflect.DeepEqual(tags, []string{"bug", "ui", "backend"}) {
		t.Fatalf("unexpected tags: %v", tags)
	}
}
