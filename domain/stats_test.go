package domain

import (
	"testing"
	"time"
)

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	tasks := []Task{
		{Status: StatusCompleted, Priority: PriorityHigh, DueDate: &past},
		{Status: StatusPending, Priority: PriorityHigh, DueDate: &past},
		{Status: StatusInProgress, Priority: PriorityLow},
	}

	s := ComputeStats(tasks, now)
	want := Stats{Total: 3, Pending: 1, InProgress: 1, Completed: 1, High: 2, Low: 1, Overdue: 1, CompletionRate: 33}
	if s != want {
		t.Fatalf("got %+v, want %+v", s, want)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	if s := ComputeStats(nil, time.Now()); s != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", s)
	}
}
