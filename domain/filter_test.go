package domain

import (
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }

func sampleTasks() []Task {
	return []Task{
		{ID: "1", Title: "Fix login bug", Description: "users cannot sign in", Status: StatusPending, Priority: PriorityHigh, Category: strPtr("work")},
		{ID: "2", Title: "Groceries", Description: "milk, eggs", Status: StatusCompleted, Priority: PriorityLow, Tags: []string{"home"}},
		{ID: "3", Title: "Refactor", Description: "clean up the BUG tracker module", Status: StatusInProgress, Priority: PriorityMedium, Category: strPtr("work")},
		{ID: "4", Title: "Write report", Description: "quarterly", Status: StatusPending, Priority: PriorityMedium, Tags: []string{"Bugfix", "q3"}},
		{ID: "5", Title: "Call mom", Description: "weekend", Status: StatusPending, Priority: PriorityLow, Category: strPtr("family")},
	}
}

func ids(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilterIdentity(t *testing.T) {
	tasks := sampleTasks()
	got := Filter(tasks, Criteria{Status: All, Priority: All, Category: All})
	if !reflect.DeepEqual(got, tasks) {
		t.Fatalf("identity filter changed the list: %v", ids(got))
	}
	if got := Filter(tasks, Criteria{}); !reflect.DeepEqual(got, tasks) {
		t.Fatalf("empty criteria changed the list: %v", ids(got))
	}
}

func TestFilterSearchMatchesTitleDescriptionAndTags(t *testing.T) {
	got := Filter(sampleTasks(), Criteria{Search: "bug", Status: All, Priority: All, Category: All})
	want := []string{"1", "3", "4"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("search returned %v, want %v", ids(got), want)
	}
}

func TestFilterPredicatesAreAnded(t *testing.T) {
	tasks := sampleTasks()
	cases := map[string]struct {
		c    Criteria
		want []string
	}{
		"status":           {Criteria{Status: "pending", Priority: All, Category: All}, []string{"1", "4", "5"}},
		"priority":         {Criteria{Status: All, Priority: "medium", Category: All}, []string{"3", "4"}},
		"category":         {Criteria{Status: All, Priority: All, Category: "work"}, []string{"1", "3"}},
		"status+priority":  {Criteria{Status: "pending", Priority: "low", Category: All}, []string{"5"}},
		"search+category":  {Criteria{Search: "BUG", Status: All, Priority: All, Category: "work"}, []string{"1", "3"}},
		"nothing matches":  {Criteria{Status: "completed", Priority: "high", Category: All}, []string{}},
		"unknown category": {Criteria{Status: All, Priority: All, Category: "none"}, []string{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := ids(Filter(tasks, tc.c))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	tasks := sampleTasks()
	for _, c := range []Criteria{
		DefaultCriteria(),
		{Search: "o", Status: All, Priority: All, Category: All},
		{Search: "bug", Status: "pending", Priority: All, Category: All},
		{Status: All, Priority: "low", Category: "family"},
	} {
		once := Filter(tasks, c)
		twice := Filter(once, c)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("filter not idempotent for %+v: %v vs %v", c, ids(once), ids(twice))
		}
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	tasks := sampleTasks()
	before := ids(tasks)
	_ = Filter(tasks, Criteria{Status: "completed"})
	if !reflect.DeepEqual(ids(tasks), before) {
		t.Fatalf("input mutated")
	}
}

func TestCategories(t *testing.T) {
	got := Categories(sampleTasks())
	if !reflect.DeepEqual(got, []string{"work", "family"}) {
		t.Fatalf("unexpected categories: %v", got)
	}
}
