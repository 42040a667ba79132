package domain

import "strings"

// All disables filtering on a dimension.
const All = "all"

// Criteria selects the visible subset of the canonical list.
type Criteria struct {
	Search   string `json:"search"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Category string `json:"category"`
}

// DefaultCriteria matches every task.
func DefaultCriteria() Criteria {
	return Criteria{Status: All, Priority: All, Category: All}
}

func active(v string) bool { return v != "" && v != All }

// Filter returns the tasks matching every active predicate of c, in input order.
func Filter(tasks []Task, c Criteria) []Task {
	query := strings.ToLower(c.Search)
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if query != "" && !matchesText(t, query) {
			continue
		}
		if active(c.Status) && string(t.Status) != c.Status {
			continue
		}
		if active(c.Priority) && string(t.Priority) != c.Priority {
			continue
		}
		if active(c.Category) && (t.Category == nil || *t.Category != c.Category) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesText(t Task, query string) bool {
	if strings.Contains(strings.ToLower(t.Title), query) || strings.Contains(strings.ToLower(t.Description), query) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// Categories lists the distinct categories in first-seen order.
func Categories(tasks []Task) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range tasks {
		if t.Category == nil || *t.Category == "" {
			continue
		}
		if _, ok := seen[*t.Category]; ok {
			continue
		}
		seen[*t.Category] = struct{}{}
		out = append(out, *t.Category)
	}
	return out
}
