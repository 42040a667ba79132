package domain

import "strconv"

// Move describes a drag from one board slot to another.
type Move struct {
	SourceColumn Status `json:"sourceColumn"`
	SourceIndex  int    `json:"sourceIndex"`
	DestColumn   Status `json:"destColumn"`
	DestIndex    int    `json:"destIndex"`
}

func (m Move) validate() error {
	v := &ValidationError{}
	if !m.SourceColumn.Valid() {
		v.Add("sourceColumn", "unknown column "+strconv.Quote(string(m.SourceColumn)))
	}
	if !m.DestColumn.Valid() {
		v.Add("destColumn", "unknown column "+strconv.Quote(string(m.DestColumn)))
	}
	if m.SourceIndex < 0 {
		v.Add("sourceIndex", "must not be negative")
	}
	if m.DestIndex < 0 {
		v.Add("destIndex", "must not be negative")
	}
	return v.OrNil()
}

// Columns splits tasks into the board columns, keeping list order inside each.
func Columns(tasks []Task) map[Status][]Task {
	cols := make(map[Status][]Task, len(Statuses))
	for _, s := range Statuses {
		cols[s] = []Task{}
	}
	for _, t := range tasks {
		if _, ok := cols[t.Status]; ok {
			cols[t.Status] = append(cols[t.Status], t)
		}
	}
	return cols
}

// Reorder moves the task at m.SourceIndex of its column to m.DestIndex of
// m.DestColumn and renumbers every position to its index in the returned list.
// A move onto its own slot returns tasks unchanged.
func Reorder(tasks []Task, m Move) ([]Task, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	src := -1
	seen := 0
	for i, t := range tasks {
		if t.Status != m.SourceColumn {
			continue
		}
		if seen == m.SourceIndex {
			src = i
			break
		}
		seen++
	}
	if src < 0 {
		v := &ValidationError{}
		v.Add("sourceIndex", "no task at index "+strconv.Itoa(m.SourceIndex)+" in "+string(m.SourceColumn))
		return nil, v
	}

	if m.SourceColumn == m.DestColumn && m.SourceIndex == m.DestIndex {
		return tasks, nil
	}

	out := make([]Task, 0, len(tasks))
	for i, t := range tasks {
		if i != src {
			out = append(out, t.Clone())
		}
	}
	moved := tasks[src].Clone()
	moved.Status = m.DestColumn

	at := len(out)
	last := -1
	count := 0
	for i, t := range out {
		if t.Status != m.DestColumn {
			continue
		}
		if count == m.DestIndex {
			at = i
			last = -1
			break
		}
		count++
		last = i
	}
	if last >= 0 {
		at = last + 1
	}

	out = append(out, Task{})
	copy(out[at+1:], out[at:])
	out[at] = moved

	for i := range out {
		pos := i
		out[i].Position = &pos
	}
	return out, nil
}

// ResolveMove translates m, whose indices refer to the columns of the tasks
// matching c, into the same move on the columns of the whole list. The moved
// task lands before the task it was dropped on, or after the last matching
// task when it was dropped past the end of the column.
func ResolveMove(tasks []Task, c Criteria, m Move) (Move, error) {
	if err := m.validate(); err != nil {
		return Move{}, err
	}
	shown := Columns(Filter(tasks, c))
	if m.SourceIndex >= len(shown[m.SourceColumn]) {
		v := &ValidationError{}
		v.Add("sourceIndex", "no task at index "+strconv.Itoa(m.SourceIndex)+" in "+string(m.SourceColumn))
		return Move{}, v
	}
	id := shown[m.SourceColumn][m.SourceIndex].ID

	all := Columns(tasks)
	out := m
	out.SourceIndex = indexOf(all[m.SourceColumn], id)
	if m.SourceColumn == m.DestColumn && m.SourceIndex == m.DestIndex {
		out.DestIndex = out.SourceIndex
		return out, nil
	}

	shownDest := without(shown[m.DestColumn], id)
	allDest := without(all[m.DestColumn], id)
	switch {
	case m.DestIndex < len(shownDest):
		out.DestIndex = indexOf(allDest, shownDest[m.DestIndex].ID)
	case len(shownDest) > 0:
		out.DestIndex = indexOf(allDest, shownDest[len(shownDest)-1].ID) + 1
	default:
		out.DestIndex = len(allDest)
	}
	return out, nil
}

func indexOf(tasks []Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func without(tasks []Task, id string) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// StatusChanges returns the tasks of next whose status differs from the task
// with the same id in prev.
func StatusChanges(prev, next []Task) []Task {
	known := make(map[string]Status, len(prev))
	for _, t := range prev {
		known[t.ID] = t.Status
	}
	var changed []Task
	for _, t := range next {
		if s, ok := known[t.ID]; ok && s != t.Status {
			changed = append(changed, t)
		}
	}
	return changed
}
