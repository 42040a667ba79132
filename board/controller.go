// Package board keeps the canonical task list of each signed-in owner and
// turns view intents into gateway calls.
package board

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// Gateway is the task data surface the controller drives.
type Gateway interface {
	FetchTasks(ctx context.Context, owner, search string) ([]domain.Task, error)
	CreateTask(ctx context.Context, owner string, fields domain.TaskFields) (domain.Task, error)
	UpdateTask(ctx context.Context, owner, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, owner, id string) error
}

// State is the controller lifecycle.
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
)

// ViewMode selects how the visible tasks are presented.
type ViewMode string

const (
	ViewList      ViewMode = "list"
	ViewBoard     ViewMode = "board"
	ViewDashboard ViewMode = "dashboard"
)

func (m ViewMode) Valid() bool {
	switch m {
	case ViewList, ViewBoard, ViewDashboard:
		return true
	}
	return false
}

// View is the presentation state chosen by the owner.
type View struct {
	Mode     ViewMode        `json:"mode"`
	Criteria domain.Criteria `json:"criteria"`
}

const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notice is the short message shown after an intent.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is a read-only copy of what the owner currently sees.
type Snapshot struct {
	State   State         `json:"state"`
	View    View          `json:"view"`
	Tasks   []domain.Task `json:"tasks"`
	Stats   domain.Stats  `json:"stats"`
	Notice  *Notice       `json:"notice,omitempty"`
	Version uint64        `json:"version"`
}

// Controller is safe for concurrent use. The mutex guards fields only and is
// never held across a gateway call, so overlapping intents are not serialised.
type Controller struct {
	owner  string
	gw     Gateway
	logger *log.Entry
	now    func() time.Time

	mu       sync.Mutex
	loading  bool
	loaded   bool
	loadDone chan struct{} // non-nil while EnsureLoaded runs a load
	tasks    []domain.Task
	view     View
	inFlight int
	notice   *Notice
	version  uint64
	lastUsed time.Time
	subs     map[chan struct{}]struct{}
}

// NewController creates a controller for owner. It stays in the loading state
// until the first Load completes.
func NewController(owner string, gw Gateway, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	c := &Controller{
		owner:   owner,
		gw:      gw,
		logger:  logger.WithField("owner", owner),
		now:     time.Now,
		loading: true,
		view:    View{Mode: ViewList, Criteria: domain.DefaultCriteria()},
		subs:    make(map[chan struct{}]struct{}),
	}
	c.lastUsed = c.now()
	return c
}

// Owner returns the user id the controller belongs to.
func (c *Controller) Owner() string { return c.owner }

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	switch {
	case c.loading:
		return StateLoading
	case c.inFlight > 0:
		return StateSubmitting
	}
	return StateReady
}

// Load fetches the canonical list. A failure empties the list, posts a notice
// and still leaves the controller ready. A load abandoned because ctx ended
// changes nothing: the list is kept, and a controller that never loaded stays
// in the loading state so the next EnsureLoaded retries.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.touchLocked()
	c.mu.Unlock()
	c.notify()

	tasks, err := c.gw.FetchTasks(ctx, c.owner, "")

	c.mu.Lock()
	switch {
	case err != nil && ctx.Err() != nil:
		c.loading = !c.loaded
		c.logger.WithError(err).Debug("load tasks abandoned")
	case err != nil:
		c.loading = false
		c.loaded = true
		c.tasks = nil
		c.postLocked(NoticeError, "Failed to load tasks")
		c.logger.WithError(err).Error("load tasks failed")
	default:
		c.loading = false
		c.loaded = true
		c.tasks = tasks
	}
	c.version++
	c.mu.Unlock()
	c.notify()
	return err
}

// EnsureLoaded runs the first Load, or waits for one already running. A
// failed load is reported through the notice, not the returned error. When
// the running load is abandoned, a waiter takes over and retries.
func (c *Controller) EnsureLoaded(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.loaded {
			c.mu.Unlock()
			return nil
		}
		if c.loadDone == nil {
			done := make(chan struct{})
			c.loadDone = done
			c.mu.Unlock()

			_ = c.Load(ctx)

			c.mu.Lock()
			c.loadDone = nil
			c.mu.Unlock()
			close(done)
			return ctx.Err()
		}
		done := c.loadDone
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Create validates fields, stores the task and prepends it to the list.
func (c *Controller) Create(ctx context.Context, fields domain.TaskFields) (domain.Task, error) {
	if err := domain.ValidateFields(fields); err != nil {
		return domain.Task{}, err
	}
	c.begin()
	created, err := c.gw.CreateTask(ctx, c.owner, fields)
	c.end(func() {
		if err != nil {
			c.fail("Failed to create task", "create task", err)
			return
		}
		c.tasks = append([]domain.Task{created}, c.tasks...)
		c.postLocked(NoticeSuccess, "Task created successfully")
	})
	return created, err
}

// Update validates and applies a partial change to the task with id.
func (c *Controller) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if err := domain.ValidatePatch(patch); err != nil {
		return domain.Task{}, err
	}
	c.begin()
	updated, err := c.gw.UpdateTask(ctx, c.owner, id, patch)
	c.end(func() {
		if err != nil {
			c.fail("Failed to update task", "update task", err)
			return
		}
		c.replaceLocked(updated)
		c.postLocked(NoticeSuccess, "Task updated successfully")
	})
	return updated, err
}

// ChangeStatus moves the task with id to status.
func (c *Controller) ChangeStatus(ctx context.Context, id string, status domain.Status) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, &domain.ValidationError{Fields: map[string]string{"status": "Unknown status"}}
	}
	c.begin()
	updated, err := c.gw.UpdateTask(ctx, c.owner, id, domain.TaskPatch{Status: &status})
	c.end(func() {
		if err != nil {
			c.fail("Failed to update task status", "change status", err)
			return
		}
		c.replaceLocked(updated)
		c.postLocked(NoticeSuccess, statusNotice(status))
	})
	return updated, err
}

func statusNotice(s domain.Status) string {
	if s == domain.StatusCompleted {
		return "Task completed successfully"
	}
	return "Task updated successfully"
}

// Delete removes the task with id.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.begin()
	err := c.gw.DeleteTask(ctx, c.owner, id)
	c.end(func() {
		if err != nil {
			c.fail("Failed to delete task", "delete task", err)
			return
		}
		out := make([]domain.Task, 0, len(c.tasks))
		for _, t := range c.tasks {
			if t.ID != id {
				out = append(out, t)
			}
		}
		c.tasks = out
		c.postLocked(NoticeSuccess, "Task deleted successfully")
	})
	return err
}

// Reorder applies a board move whose indices refer to the columns built from
// the current view criteria. Only a task whose status changed is written
// back; position-only moves stay local. The list is replaced only after the
// write succeeds.
func (c *Controller) Reorder(ctx context.Context, m domain.Move) ([]domain.Task, error) {
	c.mu.Lock()
	crit := c.view.Criteria
	c.mu.Unlock()
	if err := c.reorder(ctx, m, crit); err != nil {
		return nil, err
	}
	return c.Visible(), nil
}

// ReorderWith is Reorder for columns built from crit instead of the stored
// criteria. It returns the tasks matching crit.
func (c *Controller) ReorderWith(ctx context.Context, m domain.Move, crit domain.Criteria) ([]domain.Task, error) {
	if err := c.reorder(ctx, m, crit); err != nil {
		return nil, err
	}
	return c.VisibleWith(crit), nil
}

func (c *Controller) reorder(ctx context.Context, m domain.Move, crit domain.Criteria) error {
	c.mu.Lock()
	prev := c.tasks
	c.touchLocked()
	c.mu.Unlock()

	cm, err := domain.ResolveMove(prev, crit, m)
	if err != nil {
		return err
	}
	next, err := domain.Reorder(prev, cm)
	if err != nil {
		return err
	}
	if cm.SourceColumn == cm.DestColumn && cm.SourceIndex == cm.DestIndex {
		return nil
	}

	changed := domain.StatusChanges(prev, next)
	if len(changed) == 0 {
		c.mu.Lock()
		c.tasks = next
		c.version++
		c.mu.Unlock()
		c.notify()
		return nil
	}

	c.begin()
	written := make(map[string]domain.Task, len(changed))
	for _, t := range changed {
		status, pos := t.Status, *t.Position
		var updated domain.Task
		updated, err = c.gw.UpdateTask(ctx, c.owner, t.ID, domain.TaskPatch{Status: &status, Position: &pos})
		if err != nil {
			break
		}
		written[t.ID] = updated
	}
	c.end(func() {
		if err != nil {
			c.fail("Failed to update task status", "reorder", err)
			return
		}
		for i, t := range next {
			if u, ok := written[t.ID]; ok {
				u.Position = t.Position
				next[i] = u
			}
		}
		c.tasks = next
		c.postLocked(NoticeSuccess, statusNotice(changed[0].Status))
	})
	return err
}

// Search asks the store for the owner's tasks matching crit.Search and
// applies the rest of crit to the result. The canonical list is untouched.
func (c *Controller) Search(ctx context.Context, crit domain.Criteria) ([]domain.Task, error) {
	c.Touch()
	tasks, err := c.gw.FetchTasks(ctx, c.owner, crit.Search)
	if err != nil {
		c.logger.WithError(err).Warn("search tasks failed")
		return nil, err
	}
	return domain.Filter(tasks, crit), nil
}

// SetView replaces the presentation state.
func (c *Controller) SetView(v View) error {
	if v.Mode == "" {
		v.Mode = ViewList
	}
	if !v.Mode.Valid() {
		return &domain.ValidationError{Fields: map[string]string{"mode": "Unknown view mode"}}
	}
	c.mu.Lock()
	c.view = v
	c.version++
	c.touchLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// View returns the current presentation state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Tasks returns a copy of the canonical list.
func (c *Controller) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAll(c.tasks)
}

// Visible returns the canonical list filtered by the current criteria.
func (c *Controller) Visible() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAll(domain.Filter(c.tasks, c.view.Criteria))
}

// VisibleWith filters the canonical list by crit instead of the stored criteria.
func (c *Controller) VisibleWith(crit domain.Criteria) []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAll(domain.Filter(c.tasks, crit))
}

// Columns partitions the visible tasks into board columns.
func (c *Controller) Columns() map[domain.Status][]domain.Task {
	return domain.Columns(c.Visible())
}

// Stats summarises the visible tasks.
func (c *Controller) Stats() domain.Stats {
	return domain.ComputeStats(c.Visible(), c.now())
}

// Notice returns the latest notice, if any.
func (c *Controller) Notice() *Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notice == nil {
		return nil
	}
	n := *c.notice
	return &n
}

// Snapshot captures everything a renderer needs in one consistent read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible := cloneAll(domain.Filter(c.tasks, c.view.Criteria))
	s := Snapshot{
		State:   c.stateLocked(),
		View:    c.view,
		Tasks:   visible,
		Stats:   domain.ComputeStats(visible, c.now()),
		Version: c.version,
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	return s
}

// LastUsed reports when an intent or read last touched the controller.
func (c *Controller) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Touch marks the controller as in use.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.touchLocked()
	c.mu.Unlock()
}

// Subscribe returns a channel signalled after every committed change. The
// channel holds at most one pending signal.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

// Subscribers returns the number of open subscriptions.
func (c *Controller) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Controller) notify() {
	c.mu.Lock()
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	c.mu.Unlock()
}

func (c *Controller) begin() {
	c.mu.Lock()
	c.inFlight++
	c.touchLocked()
	c.mu.Unlock()
	c.notify()
}

// end commits the outcome of a gateway call and leaves the submitting state.
func (c *Controller) end(commit func()) {
	c.mu.Lock()
	c.inFlight--
	commit()
	c.version++
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) fail(msg, op string, err error) {
	c.postLocked(NoticeError, msg)
	c.logger.WithError(err).WithField("op", op).Error("task intent failed")
}

func (c *Controller) postLocked(kind, msg string) {
	c.notice = &Notice{Kind: kind, Message: msg, At: c.now()}
}

func (c *Controller) replaceLocked(t domain.Task) {
	for i := range c.tasks {
		if c.tasks[i].ID == t.ID {
			out := append([]domain.Task(nil), c.tasks...)
			out[i] = t
			c.tasks = out
			return
		}
	}
}

func (c *Controller) touchLocked() { c.lastUsed = c.now() }

func cloneAll(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
