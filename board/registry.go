package board

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registry hands out one controller per owner. Controllers are created on
// first use and start in the loading state.
type Registry struct {
	gw     Gateway
	logger *log.Logger
	idle   time.Duration
	now    func() time.Time

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry creates a registry whose controllers use gw. Controllers idle
// for longer than idle are removed by Sweep.
func NewRegistry(gw Gateway, logger *log.Logger, idle time.Duration) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Registry{
		gw:          gw,
		logger:      logger,
		idle:        idle,
		now:         time.Now,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the owner's controller, creating it when missing.
func (r *Registry) Get(owner string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[owner]
	if !ok {
		c = NewController(owner, r.gw, r.logger)
		c.now = r.now
		c.lastUsed = r.now()
		r.controllers[owner] = c
		r.logger.WithField("owner", owner).Debug("board controller created")
	}
	return c
}

// Open returns the owner's controller after its first load has finished.
func (r *Registry) Open(ctx context.Context, owner string) (*Controller, error) {
	c := r.Get(owner)
	c.Touch()
	if err := c.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Drop forgets the owner's controller, e.g. after sign-out.
func (r *Registry) Drop(owner string) {
	r.mu.Lock()
	delete(r.controllers, owner)
	r.mu.Unlock()
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// Sweep drops controllers that have been idle too long and have no stream
// subscribers. It returns how many were dropped.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for owner, c := range r.controllers {
		if c.Subscribers() > 0 || c.State() == StateSubmitting {
			continue
		}
		if c.LastUsed().Before(cutoff) {
			delete(r.controllers, owner)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.WithField("dropped", n).Debug("idle board controllers swept")
			}
		}
	}
}
