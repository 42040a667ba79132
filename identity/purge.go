package identity

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

// CommandSource delivers queued account commands.
type CommandSource interface {
	DequeueCommand(ctx context.Context) (*domain.QueuedCommand, error)
	AckCommand(ctx context.Context, q domain.QueuedCommand) error
}

// PurgeWorker executes delete-user commands: it removes the credentials row
// and sweeps any profile or task rows written after the deletion request.
type PurgeWorker struct {
	source   CommandSource
	accounts AccountStore
	profiles ProfileStore
	tasks    TaskPurger
	logger   *log.Logger
	idle     time.Duration
}

// NewPurgeWorker creates a worker polling source every idle interval when it is empty.
func NewPurgeWorker(source CommandSource, accounts AccountStore, profiles ProfileStore, tasks TaskPurger, logger *log.Logger, idle time.Duration) *PurgeWorker {
	if idle <= 0 {
		idle = time.Second
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &PurgeWorker{source: source, accounts: accounts, profiles: profiles, tasks: tasks, logger: logger, idle: idle}
}

// Run processes commands until ctx is cancelled.
func (w *PurgeWorker) Run(ctx context.Context) {
	w.logger.Info("account purge worker starting")
	for {
		processed, err := w.ProcessOne(ctx)
		if ctx.Err() != nil {
			w.logger.Info("account purge worker stopped")
			return
		}
		if err != nil {
			w.logger.WithError(err).Error("account command failed")
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			w.logger.Info("account purge worker stopped")
			return
		case <-time.After(w.idle):
		}
	}
}

// ProcessOne handles at most one queued command. It reports whether a command
// was dequeued. Failed commands are left on the queue for redelivery.
func (w *PurgeWorker) ProcessOne(ctx context.Context) (bool, error) {
	q, err := w.source.DequeueCommand(ctx)
	if err != nil {
		return false, err
	}
	if q == nil {
		return false, nil
	}
	entry := w.logger.WithFields(log.Fields{"command": q.ID, "type": q.Type, "user": q.UserID})
	switch q.Type {
	case domain.CommandDeleteUser:
		if err := w.deleteUser(ctx, q.Command); err != nil {
			return true, err
		}
		entry.Info("user deleted")
	default:
		entry.Warn("dropping unsupported account command")
	}
	return true, w.source.AckCommand(ctx, *q)
}

func (w *PurgeWorker) deleteUser(ctx context.Context, cmd domain.Command) error {
	var data deleteUserData
	if len(cmd.Data) > 0 {
		if err := sonic.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
	}
	if data.Email != "" {
		if err := w.accounts.DeleteAccount(ctx, data.Email); err != nil && !domain.IsNotFound(err) {
			return err
		}
	}
	if cmd.UserID == "" {
		return nil
	}
	if err := w.profiles.DeleteProfile(ctx, cmd.UserID); err != nil {
		return err
	}
	_, err := w.tasks.DeleteOwnerTasks(ctx, cmd.UserID)
	return err
}
