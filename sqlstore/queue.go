package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"taskboard/domain"
)

const (
	accountQueue = "account"
	mailQueue    = "mail"
)

// EnqueueCommand appends cmd to the account procedure queue.
func (s *Store) EnqueueCommand(ctx context.Context, cmd domain.Command) error {
	return s.enqueue(ctx, accountQueue, cmd)
}

// EnqueueMail appends a password-reset mail request to the mail queue.
func (s *Store) EnqueueMail(ctx context.Context, cmd domain.Command) error {
	return s.enqueue(ctx, mailQueue, cmd)
}

func (s *Store) enqueue(ctx context.Context, queue string, cmd domain.Command) error {
	body, err := sonic.MarshalString(cmd)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO commands (id, queue, body, enqueued_at) VALUES (?, ?, ?, ?)`,
		cmd.ID, queue, body, formatTime(time.Now()))
	return mapErr("enqueue "+queue, err)
}

// DequeueCommand returns the oldest account command, or nil when none is queued.
// The row stays until AckCommand removes it.
func (s *Store) DequeueCommand(ctx context.Context) (*domain.QueuedCommand, error) {
	var id, body string
	err := s.queryRow(ctx, `SELECT id, body FROM commands WHERE queue = ? ORDER BY enqueued_at, id LIMIT 1`, accountQueue).Scan(&id, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr("dequeue command", err)
	}
	q := &domain.QueuedCommand{MessageID: id, PopReceipt: id}
	if err := sonic.UnmarshalString(body, &q.Command); err != nil {
		q.Command = domain.Command{}
	}
	return q, nil
}

// AckCommand removes a processed command.
func (s *Store) AckCommand(ctx context.Context, q domain.QueuedCommand) error {
	_, err := s.exec(ctx, `DELETE FROM commands WHERE id = ?`, q.MessageID)
	return mapErr("ack command", err)
}
