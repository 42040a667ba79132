package storage

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"taskboard/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	DequeueMessage(ctx context.Context, o *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID string, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
}

// EnqueueCommand sends cmd to the account procedure queue.
func (s *Storage) EnqueueCommand(ctx context.Context, cmd domain.Command) error {
	return enqueue(ctx, s.accountQueue, "enqueue command", cmd)
}

// EnqueueMail sends a password-reset mail request to the mail queue.
func (s *Storage) EnqueueMail(ctx context.Context, cmd domain.Command) error {
	return enqueue(ctx, s.mailQueue, "enqueue mail", cmd)
}

func enqueue(ctx context.Context, q queueClient, op string, cmd domain.Command) error {
	data, err := sonic.MarshalString(cmd)
	if err != nil {
		return err
	}
	if _, err := q.EnqueueMessage(ctx, data, nil); err != nil {
		return mapErr(op, "queue", cmd.ID, err)
	}
	return nil
}

// DequeueCommand retrieves a single message from the account queue. It returns
// nil when the queue is empty.
func (s *Storage) DequeueCommand(ctx context.Context) (*domain.QueuedCommand, error) {
	resp, err := s.accountQueue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, mapErr("dequeue command", "queue", "", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	q := &domain.QueuedCommand{}
	if msg.MessageID != nil {
		q.MessageID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		q.PopReceipt = *msg.PopReceipt
	}
	if msg.MessageText != nil {
		// An undecodable body leaves Command empty; the caller still acks it.
		if err := sonic.UnmarshalString(*msg.MessageText, &q.Command); err != nil {
			q.Command = domain.Command{}
		}
	}
	return q, nil
}

// AckCommand removes a processed message from the account queue.
func (s *Storage) AckCommand(ctx context.Context, q domain.QueuedCommand) error {
	_, err := s.accountQueue.DeleteMessage(ctx, q.MessageID, q.PopReceipt, nil)
	return mapErr("ack command", "queue", q.MessageID, err)
}
