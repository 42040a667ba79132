package domain

import "github.com/bytedance/sonic"

const (
	CommandDeleteUser    = "delete-user"
	CommandPasswordReset = "password-reset"
)

// Command is a message handed to a remote account procedure through a queue.
type Command struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	UserID    string                 `json:"userId"`
	Data      sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ResetMail is the payload of a password-reset command.
type ResetMail struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

// QueuedCommand is a Command received from a queue together with the
// receipt needed to acknowledge it.
type QueuedCommand struct {
	Command
	MessageID  string
	PopReceipt string
}
