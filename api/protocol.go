package api

import (
	"taskboard/board"
	"taskboard/domain"
)

const (
	maxBodySize = 64 * 1024 // 64 KiB

	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	headerPrefersScheme  = "Sec-CH-Prefers-Color-Scheme"
)

// error response body
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// GET /api/tasks response body
type tasksResponse struct {
	Tasks      []domain.Task `json:"tasks"`
	State      board.State   `json:"state"`
	Categories []string      `json:"categories"`
	Notice     *board.Notice `json:"notice,omitempty"`
}

// GET /api/board response body
type boardResponse struct {
	Pending    []domain.Task `json:"pending"`
	InProgress []domain.Task `json:"in_progress"`
	Completed  []domain.Task `json:"completed"`
	State      board.State   `json:"state"`
}

// PUT /api/tasks/:id/status request body
type statusRequest struct {
	Status domain.Status `json:"status"`
}

// PUT /api/settings request body
type settingsRequest struct {
	Theme domain.Theme `json:"theme"`
}
