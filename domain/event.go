package domain

import "github.com/bytedance/sonic"

// Event types emitted to the change feed.
const (
	EventBoardCreated = "board-created"
	EventBoardDeleted = "board-deleted"
	EventTaskCreated  = "task-created"
	EventTaskUpdated  = "task-updated"
	EventTaskDeleted  = "task-deleted"
	EventCommentAdded = "comment-added"
)

// Event records a single mutation applied to the board document.
type Event struct {
	ID         string                 `json:"id"`
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	Type       string                 `json:"type"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Time       int64                  `json:"time"`
}
