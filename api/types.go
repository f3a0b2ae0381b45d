package api

import (
	"context"

	"taskboard-api/auth"
	"taskboard-api/domain"
	"taskboard-api/repository"
)

// Repository abstracts board persistence for handlers.
type Repository interface {
	Boards(ctx context.Context) ([]domain.Board, error)
	CreateBoard(ctx context.Context, name, description string) (domain.Board, error)
	DeleteBoard(ctx context.Context, boardID string) error
	Tasks(ctx context.Context, boardID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, boardID string, in repository.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, boardID, taskID string, update repository.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, boardID, taskID string) error
	AddComment(ctx context.Context, boardID, taskID, text, author string) (domain.Comment, error)
	SearchTasks(ctx context.Context, boardID, query string) ([]domain.Task, error)
	TasksByStatus(ctx context.Context, boardID string, status domain.Status) ([]domain.Task, error)
	TasksByPriority(ctx context.Context, boardID string, priority domain.Priority) ([]domain.Task, error)
}

// Sessions abstracts the auth store for handlers.
type Sessions interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Signup(ctx context.Context, email, password, name string) (auth.Session, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*domain.User, error)
	UpdateUser(ctx context.Context, update auth.UserUpdate) (*domain.User, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reapplying duplicate mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails.
	Remove(ctx context.Context, userID, key string) error
}
