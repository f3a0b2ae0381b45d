package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"taskboard-api/domain"
)

// Documents is the persistence surface the repository mutates. Both
// storage.Store and storage.Cache satisfy it.
type Documents interface {
	LoadBoards(ctx context.Context) (domain.BoardData, error)
	SaveBoards(ctx context.Context, data domain.BoardData) error
}

// Repository provides typed CRUD over the board document. Every mutation is a
// whole-document read-modify-write: load, change in memory, write back.
type Repository struct {
	store     Documents
	publisher *Publisher
	clock     *monotonicClock
	newID     func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithPublisher attaches a change-feed publisher; mutations emit events
// through it after the document write succeeds.
func WithPublisher(p *Publisher) Option {
	return func(r *Repository) { r.publisher = p }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.clock = newMonotonicClock(now) }
}

// WithIDSource overrides the id generator, for tests.
func WithIDSource(newID func() string) Option {
	return func(r *Repository) { r.newID = newID }
}

// New creates a Repository over the given document store.
func New(store Documents, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		clock: newMonotonicClock(nil),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTask carries the caller-supplied fields of a task to create.
type NewTask struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      domain.Status   `json:"status"`
	Priority    domain.Priority `json:"priority"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
}

// TaskUpdate carries partial task updates; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Status      *domain.Status   `json:"status,omitempty"`
	Priority    *domain.Priority `json:"priority,omitempty"`
	DueDate     *time.Time       `json:"dueDate,omitempty"`
}

// Boards returns all boards in insertion order.
func (r *Repository) Boards(ctx context.Context) ([]domain.Board, error) {
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return nil, err
	}
	return data.Boards, nil
}

// Board returns the board with the given id.
func (r *Repository) Board(ctx context.Context, boardID string) (domain.Board, error) {
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	for _, b := range data.Boards {
		if b.ID == boardID {
			return b, nil
		}
	}
	return domain.Board{}, ErrBoardNotFound
}

// CreateBoard appends a new empty board and persists the document.
func (r *Repository) CreateBoard(ctx context.Context, name, description string) (domain.Board, error) {
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return domain.Board{}, err
	}
	board := domain.Board{
		ID:          r.newID(),
		Name:        name,
		Description: description,
		CreatedAt:   r.clock.Now(),
		Tasks:       []domain.Task{},
	}
	data.Boards = append(data.Boards, board)
	if err := r.store.SaveBoards(ctx, data); err != nil {
		return domain.Board{}, err
	}
	r.emit(domain.EventBoardCreated, "board", board.ID, board)
	return board, nil
}

// DeleteBoard removes the board and every task and comment it owns in a
// single persisted write.
func (r *Repository) DeleteBoard(ctx context.Context, boardID string) error {
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return err
	}
	idx := boardIndex(data.Boards, boardID)
	if idx < 0 {
		return ErrBoardNotFound
	}
	data.Boards = append(data.Boards[:idx], data.Boards[idx+1:]...)
	if err := r.store.SaveBoards(ctx, data); err != nil {
		return err
	}
	r.emit(domain.EventBoardDeleted, "board", boardID, nil)
	return nil
}

// Tasks returns the board's tasks, or an empty slice when the board is
// absent. Absence is not an error on the read side.
func (r *Repository) Tasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return nil, err
	}
	idx := boardIndex(data.Boards, boardID)
	if idx < 0 {
		return []domain.Task{}, nil
	}
	return data.Boards[idx].Tasks, nil
}

// CreateTask appends a task to the board and persists the document.
func (r *Repository) CreateTask(ctx context.Context, boardID string, in NewTask) (domain.Task, error) {
	status, priority, err := normalizeTaskInput(in.Status, in.Priority)
	if err != nil {
		return domain.Task{}, err
	}
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	idx := boardIndex(data.Boards, boardID)
	if idx < 0 {
		return domain.Task{}, ErrBoardNotFound
	}
	now := r.clock.Now()
	task := domain.Task{
		ID:          r.newID(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Comments:    []domain.Comment{},
	}
	data.Boards[idx].Tasks = append(data.Boards[idx].Tasks, task)
	if err := r.store.SaveBoards(ctx, data); err != nil {
		return domain.Task{}, err
	}
	r.emit(domain.EventTaskCreated, "task", task.ID, task)
	return task, nil
}

// UpdateTask merges the partial update into the task and refreshes updatedAt.
func (r *Repository) UpdateTask(ctx context.Context, boardID, taskID string, update TaskUpdate) (domain.Task, error) {
	if update.Status != nil && !update.Status.Valid() {
		return domain.Task{}, fmt.Errorf("%w: status %q", ErrInvalidInput, *update.Status)
	}
	if update.Priority != nil && !update.Priority.Valid() {
		return domain.Task{}, fmt.Errorf("%w: priority %q", ErrInvalidInput, *update.Priority)
	}
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	bi := boardIndex(data.Boards, boardID)
	if bi < 0 {
		return domain.Task{}, ErrBoardNotFound
	}
	ti := taskIndex(data.Boards[bi].Tasks, taskID)
	if ti < 0 {
		return domain.Task{}, ErrTaskNotFound
	}

	task := &data.Boards[bi].Tasks[ti]
	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	if update.DueDate != nil {
		task.DueDate = update.DueDate
	}
	task.UpdatedAt = r.clock.Now()

	if err := r.store.SaveBoards(ctx, data); err != nil {
		return domain.Task{}, err
	}
	r.emit(domain.EventTaskUpdated, "task", task.ID, update)
	return *task, nil
}

// MoveTask is a status-only update, the persistence half of a column move.
func (r *Repository) MoveTask(ctx context.Context, boardID, taskID string, status domain.Status) (domain.Task, error) {
	return r.UpdateTask(ctx, boardID, taskID, TaskUpdate{Status: &status})
}

// DeleteTask removes the task from the board. Removing a task that does not
// exist is a silent no-op so deletes stay idempotent; a missing board is
// still an error.
func (r *Repository) DeleteTask(ctx context.Context, boardID, taskID string) error {
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return err
	}
	bi := boardIndex(data.Boards, boardID)
	if bi < 0 {
		return ErrBoardNotFound
	}
	ti := taskIndex(data.Boards[bi].Tasks, taskID)
	if ti < 0 {
		return nil
	}
	tasks := data.Boards[bi].Tasks
	data.Boards[bi].Tasks = append(tasks[:ti], tasks[ti+1:]...)
	if err := r.store.SaveBoards(ctx, data); err != nil {
		return err
	}
	r.emit(domain.EventTaskDeleted, "task", taskID, nil)
	return nil
}

// AddComment appends a comment to the task and refreshes the task's
// updatedAt.
func (r *Repository) AddComment(ctx context.Context, boardID, taskID, text, author string) (domain.Comment, error) {
	data, err := r.store.LoadBoards(ctx)
	if err != nil {
		return domain.Comment{}, err
	}
	bi := boardIndex(data.Boards, boardID)
	if bi < 0 {
		return domain.Comment{}, ErrBoardNotFound
	}
	ti := taskIndex(data.Boards[bi].Tasks, taskID)
	if ti < 0 {
		return domain.Comment{}, ErrTaskNotFound
	}
	comment := domain.Comment{
		ID:        r.newID(),
		Text:      text,
		Author:    author,
		CreatedAt: r.clock.Now(),
	}
	task := &data.Boards[bi].Tasks[ti]
	task.Comments = append(task.Comments, comment)
	task.UpdatedAt = r.clock.Now()
	if err := r.store.SaveBoards(ctx, data); err != nil {
		return domain.Comment{}, err
	}
	r.emit(domain.EventCommentAdded, "task", taskID, comment)
	return comment, nil
}

// SearchTasks returns tasks whose title or description contains the query,
// case-insensitively.
func (r *Repository) SearchTasks(ctx context.Context, boardID, query string) ([]domain.Task, error) {
	tasks, err := r.Tasks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	matched := []domain.Task{}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// TasksByStatus returns the board's tasks with the given status.
func (r *Repository) TasksByStatus(ctx context.Context, boardID string, status domain.Status) ([]domain.Task, error) {
	tasks, err := r.Tasks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	matched := []domain.Task{}
	for _, t := range tasks {
		if t.Status == status {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// TasksByPriority returns the board's tasks with the given priority.
func (r *Repository) TasksByPriority(ctx context.Context, boardID string, priority domain.Priority) ([]domain.Task, error) {
	tasks, err := r.Tasks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	matched := []domain.Task{}
	for _, t := range tasks {
		if t.Priority == priority {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func (r *Repository) emit(eventType, entityType, entityID string, payload any) {
	if r.publisher == nil {
		return
	}
	ev := domain.Event{
		ID:         r.newID(),
		EntityID:   entityID,
		EntityType: entityType,
		Type:       eventType,
		Time:       r.clock.Now().UnixNano(),
	}
	if payload != nil {
		if data, err := sonic.ConfigStd.Marshal(payload); err == nil {
			ev.Data = data
		}
	}
	r.publisher.Publish([]domain.Event{ev})
}

func normalizeTaskInput(status domain.Status, priority domain.Priority) (domain.Status, domain.Priority, error) {
	if status == "" {
		status = domain.StatusTodo
	}
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !status.Valid() {
		return "", "", fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	if !priority.Valid() {
		return "", "", fmt.Errorf("%w: priority %q", ErrInvalidInput, priority)
	}
	return status, priority, nil
}

func boardIndex(boards []domain.Board, id string) int {
	for i := range boards {
		if boards[i].ID == id {
			return i
		}
	}
	return -1
}

func taskIndex(tasks []domain.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
