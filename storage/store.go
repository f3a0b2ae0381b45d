package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Fixed document keys. One JSON document per logical store.
const (
	BoardDataKey = "project-management-data"
	AuthStateKey = "project-management-auth"
)

// Default board contents written on first load.
const (
	DefaultBoardID   = "default-board"
	DefaultBoardName = "My Project Board"
)

// Store reads and writes the board and auth documents through a KV backend.
// With a nil KV there is no durable storage: loads return defaults without
// writing and saves are dropped, which keeps headless runs side-effect free.
type Store struct {
	kv     KV
	logger *log.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates a document store over the given KV. kv may be nil.
func NewStore(kv KV, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{
		kv:     kv,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// LoadBoards returns the persisted board document. When the key is absent the
// default document is written and returned. Corrupted payloads are discarded
// in favor of the default document; the discard is logged, not surfaced.
func (s *Store) LoadBoards(ctx context.Context) (domain.BoardData, error) {
	def := s.defaultBoardData()
	if s.kv == nil {
		return def, nil
	}
	raw, ok, err := s.kv.Get(ctx, BoardDataKey)
	if err != nil {
		return domain.BoardData{}, err
	}
	if !ok {
		if err := s.SaveBoards(ctx, def); err != nil {
			return domain.BoardData{}, err
		}
		return def, nil
	}
	var data domain.BoardData
	if err := sonic.ConfigStd.Unmarshal(raw, &data); err != nil {
		s.logger.WithFields(log.Fields{
			"key":   BoardDataKey,
			"bytes": len(raw),
			"error": err.Error(),
		}).Warn("discarding corrupted board document")
		return def, nil
	}
	return data, nil
}

// SaveBoards serializes and writes the board document, overwriting
// unconditionally.
func (s *Store) SaveBoards(ctx context.Context, data domain.BoardData) error {
	if s.kv == nil {
		return nil
	}
	raw, err := sonic.ConfigStd.Marshal(data)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, BoardDataKey, raw)
}

// LoadAuth returns the persisted session document, or the logged-out default
// when the key is absent or corrupted. Unlike LoadBoards it never writes.
func (s *Store) LoadAuth(ctx context.Context) (domain.AuthState, error) {
	def := domain.AuthState{}
	if s.kv == nil {
		return def, nil
	}
	raw, ok, err := s.kv.Get(ctx, AuthStateKey)
	if err != nil {
		return domain.AuthState{}, err
	}
	if !ok {
		return def, nil
	}
	var state domain.AuthState
	if err := sonic.ConfigStd.Unmarshal(raw, &state); err != nil {
		s.logger.WithFields(log.Fields{
			"key":   AuthStateKey,
			"error": err.Error(),
		}).Warn("discarding corrupted auth document")
		return def, nil
	}
	return state, nil
}

// SaveAuth serializes and writes the session document.
func (s *Store) SaveAuth(ctx context.Context, state domain.AuthState) error {
	if s.kv == nil {
		return nil
	}
	raw, err := sonic.ConfigStd.Marshal(state)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, AuthStateKey, raw)
}

func (s *Store) defaultBoardData() domain.BoardData {
	now := s.now().UTC()
	return domain.BoardData{
		Boards: []domain.Board{{
			ID:          DefaultBoardID,
			Name:        DefaultBoardName,
			Description: "Default project management board",
			CreatedAt:   now,
			Tasks: []domain.Task{{
				ID:          s.newID(),
				Title:       "Welcome to your project board!",
				Description: "This is a sample task. Click to edit or drag to move between columns.",
				Status:      domain.StatusTodo,
				Priority:    domain.PriorityMedium,
				CreatedAt:   now,
				UpdatedAt:   now,
				Comments:    []domain.Comment{},
			}},
		}},
	}
}
