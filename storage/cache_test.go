package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type stubBackend struct {
	loadBoardsFn func(ctx context.Context) (domain.BoardData, error)
	saveBoardsFn func(ctx context.Context, data domain.BoardData) error
	loadAuthFn   func(ctx context.Context) (domain.AuthState, error)
	saveAuthFn   func(ctx context.Context, state domain.AuthState) error
}

func (s *stubBackend) LoadBoards(ctx context.Context) (domain.BoardData, error) {
	if s.loadBoardsFn == nil {
		return domain.BoardData{}, errors.New("unexpected LoadBoards call")
	}
	return s.loadBoardsFn(ctx)
}

func (s *stubBackend) SaveBoards(ctx context.Context, data domain.BoardData) error {
	if s.saveBoardsFn == nil {
		return errors.New("unexpected SaveBoards call")
	}
	return s.saveBoardsFn(ctx, data)
}

func (s *stubBackend) LoadAuth(ctx context.Context) (domain.AuthState, error) {
	if s.loadAuthFn == nil {
		return domain.AuthState{}, errors.New("unexpected LoadAuth call")
	}
	return s.loadAuthFn(ctx)
}

func (s *stubBackend) SaveAuth(ctx context.Context, state domain.AuthState) error {
	if s.saveAuthFn == nil {
		return errors.New("unexpected SaveAuth call")
	}
	return s.saveAuthFn(ctx, state)
}

func newCacheClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheLoadBoardsMissThenHit(t *testing.T) {
	mr, client := newCacheClient(t)

	ctx := context.Background()
	expected := domain.BoardData{Boards: []domain.Board{{ID: "b1", Name: "Sprint", Tasks: []domain.Task{}}}}

	var calls int
	cache := NewCache(&stubBackend{
		loadBoardsFn: func(ctx context.Context) (domain.BoardData, error) {
			calls++
			return expected, nil
		},
	}, client, time.Minute)

	data, err := cache.LoadBoards(ctx)
	if err != nil {
		t.Fatalf("load boards: %v", err)
	}
	if !reflect.DeepEqual(data, expected) {
		t.Fatalf("unexpected data: %#v", data)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(boardsCacheKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, err := cache.LoadBoards(ctx)
	if err != nil {
		t.Fatalf("load cached boards: %v", err)
	}
	if !reflect.DeepEqual(cached, expected) {
		t.Fatalf("unexpected cached data: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached load to avoid backend, calls=%d", calls)
	}
}

func TestCacheSaveBoardsEvicts(t *testing.T) {
	mr, client := newCacheClient(t)

	ctx := context.Background()
	var loads int
	cache := NewCache(&stubBackend{
		loadBoardsFn: func(ctx context.Context) (domain.BoardData, error) {
			loads++
			return domain.BoardData{Boards: []domain.Board{{ID: "b1"}}}, nil
		},
		saveBoardsFn: func(ctx context.Context, data domain.BoardData) error { return nil },
	}, client, time.Minute)

	if _, err := cache.LoadBoards(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !mr.Exists(boardsCacheKey) {
		t.Fatal("expected cache key to be populated")
	}

	if err := cache.SaveBoards(ctx, domain.BoardData{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mr.Exists(boardsCacheKey) {
		t.Fatal("expected save to evict the cache key")
	}

	if _, err := cache.LoadBoards(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loads != 2 {
		t.Fatalf("expected reload to hit the backend, loads=%d", loads)
	}
}

func TestCacheCorruptedEntryFallsBack(t *testing.T) {
	mr, client := newCacheClient(t)

	ctx := context.Background()
	if err := mr.Set(boardsCacheKey, "{not json"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	var calls int
	cache := NewCache(&stubBackend{
		loadBoardsFn: func(ctx context.Context) (domain.BoardData, error) {
			calls++
			return domain.BoardData{Boards: []domain.Board{{ID: "b1"}}}, nil
		},
	}, client, time.Minute)

	data, err := cache.LoadBoards(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fallback to backend, calls=%d", calls)
	}
	if len(data.Boards) != 1 || data.Boards[0].ID != "b1" {
		t.Fatalf("unexpected data: %#v", data)
	}
}

func TestCacheSaveErrorSkipsEviction(t *testing.T) {
	mr, client := newCacheClient(t)

	ctx := context.Background()
	saveErr := errors.New("write failed")
	cache := NewCache(&stubBackend{
		loadBoardsFn: func(ctx context.Context) (domain.BoardData, error) {
			return domain.BoardData{}, nil
		},
		saveBoardsFn: func(ctx context.Context, data domain.BoardData) error { return saveErr },
	}, client, time.Minute)

	if _, err := cache.LoadBoards(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cache.SaveBoards(ctx, domain.BoardData{}); !errors.Is(err, saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}
	if !mr.Exists(boardsCacheKey) {
		t.Fatal("failed save must not evict the cache")
	}
}

func TestCacheAuthPassesThrough(t *testing.T) {
	_, client := newCacheClient(t)

	ctx := context.Background()
	var saved *domain.AuthState
	cache := NewCache(&stubBackend{
		loadAuthFn: func(ctx context.Context) (domain.AuthState, error) {
			return domain.AuthState{IsAuthenticated: true}, nil
		},
		saveAuthFn: func(ctx context.Context, state domain.AuthState) error {
			saved = &state
			return nil
		},
	}, client, time.Minute)

	state, err := cache.LoadAuth(ctx)
	if err != nil || !state.IsAuthenticated {
		t.Fatalf("unexpected auth state: %+v, err %v", state, err)
	}
	if err := cache.SaveAuth(ctx, domain.AuthState{}); err != nil {
		t.Fatalf("save auth: %v", err)
	}
	if saved == nil {
		t.Fatal("expected SaveAuth to reach the backend")
	}
}
