package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadState is the persisted notification read position for one user and
// panel. VisitedIDs holds entity keys the user has clicked through to.
type ReadState struct {
	LastCheck  time.Time `json:"last_check"`
	VisitedIDs []string  `json:"visited_ids"`
}

// Store persists read state keyed by user and panel. Writes are
// last-write-wins; concurrent sessions for the same user overwrite each
// other rather than merge.
type Store interface {
	Load(ctx context.Context, userID uint, panel string) (ReadState, error)
	Save(ctx context.Context, userID uint, panel string, state ReadState) error
}

func stateKey(userID uint, panel string) string {
	return fmt.Sprintf("notify:read:v1:%d:%s", userID, panel)
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by Redis.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Load(ctx context.Context, userID uint, panel string) (ReadState, error) {
	raw, err := s.client.Get(ctx, stateKey(userID, panel)).Result()
	if err != nil {
		if err == redis.Nil {
			return ReadState{}, nil
		}
		return ReadState{}, fmt.Errorf("failed to load read state: %w", err)
	}

	var state ReadState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// Corrupt state resets to zero rather than blocking the panel.
		return ReadState{}, nil
	}

	return state, nil
}

func (s *redisStore) Save(ctx context.Context, userID uint, panel string, state ReadState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode read state: %w", err)
	}

	if err := s.client.Set(ctx, stateKey(userID, panel), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save read state: %w", err)
	}

	return nil
}

type memoryStore struct {
	mu     sync.RWMutex
	states map[string]ReadState
}

// NewMemoryStore returns an in-process Store, used when no Redis is
// configured and in tests.
func NewMemoryStore() Store {
	return &memoryStore{states: make(map[string]ReadState)}
}

func (s *memoryStore) Load(_ context.Context, userID uint, panel string) (ReadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.states[stateKey(userID, panel)]
	visited := make([]string, len(state.VisitedIDs))
	copy(visited, state.VisitedIDs)
	state.VisitedIDs = visited

	return state, nil
}

func (s *memoryStore) Save(_ context.Context, userID uint, panel string, state ReadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	visited := make([]string, len(state.VisitedIDs))
	copy(visited, state.VisitedIDs)
	state.VisitedIDs = visited
	s.states[stateKey(userID, panel)] = state

	return nil
}
