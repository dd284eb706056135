package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StateManager tracks which leaf URLs of a root sitemap finished in the
// current crawl, so an interrupted crawl can resume.
type StateManager interface {
	CompletedURLs(ctx context.Context, root string) (map[string]struct{}, error)
	MarkCompleted(ctx context.Context, root string, urls ...string) error
	Reset(ctx context.Context, root string) error
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "ingest:progress:",
	}
}

func (s *redisStateManager) CompletedURLs(ctx context.Context, root string) (map[string]struct{}, error) {
	members, err := s.redisClient.SMembers(ctx, s.keyPrefix+root).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get completed URLs for %s: %w", root, err)
	}

	completed := make(map[string]struct{}, len(members))
	for _, m := range members {
		completed[m] = struct{}{}
	}
	return completed, nil
}

func (s *redisStateManager) MarkCompleted(ctx context.Context, root string, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}

	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}
	if err := s.redisClient.SAdd(ctx, s.keyPrefix+root, members...).Err(); err != nil {
		return fmt.Errorf("failed to mark %d URLs completed for %s: %w", len(urls), root, err)
	}
	return nil
}

func (s *redisStateManager) Reset(ctx context.Context, root string) error {
	if err := s.redisClient.Del(ctx, s.keyPrefix+root).Err(); err != nil {
		return fmt.Errorf("failed to reset progress for %s: %w", root, err)
	}
	return nil
}

type memoryStateManager struct {
	mu        sync.Mutex
	completed map[string]map[string]struct{}
}

// NewMemoryStateManager keeps progress for the lifetime of the process only.
func NewMemoryStateManager() StateManager {
	return &memoryStateManager{completed: make(map[string]map[string]struct{})}
}

func (s *memoryStateManager) CompletedURLs(_ context.Context, root string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{}, len(s.completed[root]))
	for u := range s.completed[root] {
		out[u] = struct{}{}
	}
	return out, nil
}

func (s *memoryStateManager) MarkCompleted(_ context.Context, root string, urls ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.completed[root]
	if !ok {
		set = make(map[string]struct{}, len(urls))
		s.completed[root] = set
	}
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return nil
}

func (s *memoryStateManager) Reset(_ context.Context, root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.completed, root)
	return nil
}
