package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Store is the durable key/value store holding the singleton ticket
// configuration. Update merges a partial document into the stored one and
// persists the result.
type Store interface {
	Get(ctx context.Context) (domain.TicketConfig, error)
	Update(ctx context.Context, partial map[string]any) (domain.TicketConfig, error)
}

const configKey = "ticketbot:config"

// redisStore keeps the config as a single JSON document in Redis.
type redisStore struct {
	mu     sync.Mutex
	client *redis.Client
}

// NewRedisStore builds a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context) (domain.TicketConfig, error) {
	raw, err := s.client.Get(ctx, configKey).Result()
	if errors.Is(err, redis.Nil) {
		return domain.DefaultTicketConfig(), nil
	}
	if err != nil {
		return domain.TicketConfig{}, fmt.Errorf("read ticket config: %w", err)
	}

	cfg := domain.DefaultTicketConfig()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return domain.TicketConfig{}, fmt.Errorf("decode ticket config: %w", err)
	}
	return cfg, nil
}

// Update merges the partial document over the stored config field-by-field
// and writes the result back. The merge is performed on the JSON
// representation so callers patch exactly the keys they name.
func (s *redisStore) Update(ctx context.Context, partial map[string]any) (domain.TicketConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx)
	if err != nil {
		return domain.TicketConfig{}, err
	}

	merged, err := mergeConfig(current, partial)
	if err != nil {
		return domain.TicketConfig{}, err
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return domain.TicketConfig{}, fmt.Errorf("encode ticket config: %w", err)
	}
	if err := s.client.Set(ctx, configKey, encoded, 0).Err(); err != nil {
		return domain.TicketConfig{}, fmt.Errorf("write ticket config: %w", err)
	}
	return merged, nil
}

func mergeConfig(current domain.TicketConfig, partial map[string]any) (domain.TicketConfig, error) {
	base, err := json.Marshal(current)
	if err != nil {
		return domain.TicketConfig{}, fmt.Errorf("encode current config: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(base, &doc); err != nil {
		return domain.TicketConfig{}, fmt.Errorf("decode current config: %w", err)
	}

	mergeMaps(doc, partial)

	remarshalled, err := json.Marshal(doc)
	if err != nil {
		return domain.TicketConfig{}, fmt.Errorf("encode merged config: %w", err)
	}
	var merged domain.TicketConfig
	if err := json.Unmarshal(remarshalled, &merged); err != nil {
		return domain.TicketConfig{}, fmt.Errorf("invalid config patch: %w", err)
	}
	return merged, nil
}

// mergeMaps overlays src onto dst, descending into nested objects so a patch
// like {"panel": {"button_label": "Help"}} leaves the rest of panel intact.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		if srcChild, ok := value.(map[string]any); ok {
			if dstChild, ok := dst[key].(map[string]any); ok {
				mergeMaps(dstChild, srcChild)
				continue
			}
		}
		dst[key] = value
	}
}
