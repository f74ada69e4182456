package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// RedisCentroidStore keeps resolved centroids in Redis so that replicas and
// restarts share them
type RedisCentroidStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCentroidStore creates a new Redis backed centroid store. A zero ttl
// keeps entries forever.
func NewRedisCentroidStore(client *redis.Client, prefix string, ttl time.Duration) *RedisCentroidStore {
	if prefix == "" {
		prefix = "centroid:"
	}
	return &RedisCentroidStore{client: client, prefix: prefix, ttl: ttl}
}

// GetCentroid fetches a stored centroid
func (s *RedisCentroidStore) GetCentroid(ctx context.Context, country string) (models.Coordinates, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+country).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Coordinates{}, false, nil
	}
	if err != nil {
		return models.Coordinates{}, false, fmt.Errorf("failed to get centroid: %w", err)
	}

	var c models.Coordinates
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.Coordinates{}, false, fmt.Errorf("failed to decode centroid: %w", err)
	}
	return c, true, nil
}

// PutCentroid stores a centroid
func (s *RedisCentroidStore) PutCentroid(ctx context.Context, country string, c models.Coordinates) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+country, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store centroid: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisCentroidStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
