// Package status keeps the last import summary of every route in Redis.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-importer/internal/domain"
	apperrors "github.com/segyhp/loan-importer/pkg/errors"
)

const keyPrefix = "loanimport:summary:"

// ErrNoSummary is returned when a route has never been imported.
var ErrNoSummary = errors.New("no import summary for route")

type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore returns a summary store. A zero ttl keeps summaries forever.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: client, ttl: ttl}
}

func summaryKey(route string) string {
	return keyPrefix + route
}

// SaveSummary overwrites the last summary of s.Route.
func (s *Store) SaveSummary(ctx context.Context, summary *domain.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := s.redis.Set(ctx, summaryKey(summary.Route), payload, s.ttl).Err(); err != nil {
		return apperrors.WrapCacheError(err)
	}
	return nil
}

// LastSummary returns the most recent summary recorded for route.
func (s *Store) LastSummary(ctx context.Context, route string) (*domain.RunSummary, error) {
	payload, err := s.redis.Get(ctx, summaryKey(route)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSummary
	}
	if err != nil {
		return nil, apperrors.WrapCacheError(err)
	}

	var summary domain.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("decode summary for %s: %w", route, err)
	}
	return &summary, nil
}

// Record satisfies the importer's summary recorder.
func (s *Store) Record(ctx context.Context, summary *domain.RunSummary) error {
	return s.SaveSummary(ctx, summary)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
