// Package history keeps the per-session chat transcript in Redis. The store
// degrades gracefully: a missing or unreachable backend behaves like empty
// history and never fails the caller.
package history

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultSession is the single active conversation.
const DefaultSession = "default"

// Turn is one chat message in insertion order.
type Turn struct {
	Text string `json:"text"`
	IsAI bool   `json:"is_ai"`
}

type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewStore wraps the Redis client. A nil client is allowed and yields a store
// that always reads empty history.
func NewStore(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func key(session string) string {
	return "history:" + session
}

// Get returns the session's turns in insertion order, or an empty slice when
// the session is absent or the backend is unreachable.
func (s *Store) Get(ctx context.Context, session string) []Turn {
	if s.client == nil {
		return []Turn{}
	}

	data, err := s.client.Get(ctx, key(session)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error().Err(err).Str("session", session).Msg("failed to get history")
		}
		return []Turn{}
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		s.logger.Error().Err(err).Str("session", session).Msg("failed to decode history")
		return []Turn{}
	}
	return turns
}

// Save replaces the session's stored turns wholesale.
func (s *Store) Save(ctx context.Context, session string, turns []Turn) {
	if s.client == nil {
		return
	}

	data, err := json.Marshal(turns)
	if err != nil {
		s.logger.Error().Err(err).Str("session", session).Msg("failed to encode history")
		return
	}
	if err := s.client.Set(ctx, key(session), data, 0).Err(); err != nil {
		s.logger.Error().Err(err).Str("session", session).Msg("failed to save history")
	}
}

// Clear removes the session. Clearing an absent session is a no-op.
func (s *Store) Clear(ctx context.Context, session string) {
	if s.client == nil {
		return
	}

	if err := s.client.Del(ctx, key(session)).Err(); err != nil {
		s.logger.Error().Err(err).Str("session", session).Msg("failed to clear history")
	}
}
