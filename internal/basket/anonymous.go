package basket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhpark-dev/shopmall-backend/pkg/redis"
)

// AnonymousLine is a pre-login cart entry held in redis. Prices are not
// snapshotted until the line lands in a persistent basket.
type AnonymousLine struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	AnonymousCartKey(sessionID string) string
}

// AnonymousStore keeps session-scoped carts in redis until login.
type AnonymousStore struct {
	kv  kvStore
	ttl time.Duration
}

// NewAnonymousStore builds an anonymous cart store with the provided TTL.
func NewAnonymousStore(kv kvStore, ttl time.Duration) (*AnonymousStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &AnonymousStore{kv: kv, ttl: ttl}, nil
}

// Load returns the cart lines for the session, or nil when none exist.
func (s *AnonymousStore) Load(ctx context.Context, sessionID string) ([]AnonymousLine, error) {
	raw, err := s.kv.Get(ctx, s.kv.AnonymousCartKey(sessionID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading anonymous cart: %w", err)
	}
	var lines []AnonymousLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("decoding anonymous cart: %w", err)
	}
	return lines, nil
}

// Save writes the cart lines for the session, refreshing the TTL.
func (s *AnonymousStore) Save(ctx context.Context, sessionID string, lines []AnonymousLine) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encoding anonymous cart: %w", err)
	}
	return s.kv.Set(ctx, s.kv.AnonymousCartKey(sessionID), payload, s.ttl)
}

// Delete drops the session cart.
func (s *AnonymousStore) Delete(ctx context.Context, sessionID string) error {
	return s.kv.Del(ctx, s.kv.AnonymousCartKey(sessionID))
}
