package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore claims single-use nonces with SET NX. Keys are namespaced by
// scope so different callers cannot collide.
type NonceStore struct {
	client goredis.Cmdable
}

func NewNonceStore(client goredis.Cmdable) *NonceStore {
	return &NonceStore{client: client}
}

func nonceKey(scope, nonce string) string {
	return "nonce:" + scope + ":" + nonce
}

// CheckAndSet reports true when the nonce was unclaimed and is now held for ttl.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, nonceKey(scope, nonce), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim nonce: %w", err)
	}
	return claimed, nil
}
