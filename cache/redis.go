package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mononest/backend/payment"

	"github.com/go-redis/redis/v7"
	extErrors "github.com/pkg/errors"
)

// IntentTTL matches how long Stripe honours an idempotency key
const IntentTTL = time.Hour * 24

const keyPrefix = "intent:"

var _ payment.IntentStore = &RedisIntentStore{}

// RedisIntentStore remembers created payment intents by idempotency key
type RedisIntentStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisIntentStore returns an IntentStore over rdb
func NewRedisIntentStore(rdb redis.UniversalClient) (*RedisIntentStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("nil redisClient is invalid")
	}
	return &RedisIntentStore{
		client: rdb,
		ttl:    IntentTTL,
	}, nil
}

func (s *RedisIntentStore) Lookup(ctx context.Context, key string) (*payment.Intent, error) {
	raw, err := s.client.Get(keyPrefix + key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot read remembered intent")
	}
	var intent payment.Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, extErrors.Wrap(err, "Cannot decode remembered intent")
	}
	return &intent, nil
}

func (s *RedisIntentStore) Remember(ctx context.Context, key string, intent *payment.Intent) error {
	raw, err := json.Marshal(intent)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode intent")
	}
	if err := s.client.Set(keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot remember intent")
	}
	return nil
}
