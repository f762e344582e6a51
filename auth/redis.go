// SPDX-License-Identifier: ice License 1.0

package auth

import (
	"context"
	"encoding/json"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// NewRedis connects to the token store shared with the services issuing tokens:
// `<keyPrefix><token>` holds the json of the user the token belongs to.
func NewRedis(ctx context.Context, cfg *RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to ping redis at %v (close: %v)", opts.Addr, client.Close())
	}

	return NewRedisWithClient(client, cfg), nil
}

func NewRedisWithClient(client *redis.Client, cfg *RedisConfig) *Redis {
	r := &Redis{client: client, keyPrefix: cfg.KeyPrefix, userIDField: cfg.UserIDField, tokenTTL: cfg.TokenTTL}
	if r.keyPrefix == "" {
		r.keyPrefix = DefaultKeyPrefix
	}
	if r.userIDField == "" {
		r.userIDField = defaultUserIDField
	}
	if r.tokenTTL <= 0 {
		r.tokenTTL = DefaultTokenTTL
	}

	return r
}

func (r *Redis) UserID(ctx context.Context, token string) (string, error) {
	val, err := r.client.Get(ctx, r.keyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrUnauthenticated
		}

		return "", errors.Wrap(err, "failed to read token from redis")
	}

	return storedUserID(val, r.userIDField)
}

// storedUserID accepts a plain user id, a json string or number holding it, or a json object with it under field.
func storedUserID(val, field string) (string, error) {
	if !gjson.Valid(val) {
		return val, nil
	}
	id := gjson.Parse(val)
	if id.IsObject() {
		id = id.Get(field)
	}
	if (id.Type != gjson.String && id.Type != gjson.Number) || id.String() == "" {
		return "", errors.Wrapf(ErrUnauthenticated, "stored user has no `%v`", field)
	}

	return id.String(), nil
}

// Store saves user as json under token for ttl (the configured token ttl when zero).
func (r *Redis) Store(ctx context.Context, token string, user any, ttl stdlibtime.Duration) error {
	b, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to serialize user")
	}
	if ttl <= 0 {
		ttl = r.tokenTTL
	}

	return errors.Wrap(r.client.Set(ctx, r.keyPrefix+token, b, ttl).Err(), "failed to store token in redis")
}

func (r *Redis) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()

	return token, r.Store(ctx, token, map[string]string{r.userIDField: userID}, 0)
}

func (r *Redis) Revoke(ctx context.Context, token string) error {
	return errors.Wrap(r.client.Del(ctx, r.keyPrefix+token).Err(), "failed to revoke token in redis")
}

func (r *Redis) Close() error {
	return errors.Wrap(r.client.Close(), "failed to close redis client")
}
