// Package redisbl is a Redis-backed token blacklist. Entries carry a
// TTL equal to the retention window, so Redis expires most of them on
// its own; PurgeBlacklist exists for explicit sweeps with a tighter
// max age.
package redisbl

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authkit-dev/authkit/internal/errs"
)

const keyPrefix = "bl:"

type Store struct {
	client    *redis.Client
	retention time.Duration
}

func New(client *redis.Client, retention time.Duration) *Store {
	return &Store{client: client, retention: retention}
}

func key(tokenId string) string {
	return keyPrefix + tokenId
}

// BlacklistToken records the revocation timestamp under the token id.
// Overwriting an existing entry makes the operation idempotent.
func (s *Store) BlacklistToken(ctx context.Context, tokenId string, at time.Time) error {
	value := strconv.FormatInt(at.UTC().Unix(), 10)
	if err := s.client.Set(ctx, key(tokenId), value, s.retention).Err(); err != nil {
		return errs.StoreUnavailable("blacklist token", err)
	}
	return nil
}

func (s *Store) IsTokenBlacklisted(ctx context.Context, tokenId string) (bool, error) {
	err := s.client.Get(ctx, key(tokenId)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errs.StoreUnavailable("lookup blacklist", err)
	}
	return true, nil
}

// PurgeBlacklist walks the blacklist keyspace and deletes entries
// revoked before olderThan. Deletions are per-key atomic; a cancelled
// sweep simply stops early.
func (s *Store) PurgeBlacklist(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := olderThan.UTC().Unix()
	var purged int64

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 512).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()

		value, err := s.client.Get(ctx, k).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// expired between scan and get
				continue
			}
			return purged, errs.StoreUnavailable("purge blacklist", err)
		}
		revokedAt, err := strconv.ParseInt(value, 10, 64)
		if err != nil || revokedAt >= cutoff {
			continue
		}

		deleted, err := s.client.Del(ctx, k).Result()
		if err != nil {
			return purged, errs.StoreUnavailable("purge blacklist", err)
		}
		purged += deleted
	}
	if err := iter.Err(); err != nil {
		return purged, errs.StoreUnavailable("purge blacklist", err)
	}
	return purged, nil
}
