package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filmpulse/filmpulse/internal/domain"
)

// Redis is the RecommendationCache for multi-replica deployments. The
// epoch guard runs server-side: fills go through a Lua script that
// compares the stored epoch against the token before writing, so an
// invalidation issued by any replica wins over an in-flight fill.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

const redisPrefix = "reco:"

// NewRedis wraps an established go-redis client. The ttl bounds entry
// lifetime; it must be positive so orphaned index sets cannot pile up.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func epochKey(userID string) string  { return redisPrefix + "epoch:" + userID }
func keysKey(userID string) string   { return redisPrefix + "keys:" + userID }
func movieKey(movieID string) string { return redisPrefix + "movie:" + movieID }
func listKey(userID, variant string) string {
	return redisPrefix + "list:" + userID + ":" + variant
}

// putScript stores a list only when the epoch still matches the token,
// then registers the list key and the touched-movie index entries.
// KEYS: epoch, list, user key set, movie sets... ARGV: token, payload,
// ttl ms, user id.
var putScript = redis.NewScript(`
local epoch = redis.call('GET', KEYS[1])
if not epoch then epoch = '0' end
if epoch ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
redis.call('SADD', KEYS[3], KEYS[2])
redis.call('PEXPIRE', KEYS[3], ARGV[3])
for i = 4, #KEYS do
    redis.call('SADD', KEYS[i], ARGV[4])
    redis.call('PEXPIRE', KEYS[i], ARGV[3])
end
return 1
`)

// invalidateScript bumps the epoch and deletes every list registered
// for the user. KEYS: epoch, user key set.
var invalidateScript = redis.NewScript(`
redis.call('INCR', KEYS[1])
local keys = redis.call('SMEMBERS', KEYS[2])
for i = 1, #keys do
    redis.call('DEL', keys[i])
end
redis.call('DEL', KEYS[2])
return #keys
`)

// invalidateMovieScript evicts every user registered against the movie.
// KEYS: movie set. ARGV: key prefix.
var invalidateMovieScript = redis.NewScript(`
local users = redis.call('SMEMBERS', KEYS[1])
for i = 1, #users do
    redis.call('INCR', ARGV[1] .. 'epoch:' .. users[i])
    local keyset = ARGV[1] .. 'keys:' .. users[i]
    local keys = redis.call('SMEMBERS', keyset)
    for j = 1, #keys do
        redis.call('DEL', keys[j])
    end
    redis.call('DEL', keyset)
end
redis.call('DEL', KEYS[1])
return #users
`)

// Get implements RecommendationCache. Transport failures surface as
// errors; callers treat them as misses so a flaky Redis degrades to
// recomputation, never to staleness.
func (r *Redis) Get(ctx context.Context, userID, variant string) ([]domain.RecommendationEntry, bool, error) {
	payload, err := r.client.Get(ctx, listKey(userID, variant)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var entries []domain.RecommendationEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return entries, true, nil
}

// Begin implements RecommendationCache.
func (r *Redis) Begin(ctx context.Context, userID string) (Token, error) {
	epoch, err := r.client.Get(ctx, epochKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache begin: %w", err)
	}
	return Token(epoch), nil
}

// Put implements RecommendationCache.
func (r *Redis) Put(ctx context.Context, userID, variant string, token Token, entries []domain.RecommendationEntry, movieIDs []string) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	keys := make([]string, 0, 3+len(movieIDs))
	keys = append(keys, epochKey(userID), listKey(userID, variant), keysKey(userID))
	for _, movieID := range movieIDs {
		keys = append(keys, movieKey(movieID))
	}

	err = putScript.Run(ctx, r.client, keys,
		fmt.Sprintf("%d", token), payload, r.ttl.Milliseconds(), userID).Err()
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Invalidate implements RecommendationCache.
func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	err := invalidateScript.Run(ctx, r.client, []string{epochKey(userID), keysKey(userID)}).Err()
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// InvalidateMovie implements RecommendationCache.
func (r *Redis) InvalidateMovie(ctx context.Context, movieID string) error {
	err := invalidateMovieScript.Run(ctx, r.client, []string{movieKey(movieID)}, redisPrefix).Err()
	if err != nil {
		return fmt.Errorf("cache invalidate movie: %w", err)
	}
	return nil
}
