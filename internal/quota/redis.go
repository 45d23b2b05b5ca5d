package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"github.com/redis/go-redis/v9"
)

// casScript compares the stored used_quota/last_reset pair against the
// caller's expectation and commits the new state only on a match, advancing
// the lifetime counter in the same atomic step.
var casScript = redis.NewScript(`
local used = redis.call("HGET", KEYS[1], "used_quota")
local reset = redis.call("HGET", KEYS[1], "last_reset")
if used ~= ARGV[1] or reset ~= ARGV[2] then
  return 0
end
redis.call("HSET", KEYS[1], "used_quota", ARGV[3], "last_reset", ARGV[4])
redis.call("HINCRBY", KEYS[1], "request_count", ARGV[5])
return 1
`)

// RedisStore implements Store over a Redis hash per region. The conditional
// write runs as a Lua script so the compare and the commit are atomic.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: strings.TrimSpace(prefix)}
}

// Seed registers the configured endpoints, creating missing records and
// applying total_quota changes without touching the usage counters.
func (s *RedisStore) Seed(ctx context.Context, endpoints []models.Endpoint) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("quota redis store: not initialized: %w", ErrStoreUnavailable)
	}
	for _, ep := range endpoints {
		key := s.endpointKey(ep.Region)
		if errAdd := s.client.SAdd(ctx, s.indexKey(), ep.Region).Err(); errAdd != nil {
			return fmt.Errorf("quota redis store: seed %s: %w: %w", ep.Region, ErrStoreUnavailable, errAdd)
		}
		pipe := s.client.TxPipeline()
		pipe.HSetNX(ctx, key, "used_quota", 0)
		pipe.HSetNX(ctx, key, "last_reset", 0)
		pipe.HSetNX(ctx, key, "request_count", 0)
		pipe.HSet(ctx, key, "total_quota", ep.TotalQuota)
		if _, errExec := pipe.Exec(ctx); errExec != nil {
			return fmt.Errorf("quota redis store: seed %s: %w: %w", ep.Region, ErrStoreUnavailable, errExec)
		}
	}
	return nil
}

// LoadAll returns every registered endpoint record.
func (s *RedisStore) LoadAll(ctx context.Context) ([]models.Endpoint, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("quota redis store: not initialized: %w", ErrStoreUnavailable)
	}
	regions, errMembers := s.client.SMembers(ctx, s.indexKey()).Result()
	if errMembers != nil {
		return nil, fmt.Errorf("quota redis store: list regions: %w: %w", ErrStoreUnavailable, errMembers)
	}
	out := make([]models.Endpoint, 0, len(regions))
	for _, region := range regions {
		fields, errGet := s.client.HGetAll(ctx, s.endpointKey(region)).Result()
		if errGet != nil {
			return nil, fmt.Errorf("quota redis store: load %s: %w: %w", region, ErrStoreUnavailable, errGet)
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, models.Endpoint{
			Region:       region,
			TotalQuota:   parseField(fields, "total_quota"),
			UsedQuota:    parseField(fields, "used_quota"),
			LastReset:    parseField(fields, "last_reset"),
			RequestCount: parseField(fields, "request_count"),
		})
	}
	return out, nil
}

// TryUpdate commits the transition through the compare-and-set script.
func (s *RedisStore) TryUpdate(ctx context.Context, region string, expectedUsed, expectedReset, newUsed, newReset int64) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("quota redis store: not initialized: %w", ErrStoreUnavailable)
	}
	delta := requestDelta(expectedUsed, expectedReset, newUsed, newReset)
	res, errEval := casScript.Run(ctx, s.client, []string{s.endpointKey(region)},
		expectedUsed, expectedReset, newUsed, newReset, delta).Int64()
	if errEval != nil {
		return false, fmt.Errorf("quota redis store: update %s: %w: %w", region, ErrStoreUnavailable, errEval)
	}
	return res == 1, nil
}

func (s *RedisStore) indexKey() string {
	if s.prefix == "" {
		return "endpoints"
	}
	return s.prefix + ":endpoints"
}

func (s *RedisStore) endpointKey(region string) string {
	if s.prefix == "" {
		return "endpoint:" + region
	}
	return s.prefix + ":endpoint:" + region
}

func parseField(fields map[string]string, name string) int64 {
	value, errParse := strconv.ParseInt(strings.TrimSpace(fields[name]), 10, 64)
	if errParse != nil {
		return 0
	}
	return value
}
