// Package redisstore is the out-of-process Health & Quota Store backend,
// for deployments where multiple gateway instances must share circuit
// and quota state. Keys are namespaced as health:{provider} and
// quota:{provider}:{window}; TTLs track cooldown and window expiry.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaymesh/gateway/pkg/health"
)

// Store is a Redis-backed implementation of health.Store.
type Store struct {
	client    *redis.Client
	cooldowns health.CooldownTable
}

// New wraps an existing redis client. The caller owns the client's
// lifecycle except that Close also closes it.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// SetCooldowns overrides the per-outcome-class cooldown table. Call
// before the store is shared across goroutines.
func (s *Store) SetCooldowns(t health.CooldownTable) {
	s.cooldowns = t
}

func healthKey(provider string) string {
	return fmt.Sprintf("health:%s", provider)
}

func quotaKey(provider, window string) string {
	return fmt.Sprintf("quota:%s:%s", provider, window)
}

func (s *Store) CheckHealth(ctx context.Context, provider string) (health.HealthRecord, error) {
	key := healthKey(provider)

	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return health.HealthRecord{}, fmt.Errorf("redisstore: CheckHealth: %w", err)
	}

	if len(vals) == 0 {
		return health.HealthRecord{Provider: provider, Circuit: health.CircuitClosed, SuccessRate: 1.0}, nil
	}

	rec := health.HealthRecord{
		Provider:    provider,
		Circuit:     health.CircuitState(vals["circuit"]),
		LastOutcome: health.Outcome(vals["last_outcome"]),
	}
	fmt.Sscanf(vals["success_rate"], "%f", &rec.SuccessRate)
	if expiry, ok := vals["cooldown_expiry"]; ok && expiry != "" {
		if unix, err := parseUnix(expiry); err == nil {
			rec.CooldownExpiry = unix
		}
	}

	if rec.Circuit == health.CircuitOpen && time.Now().After(rec.CooldownExpiry) {
		rec.Circuit = health.CircuitHalfOpen
		s.client.HSet(ctx, key, "circuit", string(health.CircuitHalfOpen))
	}

	return rec, nil
}

func parseUnix(s string) (time.Time, error) {
	var sec int64
	if _, err := fmt.Sscanf(s, "%d", &sec); err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

// recordOutcomeScript applies the circuit transition rules atomically
// server-side: increments total/success counters, then evaluates the
// half-open and opens-on-outcome transitions in a single round trip.
var recordOutcomeScript = redis.NewScript(`
local key = KEYS[1]
local outcome = ARGV[1]
local is_success = ARGV[2]
local opens = ARGV[3]
local cooldown_seconds = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local circuit = redis.call("HGET", key, "circuit")
if circuit == false then circuit = "closed" end

redis.call("HINCRBY", key, "total", 1)
if is_success == "1" then
  redis.call("HINCRBY", key, "successes", 1)
end
redis.call("HSET", key, "last_outcome", outcome)

if is_success == "1" then
  local expiry = tonumber(redis.call("HGET", key, "cooldown_expiry") or "0")
  if circuit ~= "open" or now > expiry then
    circuit = "closed"
  end
elseif opens == "1" then
  circuit = "open"
  redis.call("HSET", key, "cooldown_expiry", now + cooldown_seconds)
end

redis.call("HSET", key, "circuit", circuit)

local total = tonumber(redis.call("HGET", key, "total"))
local successes = tonumber(redis.call("HGET", key, "successes") or "0")
redis.call("HSET", key, "success_rate", successes / total)

return 1
`)

func (s *Store) RecordOutcome(ctx context.Context, provider string, outcome health.Outcome) error {
	key := healthKey(provider)

	isSuccess := "0"
	if outcome == health.OutcomeSuccess {
		isSuccess = "1"
	}
	opens := "0"
	if outcome.Opens() {
		opens = "1"
	}

	err := recordOutcomeScript.Run(ctx, s.client, []string{key},
		string(outcome), isSuccess, opens,
		int64(s.cooldowns.For(outcome)/time.Second),
		time.Now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("redisstore: RecordOutcome: %w", err)
	}

	return nil
}

// checkQuotaScript performs the atomic check-and-increment: INCR then
// compare, decrementing back out if the limit was exceeded so a failed
// CheckQuota never leaves a phantom increment behind.
var checkQuotaScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local increment = ARGV[2]
local window_seconds = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", key) or "0")

if increment == "1" then
  if current >= limit then
    return {0, 0}
  end
  current = redis.call("INCR", key)
  if current == 1 then
    redis.call("EXPIRE", key, window_seconds)
  end
  return {1, limit - current}
else
  if current >= limit then
    return {0, 0}
  end
  return {1, limit - current}
end
`)

func (s *Store) CheckQuota(ctx context.Context, provider, window string, limit int64, increment bool) (bool, int64, error) {
	if limit <= 0 {
		return true, -1, nil
	}

	dur, err := time.ParseDuration(window)
	if err != nil || dur <= 0 {
		dur = time.Minute
	}

	incArg := "0"
	if increment {
		incArg = "1"
	}

	res, err := checkQuotaScript.Run(ctx, s.client, []string{quotaKey(provider, window)},
		limit, incArg, int64(dur/time.Second),
	).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redisstore: CheckQuota: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("redisstore: CheckQuota: unexpected script result %v", res)
	}

	allowed := vals[0].(int64) == 1
	remaining := vals[1].(int64)

	return allowed, remaining, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
