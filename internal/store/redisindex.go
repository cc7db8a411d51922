package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"authsignal/pkg/models"
)

// RedisConfig configures the Redis similarity index.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisIndex keeps a sliding index of recent signals per tenant: the raw
// signal JSON keyed by id, per-(user, host) activity counters, and a
// recency set scored by risk so queries can scan highest risk first.
type RedisIndex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisIndex constructs a Redis-backed signal index.
func NewRedisIndex(cfg RedisConfig) (*RedisIndex, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "authsignal:index"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 14 * 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis signal index: %w", err)
	}

	return &RedisIndex{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), ttl: cfg.TTL}, nil
}

// Name identifies the store in logs.
func (s *RedisIndex) Name() string { return "redis-index" }

// Ingest indexes a batch of signals in one pipeline round trip.
func (s *RedisIndex) Ingest(ctx context.Context, tenantID string, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()

	for _, sig := range signals {
		if sig == nil || sig.ID == "" {
			continue
		}
		body, err := json.Marshal(sig)
		if err != nil {
			return fmt.Errorf("marshal signal %s: %w", sig.ID, err)
		}

		sigKey := s.signalKey(tenantID, sig.ID)
		pipe.Set(ctx, sigKey, body, s.ttl)

		actorKey := s.actorKey(tenantID, sig.User, sig.Hostname)
		pipe.HIncrBy(ctx, actorKey, string(sig.Type), 1)
		pipe.Expire(ctx, actorKey, s.ttl)

		pipe.ZAddArgs(ctx, s.recentKey(tenantID), redis.ZAddArgs{
			GT:      true,
			Members: []redis.Z{{Score: sig.RiskScore, Member: sig.ID}},
		})
	}
	pipe.Expire(ctx, s.recentKey(tenantID), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update signal index keys: %w", err)
	}
	return nil
}

// Query scans indexed signals from highest risk down and returns those
// whose user, hostname or narrative contains the query text.
func (s *RedisIndex) Query(ctx context.Context, tenantID, query string) ([]*models.Signal, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, s.recentKey(tenantID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: 500,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read signal index: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	var out []*models.Signal
	for _, id := range ids {
		body, err := s.client.Get(ctx, s.signalKey(tenantID, id)).Bytes()
		if err != nil {
			// Expired between the range read and the fetch.
			continue
		}
		var sig models.Signal
		if err := json.Unmarshal(body, &sig); err != nil {
			continue
		}
		if needle == "" || matchesSignal(&sig, needle) {
			out = append(out, &sig)
		}
		if len(out) >= 100 {
			break
		}
	}
	return out, nil
}

// ActorCounts returns per-signal-type counts recorded for one (user, host).
func (s *RedisIndex) ActorCounts(ctx context.Context, tenantID, user, host string) (map[string]int64, error) {
	hash, err := s.client.HGetAll(ctx, s.actorKey(tenantID, user, host)).Result()
	if err != nil {
		return nil, fmt.Errorf("read actor counters: %w", err)
	}
	out := make(map[string]int64, len(hash))
	for k, v := range hash {
		var n int64
		fmt.Sscanf(v, "%d", &n)
		out[k] = n
	}
	return out, nil
}

// Close closes Redis resources.
func (s *RedisIndex) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func matchesSignal(sig *models.Signal, needle string) bool {
	return strings.Contains(strings.ToLower(sig.User), needle) ||
		strings.Contains(strings.ToLower(sig.Hostname), needle) ||
		strings.Contains(strings.ToLower(sig.Narrative), needle) ||
		strings.Contains(strings.ToLower(string(sig.Type)), needle)
}

func (s *RedisIndex) signalKey(tenantID, id string) string {
	return s.prefix + ":" + tenantID + ":signal:" + id
}

func (s *RedisIndex) actorKey(tenantID, user, host string) string {
	return s.prefix + ":" + tenantID + ":actor:" + user + "@" + host
}

func (s *RedisIndex) recentKey(tenantID string) string {
	return s.prefix + ":" + tenantID + ":recent"
}
