package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-forecast/internal/config"
	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

const (
	planKeyPrefix     = "replenish:plan"
	planScanBatchSize = 100
)

// PlanKey identifies a plan computation. Any change in inputs must change
// the key: callers pass a fingerprint of the movements and every parameter.
type PlanKey struct {
	ItemID      int64
	AsOf        domain.Date
	Fingerprint string
	Params      map[string]string
}

type PlanCache interface {
	Get(ctx context.Context, key PlanKey) (*domain.ItemPlan, bool, error)
	Set(ctx context.Context, key PlanKey, plan domain.ItemPlan) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPlanCache struct{}

// NewPlanCache returns a redis-backed cache when enabled, otherwise a no-op.
func NewPlanCache(ctx context.Context, cfg config.CacheConfig) (PlanCache, error) {
	if !cfg.Enabled {
		return &noopPlanCache{}, nil
	}

	client, ttl, err := newRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &redisPlanCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopPlanCache() PlanCache {
	return &noopPlanCache{}
}

func (c *redisPlanCache) Get(ctx context.Context, key PlanKey) (*domain.ItemPlan, bool, error) {
	payload, err := c.client.Get(ctx, BuildPlanKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var plan domain.ItemPlan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, false, fmt.Errorf("decode plan cache: %w", err)
	}
	return &plan, true, nil
}

func (c *redisPlanCache) Set(ctx context.Context, key PlanKey, plan domain.ItemPlan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan cache: %w", err)
	}
	if err := c.client.Set(ctx, BuildPlanKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPlanCache) InvalidateAll(ctx context.Context) error {
	deleted, err := deleteKeysWithPrefix(ctx, c.client, planNamespace(), planScanBatchSize)
	if err != nil {
		return err
	}
	log.Info().Int("keys", deleted).Msg("plan cache invalidated")
	return nil
}

func (c *redisPlanCache) Close() error {
	return c.client.Close()
}

func (n *noopPlanCache) Get(ctx context.Context, key PlanKey) (*domain.ItemPlan, bool, error) {
	return nil, false, nil
}

func (n *noopPlanCache) Set(ctx context.Context, key PlanKey, plan domain.ItemPlan) error {
	return nil
}

func (n *noopPlanCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (n *noopPlanCache) Close() error {
	return nil
}

// BuildPlanKey returns the redis key for k.
func BuildPlanKey(k PlanKey) string {
	return fmt.Sprintf("%s%d:%s", planNamespace(), k.ItemID, planKeyHash(k))
}

// planNamespace is the prefix shared by every plan key.
func planNamespace() string {
	return planKeyPrefix + ":"
}

func planKeyHash(k PlanKey) string {
	parts := []string{
		"as_of=" + k.AsOf.String(),
		"movements=" + k.Fingerprint,
	}
	for name, value := range k.Params {
		parts = append(parts, strings.ToLower(strings.TrimSpace(name))+"="+strings.TrimSpace(value))
	}

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes the demand-relevant content of movements so a new or
// edited movement invalidates cached plans.
func Fingerprint(movements []domain.Movement) string {
	h := sha1.New()
	for _, m := range movements {
		h.Write([]byte(strconv.FormatInt(m.ItemID, 10)))
		h.Write([]byte{'|'})
		h.Write([]byte(m.TransactionType))
		h.Write([]byte{'|'})
		h.Write([]byte(strconv.Itoa(m.QuantityDelta)))
		h.Write([]byte{'|'})
		h.Write([]byte(m.CreatedAt.UTC().Format(time.RFC3339Nano)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
