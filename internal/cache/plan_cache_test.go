package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/internal/config"
	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

func sampleKey() PlanKey {
	return PlanKey{
		ItemID:      42,
		AsOf:        domain.NewDate(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		Fingerprint: "abc",
		Params:      map[string]string{"horizon_days": "30", "allow_ml": "true"},
	}
}

func TestBuildPlanKeyStable(t *testing.T) {
	a := BuildPlanKey(sampleKey())
	b := BuildPlanKey(sampleKey())

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "replenish:plan:42:"))
}

func TestBuildPlanKeyChangesWithInputs(t *testing.T) {
	base := BuildPlanKey(sampleKey())

	k := sampleKey()
	k.Params["horizon_days"] = "14"
	assert.NotEqual(t, base, BuildPlanKey(k))

	k = sampleKey()
	k.Fingerprint = "def"
	assert.NotEqual(t, base, BuildPlanKey(k))

	k = sampleKey()
	k.AsOf = k.AsOf.AddDays(1)
	assert.NotEqual(t, base, BuildPlanKey(k))
}

func TestFingerprint(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	movements := []domain.Movement{{ItemID: 1, TransactionType: domain.TransactionOutbound, QuantityDelta: -2, CreatedAt: t0}}

	first := Fingerprint(movements)
	assert.Equal(t, first, Fingerprint(movements))

	movements[0].QuantityDelta = -3
	assert.NotEqual(t, first, Fingerprint(movements))
	assert.NotEqual(t, Fingerprint(nil), first)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c, err := NewPlanCache(context.Background(), config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Set(context.Background(), sampleKey(), domain.ItemPlan{}))
	plan, ok, err := c.Get(context.Background(), sampleKey())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, plan)
	assert.NoError(t, c.Close())
}

func TestPlanKeysShareInvalidationNamespace(t *testing.T) {
	assert.Equal(t, "replenish:plan:", planNamespace())

	for _, id := range []int64{1, 42, 1000} {
		k := sampleKey()
		k.ItemID = id
		assert.True(t, strings.HasPrefix(BuildPlanKey(k), planNamespace()))
	}
}
