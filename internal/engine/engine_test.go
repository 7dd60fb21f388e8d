package engine

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/hivecache/hivecache/config"
)

func testConfig(mutate ...func(*config.Cache)) *config.Cache {
	cfg := &config.Cache{
		Engine: config.EngineCfg{
			Shards: 8,
			UseCAS: true,
		},
	}
	for _, fn := range mutate {
		fn(cfg)
	}
	cfg.AdjustConfig()
	return cfg
}

func newTestCache(t *testing.T, mutate ...func(*config.Cache)) *Cache {
	t.Helper()
	return New(testConfig(mutate...), slog.Default())
}

// TestStore_InsertThenReplace distinguishes fresh inserts from in-place
// replacements.
func TestStore_InsertThenReplace(t *testing.T) {
	c := newTestCache(t)

	require.Equal(t, Inserted, c.Store([]byte("k"), []byte("v1"), nil))
	require.Equal(t, Replaced, c.Store([]byte("k"), []byte("v2"), nil))
	require.Equal(t, int64(1), c.Count())

	var got []byte
	res := c.Load([]byte("k"), func(v EntryView) *Update {
		got = append(got, v.Value...)
		return nil
	}, nil)

	require.Equal(t, Found, res)
	require.Equal(t, []byte("v2"), got)
}

// TestLoad_Miss reports NotFound without invoking the callback.
func TestLoad_Miss(t *testing.T) {
	c := newTestCache(t)

	var called bool
	res := c.Load([]byte("absent"), func(EntryView) *Update {
		called = true
		return nil
	}, nil)

	require.Equal(t, NotFound, res)
	require.False(t, called)
	require.Equal(t, int64(1), c.Stats().Misses)
}

// TestLoad_NilCallback counts the hit even when nothing observes the value.
func TestLoad_NilCallback(t *testing.T) {
	c := newTestCache(t)
	c.Store([]byte("k"), []byte("v"), nil)

	require.Equal(t, Found, c.Load([]byte("k"), nil, nil))
	require.Equal(t, int64(1), c.Stats().Hits)
}

// TestLoad_UpdateAppliedAtomically applies the callback's update under the
// same critical section as the read.
func TestLoad_UpdateAppliedAtomically(t *testing.T) {
	c := newTestCache(t)
	c.Store([]byte("k"), []byte("old"), nil)

	var casBefore uint64
	res := c.Load([]byte("k"), func(v EntryView) *Update {
		casBefore = v.CAS
		return &Update{Value: []byte("new value"), Flags: 3}
	}, nil)
	require.Equal(t, Found, res)

	var after EntryView
	c.Load([]byte("k"), func(v EntryView) *Update {
		after = EntryView{Value: append([]byte(nil), v.Value...), Flags: v.Flags, CAS: v.CAS}
		return nil
	}, nil)

	require.Equal(t, []byte("new value"), after.Value)
	require.Equal(t, uint32(3), after.Flags)
	require.Greater(t, after.CAS, casBefore, "update must mint a fresh version")
}

// TestDelete_Lifecycle removes an entry exactly once.
func TestDelete_Lifecycle(t *testing.T) {
	c := newTestCache(t)
	c.Store([]byte("k"), []byte("v"), nil)

	require.Equal(t, Deleted, c.Delete([]byte("k"), nil))
	require.Equal(t, NotFound, c.Delete([]byte("k"), nil))
	require.Equal(t, int64(0), c.Count())
}

// TestStore_CAS_HappyPath succeeds when the presented version is current.
func TestStore_CAS_HappyPath(t *testing.T) {
	c := newTestCache(t)
	c.Store([]byte("k"), []byte("v1"), nil)

	var cas uint64
	c.Load([]byte("k"), func(v EntryView) *Update {
		cas = v.CAS
		return nil
	}, nil)

	res := c.Store([]byte("k"), []byte("v2"), &StoreOptions{CASOp: true, CAS: cas})
	require.Equal(t, Replaced, res)
}

// TestStore_CAS_Stale rejects an outdated version and mutates nothing.
func TestStore_CAS_Stale(t *testing.T) {
	c := newTestCache(t)
	c.Store([]byte("k"), []byte("v1"), nil)

	var stale uint64
	c.Load([]byte("k"), func(v EntryView) *Update {
		stale = v.CAS
		return nil
	}, nil)

	// Another writer replaces the value; stale is now outdated.
	c.Store([]byte("k"), []byte("v2"), nil)

	res := c.Store([]byte("k"), []byte("v3"), &StoreOptions{CASOp: true, CAS: stale})
	require.Equal(t, CASMismatch, res)
	require.Equal(t, int64(1), c.Stats().CASMismatches)

	var got []byte
	c.Load([]byte("k"), func(v EntryView) *Update {
		got = append(got, v.Value...)
		return nil
	}, nil)
	require.Equal(t, []byte("v2"), got, "stale CAS must not mutate")
}

// TestStore_CAS_MissingKey reports NotFound.
func TestStore_CAS_MissingKey(t *testing.T) {
	c := newTestCache(t)

	res := c.Store([]byte("absent"), []byte("v"), &StoreOptions{CASOp: true, CAS: 1})
	require.Equal(t, NotFound, res)
}

// TestStore_CAS_Disabled rejects versioned stores when CAS is off.
func TestStore_CAS_Disabled(t *testing.T) {
	c := newTestCache(t, func(cfg *config.Cache) { cfg.Engine.UseCAS = false })
	c.Store([]byte("k"), []byte("v"), nil)

	res := c.Store([]byte("k"), []byte("v2"), &StoreOptions{CASOp: true, CAS: 1})
	require.Equal(t, CASMismatch, res)
}

// TestCAS_NeverReusedAcrossReinsert delete+reinsert mints a version no
// earlier reader could have observed.
func TestCAS_NeverReusedAcrossReinsert(t *testing.T) {
	c := newTestCache(t)

	c.Store([]byte("k"), []byte("v1"), nil)
	var first uint64
	c.Load([]byte("k"), func(v EntryView) *Update {
		first = v.CAS
		return nil
	}, nil)

	c.Delete([]byte("k"), nil)
	c.Store([]byte("k"), []byte("v2"), nil)

	var second uint64
	c.Load([]byte("k"), func(v EntryView) *Update {
		second = v.CAS
		return nil
	}, nil)

	require.Greater(t, second, first)
}

// TestStore_NX stores only when the key is absent.
func TestStore_NX(t *testing.T) {
	c := newTestCache(t)

	require.Equal(t, Inserted, c.Store([]byte("k"), []byte("v1"), &StoreOptions{NX: true}))
	require.Equal(t, Found, c.Store([]byte("k"), []byte("v2"), &StoreOptions{NX: true}))

	var got []byte
	c.Load([]byte("k"), func(v EntryView) *Update {
		got = append(got, v.Value...)
		return nil
	}, nil)
	require.Equal(t, []byte("v1"), got)
}

// TestStore_XX stores only when the key is present.
func TestStore_XX(t *testing.T) {
	c := newTestCache(t)

	require.Equal(t, NotFound, c.Store([]byte("k"), []byte("v1"), &StoreOptions{XX: true}))

	c.Store([]byte("k"), []byte("v1"), nil)
	require.Equal(t, Replaced, c.Store([]byte("k"), []byte("v2"), &StoreOptions{XX: true}))
}

// TestStore_EntryVeto keeps the old entry when the peek returns false.
func TestStore_EntryVeto(t *testing.T) {
	c := newTestCache(t)
	c.Store([]byte("k"), []byte("keep me"), nil)

	res := c.Store([]byte("k"), []byte("overwrite"), &StoreOptions{
		Entry: func(v EntryView) bool { return false },
	})
	require.Equal(t, Canceled, res)

	var got []byte
	c.Load([]byte("k"), func(v EntryView) *Update {
		got = append(got, v.Value...)
		return nil
	}, nil)
	require.Equal(t, []byte("keep me"), got)
}

// TestDelete_EntryVeto keeps the entry when the callback returns false.
func TestDelete_EntryVeto(t *testing.T) {
	c := newTestCache(t)
	c.Store([]byte("k"), []byte("v"), nil)

	res := c.Delete([]byte("k"), &DeleteOptions{
		Entry: func(v EntryView) bool { return false },
	})

	require.Equal(t, Canceled, res)
	require.Equal(t, int64(1), c.Count())
}

// TestTTL_ExpiresLazily makes an entry logically absent the moment its
// deadline passes, before any sweep runs.
func TestTTL_ExpiresLazily(t *testing.T) {
	mock := clock.NewMock()
	c := New(testConfig(), slog.Default(), WithClock(mock))

	c.Store([]byte("k"), []byte("v"), &StoreOptions{TTL: time.Minute})

	require.Equal(t, Found, c.Load([]byte("k"), nil, nil))

	mock.Add(61 * time.Second)
	require.Equal(t, NotFound, c.Load([]byte("k"), nil, nil))
	require.Equal(t, int64(0), c.Count(), "lazy expire physically removes on access")
	require.Equal(t, int64(1), c.Stats().Expired)
}

// TestTTL_DefaultApplied falls back to the configured default TTL.
func TestTTL_DefaultApplied(t *testing.T) {
	mock := clock.NewMock()
	c := New(testConfig(func(cfg *config.Cache) {
		cfg.Engine.DefaultTTL = 30 * time.Second
	}), slog.Default(), WithClock(mock))

	c.Store([]byte("k"), []byte("v"), nil)

	mock.Add(29 * time.Second)
	require.Equal(t, Found, c.Load([]byte("k"), nil, nil))

	mock.Add(2 * time.Second)
	require.Equal(t, NotFound, c.Load([]byte("k"), nil, nil))
}

// TestTTL_NegativeOverridesDefault forces a never-expiring entry.
func TestTTL_NegativeOverridesDefault(t *testing.T) {
	mock := clock.NewMock()
	c := New(testConfig(func(cfg *config.Cache) {
		cfg.Engine.DefaultTTL = time.Second
	}), slog.Default(), WithClock(mock))

	c.Store([]byte("k"), []byte("v"), &StoreOptions{TTL: -1})

	mock.Add(24 * time.Hour)
	require.Equal(t, Found, c.Load([]byte("k"), nil, nil))
}

// TestStore_KeepTTL preserves the existing deadline on replace.
func TestStore_KeepTTL(t *testing.T) {
	mock := clock.NewMock()
	c := New(testConfig(), slog.Default(), WithClock(mock))

	c.Store([]byte("k"), []byte("v1"), &StoreOptions{TTL: time.Minute})

	mock.Add(30 * time.Second)
	c.Store([]byte("k"), []byte("v2"), &StoreOptions{TTL: time.Hour, KeepTTL: true})

	// The original deadline still applies.
	mock.Add(31 * time.Second)
	require.Equal(t, NotFound, c.Load([]byte("k"), nil, nil))
}

// TestStore_AbsoluteExpires takes precedence over TTL.
func TestStore_AbsoluteExpires(t *testing.T) {
	mock := clock.NewMock()
	c := New(testConfig(), slog.Default(), WithClock(mock))

	deadline := mock.Now().Add(10 * time.Second).UnixNano()
	c.Store([]byte("k"), []byte("v"), &StoreOptions{Expires: deadline, TTL: time.Hour})

	mock.Add(11 * time.Second)
	require.Equal(t, NotFound, c.Load([]byte("k"), nil, nil))
}

// TestStore_ReplacingExpired treats the dead entry as absent.
func TestStore_ReplacingExpired(t *testing.T) {
	mock := clock.NewMock()
	c := New(testConfig(), slog.Default(), WithClock(mock))

	c.Store([]byte("k"), []byte("v1"), &StoreOptions{TTL: time.Second})
	mock.Add(2 * time.Second)

	require.Equal(t, Inserted, c.Store([]byte("k"), []byte("v2"), nil),
		"store over an expired entry is an insert, not a replace")
}

// TestEvictionCallback_Expired reports lazily expired entries.
func TestEvictionCallback_Expired(t *testing.T) {
	mock := clock.NewMock()

	type evicted struct {
		reason Reason
		key    string
	}
	var events []evicted
	c := New(testConfig(), slog.Default(), WithClock(mock),
		WithEvictionCallback(func(shard int, reason Reason, v EntryView) {
			events = append(events, evicted{reason, string(v.Key)})
		}),
	)

	c.Store([]byte("k"), []byte("v"), &StoreOptions{TTL: time.Second})
	mock.Add(2 * time.Second)
	c.Load([]byte("k"), nil, nil)

	require.Len(t, events, 1)
	require.Equal(t, ReasonExpired, events[0].reason)
	require.Equal(t, "k", events[0].key)
}

// TestEvictionCallback_NotOnDelete explicit deletes are not evictions.
func TestEvictionCallback_NotOnDelete(t *testing.T) {
	var called bool
	c := New(testConfig(), slog.Default(),
		WithEvictionCallback(func(int, Reason, EntryView) { called = true }),
	)

	c.Store([]byte("k"), []byte("v"), nil)
	c.Delete([]byte("k"), nil)

	require.False(t, called)
}

// TestClear reports every entry with ReasonCleared and empties the cache.
func TestClear(t *testing.T) {
	var cleared int
	c := New(testConfig(), slog.Default(),
		WithEvictionCallback(func(_ int, reason Reason, _ EntryView) {
			require.Equal(t, ReasonCleared, reason)
			cleared++
		}),
	)

	for i := 0; i < 50; i++ {
		c.Store([]byte(fmt.Sprintf("key-%d", i)), []byte("v"), nil)
	}

	c.Clear()

	require.Equal(t, 50, cleared)
	require.Equal(t, int64(0), c.Count())
	require.Equal(t, int64(0), c.Size())
	require.Equal(t, int64(50), c.Stats().Cleared)
}

// TestMemoryBudget_InlineEviction keeps tracked bytes at or under the budget
// by evicting on the write path.
func TestMemoryBudget_InlineEviction(t *testing.T) {
	const budget = 64 * 1024
	var lowMem int
	c := New(testConfig(func(cfg *config.Cache) {
		cfg.Engine.Shards = 2
		cfg.Engine.MemoryBudgetBytes = budget
	}), slog.Default(),
		WithEvictionCallback(func(_ int, reason Reason, _ EntryView) {
			if reason == ReasonLowMem {
				lowMem++
			}
		}),
	)

	for i := 0; i < 500; i++ {
		c.Store([]byte(fmt.Sprintf("key-%d", i)), make([]byte, 1024), nil)
	}

	require.LessOrEqual(t, c.Size(), int64(budget))
	require.Greater(t, lowMem, 0)
	require.Equal(t, int64(lowMem), c.Stats().EvictedLowMem)
}

// TestSoftEviction_BackgroundPath trims down to the soft limit on demand.
func TestSoftEviction_BackgroundPath(t *testing.T) {
	c := New(testConfig(func(cfg *config.Cache) {
		cfg.Engine.MemoryBudgetBytes = 1 << 30
		cfg.Eviction = &config.EvictionCfg{Policy: config.PolicyRandom}
	}), slog.Default())

	for i := 0; i < 200; i++ {
		c.Store([]byte(fmt.Sprintf("key-%d", i)), make([]byte, 1024), nil)
	}
	require.False(t, c.SoftMemoryLimitOvercome(), "well under the soft limit")

	// Shrink the soft limit below current usage via a fresh config.
	c2 := New(testConfig(func(cfg *config.Cache) {
		cfg.Engine.MemoryBudgetBytes = 16 * 1024
		cfg.Eviction = &config.EvictionCfg{Policy: config.PolicyRandom}
	}), slog.Default())
	for i := 0; i < 200; i++ {
		c2.Store([]byte(fmt.Sprintf("key-%d", i)), make([]byte, 100), &StoreOptions{})
	}

	// Inline reclaim already ran against the hard budget; force the soft path.
	if c2.SoftMemoryLimitOvercome() {
		freed, evicted := c2.SoftEvictUntilWithinLimit(10_000)
		require.Greater(t, evicted, int64(0))
		require.Greater(t, freed, int64(0))
	}
	require.False(t, c2.SoftMemoryLimitOvercome())
}

// TestMemoryBudget_ZeroMeansUnbounded never reports eviction pressure when no
// budget is configured, even with the eviction subsystem enabled.
func TestMemoryBudget_ZeroMeansUnbounded(t *testing.T) {
	c := New(testConfig(func(cfg *config.Cache) {
		cfg.Eviction = &config.EvictionCfg{Policy: config.PolicyLRU}
	}), slog.Default())

	for i := 0; i < 100; i++ {
		c.Store([]byte(fmt.Sprintf("key-%d", i)), make([]byte, 1024), nil)
	}

	require.False(t, c.SoftMemoryLimitOvercome(), "budget 0 must mean unbounded")

	freed, evicted := c.SoftEvictUntilWithinLimit(10_000)
	require.Zero(t, freed)
	require.Zero(t, evicted)
	require.Equal(t, int64(100), c.Count())
}

// TestCounters_SizeTracksBytes keeps Size consistent through replace and
// delete.
func TestCounters_SizeTracksBytes(t *testing.T) {
	c := newTestCache(t)

	c.Store([]byte("k"), make([]byte, 100), nil)
	after100 := c.Size()

	c.Store([]byte("k"), make([]byte, 300), nil)
	require.Equal(t, after100+200, c.Size())

	c.Delete([]byte("k"), nil)
	require.Equal(t, int64(0), c.Size())
}

// TestTotal_CountsOperations counts every explicit operation including
// misses.
func TestTotal_CountsOperations(t *testing.T) {
	c := newTestCache(t)

	c.Store([]byte("k"), []byte("v"), nil)
	c.Load([]byte("k"), nil, nil)
	c.Load([]byte("absent"), nil, nil)
	c.Delete([]byte("k"), nil)

	require.Equal(t, uint64(4), c.Total())
}

// TestLoad_NoTouch skips the recency update.
func TestLoad_NoTouch(t *testing.T) {
	mock := clock.NewMock()
	c := New(testConfig(), slog.Default(), WithClock(mock))

	c.Store([]byte("k"), []byte("v"), nil)
	mock.Add(time.Hour)

	require.Equal(t, Found, c.Load([]byte("k"), nil, &LoadOptions{NoTouch: true}))
	require.Equal(t, Found, c.Load([]byte("k"), nil, nil))
}

// TestNShards reflects the adjusted power-of-two shard count.
func TestNShards(t *testing.T) {
	c := newTestCache(t, func(cfg *config.Cache) { cfg.Engine.Shards = 5 })
	require.Equal(t, 8, c.NShards(), "5 rounds up to the next power of two")
}
