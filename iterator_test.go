package wtinylfu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildMixedContainer spreads entries across all three segments.
func buildMixedContainer(t *testing.T) (*Container, []*testItem) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TinySizePercent = 20
	cfg.ProtectionFreq = 1
	cfg.DefaultLruRefreshTime = 0
	clk := &testClock{now: 1}
	c := newTestContainer(t, cfg, clk)

	items := makeItems(10)
	for _, e := range items {
		require.True(t, c.Add(e))
	}

	// Promote two probation entries into Main with a pair of accesses each.
	promoted := 0
	for _, e := range items {
		if SegmentOf(e) != Probation {
			continue
		}
		require.True(t, c.RecordAccess(e, AccessModeRead))
		require.True(t, c.RecordAccess(e, AccessModeRead))
		require.Equal(t, Main, SegmentOf(e))
		if promoted++; promoted == 2 {
			break
		}
	}
	require.Equal(t, 2, segLen(c, Main))
	require.Positive(t, segLen(c, Tiny))
	require.Positive(t, segLen(c, Probation))
	return c, items
}

func TestEvictionIteratorWalk(t *testing.T) {
	c, items := buildMixedContainer(t)
	var mainHead Entry
	var mainLen int
	c.WithContainerLock(func() {
		mainHead = c.lru.getList(Main).Head()
		mainLen = c.lru.getList(Main).Len()
	})

	seen := make(map[Entry]int)
	var order []Entry
	c.WithEvictionIterator(func(it *EvictionIterator) {
		for it.Valid() {
			e := it.Get()
			seen[e]++
			order = append(order, e)
			it.Next()
		}
		require.Nil(t, it.Get())
	})

	// Every entry surfaces exactly once.
	require.Len(t, seen, len(items))
	for _, e := range items {
		require.Equal(t, 1, seen[e])
	}

	// Main entries come last, ending with Main's head.
	for _, e := range order[:len(order)-mainLen] {
		require.NotEqual(t, Main, SegmentOf(e))
	}
	for _, e := range order[len(order)-mainLen:] {
		require.Equal(t, Main, SegmentOf(e))
	}
	require.Same(t, mainHead, order[len(order)-1])
}

func TestEvictionIteratorDrain(t *testing.T) {
	c, items := buildMixedContainer(t)

	evicted := 0
	c.WithEvictionIterator(func(it *EvictionIterator) {
		for it.Valid() {
			c.RemoveIterator(it)
			evicted++
		}
	})

	require.Equal(t, len(items), evicted)
	require.True(t, c.IsEmpty())
	for _, e := range items {
		require.False(t, e.IsInMMContainer())
		require.False(t, isTiny(e))
		require.False(t, isProbation(e))
		require.False(t, isAccessed(e))
	}
}

func TestEvictionIteratorPartialEviction(t *testing.T) {
	c, items := buildMixedContainer(t)

	// Freeing space means evicting from the front until enough is gone.
	c.WithEvictionIterator(func(it *EvictionIterator) {
		for i := 0; i < 4; i++ {
			c.RemoveIterator(it)
		}
	})
	require.Equal(t, len(items)-4, c.Size())
	verifyContainer(t, c, items)
}

func TestEvictionIteratorDestroyReleasesLock(t *testing.T) {
	clk := &testClock{now: 1}
	c := newTestContainer(t, DefaultConfig(), clk)
	require.True(t, c.Add(newTestItem("a")))

	it := c.GetEvictionIterator()
	require.True(t, it.Valid())
	it.Destroy()
	require.False(t, it.Valid())

	// The container is usable again once the iterator is destroyed.
	require.True(t, c.Add(newTestItem("b")))

	// Destroy is idempotent.
	it.Destroy()
}

func TestEvictionIteratorResetToBegin(t *testing.T) {
	c, items := buildMixedContainer(t)

	it := c.GetEvictionIterator()
	first := it.Get()
	it.Next()
	it.Next()
	it.ResetToBegin()
	require.Same(t, first, it.Get())

	// ResetToBegin also revives a destroyed iterator, re-acquiring the
	// lock.
	it.Destroy()
	it.ResetToBegin()
	require.Same(t, first, it.Get())
	n := 0
	for it.Valid() {
		it.Next()
		n++
	}
	require.Equal(t, len(items), n)
	it.Destroy()
}

func TestEvictionIteratorEqual(t *testing.T) {
	clk := &testClock{now: 1}
	c := newTestContainer(t, DefaultConfig(), clk)
	require.True(t, c.Add(newTestItem("a")))

	it := c.GetEvictionIterator()
	other := &EvictionIterator{c: c}
	require.False(t, it.Equal(other))
	it.Reset()
	require.True(t, it.Equal(other))

	c2 := newTestContainer(t, DefaultConfig(), clk)
	require.False(t, it.Equal(&EvictionIterator{c: c2}))
	it.Destroy()
}

func TestEvictionIteratorPrevPanics(t *testing.T) {
	clk := &testClock{now: 1}
	c := newTestContainer(t, DefaultConfig(), clk)
	it := c.GetEvictionIterator()
	defer it.Destroy()
	require.PanicsWithValue(t,
		"wtinylfu: decrementing eviction iterator is not supported",
		func() { it.Prev() })
}

func TestEvictionIteratorTieBreak(t *testing.T) {
	// With a live tiny candidate that is weaker than the probation tail,
	// the iterator surfaces tiny first; a stronger tiny tail waits behind
	// probation.
	cfg := DefaultConfig()
	cfg.TinySizePercent = 50
	cfg.NewcomerWinsOnTie = false
	cfg.ProtectionFreq = 100
	cfg.DefaultLruRefreshTime = 0
	clk := &testClock{now: 1}
	c := newTestContainer(t, cfg, clk)

	a, b := newTestItem("a"), newTestItem("b")
	require.True(t, c.Add(a))
	require.True(t, c.Add(b))
	require.Equal(t, Probation, SegmentOf(a))
	require.Equal(t, Tiny, SegmentOf(b))

	// Frequencies tie, so the tiny tail is not admitted and evicts first.
	c.WithEvictionIterator(func(it *EvictionIterator) {
		require.Same(t, b, it.Get())
		it.Next()
		require.Same(t, a, it.Get())
	})

	// Boost the tiny tail's frequency: now probation evicts first.
	require.True(t, c.RecordAccess(b, AccessModeRead))
	c.WithEvictionIterator(func(it *EvictionIterator) {
		require.Same(t, a, it.Get())
		it.Next()
		require.Same(t, b, it.Get())
	})
}
