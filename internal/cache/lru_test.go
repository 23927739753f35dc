// Copyright 2025 the lsmdb Authors.

package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type testValue struct {
	id       int
	released bool
}

func (v *testValue) Release() { v.released = true }

func TestInsertAndGetRoundTrip(t *testing.T) {
	c := New(16)
	v := &testValue{id: 1}
	c.Insert("k", v)
	c.Release("k")

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Same(t, v, got)
	c.Release("k")
}

func TestGetMissReturnsFalse(t *testing.T) {
	c := New(16)
	_, ok := c.Get("missing")
	require.False(t, ok)
}

func TestEvictReleasesUnreferencedValues(t *testing.T) {
	c := New(shardCount * 2) // 2 entries per shard after rounding
	keys := make([]string, 0)
	values := make([]*testValue, 0)
	for i := 0; i < 3; i++ {
		k := fmt.Sprintf("shardkey-%d", i)
		v := &testValue{id: i}
		c.Insert(k, v)
		c.Release(k)
		keys = append(keys, k)
		values = append(values, v)
	}
	// Can't deterministically force all three keys into the same shard
	// without reimplementing the hash, so instead verify the invariant
	// directly: Evict always (eventually) calls Release once unreferenced.
	for i, k := range keys {
		c.Evict(k)
		require.True(t, values[i].released)
	}
}

func TestReleaseDoesNotFreeWhileStillReferencedAfterEviction(t *testing.T) {
	c := New(16)
	v := &testValue{}
	c.Insert("k", v) // refs=1 from Insert
	_, ok := c.Get("k")
	require.True(t, ok) // refs=2

	c.Evict("k")
	require.False(t, v.released, "value must not be released while still referenced")

	c.Release("k")
	require.False(t, v.released)
	c.Release("k")
	require.True(t, v.released)
}

func TestInsertReplacingExistingKeyReleasesOldUnreferencedValue(t *testing.T) {
	c := New(16)
	old := &testValue{id: 1}
	c.Insert("k", old)
	c.Release("k")

	newVal := &testValue{id: 2}
	c.Insert("k", newVal)
	require.True(t, old.released)

	got, ok := c.Get("k")
	require.True(t, ok)
	require.Same(t, newVal, got)
	c.Release("k")
	c.Release("k")
}

func TestCacheRespectsCapacityBound(t *testing.T) {
	c := New(shardCount) // 1 entry per shard
	for i := 0; i < 500; i++ {
		v := &testValue{id: i}
		c.Insert(fmt.Sprintf("key-%d", i), v)
		c.Release(fmt.Sprintf("key-%d", i))
	}
	require.LessOrEqual(t, c.Len(), shardCount)
}
