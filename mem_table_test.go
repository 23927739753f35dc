// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tillwork/lsmdb/internal/base"
)

func TestMemTableSetThenGet(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	m.set([]byte("k"), 1, base.InternalKeyKindSet, []byte("v1"))

	v, found, deleted := m.get([]byte("k"), 1)
	require.True(t, found)
	require.False(t, deleted)
	require.Equal(t, "v1", string(v))
}

func TestMemTableGetRespectsSnapshotSeq(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	m.set([]byte("k"), 1, base.InternalKeyKindSet, []byte("v1"))
	m.set([]byte("k"), 2, base.InternalKeyKindSet, []byte("v2"))

	v, found, _ := m.get([]byte("k"), 1)
	require.True(t, found)
	require.Equal(t, "v1", string(v))

	v, found, _ = m.get([]byte("k"), 2)
	require.True(t, found)
	require.Equal(t, "v2", string(v))
}

func TestMemTableDeleteTombstone(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	m.set([]byte("k"), 1, base.InternalKeyKindSet, []byte("v1"))
	m.set([]byte("k"), 2, base.InternalKeyKindDelete, nil)

	_, found, deleted := m.get([]byte("k"), 2)
	require.False(t, found)
	require.True(t, deleted)
}

func TestMemTableGetMissingKey(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	m.set([]byte("a"), 1, base.InternalKeyKindSet, []byte("v"))

	_, found, deleted := m.get([]byte("zzz"), 1)
	require.False(t, found)
	require.False(t, deleted)
}

func TestMemTableIteratorVisitsInAscendingOrder(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	for i := 0; i < 50; i++ {
		m.set([]byte(fmt.Sprintf("k%03d", 49-i)), base.SeqNum(i+1), base.InternalKeyKindSet, []byte("v"))
	}

	it := newMemTableIterator(m)
	it.SeekToFirst()
	prev := ""
	count := 0
	for it.Valid() {
		ik, err := base.DecodeInternalKey(it.Key())
		require.NoError(t, err)
		require.True(t, prev < string(ik.UserKey) || prev == "")
		prev = string(ik.UserKey)
		count++
		it.Next()
	}
	require.Equal(t, 50, count)
}

func TestMemTableApproximateMemoryUsageGrows(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	before := m.ApproximateMemoryUsage()
	for i := 0; i < 1000; i++ {
		m.set([]byte(fmt.Sprintf("key-%06d", i)), base.SeqNum(i+1), base.InternalKeyKindSet, []byte("some-value"))
	}
	require.Greater(t, m.ApproximateMemoryUsage(), before)
}
