// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tillwork/lsmdb/internal/base"
)

func TestBatchEmptyInitially(t *testing.T) {
	b := NewBatch()
	require.True(t, b.Empty())
	require.Equal(t, uint32(0), b.Count())
}

func TestBatchSetAndDeleteIncrementCount(t *testing.T) {
	b := NewBatch()
	b.Set([]byte("k1"), []byte("v1"))
	b.Delete([]byte("k2"))
	require.False(t, b.Empty())
	require.Equal(t, uint32(2), b.Count())
}

func TestBatchIterVisitsEntriesInOrder(t *testing.T) {
	b := NewBatch()
	b.Set([]byte("a"), []byte("1"))
	b.Delete([]byte("b"))
	b.Set([]byte("c"), []byte("3"))

	it := b.iter()

	kind, key, value, ok := it.next()
	require.True(t, ok)
	require.Equal(t, base.InternalKeyKindSet, kind)
	require.Equal(t, "a", string(key))
	require.Equal(t, "1", string(value))

	kind, key, _, ok = it.next()
	require.True(t, ok)
	require.Equal(t, base.InternalKeyKindDelete, kind)
	require.Equal(t, "b", string(key))

	kind, key, value, ok = it.next()
	require.True(t, ok)
	require.Equal(t, base.InternalKeyKindSet, kind)
	require.Equal(t, "c", string(key))
	require.Equal(t, "3", string(value))

	_, _, _, ok = it.next()
	require.False(t, ok)
}

func TestBatchSeqNumRoundTrip(t *testing.T) {
	b := NewBatch()
	b.Set([]byte("k"), []byte("v"))
	b.setSeqNum(42)
	require.Equal(t, base.SeqNum(42), b.seqNum())
}
