// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tillwork/lsmdb/internal/base"
)

func TestMergingIterMergesMultipleSourcesInOrder(t *testing.T) {
	m1 := newMemTable(base.DefaultComparer)
	m1.set([]byte("a"), 1, base.InternalKeyKindSet, []byte("a1"))
	m1.set([]byte("c"), 1, base.InternalKeyKindSet, []byte("c1"))

	m2 := newMemTable(base.DefaultComparer)
	m2.set([]byte("b"), 2, base.InternalKeyKindSet, []byte("b2"))
	m2.set([]byte("d"), 2, base.InternalKeyKindSet, []byte("d2"))

	merge := newMergingIter(base.DefaultComparer.Compare, []mergingIterSource{
		{it: newMemTableIterator(m1)},
		{it: newMemTableIterator(m2)},
	})

	var got []string
	for merge.SeekToFirst(); merge.Valid(); merge.Next() {
		ik, err := base.DecodeInternalKey(merge.Key())
		require.NoError(t, err)
		got = append(got, string(ik.UserKey))
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestMergingIterOrdersSameUserKeyByDescendingSeqNum(t *testing.T) {
	m1 := newMemTable(base.DefaultComparer)
	m1.set([]byte("k"), 1, base.InternalKeyKindSet, []byte("old"))

	m2 := newMemTable(base.DefaultComparer)
	m2.set([]byte("k"), 5, base.InternalKeyKindSet, []byte("new"))

	merge := newMergingIter(base.DefaultComparer.Compare, []mergingIterSource{
		{it: newMemTableIterator(m1)},
		{it: newMemTableIterator(m2)},
	})

	merge.SeekToFirst()
	require.True(t, merge.Valid())
	require.Equal(t, "new", string(merge.Value()))

	merge.Next()
	require.True(t, merge.Valid())
	require.Equal(t, "old", string(merge.Value()))

	merge.Next()
	require.False(t, merge.Valid())
}

func TestMergingIterSeekSkipsAhead(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	for _, k := range []string{"a", "b", "c", "d"} {
		m.set([]byte(k), 1, base.InternalKeyKindSet, []byte(k))
	}
	merge := newMergingIter(base.DefaultComparer.Compare, []mergingIterSource{
		{it: newMemTableIterator(m)},
	})

	lookup := base.LookupKey([]byte("c"), 1)
	merge.Seek(lookup.EncodeAppend(nil))
	require.True(t, merge.Valid())
	ik, err := base.DecodeInternalKey(merge.Key())
	require.NoError(t, err)
	require.Equal(t, "c", string(ik.UserKey))
}

func TestMergingIterCloseInvokesClosers(t *testing.T) {
	m := newMemTable(base.DefaultComparer)
	m.set([]byte("a"), 1, base.InternalKeyKindSet, []byte("v"))

	closed := false
	merge := newMergingIter(base.DefaultComparer.Compare, []mergingIterSource{
		{it: newMemTableIterator(m), closer: func() { closed = true }},
	})
	merge.Close()
	require.True(t, closed)
}
