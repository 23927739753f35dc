// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tillwork/lsmdb/internal/base"
)

func TestSnapshotListOldestIsEmptySeqWhenNoSnapshots(t *testing.T) {
	var l snapshotList
	l.init()
	require.True(t, l.empty())
	require.Equal(t, base.SeqNum(10), l.oldest(10))
}

func TestSnapshotListOldestTracksEarliestPushed(t *testing.T) {
	var l snapshotList
	l.init()

	s1 := &Snapshot{seq: 5}
	s2 := &Snapshot{seq: 8}
	l.pushBack(s1)
	l.pushBack(s2)

	require.False(t, l.empty())
	require.Equal(t, base.SeqNum(5), l.oldest(100))
}

func TestSnapshotListRemoveUpdatesOldest(t *testing.T) {
	var l snapshotList
	l.init()

	s1 := &Snapshot{seq: 5}
	s2 := &Snapshot{seq: 8}
	l.pushBack(s1)
	l.pushBack(s2)

	s1.remove()
	require.Equal(t, base.SeqNum(8), l.oldest(100))

	s2.remove()
	require.True(t, l.empty())
}
