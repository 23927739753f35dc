// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tillwork/lsmdb/internal/base"
)

func TestCompactionStateShouldStopBeforeSplitsOnGrandparentOverlap(t *testing.T) {
	cmp := base.DefaultComparer.Compare
	c := &compaction{
		grandparents: []*fileMetaData{
			fileMeta(1, "a", "b", 20<<20),
			fileMeta(2, "c", "d", 20<<20),
		},
	}
	s := newCompactionState(c)

	// First key never triggers a split: nothing has accumulated yet.
	require.False(t, s.shouldStopBefore(cmp, ikey("a", 1), 1<<20))
	// Crossing past grandparent 1's "b" charges its 20 MiB against the
	// running total, which exceeds 10x the 1 MiB target file size.
	require.True(t, s.shouldStopBefore(cmp, ikey("c", 1), 1<<20))
}

func TestBaseLevelCursorIsBaseLevelForKeyWhenNoDeeperFileOverlaps(t *testing.T) {
	vs := newTestVersionSet()
	v := newVersion(vs)
	cmp := base.DefaultComparer.Compare

	cursor := newBaseLevelCursor(v, cmp, 0)
	require.True(t, cursor.isBaseLevelForKey([]byte("k")))
}

func TestBaseLevelCursorIsNotBaseLevelWhenDeeperFileOverlaps(t *testing.T) {
	vs := newTestVersionSet()
	v := newVersion(vs)
	v.files[2] = append(v.files[2], fileMeta(1, "a", "z", 100))
	cmp := base.DefaultComparer.Compare

	cursor := newBaseLevelCursor(v, cmp, 0)
	require.False(t, cursor.isBaseLevelForKey([]byte("k")))
}
