// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tillwork/lsmdb/internal/base"
)

func newTestVersionSet() *versionSet {
	return newVersionSet("/db", &Options{Comparer: base.DefaultComparer, MaxFileSize: defaultFileSize})
}

func TestMaxBytesForLevelGrowsTenfoldPerLevel(t *testing.T) {
	require.Equal(t, 10.0*1048576.0, maxBytesForLevel(1))
	require.Equal(t, 100.0*1048576.0, maxBytesForLevel(2))
	require.Equal(t, 1000.0*1048576.0, maxBytesForLevel(3))
}

func TestTotalFileSizeSumsAllFiles(t *testing.T) {
	files := []*fileMetaData{
		fileMeta(1, "a", "b", 100),
		fileMeta(2, "c", "d", 250),
	}
	require.Equal(t, uint64(350), totalFileSize(files))
}

func TestNewFileNumberIncrementsMonotonically(t *testing.T) {
	vs := newTestVersionSet()
	first := vs.newFileNumber()
	second := vs.newFileNumber()
	require.Less(t, first, second)
}

func TestMarkFileNumberUsedAdvancesAllocator(t *testing.T) {
	vs := newTestVersionSet()
	vs.markFileNumberUsed(100)
	require.Equal(t, fileNum(101), vs.newFileNumber())
}

func TestVersionSetFinalizePrefersLevelZeroByFileCount(t *testing.T) {
	vs := newTestVersionSet()
	v := newVersion(vs)
	for i := 0; i < l0CompactionTrigger; i++ {
		v.files[0] = append(v.files[0], fileMeta(fileNum(i+1), "a", "z", 100))
	}
	vs.finalize(v)
	require.Equal(t, 0, v.compactionLevel)
	require.GreaterOrEqual(t, v.compactionScore, 1.0)
}

func TestVersionSetFinalizeScoresDeeperLevelsByBytes(t *testing.T) {
	vs := newTestVersionSet()
	v := newVersion(vs)
	v.files[1] = append(v.files[1], fileMeta(1, "a", "z", uint64(maxBytesForLevel(1))*2))
	vs.finalize(v)
	require.Equal(t, 1, v.compactionLevel)
	require.GreaterOrEqual(t, v.compactionScore, 1.0)
}

func TestFilesKeyRangeSpansAllFiles(t *testing.T) {
	files := []*fileMetaData{
		fileMeta(1, "d", "f", 100),
		fileMeta(2, "a", "c", 100),
		fileMeta(3, "g", "z", 100),
	}
	smallest, largest := filesKeyRange(base.DefaultComparer.Compare, files)
	require.Equal(t, "a", string(smallest))
	require.Equal(t, "z", string(largest))
}

func TestIsTrivialMoveRequiresSingleInputAndNoOverlap(t *testing.T) {
	c := &compaction{inputs: [2][]*fileMetaData{{fileMeta(1, "a", "b", 100)}, nil}}
	require.True(t, c.isTrivialMove(&Options{MaxFileSize: defaultFileSize}))

	c.inputs[1] = []*fileMetaData{fileMeta(2, "a", "b", 100)}
	require.False(t, c.isTrivialMove(&Options{MaxFileSize: defaultFileSize}))
}

func TestAddBoundaryInputsPullsInSharedUserKeySuccessor(t *testing.T) {
	cmp := base.DefaultComparer.Compare
	f1 := &fileMetaData{num: 1, smallest: ikey("a", 1), largest: ikey("m", 5)}
	f2 := &fileMetaData{num: 2, smallest: ikey("m", 3), largest: ikey("z", 1)}
	levelFiles := []*fileMetaData{f1, f2}

	got := addBoundaryInputs(cmp, levelFiles, []*fileMetaData{f1})
	require.Equal(t, []*fileMetaData{f1, f2}, got)
}

func TestAddBoundaryInputsLeavesDisjointFilesAlone(t *testing.T) {
	cmp := base.DefaultComparer.Compare
	f1 := fileMeta(1, "a", "m", 100)
	f2 := fileMeta(2, "n", "z", 100)
	levelFiles := []*fileMetaData{f1, f2}

	got := addBoundaryInputs(cmp, levelFiles, []*fileMetaData{f1})
	require.Equal(t, []*fileMetaData{f1}, got)
}

func TestSetupOtherInputsExtendsAcrossSharedBoundaryKey(t *testing.T) {
	vs := newTestVersionSet()
	v := newVersion(vs)
	l0a := &fileMetaData{num: 1, smallest: ikey("a", 1), largest: ikey("m", 5)}
	l0b := &fileMetaData{num: 2, smallest: ikey("m", 3), largest: ikey("z", 1)}
	v.files[0] = []*fileMetaData{l0a, l0b}

	c := &compaction{level: 0, inputVersion: v, inputs: [2][]*fileMetaData{{l0a}, nil}}
	vs.setupOtherInputs(c)

	require.ElementsMatch(t, []*fileMetaData{l0a, l0b}, c.inputs[0])
}
