// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionEditEncodeDecodeRoundTrip(t *testing.T) {
	e := &versionEdit{
		comparatorName: "lsmdb.BytewiseComparator",
		hasComparator:  true,
		logNumber:      7,
		hasLogNumber:   true,
		nextFileNumber: 9,
		hasNextFileNum: true,
		lastSequence:   42,
		hasLastSeq:     true,
	}
	e.setCompactPointer(2, ikey("m", 5))
	e.deleteFile(1, 3)
	e.addFile(1, &fileMetaData{
		num:      4,
		size:     1024,
		smallest: ikey("a", 1),
		largest:  ikey("z", 2),
	})

	got, err := decodeVersionEdit(e.encode())
	require.NoError(t, err)

	require.Equal(t, e.comparatorName, got.comparatorName)
	require.True(t, got.hasComparator)
	require.Equal(t, e.logNumber, got.logNumber)
	require.Equal(t, e.nextFileNumber, got.nextFileNumber)
	require.Equal(t, e.lastSequence, got.lastSequence)
	require.True(t, got.deletedFiles[deletedFileEntry{level: 1, num: 3}])
	require.Len(t, got.newFiles, 1)
	require.Equal(t, fileNum(4), got.newFiles[0].meta.num)
	require.Equal(t, uint64(1024), got.newFiles[0].meta.size)
	require.Equal(t, "a", string(got.newFiles[0].meta.smallest.UserKey))
	require.Equal(t, "z", string(got.newFiles[0].meta.largest.UserKey))
	require.Len(t, got.compactPointers, 1)
	require.Equal(t, 2, got.compactPointers[0].level)
}

func TestDecodeVersionEditRestoresAllowedSeeksBudget(t *testing.T) {
	e := &versionEdit{}
	e.addFile(3, &fileMetaData{
		num:      1,
		size:     1 << 20,
		smallest: ikey("a", 1),
		largest:  ikey("b", 1),
	})

	got, err := decodeVersionEdit(e.encode())
	require.NoError(t, err)
	require.Equal(t, allowedSeeksForSize(1<<20), got.newFiles[0].meta.allowedSeeks)
	require.Greater(t, got.newFiles[0].meta.allowedSeeks, int64(0))
}

func TestDecodeVersionEditRejectsUnknownTag(t *testing.T) {
	_, err := decodeVersionEdit([]byte{0xff, 0x7f})
	require.Error(t, err)
}

func TestDecodeVersionEditRejectsTruncatedRecord(t *testing.T) {
	_, err := decodeVersionEdit([]byte{tagComparator, 5, 'a', 'b'})
	require.Error(t, err)
}
