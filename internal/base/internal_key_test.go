// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternalKeyEncodeDecodeRoundTrip(t *testing.T) {
	cases := []InternalKey{
		MakeInternalKey([]byte("hello"), 1, InternalKeyKindSet),
		MakeInternalKey([]byte(""), 0, InternalKeyKindDelete),
		MakeInternalKey([]byte("\x00\x01\x02"), SeqNumMax, InternalKeyKindSet),
	}
	for _, k := range cases {
		buf := k.EncodeAppend(nil)
		got, err := DecodeInternalKey(buf)
		require.NoError(t, err)
		require.Equal(t, k.UserKey, got.UserKey)
		require.Equal(t, k.Trailer, got.Trailer)
	}
}

func TestDecodeInternalKeyRejectsTruncated(t *testing.T) {
	_, err := DecodeInternalKey([]byte("short"))
	require.Error(t, err)
}

func TestDecodeInternalKeyRejectsBadKind(t *testing.T) {
	k := MakeInternalKey([]byte("k"), 5, InternalKeyKindSet)
	buf := k.EncodeAppend(nil)
	// Corrupt the low byte of the trailer (the kind tag) to an invalid value.
	buf[len(buf)-8] = 0xff
	_, err := DecodeInternalKey(buf)
	require.Error(t, err)
}

func TestInternalCompareOrdering(t *testing.T) {
	ucmp := DefaultComparer.Compare

	// Same user key, higher seq sorts first.
	a := MakeInternalKey([]byte("k"), 5, InternalKeyKindSet)
	b := MakeInternalKey([]byte("k"), 3, InternalKeyKindSet)
	require.Negative(t, InternalCompare(ucmp, a, b))
	require.Positive(t, InternalCompare(ucmp, b, a))

	// Same user key and seq, Set (higher kind) sorts before Delete.
	c := MakeInternalKey([]byte("k"), 5, InternalKeyKindSet)
	d := MakeInternalKey([]byte("k"), 5, InternalKeyKindDelete)
	require.Negative(t, InternalCompare(ucmp, c, d))

	// Different user keys order lexicographically regardless of seq.
	e := MakeInternalKey([]byte("a"), 1, InternalKeyKindSet)
	f := MakeInternalKey([]byte("b"), 100, InternalKeyKindSet)
	require.Negative(t, InternalCompare(ucmp, e, f))
}

func TestInternalCompareEncodedMatchesDecoded(t *testing.T) {
	ucmp := DefaultComparer.Compare
	pairs := [][2]InternalKey{
		{MakeInternalKey([]byte("a"), 1, InternalKeyKindSet), MakeInternalKey([]byte("b"), 1, InternalKeyKindSet)},
		{MakeInternalKey([]byte("k"), 5, InternalKeyKindSet), MakeInternalKey([]byte("k"), 3, InternalKeyKindSet)},
		{MakeInternalKey([]byte("k"), 5, InternalKeyKindSet), MakeInternalKey([]byte("k"), 5, InternalKeyKindDelete)},
	}
	for _, p := range pairs {
		want := InternalCompare(ucmp, p[0], p[1])
		got := InternalCompareEncoded(ucmp, p[0].EncodeAppend(nil), p[1].EncodeAppend(nil))
		require.Equal(t, want, got)
	}
}

func TestLookupKeySortsAtOrBeforeRealEntries(t *testing.T) {
	ucmp := DefaultComparer.Compare
	lookup := LookupKey([]byte("k"), 5)
	real := MakeInternalKey([]byte("k"), 5, InternalKeyKindSet)
	require.LessOrEqual(t, InternalCompare(ucmp, lookup, real), 0)
}
